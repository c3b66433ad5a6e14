package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"bossfit/internal/models"
	"bossfit/internal/repository"
)

// FriendGraph manages directed friend requests. An edge starts unconfirmed,
// is confirmed by its target, and is hidden from its requester's list until then.
type FriendGraph struct {
	store repository.Store
	log   zerolog.Logger
}

func NewFriendGraph(store repository.Store, log zerolog.Logger) *FriendGraph {
	return &FriendGraph{store: store, log: log}
}

// Request records an unconfirmed edge from requesterID to targetID.
func (g *FriendGraph) Request(ctx context.Context, requesterID int64, targetID int64) error {
	err := g.store.Tx(ctx, func(r repository.Repos) error {
		return request(ctx, r, requesterID, targetID)
	})
	return g.result(err, "request")
}

// RequestByUsername resolves the target first. An unknown username yields ErrUserNotFound.
func (g *FriendGraph) RequestByUsername(ctx context.Context, requesterID int64, username string) error {
	err := g.store.Tx(ctx, func(r repository.Repos) error {
		target, err := r.Users().Find(ctx, repository.ByUsername(normalizeUsername(username)))
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		return request(ctx, r, requesterID, target.ID)
	})
	return g.result(err, "request")
}

func request(ctx context.Context, r repository.Repos, requesterID int64, targetID int64) error {
	if requesterID == targetID {
		return ErrSelfFriend
	}

	_, err := r.Friends().FindBetween(ctx, requesterID, targetID)
	switch {
	case err == nil:
		return ErrAlreadyRequested
	case !errors.Is(err, repository.ErrEdgeNotFound):
		return err
	}

	edge := models.FriendEdge{RequesterID: requesterID, TargetID: targetID}
	if err := r.Friends().Create(ctx, &edge); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrAlreadyRequested
		}
		return err
	}
	return nil
}

// Accept confirms the request that requesterUsername sent to callerID.
func (g *FriendGraph) Accept(ctx context.Context, callerID int64, requesterUsername string) error {
	err := g.store.Tx(ctx, func(r repository.Repos) error {
		edge, err := incoming(ctx, r, callerID, requesterUsername)
		if err != nil {
			return err
		}
		if edge.Confirmed {
			return nil
		}
		return r.Friends().Confirm(ctx, edge.ID)
	})
	return g.result(err, "accept")
}

// Deny drops a pending request that requesterUsername sent to callerID.
func (g *FriendGraph) Deny(ctx context.Context, callerID int64, requesterUsername string) error {
	err := g.store.Tx(ctx, func(r repository.Repos) error {
		edge, err := incoming(ctx, r, callerID, requesterUsername)
		if err != nil {
			return err
		}
		if edge.Confirmed {
			return ErrFriendNotFound
		}
		return r.Friends().Delete(ctx, edge.ID)
	})
	return g.result(err, "deny")
}

// Unfriend removes the edge between callerID and username, whichever side
// created it and whether or not it was confirmed.
func (g *FriendGraph) Unfriend(ctx context.Context, callerID int64, username string) error {
	err := g.store.Tx(ctx, func(r repository.Repos) error {
		other, err := r.Users().Find(ctx, repository.ByUsername(normalizeUsername(username)))
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrFriendNotFound
			}
			return err
		}
		edge, err := r.Friends().FindBetween(ctx, callerID, other.ID)
		if err != nil {
			if errors.Is(err, repository.ErrEdgeNotFound) {
				return ErrFriendNotFound
			}
			return err
		}
		return r.Friends().Delete(ctx, edge.ID)
	})
	return g.result(err, "unfriend")
}

// incoming finds the edge between the pair and insists callerID is its target.
func incoming(ctx context.Context, r repository.Repos, callerID int64, requesterUsername string) (models.FriendEdge, error) {
	requester, err := r.Users().Find(ctx, repository.ByUsername(normalizeUsername(requesterUsername)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.FriendEdge{}, ErrFriendNotFound
		}
		return models.FriendEdge{}, err
	}

	edge, err := r.Friends().FindBetween(ctx, requester.ID, callerID)
	if err != nil {
		if errors.Is(err, repository.ErrEdgeNotFound) {
			return models.FriendEdge{}, ErrFriendNotFound
		}
		return models.FriendEdge{}, err
	}
	if edge.TargetID != callerID {
		return models.FriendEdge{}, ErrFriendNotFound
	}
	return edge, nil
}

// List returns userID's friends and invitations in edge insertion order. The
// caller's own outgoing pending requests are left out.
func (g *FriendGraph) List(ctx context.Context, userID int64) ([]models.Friend, error) {
	var friends []models.Friend
	err := g.store.Tx(ctx, func(r repository.Repos) error {
		edges, err := r.Friends().ListTouching(ctx, userID)
		if err != nil {
			return err
		}

		visible := make([]models.FriendEdge, 0, len(edges))
		otherIDs := make([]int64, 0, len(edges))
		for _, edge := range edges {
			if edge.RequesterID == userID && !edge.Confirmed {
				continue
			}
			visible = append(visible, edge)
			otherIDs = append(otherIDs, edge.Other(userID))
		}

		users, err := r.Users().ListByIDs(ctx, otherIDs)
		if err != nil {
			return err
		}
		byID := make(map[int64]models.User, len(users))
		for _, u := range users {
			byID[u.ID] = u
		}

		friends = make([]models.Friend, 0, len(visible))
		for _, edge := range visible {
			other, ok := byID[edge.Other(userID)]
			if !ok {
				continue
			}
			friends = append(friends, models.Friend{
				ID:        other.ID,
				Name:      other.Username,
				Confirmed: edge.Confirmed,
				Avatar:    other.Avatar,
			})
		}
		return nil
	})
	if err != nil {
		return nil, g.result(err, "list")
	}
	return friends, nil
}

func (g *FriendGraph) result(err error, op string) error {
	if err == nil {
		return nil
	}
	err = storeErr(err)
	if errors.Is(err, repository.ErrNotUnique) {
		g.log.Error().Err(err).Str("op", op).Msg("friend edge integrity violation")
	}
	return err
}
