package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"bossfit/internal/models"
)

type FriendRepo struct {
	q querier
}

const edgeColumns = `id, requester_id, target_id, confirmed, created_at`

func collectEdges(rows pgx.Rows) ([]models.FriendEdge, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.FriendEdge, error) {
		var e models.FriendEdge
		err := row.Scan(&e.ID, &e.RequesterID, &e.TargetID, &e.Confirmed, &e.CreatedAt)
		return e, err
	})
}

// Create relies on the unordered pair index to reject a second edge even when
// two requests race.
func (r *FriendRepo) Create(ctx context.Context, edge *models.FriendEdge) error {
	const query = `
		INSERT INTO friend_edges (requester_id, target_id, confirmed, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, created_at
	`
	if err := r.q.QueryRow(ctx, query, edge.RequesterID, edge.TargetID, edge.Confirmed).
		Scan(&edge.ID, &edge.CreatedAt); err != nil {
		return classify(err)
	}
	return nil
}

func (r *FriendRepo) FindBetween(ctx context.Context, a int64, b int64) (models.FriendEdge, error) {
	query := `
		SELECT ` + edgeColumns + `
		FROM friend_edges
		WHERE (requester_id = $1 AND target_id = $2) OR (requester_id = $2 AND target_id = $1)
		LIMIT 2
		FOR UPDATE
	`
	rows, err := r.q.Query(ctx, query, a, b)
	if err != nil {
		return models.FriendEdge{}, classify(err)
	}
	edges, err := collectEdges(rows)
	if err != nil {
		return models.FriendEdge{}, classify(err)
	}

	switch len(edges) {
	case 0:
		return models.FriendEdge{}, ErrEdgeNotFound
	case 1:
		return edges[0], nil
	default:
		return models.FriendEdge{}, ErrNotUnique
	}
}

func (r *FriendRepo) Confirm(ctx context.Context, id int64) error {
	const query = `UPDATE friend_edges SET confirmed = TRUE WHERE id = $1`
	cmd, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrEdgeNotFound
	}
	return nil
}

func (r *FriendRepo) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM friend_edges WHERE id = $1`
	cmd, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrEdgeNotFound
	}
	return nil
}

func (r *FriendRepo) ListTouching(ctx context.Context, userID int64) ([]models.FriendEdge, error) {
	query := `
		SELECT ` + edgeColumns + `
		FROM friend_edges
		WHERE requester_id = $1 OR target_id = $1
		ORDER BY id
	`
	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, classify(err)
	}
	edges, err := collectEdges(rows)
	return edges, classify(err)
}
