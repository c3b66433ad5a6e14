package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"bossfit/internal/models"
)

type GameRepo struct {
	q querier
}

func (r *GameRepo) Create(ctx context.Context, game *models.GameSession) error {
	const insertSession = `
		INSERT INTO game_sessions (name, tag, boss_health, start_time)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	if err := r.q.QueryRow(ctx, insertSession, game.Name, game.Tag, game.BossHealth, game.StartTime).
		Scan(&game.ID); err != nil {
		return classify(err)
	}

	const insertMembers = `
		INSERT INTO game_session_members (session_id, user_id)
		SELECT $1, UNNEST($2::BIGINT[])
		ON CONFLICT DO NOTHING
	`
	if _, err := r.q.Exec(ctx, insertMembers, game.ID, game.MemberIDs); err != nil {
		return classify(err)
	}
	return nil
}

func (r *GameRepo) Get(ctx context.Context, id int64) (models.GameSession, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate takes the session row lock that serialises attacks.
func (r *GameRepo) GetForUpdate(ctx context.Context, id int64) (models.GameSession, error) {
	return r.get(ctx, id, true)
}

func (r *GameRepo) get(ctx context.Context, id int64, lock bool) (models.GameSession, error) {
	query := `SELECT id, name, tag, boss_health, start_time FROM game_sessions WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var game models.GameSession
	if err := r.q.QueryRow(ctx, query, id).Scan(
		&game.ID,
		&game.Name,
		&game.Tag,
		&game.BossHealth,
		&game.StartTime,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.GameSession{}, ErrGameNotFound
		}
		return models.GameSession{}, classify(err)
	}

	members, err := r.members(ctx, id)
	if err != nil {
		return models.GameSession{}, err
	}
	game.MemberIDs = members
	return game, nil
}

func (r *GameRepo) members(ctx context.Context, sessionID int64) ([]int64, error) {
	const query = `SELECT user_id FROM game_session_members WHERE session_id = $1 ORDER BY user_id`
	rows, err := r.q.Query(ctx, query, sessionID)
	if err != nil {
		return nil, classify(err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	return ids, classify(err)
}

func (r *GameRepo) UpdateBossHealth(ctx context.Context, id int64, health int) error {
	const query = `UPDATE game_sessions SET boss_health = $2 WHERE id = $1`
	cmd, err := r.q.Exec(ctx, query, id, health)
	if err != nil {
		return classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrGameNotFound
	}
	return nil
}

// Delete removes the session; memberships go with it through ON DELETE CASCADE.
func (r *GameRepo) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM game_sessions WHERE id = $1`
	cmd, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrGameNotFound
	}
	return nil
}

func (r *GameRepo) ListByMember(ctx context.Context, userID int64) ([]models.GameSession, error) {
	const query = `
		SELECT g.id, g.name, g.tag, g.boss_health, g.start_time
		FROM game_sessions g
		JOIN game_session_members m ON m.session_id = g.id
		WHERE m.user_id = $1
		ORDER BY g.id
	`
	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, classify(err)
	}
	games, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.GameSession, error) {
		var g models.GameSession
		err := row.Scan(&g.ID, &g.Name, &g.Tag, &g.BossHealth, &g.StartTime)
		return g, err
	})
	if err != nil {
		return nil, classify(err)
	}

	for i := range games {
		members, err := r.members(ctx, games[i].ID)
		if err != nil {
			return nil, err
		}
		games[i].MemberIDs = members
	}
	return games, nil
}

func (r *GameRepo) DeleteStartedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM game_sessions WHERE start_time <= $1`
	cmd, err := r.q.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, classify(err)
	}
	return cmd.RowsAffected(), nil
}
