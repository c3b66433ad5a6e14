package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"bossfit/internal/models"
)

type TokenRepo struct {
	q querier
}

func (r *TokenRepo) Create(ctx context.Context, token *models.SessionToken) error {
	const query = `
		INSERT INTO session_tokens (user_id, token_hash, created_at, renewed_at, expires_at)
		VALUES ($1, $2, $3, $3, $4)
		RETURNING id
	`
	if err := r.q.QueryRow(ctx, query,
		token.UserID,
		token.TokenHash,
		token.CreatedAt,
		token.ExpiresAt,
	).Scan(&token.ID); err != nil {
		return classify(err)
	}
	token.RenewedAt = token.CreatedAt
	return nil
}

func (r *TokenRepo) GetByHash(ctx context.Context, hash []byte) (models.SessionToken, error) {
	const query = `
		SELECT id, user_id, token_hash, created_at, renewed_at, expires_at
		FROM session_tokens
		WHERE token_hash = $1
		LIMIT 2
	`
	rows, err := r.q.Query(ctx, query, hash)
	if err != nil {
		return models.SessionToken{}, classify(err)
	}
	tokens, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SessionToken, error) {
		var t models.SessionToken
		err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.CreatedAt, &t.RenewedAt, &t.ExpiresAt)
		return t, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.SessionToken{}, ErrTokenNotFound
		}
		return models.SessionToken{}, classify(err)
	}

	switch len(tokens) {
	case 0:
		return models.SessionToken{}, ErrTokenNotFound
	case 1:
		return tokens[0], nil
	default:
		return models.SessionToken{}, ErrNotUnique
	}
}

func (r *TokenRepo) Renew(ctx context.Context, hash []byte, renewedAt time.Time, expiresAt time.Time) error {
	const query = `UPDATE session_tokens SET renewed_at = $2, expires_at = $3 WHERE token_hash = $1`
	cmd, err := r.q.Exec(ctx, query, hash, renewedAt, expiresAt)
	if err != nil {
		return classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrTokenNotFound
	}
	return nil
}

func (r *TokenRepo) DeleteByHash(ctx context.Context, hash []byte) error {
	const query = `DELETE FROM session_tokens WHERE token_hash = $1`
	_, err := r.q.Exec(ctx, query, hash)
	return classify(err)
}

func (r *TokenRepo) CountByUser(ctx context.Context, userID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM session_tokens WHERE user_id = $1`
	var count int
	if err := r.q.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, classify(err)
	}
	return count, nil
}

func (r *TokenRepo) DeleteOldest(ctx context.Context, userID int64, keepLatest int) ([][]byte, error) {
	const query = `
		DELETE FROM session_tokens
		WHERE id IN (
			SELECT id FROM session_tokens
			WHERE user_id = $1
			ORDER BY renewed_at DESC, id DESC
			OFFSET $2
		)
		RETURNING token_hash
	`
	rows, err := r.q.Query(ctx, query, userID, keepLatest)
	if err != nil {
		return nil, classify(err)
	}
	dropped, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, classify(err)
	}
	return dropped, nil
}

func (r *TokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM session_tokens WHERE expires_at <= $1`
	cmd, err := r.q.Exec(ctx, query, now)
	if err != nil {
		return 0, classify(err)
	}
	return cmd.RowsAffected(), nil
}
