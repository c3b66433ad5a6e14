package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"bossfit/internal/models"
)

type UserRepo struct {
	q querier
}

const userColumns = `id, username, password_hash, points, avatar, created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Points,
		&user.Avatar,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	const query = `
		INSERT INTO users (username, password_hash, points, avatar, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	if user.Avatar == "" {
		user.Avatar = models.DefaultAvatar
	}
	row := r.q.QueryRow(ctx, query, user.Username, user.PasswordHash, user.Points, user.Avatar)
	if err := row.Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return classify(err)
	}
	return nil
}

// Find runs the typed query and refuses to choose between multiple matches.
func (r *UserRepo) Find(ctx context.Context, q UserQuery) (models.User, error) {
	if q.Empty() {
		return models.User{}, fmt.Errorf("empty user query")
	}

	var (
		conds []string
		args  []any
	)
	if q.ID != nil {
		args = append(args, *q.ID)
		conds = append(conds, fmt.Sprintf("id = $%d", len(args)))
	}
	if q.Username != nil {
		args = append(args, *q.Username)
		conds = append(conds, fmt.Sprintf("username = $%d", len(args)))
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE ` + strings.Join(conds, " AND ") + ` LIMIT 2`
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return models.User{}, classify(err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return models.User{}, classify(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return models.User{}, classify(err)
	}

	switch len(users) {
	case 0:
		return models.User{}, ErrUserNotFound
	case 1:
		return users[0], nil
	default:
		return models.User{}, ErrNotUnique
	}
}

func (r *UserRepo) FindForUpdate(ctx context.Context, id int64) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	user, err := scanUser(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, classify(err)
	}
	return user, nil
}

func (r *UserRepo) ListByIDs(ctx context.Context, ids []int64) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1) ORDER BY id`
	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, classify(err)
		}
		users = append(users, user)
	}
	return users, classify(rows.Err())
}

func (r *UserRepo) ClaimPasswordHash(ctx context.Context, id int64, hash []byte) error {
	const query = `
		UPDATE users SET password_hash = $2, updated_at = NOW()
		WHERE id = $1 AND password_hash IS NULL
	`
	cmd, err := r.q.Exec(ctx, query, id, hash)
	if err != nil {
		return classify(err)
	}
	if cmd.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return classify(err)
	}
	if !exists {
		return ErrUserNotFound
	}
	return ErrDuplicate
}

// Reference never raises a unique violation, so a concurrent insert of the
// same username does not abort the surrounding transaction.
func (r *UserRepo) Reference(ctx context.Context, username string) (models.User, error) {
	const query = `
		INSERT INTO users (username, avatar, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (username) DO NOTHING
	`
	if _, err := r.q.Exec(ctx, query, username, models.DefaultAvatar); err != nil {
		return models.User{}, classify(err)
	}
	return r.Find(ctx, ByUsername(username))
}

func (r *UserRepo) AddPoints(ctx context.Context, id int64, delta int64) error {
	const query = `UPDATE users SET points = points + $2, updated_at = NOW() WHERE id = $1`
	cmd, err := r.q.Exec(ctx, query, id, delta)
	if err != nil {
		return classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) UpdateWallet(ctx context.Context, id int64, points int64, avatar string) error {
	const query = `UPDATE users SET points = $2, avatar = $3, updated_at = NOW() WHERE id = $1`
	cmd, err := r.q.Exec(ctx, query, id, points, avatar)
	if err != nil {
		return classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
