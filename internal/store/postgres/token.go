package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskflow-io/taskflow/internal/domain"
)

type RefreshTokenRepo struct {
	pool *pgxpool.Pool
}

func NewRefreshTokenRepo(pool *pgxpool.Pool) *RefreshTokenRepo {
	return &RefreshTokenRepo{pool: pool}
}

func (r *RefreshTokenRepo) Create(ctx context.Context, t *domain.RefreshToken) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (token, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		t.Token, t.UserID, t.ExpiresAt, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("refreshTokenRepo.Create: %w", err)
	}

	return nil
}

// Consume deletes the token in the same statement that reads it, so a
// presented token can settle at most one refresh even under concurrent use.
func (r *RefreshTokenRepo) Consume(ctx context.Context, token string) (*domain.RefreshToken, error) {
	var t domain.RefreshToken

	err := r.pool.QueryRow(ctx,
		`DELETE FROM refresh_tokens WHERE token = $1
		 RETURNING token, user_id, expires_at, created_at`,
		token,
	).Scan(&t.Token, &t.UserID, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("refreshTokenRepo.Consume: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("refreshTokenRepo.Consume: %w", err)
	}

	return &t, nil
}

func (r *RefreshTokenRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("refreshTokenRepo.DeleteByUser: %w", err)
	}

	return nil
}
