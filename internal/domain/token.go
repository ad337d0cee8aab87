package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RefreshToken is a server-side record of an outstanding refresh credential.
// Tokens rotate: consuming one deletes it and issues a replacement, so a
// token presented twice is a replay.
type RefreshToken struct {
	Token     string
	UserID    uuid.UUID
	ExpiresAt time.Time
	CreatedAt time.Time
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, t *RefreshToken) error
	// Consume atomically looks up and deletes the token. Returns ErrNotFound
	// if the token does not exist (already rotated or never issued).
	Consume(ctx context.Context, token string) (*RefreshToken, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}
