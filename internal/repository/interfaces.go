package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Bharath2805/healthassistant/internal/domain"
)

// UserRepository exposes persistence for user accounts.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	MarkVerified(ctx context.Context, id uuid.UUID) error
	UpdatePhone(ctx context.Context, id uuid.UUID, phone string) error
	UpdateNotificationMethod(ctx context.Context, id uuid.UUID, method string) error
}

// RefreshTokenRepository is the revocation ledger for refresh tokens. A
// refresh token is only honored while its ledger row is active and unexpired.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token domain.RefreshToken) (domain.RefreshToken, error)
	GetActive(ctx context.Context, token string, now time.Time) (domain.RefreshToken, error)
	Revoke(ctx context.Context, token string) error
	// RevokeAndReplace revokes the old row and inserts the replacement in a
	// single transaction so a crash cannot leave both tokens live.
	RevokeAndReplace(ctx context.Context, oldToken string, replacement domain.RefreshToken) (domain.RefreshToken, error)
}

// LoginStateStore holds short-lived CSRF state for the Google redirect flow.
type LoginStateStore interface {
	Save(ctx context.Context, state string, ttl time.Duration) error
	Consume(ctx context.Context, state string) (bool, error)
}
