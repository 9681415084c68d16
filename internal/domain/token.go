package domain

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is a persisted session grant. A token is usable only while
// Revoked is false and ExpiresAt is in the future; rows are never deleted,
// revocation flips the flag so the audit trail survives.
type RefreshToken struct {
	ID        int64
	UserID    uuid.UUID
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// Usable reports whether the grant is still good at the given instant.
func (t RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
