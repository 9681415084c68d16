package domain

import (
	"time"

	"github.com/google/uuid"
)

// Auth provider tags stored on the user row.
const (
	ProviderEmail  = "email"
	ProviderGoogle = "google"
)

// Notification delivery methods a user may choose.
const (
	NotifyEmail = "email"
	NotifySMS   = "sms"
	NotifyBoth  = "both"
)

// DefaultRole is assigned to every self-registered account.
const DefaultRole = "user"

// User is an account record. PasswordHash is empty only for accounts created
// through a federated provider that have not set a local password yet.
type User struct {
	ID                    uuid.UUID
	Email                 string
	PasswordHash          string
	Role                  string
	AuthProvider          string
	IsVerified            bool
	Phone                 string
	PreferredNotification string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// HasPassword reports whether the account can authenticate with a password.
func (u User) HasPassword() bool {
	return u.PasswordHash != ""
}

// ValidNotificationMethod reports whether method is an accepted preference value.
func ValidNotificationMethod(method string) bool {
	switch method {
	case NotifyEmail, NotifySMS, NotifyBoth:
		return true
	}
	return false
}
