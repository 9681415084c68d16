package domain

import "errors"

// Sentinel errors shared across the repository and service layers.
var (
	// ErrUserNotFound is returned when no user row matches the lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned when the unique email constraint rejects an
	// insert. Concurrent signups race on this constraint alone.
	ErrEmailTaken = errors.New("email already registered")

	// ErrTokenNotFound is returned when no live refresh-token row matches,
	// either because it never existed or was already revoked.
	ErrTokenNotFound = errors.New("refresh token not found or already revoked")

	// ErrInvalidFederatedToken is returned when a provider-issued identity
	// token fails signature, issuer, audience, or email-verification checks.
	ErrInvalidFederatedToken = errors.New("invalid federated identity token")

	// ErrProviderUnavailable is returned when the identity provider cannot be
	// reached within the request deadline.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)
