package service

import "fmt"

// AuthError is a client-visible failure of an auth flow. Code is the stable
// machine-readable identifier, Message the human-readable one, Status the
// HTTP status handlers respond with.
type AuthError struct {
	Code    string
	Message string
	Status  int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newAuthError(code, message string, status int) *AuthError {
	return &AuthError{Code: code, Message: message, Status: status}
}
