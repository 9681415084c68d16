package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/Bharath2805/healthassistant/internal/domain"
)

// GoogleLoginURL starts the redirect flow: a random state nonce is persisted
// with a short TTL and embedded in the consent-screen URL.
func (s *AuthService) GoogleLoginURL(ctx context.Context) (string, error) {
	ctx, span := s.startSpan(ctx, "AuthService.GoogleLoginURL")
	defer span.End()

	if s.cfg.GoogleClientID == "" || s.cfg.GoogleClientSecret == "" {
		return "", newAuthError("oauth_not_configured", "Google OAuth configuration missing", 500)
	}

	state := randomState()
	if err := s.states.Save(ctx, state, loginStateTTL); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("save login state: %w", err)
	}
	return s.exchanger.AuthCodeURL(state), nil
}

// GoogleCallback finishes the redirect flow: consume the state nonce,
// exchange the code, verify the ID token, find-or-create the account, and
// hand back the frontend URL carrying both tokens.
func (s *AuthService) GoogleCallback(ctx context.Context, code, state string) (string, error) {
	ctx, span := s.startSpan(ctx, "AuthService.GoogleCallback")
	defer span.End()

	ok, err := s.states.Consume(ctx, state)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("consume login state: %w", err)
	}
	if !ok {
		return "", newAuthError("invalid_state", "Invalid or expired login state", 400)
	}

	exchanged, err := s.exchanger.ExchangeCode(ctx, code)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrProviderUnavailable) {
			return "", newAuthError("provider_unavailable", "Identity provider unavailable", 502)
		}
		return "", newAuthError("invalid_federated_token", "Failed to get access token", 400)
	}

	resp, err := s.loginWithIDToken(ctx, exchanged.IDToken)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("access_token", resp.AccessToken)
	q.Set("refresh_token", resp.RefreshToken)
	return s.cfg.FrontendURL + "/google-auth-success?" + q.Encode(), nil
}

// GoogleTokenLogin is the direct-token variant of Google login: the client
// submits the provider's ID token itself and receives the token pair as JSON.
func (s *AuthService) GoogleTokenLogin(ctx context.Context, rawIDToken string) (*TokenResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.GoogleTokenLogin")
	defer span.End()

	resp, err := s.loginWithIDToken(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}
	resp.Message = "Google login successful"
	return resp, nil
}

func (s *AuthService) loginWithIDToken(ctx context.Context, rawIDToken string) (*TokenResponse, error) {
	identity, err := s.google.Verify(ctx, rawIDToken)
	if err != nil {
		if errors.Is(err, domain.ErrProviderUnavailable) {
			return nil, newAuthError("provider_unavailable", "Identity provider unavailable", 502)
		}
		return nil, newAuthError("invalid_federated_token", "Invalid Google token", 401)
	}
	if identity.Email == "" {
		return nil, newAuthError("missing_email", "Email not found in token", 400)
	}
	if !identity.EmailVerified {
		return nil, newAuthError("invalid_federated_token", "Email not verified by Google", 401)
	}

	user, err := s.findOrCreateGoogleUser(ctx, normalizeEmail(identity.Email))
	if err != nil {
		return nil, err
	}

	resp, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.audit("google.login.success", "user_id", user.ID)
	return resp, nil
}

// findOrCreateGoogleUser provisions a verified, passwordless account on first
// federated login. A lost creation race falls back to the winner's row.
func (s *AuthService) findOrCreateGoogleUser(ctx context.Context, email string) (domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, fmt.Errorf("google lookup user: %w", err)
	}

	created, err := s.users.Create(ctx, domain.User{
		ID:           uuid.New(),
		Email:        email,
		Role:         domain.DefaultRole,
		AuthProvider: domain.ProviderGoogle,
		IsVerified:   true,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return s.users.GetByEmail(ctx, email)
		}
		return domain.User{}, fmt.Errorf("google create user: %w", err)
	}
	s.audit("google.user.created", "user_id", created.ID, "email", created.Email)
	return created, nil
}
