package token

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"

	"github.com/Bharath2805/healthassistant/internal/domain"
)

const defaultJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

// Identity is the subset of a verified Google ID token the auth flows need.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
}

// IdentityVerifier validates a federated ID token and extracts the identity
// it asserts.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (Identity, error)
}

// GoogleVerifier checks Google-issued ID tokens against Google's published
// signing keys. Keys are cached and refetched when an unknown key id shows
// up, which is how Google rotates them.
type GoogleVerifier struct {
	Audience string
	// JWKSURL points at Google's certs endpoint. Tests override it.
	JWKSURL string

	client *http.Client

	mu   sync.Mutex
	keys *gojose.JSONWebKeySet
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{
		Audience: clientID,
		JWKSURL:  defaultJWKSURL,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// Verify validates signature, issuer, audience, and expiry of a Google ID
// token. Tokens that fail validation map to domain.ErrInvalidFederatedToken;
// failures reaching Google's key endpoint map to domain.ErrProviderUnavailable.
func (v *GoogleVerifier) Verify(ctx context.Context, rawIDToken string) (Identity, error) {
	parsed, err := gojwt.ParseSigned(rawIDToken, []gojose.SignatureAlgorithm{gojose.RS256})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: parse id token: %v", domain.ErrInvalidFederatedToken, err)
	}
	if len(parsed.Headers) == 0 {
		return Identity{}, fmt.Errorf("%w: missing jose header", domain.ErrInvalidFederatedToken)
	}

	key, err := v.keyForID(ctx, parsed.Headers[0].KeyID)
	if err != nil {
		return Identity{}, err
	}

	var std gojwt.Claims
	var custom googleClaims
	if err := parsed.Claims(key.Public().Key, &std, &custom); err != nil {
		return Identity{}, fmt.Errorf("%w: signature check: %v", domain.ErrInvalidFederatedToken, err)
	}

	if std.Issuer != "accounts.google.com" && std.Issuer != "https://accounts.google.com" {
		return Identity{}, fmt.Errorf("%w: unexpected issuer %q", domain.ErrInvalidFederatedToken, std.Issuer)
	}
	if err := std.Validate(gojwt.Expected{
		AnyAudience: gojwt.Audience{v.Audience},
		Time:        time.Now(),
	}); err != nil {
		return Identity{}, fmt.Errorf("%w: claims check: %v", domain.ErrInvalidFederatedToken, err)
	}

	return Identity{Subject: std.Subject, Email: custom.Email, EmailVerified: custom.EmailVerified}, nil
}

func (v *GoogleVerifier) keyForID(ctx context.Context, kid string) (gojose.JSONWebKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.keys != nil {
		if matches := v.keys.Key(kid); len(matches) > 0 {
			return matches[0], nil
		}
	}

	set, err := v.fetchKeys(ctx)
	if err != nil {
		return gojose.JSONWebKey{}, err
	}
	v.keys = set

	if matches := v.keys.Key(kid); len(matches) > 0 {
		return matches[0], nil
	}
	return gojose.JSONWebKey{}, fmt.Errorf("%w: no key for kid %q", domain.ErrInvalidFederatedToken, kid)
}

func (v *GoogleVerifier) fetchKeys(ctx context.Context) (*gojose.JSONWebKeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.JWKSURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build jwks request: %v", domain.ErrProviderUnavailable, err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch jwks: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: jwks endpoint returned %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}

	var set gojose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("%w: decode jwks: %v", domain.ErrProviderUnavailable, err)
	}
	return &set, nil
}
