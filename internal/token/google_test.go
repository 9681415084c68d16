package token_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"

	"github.com/Bharath2805/healthassistant/internal/domain"
	"github.com/Bharath2805/healthassistant/internal/token"
)

const testClientID = "client-id.apps.googleusercontent.com"

type googleFixture struct {
	key      *rsa.PrivateKey
	keyID    string
	verifier *token.GoogleVerifier
	server   *httptest.Server
	requests int
}

func newGoogleFixture(t *testing.T) *googleFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &googleFixture{key: key, keyID: "test-kid"}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests++
		set := gojose.JSONWebKeySet{Keys: []gojose.JSONWebKey{{
			Key:       &key.PublicKey,
			KeyID:     f.keyID,
			Algorithm: string(gojose.RS256),
			Use:       "sig",
		}}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(set))
	}))
	t.Cleanup(f.server.Close)

	f.verifier = token.NewGoogleVerifier(testClientID)
	f.verifier.JWKSURL = f.server.URL
	return f
}

func (f *googleFixture) idToken(t *testing.T, mutate func(*gojwt.Claims)) string {
	t.Helper()

	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.RS256, Key: f.key},
		(&gojose.SignerOptions{ExtraHeaders: map[gojose.HeaderKey]interface{}{"kid": f.keyID}}).WithType("JWT"),
	)
	require.NoError(t, err)

	now := time.Now()
	std := gojwt.Claims{
		Issuer:   "https://accounts.google.com",
		Subject:  "109876543210",
		Audience: gojwt.Audience{testClientID},
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(now.Add(time.Hour)),
	}
	if mutate != nil {
		mutate(&std)
	}
	custom := map[string]interface{}{
		"email":          "patient@example.com",
		"email_verified": true,
	}

	raw, err := gojwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	require.NoError(t, err)
	return raw
}

func TestGoogleVerifierAcceptsValidToken(t *testing.T) {
	f := newGoogleFixture(t)

	identity, err := f.verifier.Verify(context.Background(), f.idToken(t, nil))
	require.NoError(t, err)
	require.Equal(t, "109876543210", identity.Subject)
	require.Equal(t, "patient@example.com", identity.Email)
	require.True(t, identity.EmailVerified)
}

func TestGoogleVerifierCachesKeys(t *testing.T) {
	f := newGoogleFixture(t)
	ctx := context.Background()

	_, err := f.verifier.Verify(ctx, f.idToken(t, nil))
	require.NoError(t, err)
	_, err = f.verifier.Verify(ctx, f.idToken(t, nil))
	require.NoError(t, err)
	require.Equal(t, 1, f.requests)
}

func TestGoogleVerifierRejectsWrongIssuer(t *testing.T) {
	f := newGoogleFixture(t)

	raw := f.idToken(t, func(c *gojwt.Claims) { c.Issuer = "https://evil.example.com" })
	_, err := f.verifier.Verify(context.Background(), raw)
	require.ErrorIs(t, err, domain.ErrInvalidFederatedToken)
}

func TestGoogleVerifierRejectsWrongAudience(t *testing.T) {
	f := newGoogleFixture(t)

	raw := f.idToken(t, func(c *gojwt.Claims) { c.Audience = gojwt.Audience{"someone-else"} })
	_, err := f.verifier.Verify(context.Background(), raw)
	require.ErrorIs(t, err, domain.ErrInvalidFederatedToken)
}

func TestGoogleVerifierRejectsExpiredToken(t *testing.T) {
	f := newGoogleFixture(t)

	raw := f.idToken(t, func(c *gojwt.Claims) {
		c.Expiry = gojwt.NewNumericDate(time.Now().Add(-time.Hour))
	})
	_, err := f.verifier.Verify(context.Background(), raw)
	require.ErrorIs(t, err, domain.ErrInvalidFederatedToken)
}

func TestGoogleVerifierRejectsForeignKey(t *testing.T) {
	f := newGoogleFixture(t)

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	forger := &googleFixture{key: otherKey, keyID: f.keyID}

	_, err = f.verifier.Verify(context.Background(), forger.idToken(t, nil))
	require.ErrorIs(t, err, domain.ErrInvalidFederatedToken)
}

func TestGoogleVerifierUnreachableJWKS(t *testing.T) {
	f := newGoogleFixture(t)
	raw := f.idToken(t, nil)
	f.server.Close()

	_, err := f.verifier.Verify(context.Background(), raw)
	require.ErrorIs(t, err, domain.ErrProviderUnavailable)
}
