package token_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Bharath2805/healthassistant/internal/token"
)

func newTestService(t *testing.T) *token.Service {
	t.Helper()
	return token.NewService(
		[]byte("access-secret-for-tests-0123456789abcdef"),
		[]byte("refresh-secret-for-tests-0123456789abcdef"),
		30*time.Minute,
		7*24*time.Hour,
		time.Hour,
	)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newTestService(t)
	userID := uuid.New()

	raw, err := svc.IssueAccessToken(userID, "admin")
	require.NoError(t, err)

	gotID, role, err := svc.DecodeAccessToken(raw)
	require.NoError(t, err)
	require.Equal(t, userID, gotID)
	require.Equal(t, "admin", role)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	svc := newTestService(t)
	userID := uuid.New()

	raw, err := svc.IssueRefreshToken(userID)
	require.NoError(t, err)

	gotID, err := svc.VerifyRefreshToken(raw)
	require.NoError(t, err)
	require.Equal(t, userID, gotID)
}

func TestEmailTokenRoundTrip(t *testing.T) {
	svc := newTestService(t)
	userID := uuid.New()

	for _, kind := range []string{token.KindEmailVerify, token.KindPasswordReset} {
		raw, err := svc.IssueEmailToken(userID, kind)
		require.NoError(t, err)

		gotID, err := svc.VerifyEmailToken(raw, kind)
		require.NoError(t, err)
		require.Equal(t, userID, gotID)
	}
}

func TestEmailTokenRejectsAccessKind(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.IssueEmailToken(uuid.New(), token.KindAccess)
	require.ErrorIs(t, err, token.ErrWrongKind)
}

func TestExpiredTokensAreRejected(t *testing.T) {
	svc := token.NewService(
		[]byte("access-secret-for-tests-0123456789abcdef"),
		[]byte("refresh-secret-for-tests-0123456789abcdef"),
		-time.Minute,
		-time.Minute,
		-time.Minute,
	)
	userID := uuid.New()

	access, err := svc.IssueAccessToken(userID, "user")
	require.NoError(t, err)
	_, _, err = svc.DecodeAccessToken(access)
	require.ErrorIs(t, err, token.ErrExpiredToken)

	refresh, err := svc.IssueRefreshToken(userID)
	require.NoError(t, err)
	_, err = svc.VerifyRefreshToken(refresh)
	require.ErrorIs(t, err, token.ErrExpiredToken)

	reset, err := svc.IssueEmailToken(userID, token.KindPasswordReset)
	require.NoError(t, err)
	_, err = svc.VerifyEmailToken(reset, token.KindPasswordReset)
	require.ErrorIs(t, err, token.ErrExpiredToken)
}

func TestRefreshTokenRejectedAsAccess(t *testing.T) {
	svc := newTestService(t)

	// Different secrets, so the signature itself fails.
	refresh, err := svc.IssueRefreshToken(uuid.New())
	require.NoError(t, err)

	_, _, err = svc.DecodeAccessToken(refresh)
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestKindIsolationUnderSharedSecret(t *testing.T) {
	// Same secret on both sides: only the "kind" claim keeps the token
	// classes apart.
	secret := []byte("one-secret-both-classes-0123456789abcdef")
	svc := token.NewService(secret, secret, time.Hour, time.Hour, time.Hour)
	userID := uuid.New()

	refresh, err := svc.IssueRefreshToken(userID)
	require.NoError(t, err)
	_, _, err = svc.DecodeAccessToken(refresh)
	require.ErrorIs(t, err, token.ErrWrongKind)

	access, err := svc.IssueAccessToken(userID, "user")
	require.NoError(t, err)
	_, err = svc.VerifyRefreshToken(access)
	require.ErrorIs(t, err, token.ErrWrongKind)

	verify, err := svc.IssueEmailToken(userID, token.KindEmailVerify)
	require.NoError(t, err)
	_, err = svc.VerifyEmailToken(verify, token.KindPasswordReset)
	require.ErrorIs(t, err, token.ErrWrongKind)
}

func TestGarbageTokenIsInvalid(t *testing.T) {
	svc := newTestService(t)

	_, _, err := svc.DecodeAccessToken("not.a.jwt")
	require.ErrorIs(t, err, token.ErrInvalidToken)

	_, err = svc.VerifyRefreshToken("")
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestTamperedTokenIsInvalid(t *testing.T) {
	svc := newTestService(t)
	other := token.NewService(
		[]byte("a-completely-different-secret-0123456789"),
		[]byte("another-different-secret-0123456789abcd"),
		30*time.Minute,
		7*24*time.Hour,
		time.Hour,
	)

	forged, err := other.IssueAccessToken(uuid.New(), "admin")
	require.NoError(t, err)

	_, _, err = svc.DecodeAccessToken(forged)
	require.ErrorIs(t, err, token.ErrInvalidToken)
}
