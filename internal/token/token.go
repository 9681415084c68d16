package token

import (
	"errors"
	"fmt"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
)

// Token kinds carried in the "kind" claim. Email-verification and
// password-reset links use distinct kinds so a token minted for one flow can
// never be replayed against the other.
const (
	KindAccess        = "access"
	KindRefresh       = "refresh"
	KindEmailVerify   = "email-verify"
	KindPasswordReset = "password-reset"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrWrongKind    = errors.New("unexpected token kind")
)

// Service signs and verifies the application's JWTs with HS256. Access and
// email tokens share one secret; refresh tokens are signed with a second one,
// so compromise of one secret cannot forge tokens of the other class.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	emailTTL      time.Duration
}

// NewService constructs a token service from the two signing secrets and the
// per-kind lifetimes.
func NewService(accessSecret, refreshSecret []byte, accessTTL, refreshTTL, emailTTL time.Duration) *Service {
	return &Service{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		emailTTL:      emailTTL,
	}
}

// RefreshTTL exposes the refresh lifetime so the ledger row can expire at the
// same instant as the signature.
func (s *Service) RefreshTTL() time.Duration {
	return s.refreshTTL
}

type appClaims struct {
	Kind string `json:"kind"`
	Role string `json:"role,omitempty"`
}

// IssueEmailToken mints a one-hour token for an email-delivered link. Kind
// must be KindEmailVerify or KindPasswordReset.
func (s *Service) IssueEmailToken(userID uuid.UUID, kind string) (string, error) {
	if kind != KindEmailVerify && kind != KindPasswordReset {
		return "", fmt.Errorf("issue email token: %w: %q", ErrWrongKind, kind)
	}
	return s.sign(s.accessSecret, userID.String(), appClaims{Kind: kind}, s.emailTTL)
}

// VerifyEmailToken validates an email-link token of the expected kind and
// returns the subject user id.
func (s *Service) VerifyEmailToken(raw, kind string) (uuid.UUID, error) {
	std, custom, err := s.verify(s.accessSecret, raw)
	if err != nil {
		return uuid.Nil, err
	}
	if custom.Kind != kind {
		return uuid.Nil, ErrWrongKind
	}
	return parseSubject(std.Subject)
}

// IssueAccessToken mints a short-lived bearer token carrying the user's role.
func (s *Service) IssueAccessToken(userID uuid.UUID, role string) (string, error) {
	return s.sign(s.accessSecret, userID.String(), appClaims{Kind: KindAccess, Role: role}, s.accessTTL)
}

// DecodeAccessToken validates an access token and returns the subject user id
// and role. Tokens of any other kind are rejected even when the signature
// checks out.
func (s *Service) DecodeAccessToken(raw string) (uuid.UUID, string, error) {
	std, custom, err := s.verify(s.accessSecret, raw)
	if err != nil {
		return uuid.Nil, "", err
	}
	if custom.Kind != KindAccess {
		return uuid.Nil, "", ErrWrongKind
	}
	id, err := parseSubject(std.Subject)
	if err != nil {
		return uuid.Nil, "", err
	}
	return id, custom.Role, nil
}

// IssueRefreshToken mints a refresh token signed with the refresh secret.
func (s *Service) IssueRefreshToken(userID uuid.UUID) (string, error) {
	return s.sign(s.refreshSecret, userID.String(), appClaims{Kind: KindRefresh}, s.refreshTTL)
}

// VerifyRefreshToken validates a refresh token's signature, expiry, and kind,
// returning the subject user id. Ledger state is the caller's concern.
func (s *Service) VerifyRefreshToken(raw string) (uuid.UUID, error) {
	std, custom, err := s.verify(s.refreshSecret, raw)
	if err != nil {
		return uuid.Nil, err
	}
	if custom.Kind != KindRefresh {
		return uuid.Nil, ErrWrongKind
	}
	return parseSubject(std.Subject)
}

func (s *Service) sign(secret []byte, subject string, custom appClaims, ttl time.Duration) (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: secret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := time.Now().UTC()
	std := gojwt.Claims{
		Subject:  subject,
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(now.Add(ttl)),
	}

	raw, err := gojwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize jwt: %w", err)
	}
	return raw, nil
}

func (s *Service) verify(secret []byte, raw string) (gojwt.Claims, appClaims, error) {
	parsed, err := gojwt.ParseSigned(raw, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return gojwt.Claims{}, appClaims{}, ErrInvalidToken
	}

	var std gojwt.Claims
	var custom appClaims
	if err := parsed.Claims(secret, &std, &custom); err != nil {
		return gojwt.Claims{}, appClaims{}, ErrInvalidToken
	}

	if err := std.Validate(gojwt.Expected{Time: time.Now()}); err != nil {
		if errors.Is(err, gojwt.ErrExpired) {
			return gojwt.Claims{}, appClaims{}, ErrExpiredToken
		}
		return gojwt.Claims{}, appClaims{}, ErrInvalidToken
	}

	return std, custom, nil
}

func parseSubject(subject string) (uuid.UUID, error) {
	id, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}
