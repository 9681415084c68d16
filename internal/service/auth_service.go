package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Bharath2805/healthassistant/internal/adapter/oauth"
	"github.com/Bharath2805/healthassistant/internal/config"
	"github.com/Bharath2805/healthassistant/internal/domain"
	"github.com/Bharath2805/healthassistant/internal/notify"
	pw "github.com/Bharath2805/healthassistant/internal/password"
	"github.com/Bharath2805/healthassistant/internal/repository"
	"github.com/Bharath2805/healthassistant/internal/token"
)

const loginStateTTL = 5 * time.Minute

// AuthService encapsulates signup, login, federation, and the refresh-token
// session lifecycle.
type AuthService struct {
	users     repository.UserRepository
	ledger    repository.RefreshTokenRepository
	states    repository.LoginStateStore
	tokens    *token.Service
	google    token.IdentityVerifier
	exchanger oauth.Exchanger
	mailer    notify.Mailer
	sms       notify.SMSSender
	node      *snowflake.Node
	cfg       config.Config
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewAuthService wires dependencies.
func NewAuthService(
	users repository.UserRepository,
	ledger repository.RefreshTokenRepository,
	states repository.LoginStateStore,
	tokens *token.Service,
	google token.IdentityVerifier,
	exchanger oauth.Exchanger,
	mailer notify.Mailer,
	sms notify.SMSSender,
	node *snowflake.Node,
	cfg config.Config,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		ledger:    ledger,
		states:    states,
		tokens:    tokens,
		google:    google,
		exchanger: exchanger,
		mailer:    mailer,
		sms:       sms,
		node:      node,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer("github.com/Bharath2805/healthassistant/internal/service"),
	}
}

// Signup creates an unverified email-provider account, dispatches the
// verification link best-effort, and returns a fresh access token. The
// session is usable immediately; verification is enforced at login.
func (s *AuthService) Signup(ctx context.Context, email, password string) (*TokenResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Signup")
	defer span.End()

	normalized := normalizeEmail(email)

	hash, err := pw.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, domain.User{
		ID:           uuid.New(),
		Email:        normalized,
		PasswordHash: hash,
		Role:         domain.DefaultRole,
		AuthProvider: domain.ProviderEmail,
		IsVerified:   false,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, newAuthError("email_taken", "Email already registered", 400)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("signup create user: %w", err)
	}

	s.sendVerificationEmail(ctx, user)

	access, err := s.tokens.IssueAccessToken(user.ID, user.Role)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("signup issue access token: %w", err)
	}

	s.audit("signup.success", "user_id", user.ID, "email", user.Email)
	return &TokenResponse{
		AccessToken: access,
		TokenType:   "bearer",
		Message:     "Signup successful, please verify your email",
	}, nil
}

// Login authenticates an email/password pair and opens a refresh session.
// Absent user and wrong password fail identically so the endpoint does not
// leak which addresses have accounts.
func (s *AuthService) Login(ctx context.Context, email, password, clientIP, userAgent string) (*TokenResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			span.RecordError(err)
			return nil, fmt.Errorf("login load user: %w", err)
		}
		return nil, newAuthError("invalid_credentials", "Invalid credentials", 401)
	}

	valid, err := pw.Verify(password, user.PasswordHash)
	if err != nil || !valid {
		return nil, newAuthError("invalid_credentials", "Invalid credentials", 401)
	}

	if !user.IsVerified {
		return nil, newAuthError("email_not_verified", "Please verify your email before logging in.", 403)
	}

	resp, err := s.openSession(ctx, user)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.sendLoginAlert(ctx, user, clientIP, userAgent)
	s.audit("login.success", "user_id", user.ID)
	return resp, nil
}

// Refresh rotates a refresh token: the presented token must carry a valid
// signature AND have a live ledger row. Rotation is one-shot, so replaying a
// rotated-out token fails even though its signature still verifies.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Refresh")
	defer span.End()

	userID, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, newAuthError("invalid_refresh_token", "Invalid or expired refresh token", 401)
	}

	if _, err := s.ledger.GetActive(ctx, refreshToken, time.Now()); err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return nil, newAuthError("session_not_active", "Session is not active", 401)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("refresh check ledger: %w", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, newAuthError("user_not_found", "User not found", 404)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("refresh load user: %w", err)
	}

	next, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("refresh issue token: %w", err)
	}

	if _, err := s.ledger.RevokeAndReplace(ctx, refreshToken, domain.RefreshToken{
		ID:        s.node.Generate().Int64(),
		UserID:    user.ID,
		Token:     next,
		ExpiresAt: time.Now().Add(s.tokens.RefreshTTL()),
	}); err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			// Lost a race with a concurrent rotation of the same token.
			return nil, newAuthError("session_not_active", "Session is not active", 401)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("refresh rotate: %w", err)
	}

	access, err := s.tokens.IssueAccessToken(user.ID, user.Role)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("refresh issue access token: %w", err)
	}

	s.audit("refresh.success", "user_id", user.ID)
	return &TokenResponse{AccessToken: access, RefreshToken: next, TokenType: "bearer"}, nil
}

// Logout revokes the refresh session in the ledger.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) (*MessageResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Logout")
	defer span.End()

	if err := s.ledger.Revoke(ctx, refreshToken); err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return nil, newAuthError("token_not_found", "Refresh token not found or already revoked", 400)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("logout revoke: %w", err)
	}

	s.audit("logout.success")
	return &MessageResponse{Message: "Logged out successfully"}, nil
}

// CurrentUser resolves a bearer access token to the user row it names.
func (s *AuthService) CurrentUser(ctx context.Context, accessToken string) (domain.User, error) {
	ctx, span := s.startSpan(ctx, "AuthService.CurrentUser")
	defer span.End()

	userID, _, err := s.tokens.DecodeAccessToken(accessToken)
	if err != nil {
		return domain.User{}, newAuthError("invalid_token", "Token verification failed", 401)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.User{}, newAuthError("user_not_found", "User not found", 404)
		}
		span.RecordError(err)
		return domain.User{}, fmt.Errorf("current user load: %w", err)
	}
	return user, nil
}

// openSession issues the access/refresh pair and records the refresh grant.
func (s *AuthService) openSession(ctx context.Context, user domain.User) (*TokenResponse, error) {
	access, err := s.tokens.IssueAccessToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	if _, err := s.ledger.Create(ctx, domain.RefreshToken{
		ID:        s.node.Generate().Int64(),
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: time.Now().Add(s.tokens.RefreshTTL()),
	}); err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}

	return &TokenResponse{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

func (s *AuthService) sendVerificationEmail(ctx context.Context, user domain.User) {
	verifyToken, err := s.tokens.IssueEmailToken(user.ID, token.KindEmailVerify)
	if err != nil {
		s.log().Error("issue verification token failed", zap.Error(err))
		return
	}
	link := s.cfg.BackendURL + "/auth/verify-email?token=" + verifyToken
	s.sendMail(ctx, notify.Email{
		To:      user.Email,
		Subject: "Verify your email",
		Plain:   "Please verify your email by clicking this link: " + link,
	})
}

func (s *AuthService) sendLoginAlert(ctx context.Context, user domain.User, clientIP, userAgent string) {
	body := fmt.Sprintf(`Hi,

A new login was detected on your account.

Time: %s UTC
IP: %s
Device: %s

If this wasn't you, please reset your password immediately.

Stay safe,
Your Health Assistant Team`, time.Now().UTC().Format("2006-01-02 15:04:05"), clientIP, userAgent)

	if user.PreferredNotification == "" || user.PreferredNotification == domain.NotifyEmail || user.PreferredNotification == domain.NotifyBoth {
		s.sendMail(ctx, notify.Email{
			To:      user.Email,
			Subject: "New Login Alert - Health Assistant",
			Plain:   body,
		})
	}
	if user.Phone != "" && (user.PreferredNotification == domain.NotifySMS || user.PreferredNotification == domain.NotifyBoth) {
		if err := s.sms.Send(ctx, user.Phone, "New login detected on your Health Assistant account. Reset your password if this wasn't you."); err != nil {
			s.log().Warn("login alert sms failed", zap.Error(err))
		}
	}
}

// sendMail delivers best-effort: failures are logged, never surfaced.
func (s *AuthService) sendMail(ctx context.Context, msg notify.Email) {
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log().Warn("send email failed", zap.String("subject", msg.Subject), zap.Error(err))
	}
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) audit(event string, attrs ...any) {
	logger := s.log()
	if logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomState() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
