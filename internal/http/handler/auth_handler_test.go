package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Bharath2805/healthassistant/internal/adapter/oauth"
	"github.com/Bharath2805/healthassistant/internal/config"
	"github.com/Bharath2805/healthassistant/internal/domain"
	httptransport "github.com/Bharath2805/healthassistant/internal/http"
	"github.com/Bharath2805/healthassistant/internal/http/handler"
	httpmiddleware "github.com/Bharath2805/healthassistant/internal/http/middleware"
	"github.com/Bharath2805/healthassistant/internal/notify"
	"github.com/Bharath2805/healthassistant/internal/service"
	"github.com/Bharath2805/healthassistant/internal/token"
)

type env struct {
	router *gin.Engine
	svc    *service.AuthService
	mailer *capturingMailer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		FrontendURL:        "http://app.test",
		BackendURL:         "http://api.test",
		GoogleClientID:     "client-id",
		GoogleClientSecret: "client-secret",
		ServiceName:        "healthassistant-test",
	}
	tokens := token.NewService(
		[]byte("access-secret-for-tests-0123456789abcdef"),
		[]byte("refresh-secret-for-tests-0123456789abcdef"),
		30*time.Minute,
		7*24*time.Hour,
		time.Hour,
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	mailer := &capturingMailer{}
	svc := service.NewAuthService(
		newMemoryUserRepo(), newMemoryLedger(), newMemoryStateStore(),
		tokens, &fakeVerifier{}, &fakeExchanger{},
		mailer, notify.NopSMSSender{}, node, cfg, zap.NewNop(),
	)

	authHandler := handler.NewAuthHandler(svc, zap.NewNop())
	authMiddleware := &httpmiddleware.Auth{AuthService: svc}
	router := httptransport.NewRouter(cfg, authHandler, authMiddleware, nil)

	return &env{router: router, svc: svc, mailer: mailer}
}

func (e *env) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// signupVerified creates and verifies an account through the HTTP surface.
func (e *env) signupVerified(t *testing.T, email, password string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/auth/signup", gin.H{"email": email, "password": password}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := e.mailer.sent[len(e.mailer.sent)-1].Plain
	idx := strings.Index(body, "token=")
	require.GreaterOrEqual(t, idx, 0)
	verifyToken := body[idx+len("token="):]

	w = e.do(t, http.MethodGet, "/auth/verify-email?token="+verifyToken, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSignupValidation(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/auth/signup", gin.H{"email": "not-an-email", "password": "pw123456"}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_request", decode(t, w)["error"])

	w = e.do(t, http.MethodPost, "/auth/signup", gin.H{"email": "a@x.com", "password": "short"}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/auth/signup", gin.H{"email": "a@x.com", "password": "pw123456"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.NotEmpty(t, body["access_token"])
	require.Equal(t, "bearer", body["token_type"])

	w = e.do(t, http.MethodPost, "/auth/signup", gin.H{"email": "a@x.com", "password": "pw123456"}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "email_taken", decode(t, w)["error"])
}

func TestLoginStatusMapping(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/auth/signup", gin.H{"email": "a@x.com", "password": "pw123456"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, "/auth/login", gin.H{"email": "a@x.com", "password": "pw123456"}, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "email_not_verified", decode(t, w)["error"])

	w = e.do(t, http.MethodPost, "/auth/login", gin.H{"email": "a@x.com", "password": "wrong-pass"}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "invalid_credentials", decode(t, w)["error"])

	w = e.do(t, http.MethodPost, "/auth/login", gin.H{"email": "ghost@x.com", "password": "whatever"}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "invalid_credentials", decode(t, w)["error"])
}

func TestRefreshEndpointAndAlias(t *testing.T) {
	e := newEnv(t)
	e.signupVerified(t, "a@x.com", "pw123456")

	w := e.do(t, http.MethodPost, "/auth/login", gin.H{"email": "a@x.com", "password": "pw123456"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	refresh := decode(t, w)["refresh_token"].(string)

	w = e.do(t, http.MethodPost, "/auth/refresh", gin.H{"refresh_token": refresh}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rotated := decode(t, w)["refresh_token"].(string)
	require.NotEqual(t, refresh, rotated)

	// The legacy alias path hits the same handler.
	w = e.do(t, http.MethodPost, "/auth/refresh-token", gin.H{"refresh_token": rotated}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, "/auth/refresh", gin.H{"refresh_token": refresh}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "session_not_active", decode(t, w)["error"])
}

func TestLogoutEndpoint(t *testing.T) {
	e := newEnv(t)
	e.signupVerified(t, "a@x.com", "pw123456")

	w := e.do(t, http.MethodPost, "/auth/login", gin.H{"email": "a@x.com", "password": "pw123456"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	refresh := decode(t, w)["refresh_token"].(string)

	w = e.do(t, http.MethodPost, "/auth/logout", gin.H{"refresh_token": refresh}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, "/auth/logout", gin.H{"refresh_token": refresh}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "token_not_found", decode(t, w)["error"])
}

func TestProtectedEndpointsRequireBearer(t *testing.T) {
	e := newEnv(t)
	e.signupVerified(t, "a@x.com", "pw123456")

	w := e.do(t, http.MethodPut, "/auth/update-phone", gin.H{"phone": "+15550001111"}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodPut, "/auth/update-phone", gin.H{"phone": "+15550001111"},
		map[string]string{"Authorization": "Bearer garbage"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	login := e.do(t, http.MethodPost, "/auth/login", gin.H{"email": "a@x.com", "password": "pw123456"}, nil)
	require.Equal(t, http.StatusOK, login.Code)
	access := decode(t, login)["access_token"].(string)

	w = e.do(t, http.MethodPut, "/auth/update-phone", gin.H{"phone": "+15550001111"},
		map[string]string{"Authorization": "Bearer " + access})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Phone number updated successfully", decode(t, w)["message"])
}

func TestSetNotificationMethodEndpoint(t *testing.T) {
	e := newEnv(t)
	e.signupVerified(t, "a@x.com", "pw123456")

	login := e.do(t, http.MethodPost, "/auth/login", gin.H{"email": "a@x.com", "password": "pw123456"}, nil)
	access := decode(t, login)["access_token"].(string)
	auth := map[string]string{"Authorization": "Bearer " + access}

	w := e.do(t, http.MethodPut, "/auth/set-notification-method", gin.H{"method": "pigeon"}, auth)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_method", decode(t, w)["error"])

	w = e.do(t, http.MethodPut, "/auth/set-notification-method", gin.H{"method": "sms"}, auth)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestGoogleLoginRedirect(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/auth/google-login", nil, nil)
	require.Equal(t, http.StatusTemporaryRedirect, w.Code)
	location := w.Header().Get("Location")
	require.Contains(t, location, "state=")
}

func TestGoogleCallbackRequiresCode(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/auth/google-callback", nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", decode(t, w)["status"])
}

// ---- minimal in-memory fakes ----

type memoryUserRepo struct {
	byID map[uuid.UUID]domain.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{byID: make(map[uuid.UUID]domain.User)}
}

func (m *memoryUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (m *memoryUserRepo) GetByID(_ context.Context, id uuid.UUID) (domain.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (m *memoryUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	for _, u := range m.byID {
		if u.Email == user.Email {
			return domain.User{}, domain.ErrEmailTaken
		}
	}
	m.byID[user.ID] = user
	return user, nil
}

func (m *memoryUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	return m.mutate(id, func(u *domain.User) { u.PasswordHash = hash })
}

func (m *memoryUserRepo) MarkVerified(_ context.Context, id uuid.UUID) error {
	return m.mutate(id, func(u *domain.User) { u.IsVerified = true })
}

func (m *memoryUserRepo) UpdatePhone(_ context.Context, id uuid.UUID, phone string) error {
	return m.mutate(id, func(u *domain.User) { u.Phone = phone })
}

func (m *memoryUserRepo) UpdateNotificationMethod(_ context.Context, id uuid.UUID, method string) error {
	return m.mutate(id, func(u *domain.User) { u.PreferredNotification = method })
}

func (m *memoryUserRepo) mutate(id uuid.UUID, fn func(*domain.User)) error {
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	fn(&u)
	m.byID[id] = u
	return nil
}

type memoryLedger struct {
	byToken map[string]domain.RefreshToken
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{byToken: make(map[string]domain.RefreshToken)}
}

func (m *memoryLedger) Create(_ context.Context, token domain.RefreshToken) (domain.RefreshToken, error) {
	m.byToken[token.Token] = token
	return token, nil
}

func (m *memoryLedger) GetActive(_ context.Context, token string, now time.Time) (domain.RefreshToken, error) {
	row, ok := m.byToken[token]
	if !ok || !row.Usable(now) {
		return domain.RefreshToken{}, domain.ErrTokenNotFound
	}
	return row, nil
}

func (m *memoryLedger) Revoke(_ context.Context, token string) error {
	row, ok := m.byToken[token]
	if !ok || row.Revoked {
		return domain.ErrTokenNotFound
	}
	row.Revoked = true
	m.byToken[token] = row
	return nil
}

func (m *memoryLedger) RevokeAndReplace(_ context.Context, oldToken string, replacement domain.RefreshToken) (domain.RefreshToken, error) {
	if err := m.Revoke(context.Background(), oldToken); err != nil {
		return domain.RefreshToken{}, err
	}
	m.byToken[replacement.Token] = replacement
	return replacement, nil
}

type memoryStateStore struct {
	states map[string]struct{}
}

func newMemoryStateStore() *memoryStateStore {
	return &memoryStateStore{states: make(map[string]struct{})}
}

func (m *memoryStateStore) Save(_ context.Context, state string, _ time.Duration) error {
	m.states[state] = struct{}{}
	return nil
}

func (m *memoryStateStore) Consume(_ context.Context, state string) (bool, error) {
	_, ok := m.states[state]
	delete(m.states, state)
	return ok, nil
}

type fakeVerifier struct {
	identity token.Identity
	err      error
}

func (f *fakeVerifier) Verify(context.Context, string) (token.Identity, error) {
	if f.err != nil {
		return token.Identity{}, f.err
	}
	return f.identity, nil
}

type fakeExchanger struct {
	idToken string
	err     error
}

func (f *fakeExchanger) AuthCodeURL(state string) string {
	return "https://accounts.google.com/o/oauth2/v2/auth?state=" + state
}

func (f *fakeExchanger) ExchangeCode(context.Context, string) (oauth.TokenResponse, error) {
	if f.err != nil {
		return oauth.TokenResponse{}, f.err
	}
	return oauth.TokenResponse{IDToken: f.idToken, TokenType: "Bearer"}, nil
}

type capturingMailer struct {
	sent []notify.Email
}

func (m *capturingMailer) Send(_ context.Context, msg notify.Email) error {
	m.sent = append(m.sent, msg)
	return nil
}
