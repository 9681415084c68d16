package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Bharath2805/healthassistant/internal/http/middleware"
	"github.com/Bharath2805/healthassistant/internal/service"
)

// AuthHandler exposes the auth flows over HTTP.
type AuthHandler struct {
	Auth   *service.AuthService
	Logger *zap.Logger
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, Logger: logger}
}

type signupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// Signup registers an email/password account.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Email and a password of at least 6 characters are required.")
		return
	}
	resp, err := h.Auth.Signup(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates and opens a refresh session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Email and password are required.")
		return
	}
	resp, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GoogleLogin redirects the browser to the provider consent screen.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	authURL, err := h.Auth.GoogleLoginURL(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, authURL)
}

// GoogleCallback is the provider redirect target; on success the browser is
// sent to the frontend with both tokens in the query string.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" {
		respondBadRequest(c, "code query parameter is required.")
		return
	}
	redirect, err := h.Auth.GoogleCallback(c.Request.Context(), code, state)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, redirect)
}

type googleTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// GoogleLoginToken logs in with a provider-issued ID token directly.
func (h *AuthHandler) GoogleLoginToken(c *gin.Context) {
	var req googleTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "token is required.")
		return
	}
	resp, err := h.Auth.GoogleTokenLogin(c.Request.Context(), req.Token)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type setPasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

// SetPassword gives a Google-only account a local password.
func (h *AuthHandler) SetPassword(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		respondUnauthorized(c)
		return
	}
	var req setPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "new_password of at least 6 characters is required.")
		return
	}
	resp, err := h.Auth.SetPassword(c.Request.Context(), user, req.NewPassword)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// VerifyEmail redeems the token carried by the emailed verification link.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	rawToken := c.Query("token")
	if rawToken == "" {
		respondBadRequest(c, "token query parameter is required.")
		return
	}
	resp, err := h.Auth.VerifyEmail(c.Request.Context(), rawToken)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResendVerification reissues the verification link.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "A valid email is required.")
		return
	}
	resp, err := h.Auth.ResendVerification(c.Request.Context(), req.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ForgotPassword emails a password-reset link.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "A valid email is required.")
		return
	}
	resp, err := h.Auth.ForgotPassword(c.Request.Context(), req.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type resetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

// ResetPassword redeems a reset token and stores the new password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "token and a new_password of at least 6 characters are required.")
		return
	}
	resp, err := h.Auth.ResetPassword(c.Request.Context(), req.Token, req.NewPassword)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type updatePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

// UpdatePassword changes an authenticated user's password.
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		respondUnauthorized(c)
		return
	}
	var req updatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "old_password and a new_password of at least 6 characters are required.")
		return
	}
	resp, err := h.Auth.UpdatePassword(c.Request.Context(), user, req.OldPassword, req.NewPassword)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh rotates a refresh token and mints a new access token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "refresh_token is required.")
		return
	}
	resp, err := h.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Logout revokes a refresh session.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "refresh_token is required.")
		return
	}
	resp, err := h.Auth.Logout(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type phoneRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// UpdatePhone stores the authenticated user's phone number.
func (h *AuthHandler) UpdatePhone(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		respondUnauthorized(c)
		return
	}
	var req phoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "phone is required.")
		return
	}
	resp, err := h.Auth.UpdatePhone(c.Request.Context(), user, req.Phone)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type notificationMethodRequest struct {
	Method string `json:"method" binding:"required"`
}

// SetNotificationMethod stores the alert-channel preference.
func (h *AuthHandler) SetNotificationMethod(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		respondUnauthorized(c)
		return
	}
	var req notificationMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "method is required.")
		return
	}
	resp, err := h.Auth.SetNotificationMethod(c.Request.Context(), user, req.Method)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Healthz is the liveness probe.
func (h *AuthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AuthHandler) respondError(c *gin.Context, err error) {
	var authErr *service.AuthError
	if errors.As(err, &authErr) {
		c.JSON(authErr.Status, gin.H{"error": authErr.Code, "error_description": authErr.Message})
		return
	}
	h.log().Error("unhandled auth error", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal server error."})
}

func (h *AuthHandler) log() *zap.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return zap.L()
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": message})
}

func respondUnauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Unauthorized"})
}
