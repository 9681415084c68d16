package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Bharath2805/healthassistant/internal/config"
	"github.com/Bharath2805/healthassistant/internal/http/handler"
	httpmiddleware "github.com/Bharath2805/healthassistant/internal/http/middleware"
	"github.com/Bharath2805/healthassistant/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, authMiddleware *httpmiddleware.Auth, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	auth := r.Group("/auth")
	{
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/login", authHandler.Login)

		auth.GET("/google-login", authHandler.GoogleLogin)
		auth.GET("/google-callback", authHandler.GoogleCallback)
		auth.POST("/google-login-token", authHandler.GoogleLoginToken)

		auth.GET("/verify-email", authHandler.VerifyEmail)
		auth.POST("/resend-verification", authHandler.ResendVerification)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)

		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/refresh-token", authHandler.Refresh)
		auth.POST("/logout", authHandler.Logout)

		auth.POST("/set-password", authMiddleware.RequireUser, authHandler.SetPassword)
		auth.PUT("/update-password", authMiddleware.RequireUser, authHandler.UpdatePassword)
		auth.PUT("/update-phone", authMiddleware.RequireUser, authHandler.UpdatePhone)
		auth.PUT("/set-notification-method", authMiddleware.RequireUser, authHandler.SetNotificationMethod)
	}

	r.GET("/healthz", authHandler.Healthz)

	return r
}
