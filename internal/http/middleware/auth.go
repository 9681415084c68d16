package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Bharath2805/healthassistant/internal/domain"
	"github.com/Bharath2805/healthassistant/internal/service"
)

const currentUserKey = "currentUser"

// Auth resolves the bearer access token of a request to its user row and
// attaches it to the gin context.
type Auth struct {
	AuthService *service.AuthService
}

// RequireUser aborts unauthenticated requests with 401.
func (m *Auth) RequireUser(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authorization header required."})
		return
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Bearer token required."})
		return
	}

	user, err := m.AuthService.CurrentUser(c.Request.Context(), parts[1])
	if err != nil {
		var authErr *service.AuthError
		if errors.As(err, &authErr) {
			c.AbortWithStatusJSON(authErr.Status, gin.H{"error": authErr.Code, "error_description": authErr.Message})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Could not resolve user."})
		return
	}

	c.Set(currentUserKey, user)
	c.Next()
}

// GetCurrentUser returns the user RequireUser stored on the context.
func GetCurrentUser(c *gin.Context) (domain.User, bool) {
	value, ok := c.Get(currentUserKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := value.(domain.User)
	return user, ok
}
