package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-feedback/internal/shared/auth"
	"resume-feedback/internal/shared/server/respond"
)

const (
	userIDKey  = "userId"
	isGuestKey = "isGuest"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// AuthOptions configures the Auth middleware.
type AuthOptions struct {
	Verifier   TokenVerifier
	AllowGuest bool
	// Public lists exact paths that skip authentication.
	Public []string
}

// Auth validates bearer tokens (or dev guest headers) and stores the owner id in context.
func Auth(opts AuthOptions) gin.HandlerFunc {
	public := make(map[string]struct{}, len(opts.Public))
	for _, p := range opts.Public {
		public[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}
		if _, ok := public[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader != "" {
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			token = strings.TrimSpace(token)
			if !ok || token == "" || opts.Verifier == nil {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}
			claims, err := opts.Verifier.Verify(token)
			if err != nil {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}
			c.Set(userIDKey, claims.Sub)
			c.Set(isGuestKey, false)
			c.Next()
			return
		}

		if opts.AllowGuest {
			if guestID := strings.TrimSpace(c.GetHeader("X-Guest-Id")); guestID != "" {
				c.Set(userIDKey, "guest:"+guestID)
				c.Set(isGuestKey, true)
				c.Next()
				return
			}
		}

		respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
	}
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(userIDKey)
}

// IsGuest reports whether the caller authenticated with a guest header.
func IsGuest(c *gin.Context) bool {
	if c == nil {
		return false
	}
	return c.GetBool(isGuestKey)
}
