package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"bladi-assistant/internal/pkg/jwtutil"
	"bladi-assistant/internal/transport/http/response"
)

const (
	ContextUserIDKey   = "user_id"
	ContextUsernameKey = "username"
	ContextIsStaffKey  = "is_staff"
)

func AuthJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			response.Error(c, 401, response.CodeUnauthorized, "missing authorization header")
			c.Abort()
			return
		}

		token, ok := bearerToken(authHeader)
		if !ok {
			response.Error(c, 401, response.CodeUnauthorized, "invalid authorization scheme")
			c.Abort()
			return
		}

		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil {
			response.Error(c, 401, response.CodeUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		setIdentity(c, claims.Identity)
		c.Next()
	}
}

// OptionalJWT attaches the caller's identity when a valid bearer token is
// present and otherwise lets the request through as anonymous.
func OptionalJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(strings.TrimSpace(c.GetHeader("Authorization"))); ok {
			if claims, err := jwtutil.ParseToken(secret, token); err == nil {
				setIdentity(c, claims.Identity)
			}
		}
		c.Next()
	}
}

// RequireStaff must run after AuthJWT.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(ContextIsStaffKey) {
			response.Error(c, 403, response.CodeForbidden, "staff access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated caller, if any.
func UserID(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get(ContextUserIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	return userID, ok && userID != 0
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}

func setIdentity(c *gin.Context, identity jwtutil.Identity) {
	c.Set(ContextUserIDKey, identity.UserID)
	c.Set(ContextUsernameKey, identity.Username)
	c.Set(ContextIsStaffKey, identity.IsStaff)
}
