package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Mahender-77/KTLServer/services/common/auth"
	apperrors "github.com/Mahender-77/KTLServer/services/common/errors"
)

const (
	UserContextKey = "userID"
	RoleContextKey = "role"
)

// AuthMiddleware resolves the caller from a Bearer token. When trustGatewayHeaders is set and no
// token is sent, the X-User-ID and X-User-Role headers injected by the API gateway are accepted.
func AuthMiddleware(secret []byte, trustGatewayHeaders bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			claims, err := auth.ParseToken(token, secret)
			if err != nil {
				apperrors.Respond(c, apperrors.ErrUnauthorized.WithMessage("Invalid or expired token"))
				return
			}
			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				apperrors.Respond(c, apperrors.ErrUnauthorized.WithMessage("Invalid token subject"))
				return
			}
			c.Set(UserContextKey, userID)
			c.Set(RoleContextKey, claims.Role)
			c.Next()
			return
		}

		if trustGatewayHeaders {
			if userID, err := uuid.Parse(c.GetHeader("X-User-ID")); err == nil {
				role := c.GetHeader("X-User-Role")
				if role == "" {
					role = auth.RoleUser
				}
				c.Set(UserContextKey, userID)
				c.Set(RoleContextKey, role)
				c.Next()
				return
			}
		}

		apperrors.Respond(c, apperrors.ErrUnauthorized)
	}
}

// RequireRole rejects callers whose role is not one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(RoleContextKey)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		apperrors.Respond(c, apperrors.ErrForbidden)
	}
}

func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	if val, ok := c.Get(UserContextKey); ok {
		if id, ok := val.(uuid.UUID); ok && id != uuid.Nil {
			return id, true
		}
	}
	return uuid.Nil, false
}
