package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/phillip/isaithondar-go/auth"
	models "github.com/phillip/isaithondar-go/models"
	"github.com/phillip/isaithondar-go/policy"
	"github.com/phillip/isaithondar-go/response"
)

const actorKey = "actor"

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// AuthMiddleware requires a valid access token and stores the caller under
// "user_id", "role" and the actor key.
func AuthMiddleware(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := tokens.Validate(bearerToken(c), auth.AccessToken)
		if err != nil {
			msg := "Invalid or expired token"
			if errors.Is(err, auth.ErrMissingToken) {
				msg = "Authorization token required"
			}
			response.Unauthorized(c, msg)
			return
		}
		actor, err := claims.Actor()
		if err != nil {
			response.Unauthorized(c, "Invalid or expired token")
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", string(claims.Role))
		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireRoles must run after AuthMiddleware.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := Actor(c)
		if !ok {
			response.Unauthorized(c, "Authorization token required")
			return
		}
		if !policy.HasRole(actor, roles...) {
			response.Forbidden(c)
			return
		}
		c.Next()
	}
}

// Actor returns the caller set by AuthMiddleware.
func Actor(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return models.Actor{}, false
	}
	a, ok := v.(models.Actor)
	return a, ok
}
