package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/driftline/driftline/utils"
)

const (
	// ContextUserIDKey stores the caller's user document id in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the caller's username.
	ContextUsernameKey = "username"
)

// AuthRequired resolves the caller's identity from a JWT bearer token. This
// is the only identity resolution the service does; issuing tokens belongs
// to the identity provider.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
			ctx.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.Error(ctx, http.StatusUnauthorized, 40102, "invalid authorization header format")
			ctx.Abort()
			return
		}

		claims, err := utils.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40103, "invalid token")
			ctx.Abort()
			return
		}

		ctx.Set(ContextUserIDKey, claims.UserID)
		ctx.Set(ContextUsernameKey, claims.Username)
		ctx.Next()
	}
}

// OptionalAuth resolves identity when a valid token is present but lets the
// request through either way. Handlers treat the missing id as anonymous,
// which is what the fail-closed membership check wants.
func OptionalAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if claims, err := utils.ParseToken(strings.TrimSpace(parts[1])); err == nil {
				ctx.Set(ContextUserIDKey, claims.UserID)
				ctx.Set(ContextUsernameKey, claims.Username)
			}
		}
		ctx.Next()
	}
}

// UserID returns the authenticated user's document id, empty for anonymous.
func UserID(ctx *gin.Context) string {
	id, _ := ctx.Get(ContextUserIDKey)
	s, _ := id.(string)
	return s
}

// Username returns the authenticated username, empty for anonymous.
func Username(ctx *gin.Context) string {
	name, _ := ctx.Get(ContextUsernameKey)
	s, _ := name.(string)
	return s
}
