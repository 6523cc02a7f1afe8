package middleware

import (
	"net/http"
	"strings"

	"farm-market/pkg"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

// Keys under which JWTAuth stores the caller in gin.Context.
const (
	UserIDKey = "user_id"
	RoleKey   = "role"
)

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"errors": msg})
}

// JWTAuth validates the Bearer token and puts user_id and role into the context.
func JWTAuth(secret string, log pkg.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "Authorization header missing")
			return
		}
		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			abort(c, http.StatusUnauthorized, "Authorization header must use the Bearer scheme")
			return
		}

		// reject tokens signed with anything but HMAC
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			log.Warn("Invalid JWT token", zap.String("path", c.Request.URL.Path), zap.Error(err))
			abort(c, http.StatusUnauthorized, "Invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abort(c, http.StatusUnauthorized, "Invalid token claims")
			return
		}
		// numbers in MapClaims decode as float64
		rawID, ok := claims["user_id"].(float64)
		if !ok || rawID <= 0 {
			abort(c, http.StatusUnauthorized, "Invalid token claims")
			return
		}
		role, _ := claims["role"].(string)

		c.Set(UserIDKey, int64(rawID))
		c.Set(RoleKey, role)
		c.Next()
	}
}

// RequireRole lets through only callers holding one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(RoleKey)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "Forbidden")
	}
}

// UserID returns the authenticated user id, or 0 outside JWTAuth.
func UserID(c *gin.Context) int64 {
	return c.GetInt64(UserIDKey)
}

func Role(c *gin.Context) string {
	return c.GetString(RoleKey)
}
