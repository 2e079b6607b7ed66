// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studymind-go/pkg/log"
	"studymind-go/pkg/token"
)

// UserIDKey 是 gin 上下文中保存当前用户 ID 的键，匿名请求没有这个键。
const UserIDKey = "userID"

const bearerPrefix = "Bearer "

// bearerToken 从 Authorization 请求头中提取 token。
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", false
	}
	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
	return tokenString, tokenString != ""
}

// OptionalAuth 在 token 有效时把用户 ID 写入上下文，否则按匿名请求继续处理。
// AI 接口对匿名用户照常返回结果，只是跳过持久化。
func OptionalAuth(jwtManager *token.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString, ok := bearerToken(c); ok {
			claims, err := jwtManager.VerifyToken(tokenString)
			if err != nil {
				log.Debugf("[Auth] token 无效，按匿名请求处理: %v", err)
			} else {
				c.Set(UserIDKey, claims.UserID())
				c.Set("claims", claims)
			}
		}
		c.Next()
	}
}

// RequireAuth 创建一个 Gin 中间件，用于 JWT 认证。缺少或无效的 token 返回 401。
func RequireAuth(jwtManager *token.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or malformed Authorization header"})
			return
		}

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(UserIDKey, claims.UserID())
		c.Set("claims", claims)
		c.Next()
	}
}
