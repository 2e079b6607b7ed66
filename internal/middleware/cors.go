package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// corsAllowedHeaders 是浏览器端 SDK 会附带的请求头。
var corsAllowedHeaders = []string{
	"authorization",
	"x-client-info",
	"apikey",
	"content-type",
	"x-supabase-client-platform",
	"x-supabase-client-platform-version",
	"x-supabase-client-runtime",
	"x-supabase-client-runtime-version",
}

// CORS 允许任意来源访问，并暴露答疑会话 ID 响应头。OPTIONS 预检直接返回 204。
func CORS(exposeHeaders ...string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    corsAllowedHeaders,
		ExposeHeaders:   exposeHeaders,
		MaxAge:          12 * time.Hour,
	})
}
