package handler

import (
	"github.com/gin-gonic/gin"

	"studymind-go/internal/middleware"
	"studymind-go/pkg/token"
)

// Handlers 汇总所有路由用到的处理器。Health 和 Metrics 可以为 nil。
type Handlers struct {
	Quiz     *QuizHandler
	Material *MaterialHandler
	Doubt    *DoubtHandler
	Progress *ProgressHandler
	Health   gin.HandlerFunc
	Metrics  gin.HandlerFunc
}

// NewRouter 创建路由引擎并注册所有路由。
func NewRouter(jwtManager *token.JWTManager, h Handlers) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery(), middleware.CORS(DoubtSessionHeader))

	// AI 接口：token 可选，匿名请求不做持久化
	ai := r.Group("/")
	ai.Use(middleware.OptionalAuth(jwtManager))
	{
		ai.POST("/generate-quiz", h.Quiz.Generate)
		ai.POST("/process-material", h.Material.Process)
		ai.POST("/query-material", h.Material.Query)
		ai.POST("/solve-doubt", h.Doubt.Solve)
	}

	apiV1 := r.Group("/api/v1")
	apiV1.Use(middleware.RequireAuth(jwtManager))
	{
		materials := apiV1.Group("/materials")
		{
			materials.POST("", h.Material.Upload)
			materials.GET("", h.Material.List)
		}

		doubts := apiV1.Group("/doubts")
		{
			doubts.GET("", h.Doubt.ListSessions)
			doubts.GET("/:id/messages", h.Doubt.ListMessages)
		}

		apiV1.POST("/quiz-attempts", h.Progress.SubmitQuizAttempt)
		apiV1.POST("/study-sessions", h.Progress.RecordStudySession)
		apiV1.GET("/me/stats", h.Progress.Stats)
		apiV1.GET("/leaderboard", h.Progress.Leaderboard)
	}

	if h.Health != nil {
		r.GET("/healthz", h.Health)
	}
	if h.Metrics != nil {
		r.GET("/metrics", h.Metrics)
	}
	return r
}
