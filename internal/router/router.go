package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-support/internal/handler"
	"github.com/ashwinyue/next-support/internal/middleware"
	"github.com/ashwinyue/next-support/internal/service"
)

// SetupRouter 设置路由
func SetupRouter(h *handler.Handlers, svc *service.Services) *gin.Engine {
	cfg := svc.Config
	r := gin.New()

	// 中间件
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery())
	r.Use(middleware.Logging())
	r.Use(middleware.CORS([]string{cfg.Server.FrontendURL}, cfg.App.Environment == "production"))

	// 健康检查
	health := r.Group("/health")
	{
		health.GET("", h.Health.Health)
		health.GET("/live", h.Health.Live)
		health.GET("/ready", h.Health.Ready)
	}

	limiter := middleware.NewRateLimiter(svc.Redis, cfg.RateLimit.Requests, cfg.RateLimit.WindowDuration())

	// API v1
	v1 := r.Group("/api/v1")
	v1.Use(middleware.Auth(svc.Repos.Users, cfg.Auth.JWTSecret))
	{
		// Agent
		agents := v1.Group("/agents")
		{
			agents.GET("", h.Agent.ListAgents)
			agents.GET("/:type", h.Agent.GetCapabilities)
			agents.GET("/:type/capabilities", h.Agent.GetCapabilities)
			agents.GET("/:type/tools", h.Agent.GetTools)
		}

		// 会话
		convs := v1.Group("/conversations")
		{
			convs.POST("", h.Chat.CreateConversation)
			convs.GET("", h.Chat.ListConversations)
			convs.GET("/:id", h.Chat.GetConversation)
			convs.PATCH("/:id", h.Chat.UpdateConversation)
			convs.DELETE("/:id", h.Chat.DeleteConversation)
			convs.GET("/:id/messages", h.Chat.ListMessages)
			convs.POST("/:id/messages", limiter.Middleware(), h.Chat.SendMessage)
			convs.POST("/:id/stop", h.Chat.StopGeneration)
		}
	}

	return r
}
