package handler

import (
	"context"

	"github.com/ashwinyue/next-support/internal/service"
)

// Handlers 处理器集合
type Handlers struct {
	Chat   *ChatHandler
	Agent  *AgentHandler
	Health *HealthHandler
}

// NewHandlers 创建所有处理器，db 为数据库探活
func NewHandlers(svc *service.Services, db PingFunc) *Handlers {
	var redisPing PingFunc
	if svc.Redis != nil {
		client := svc.Redis
		redisPing = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	return &Handlers{
		Chat:   NewChatHandler(svc.Chat),
		Agent:  NewAgentHandler(svc.Agents),
		Health: NewHealthHandler(svc.Config.App.Environment, db, redisPing),
	}
}
