package stream

import (
	"context"
	"log/slog"

	"github.com/ashwinyue/next-support/internal/service/agent"
	"github.com/ashwinyue/next-support/internal/service/history"
)

// Executor 按 Agent 类型组装请求并启动编排器
type Executor struct {
	registry     *agent.Registry
	orchestrator *Orchestrator
	logger       *slog.Logger
}

// NewExecutor 创建执行器
func NewExecutor(registry *agent.Registry, orchestrator *Orchestrator, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		registry:     registry,
		orchestrator: orchestrator,
		logger:       logger.With("component", "executor"),
	}
}

// ExecuteAgent 执行指定 Agent，未知类型返回单个 error 事件
func (e *Executor) ExecuteAgent(ctx context.Context, agentType agent.Type, conversationID, userID string,
	messages []history.Message, reasoning string) <-chan Event {
	a, ok := e.registry.Get(agentType)
	if !ok {
		e.logger.ErrorContext(ctx, "unknown agent type", "agent_type", agentType)
		ch := make(chan Event, 1)
		ch <- ErrorEvent()
		close(ch)
		return ch
	}

	e.logger.InfoContext(ctx, "executing agent",
		"agent_type", agentType, "conversation_id", conversationID, "message_count", len(messages))

	return e.orchestrator.Stream(agent.WithConversationID(ctx, conversationID), Request{
		ConversationID: conversationID,
		UserID:         userID,
		SystemPrompt:   a.SystemPrompt,
		AgentType:      string(a.Type),
		Tools:          a,
		History:        messages,
		Reasoning:      reasoning,
	})
}
