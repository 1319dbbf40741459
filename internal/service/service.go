package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	ecomodel "github.com/cloudwego/eino/components/model"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"

	"github.com/ashwinyue/next-support/internal/config"
	"github.com/ashwinyue/next-support/internal/repository"
	"github.com/ashwinyue/next-support/internal/service/agent"
	"github.com/ashwinyue/next-support/internal/service/callback"
	"github.com/ashwinyue/next-support/internal/service/chat"
	"github.com/ashwinyue/next-support/internal/service/history"
	"github.com/ashwinyue/next-support/internal/service/knowledge"
	"github.com/ashwinyue/next-support/internal/service/routing"
	"github.com/ashwinyue/next-support/internal/service/session"
	"github.com/ashwinyue/next-support/internal/service/stream"
)

// Services 服务集合
type Services struct {
	Chat      *chat.Service
	Agents    *agent.Registry
	Knowledge *knowledge.Service

	Config    *config.Config
	Repos     *repository.Repositories
	Redis     *redis.Client // 未启用时为 nil
	ChatModel ecomodel.ToolCallingChatModel
}

// NewServices 创建所有服务
// chatModel 为 nil 时按配置创建；redisClient、esClient 可以为 nil
func NewServices(repos *repository.Repositories, cfg *config.Config, chatModel ecomodel.ToolCallingChatModel,
	redisClient *redis.Client, esClient *elasticsearch.Client, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx := context.Background()

	callback.Setup(logger, cfg.App.Debug)

	if chatModel == nil {
		m, err := newChatModel(ctx, cfg)
		if err != nil {
			// 没有模型时路由降级到通用客服，生成返回 error 事件
			logger.Warn("failed to create chat model", "provider", cfg.AI.Provider, "error", err)
		} else {
			chatModel = m
		}
	}

	var searcher knowledge.ESSearcher
	if esClient != nil {
		searcher = knowledge.NewESSearcher(esClient)
	}
	knowledgeSvc := knowledge.NewService(repos.Knowledge, searcher, knowledge.IndexName(cfg.Elastic.IndexPrefix), logger)

	registry := agent.NewRegistry(agent.Dependencies{
		Users:         repos.Users,
		Orders:        repos.Orders,
		Payments:      repos.Payments,
		Conversations: repos.Conversations,
		Knowledge:     knowledgeSvc,
		Logger:        logger,
	})

	var summarizer ecomodel.BaseChatModel
	var router ecomodel.BaseChatModel
	if chatModel != nil {
		summarizer, router = chatModel, chatModel
	}
	contexts := history.NewManager(repos.Messages, summarizer,
		history.WithSummaryTimeout(cfg.Context.SummaryTimeoutDuration()),
		history.WithLogger(logger))

	orchestrator := stream.NewOrchestrator(chatModel, repos.Messages, logger)
	executor := stream.NewExecutor(registry, orchestrator, logger)
	guard := session.NewTurnGuard(redisClient, logger)

	return &Services{
		Chat:      chat.NewService(repos, contexts, routing.NewEngine(router, logger), executor, guard, logger),
		Agents:    registry,
		Knowledge: knowledgeSvc,

		Config:    cfg,
		Repos:     repos,
		Redis:     redisClient,
		ChatModel: chatModel,
	}, nil
}

// newChatModel 按 provider 创建 OpenAI 兼容的 ChatModel
func newChatModel(ctx context.Context, cfg *config.Config) (ecomodel.ToolCallingChatModel, error) {
	aiCfg := cfg.AI

	var p config.ProviderConfig
	switch aiCfg.Provider {
	case "openai":
		p = aiCfg.OpenAI
	case "alibaba", "qwen", "dashscope":
		p = aiCfg.Alibaba
	case "deepseek":
		p = aiCfg.DeepSeek
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", aiCfg.Provider)
	}

	if p.APIKey == "" {
		return nil, fmt.Errorf("api_key is required for provider: %s", aiCfg.Provider)
	}

	modelName := p.Model
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}

	modelCfg := &openai.ChatModelConfig{
		APIKey:  p.APIKey,
		BaseURL: p.BaseURL,
		Model:   modelName,
	}
	if p.Timeout > 0 {
		modelCfg.Timeout = time.Duration(p.Timeout) * time.Second
	}

	m, err := openai.NewChatModel(ctx, modelCfg)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return m, nil
}
