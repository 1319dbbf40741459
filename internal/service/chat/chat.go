// Package chat 会话服务，串起 历史 -> 路由 -> Agent 流式执行
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ashwinyue/next-support/internal/errs"
	"github.com/ashwinyue/next-support/internal/model"
	"github.com/ashwinyue/next-support/internal/repository"
	"github.com/ashwinyue/next-support/internal/service/history"
	"github.com/ashwinyue/next-support/internal/service/routing"
	"github.com/ashwinyue/next-support/internal/service/session"
	"github.com/ashwinyue/next-support/internal/service/stream"
)

const (
	// DefaultTitle 未提供标题时使用
	DefaultTitle = "New Conversation"
	// MaxContentLength 单条消息最大字符数
	MaxContentLength = 10000
	// MaxTitleLength 标题最大字符数
	MaxTitleLength = 255
	// PreviewMessages 会话详情附带的消息数
	PreviewMessages = 50

	defaultLimit = 20
	maxLimit     = 100
)

// Router 路由接口
type Router interface {
	Route(ctx context.Context, text string, recent []history.Message) routing.Decision
}

// ContextBuilder 上下文构建接口
type ContextBuilder interface {
	Build(ctx context.Context, conversationID string) (*history.Context, error)
}

// Service 会话服务
type Service struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	contexts      ContextBuilder
	router        Router
	executor      *stream.Executor
	guard         *session.TurnGuard
	logger        *slog.Logger
}

// NewService 创建会话服务
func NewService(repos *repository.Repositories, contexts ContextBuilder, router Router,
	executor *stream.Executor, guard *session.TurnGuard, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if guard == nil {
		guard = session.NewTurnGuard(nil, logger)
	}
	return &Service{
		conversations: repos.Conversations,
		messages:      repos.Messages,
		contexts:      contexts,
		router:        router,
		executor:      executor,
		guard:         guard,
		logger:        logger.With("component", "chat"),
	}
}

// Page 分页结果
type Page[T any] struct {
	Items      []T   `json:"data"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func newPage[T any](items []T, page, limit int, total int64) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{
		Items:      items,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: int((total + int64(limit) - 1) / int64(limit)),
	}
}

// normalizePage 0 表示使用默认值
func normalizePage(page, limit int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = defaultLimit
	}
	if page < 1 {
		return 0, 0, errs.Validation("page must be at least 1")
	}
	if limit < 1 || limit > maxLimit {
		return 0, 0, errs.Validation(fmt.Sprintf("limit must be between 1 and %d", maxLimit))
	}
	return page, limit, nil
}

// CreateConversation 创建会话
func (s *Service) CreateConversation(ctx context.Context, userID, title string) (*model.Conversation, error) {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, errs.Validation(fmt.Sprintf("Title too long (max %d characters)", MaxTitleLength))
	}
	if title == "" {
		title = DefaultTitle
	}

	conv := &model.Conversation{
		ID:     uuid.New().String(),
		UserID: userID,
		Title:  title,
		Status: model.ConversationActive,
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	s.logger.InfoContext(ctx, "conversation created", "conversation_id", conv.ID, "user_id", userID)
	return conv, nil
}

// GetConversation 会话详情，附带最早的若干条消息
func (s *Service) GetConversation(ctx context.Context, id, userID string) (*model.Conversation, error) {
	conv, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	msgs, _, err := s.messages.ListPage(ctx, id, 0, PreviewMessages)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	conv.Messages = make([]model.Message, len(msgs))
	for i, m := range msgs {
		conv.Messages[i] = *m
	}
	return conv, nil
}

// ListConversations 用户会话列表，最近更新的在前
func (s *Service) ListConversations(ctx context.Context, userID string, page, limit int) (*Page[*model.Conversation], error) {
	page, limit, err := normalizePage(page, limit)
	if err != nil {
		return nil, err
	}
	convs, total, err := s.conversations.ListByUser(ctx, userID, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return newPage(convs, page, limit, total), nil
}

// ListMessages 会话消息，按时间升序
func (s *Service) ListMessages(ctx context.Context, id, userID string, page, limit int) (*Page[*model.Message], error) {
	page, limit, err := normalizePage(page, limit)
	if err != nil {
		return nil, err
	}
	if _, err := s.owned(ctx, id, userID); err != nil {
		return nil, err
	}
	msgs, total, err := s.messages.ListPage(ctx, id, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return newPage(msgs, page, limit, total), nil
}

// UpdateConversationRequest 更新请求，空字段不修改
type UpdateConversationRequest struct {
	Title  string `json:"title"`
	Status string `json:"status"`
}

// UpdateConversation 更新标题或状态
func (s *Service) UpdateConversation(ctx context.Context, id, userID string, req UpdateConversationRequest) (*model.Conversation, error) {
	title := strings.TrimSpace(req.Title)
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, errs.Validation(fmt.Sprintf("Title too long (max %d characters)", MaxTitleLength))
	}
	if req.Status != "" && !model.IsValidConversationStatus(req.Status) {
		return nil, errs.Validation("Invalid status. Must be: active, resolved, or archived")
	}

	conv, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if title != "" {
		conv.Title = title
	}
	if req.Status != "" {
		conv.Status = req.Status
	}
	if err := s.conversations.Update(ctx, conv); err != nil {
		return nil, fmt.Errorf("update conversation: %w", err)
	}

	s.logger.InfoContext(ctx, "conversation updated", "conversation_id", id, "title", conv.Title, "status", conv.Status)
	return conv, nil
}

// DeleteConversation 删除会话及其消息，进行中的生成会被取消
func (s *Service) DeleteConversation(ctx context.Context, id, userID string) error {
	if _, err := s.owned(ctx, id, userID); err != nil {
		return err
	}
	s.guard.Stop(id)
	if err := s.conversations.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errs.NotFound("Conversation", id)
		}
		return fmt.Errorf("delete conversation: %w", err)
	}

	s.logger.InfoContext(ctx, "conversation deleted", "conversation_id", id, "user_id", userID)
	return nil
}

// StopGeneration 取消会话进行中的生成，没有时返回 false
func (s *Service) StopGeneration(ctx context.Context, id, userID string) (bool, error) {
	if _, err := s.owned(ctx, id, userID); err != nil {
		return false, err
	}
	stopped := s.guard.Stop(id)
	s.logger.InfoContext(ctx, "stop generation requested", "conversation_id", id, "stopped", stopped)
	return stopped, nil
}

// ValidateContent 校验消息内容
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errs.Validation("Message cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return errs.Validation(fmt.Sprintf("Message too long (max %d characters)", MaxContentLength))
	}
	return nil
}

// SendMessage 保存用户消息并启动一轮 Agent 生成
// 返回的通道在生成结束后关闭，同一会话同时只允许一轮
func (s *Service) SendMessage(ctx context.Context, id, userID, content string) (<-chan stream.Event, error) {
	conv, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if err := ValidateContent(content); err != nil {
		return nil, err
	}

	turnCtx, turn, err := s.guard.Acquire(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrBusy) {
			return nil, errs.Conflict("A response is already being generated for this conversation")
		}
		return nil, err
	}

	events, err := s.startTurn(turnCtx, conv, userID, content)
	if err != nil {
		s.guard.Release(turn)
		return nil, err
	}
	return s.relay(ctx, turn, events), nil
}

func (s *Service) startTurn(ctx context.Context, conv *model.Conversation, userID, content string) (<-chan stream.Event, error) {
	userMsg := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        content,
	}
	if err := s.messages.Create(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}
	s.logger.InfoContext(ctx, "user message saved", "conversation_id", conv.ID, "message_id", userMsg.ID)

	hctx, err := s.contexts.Build(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("build context: %w", err)
	}

	decision := s.router.Route(ctx, content, hctx.Messages)

	// 升级工单状态由工具写入，这里只覆盖路由字段；每轮只写一次
	meta := conv.Metadata
	meta.LastAgent = string(decision.Agent)
	meta.Entities = mergeEntities(decision.Entities, hctx.Entities.Identifiers())
	if err := s.conversations.UpdateMetadata(ctx, conv.ID, meta); err != nil {
		s.logger.WarnContext(ctx, "failed to save routing metadata", "conversation_id", conv.ID, "error", err)
	}

	return s.executor.ExecuteAgent(ctx, decision.Agent, conv.ID, userID, hctx.Messages, decision.Reasoning), nil
}

// relay 转发事件，上游结束后释放会话
// 被 Stop 取消且调用方仍在时补发一个 error 事件作为结束
func (s *Service) relay(ctx context.Context, turn *session.Turn, events <-chan stream.Event) <-chan stream.Event {
	out := make(chan stream.Event)
	go func() {
		defer close(out)
		defer s.guard.Release(turn)
		terminated := false
		for e := range events {
			if ctx.Err() != nil {
				// 下游已离开，继续排空直到上游退出
				continue
			}
			select {
			case out <- e:
				terminated = terminated || e.IsTerminal()
			case <-ctx.Done():
			}
		}
		if terminated || !turn.Stopped() || ctx.Err() != nil {
			return
		}
		s.logger.InfoContext(ctx, "generation stopped", "conversation_id", turn.ConversationID)
		select {
		case out <- stream.StoppedEvent():
		case <-ctx.Done():
		}
	}()
	return out
}

// mergeEntities 路由结果在前，追加历史中抽取到的标识，去重
func mergeEntities(routed, extracted []string) []string {
	out := make([]string, 0, len(routed)+len(extracted))
	seen := make(map[string]struct{}, cap(out))
	for _, list := range [][]string{routed, extracted} {
		for _, e := range list {
			if _, ok := seen[e]; ok || e == "" {
				continue
			}
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

// owned 读取会话并校验归属
func (s *Service) owned(ctx context.Context, id, userID string) (*model.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errs.NotFound("Conversation", id)
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv.UserID != userID {
		return nil, errs.Forbidden("You do not have access to this conversation")
	}
	return conv, nil
}
