// Package history 组装送入模型的会话上下文，超出预算时压缩旧消息
package history

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	ecomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/ashwinyue/next-support/internal/model"
	"github.com/ashwinyue/next-support/internal/repository"
	"github.com/ashwinyue/next-support/internal/service/entity"
	"github.com/ashwinyue/next-support/internal/service/token"
)

const (
	// MaxTokens 不压缩时允许的估算 token 上限
	MaxTokens = 8000
	// KeepRecent 压缩时原样保留的最近消息数
	KeepRecent = 10

	summaryMaxTokens      = 500
	defaultSummaryTimeout = 15 * time.Second
	fallbackMessages      = 3
	fallbackChars         = 200
)

// Message 上下文中的一条消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Context 一轮对话使用的上下文
type Context struct {
	Messages   []Message       `json:"messages"`
	Entities   entity.Entities `json:"entities"`
	TokenCount int             `json:"tokenCount"`
	Compacted  bool            `json:"compacted"`
}

// Manager 上下文管理器
type Manager struct {
	messages       repository.MessageRepository
	summarizer     ecomodel.BaseChatModel
	summaryTimeout time.Duration
	logger         *slog.Logger
}

// Option Manager 配置项
type Option func(*Manager)

// WithSummaryTimeout 摘要调用超时
func WithSummaryTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.summaryTimeout = d
		}
	}
}

// WithLogger 设置日志器
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager 创建上下文管理器
func NewManager(messages repository.MessageRepository, summarizer ecomodel.BaseChatModel, opts ...Option) *Manager {
	m := &Manager{
		messages:       messages,
		summarizer:     summarizer,
		summaryTimeout: defaultSummaryTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "history")
	return m
}

// Build 读取会话全部消息并在超出预算时压缩
// 只有读取消息失败会返回错误
func (m *Manager) Build(ctx context.Context, conversationID string) (*Context, error) {
	messages, err := m.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	tokens := token.Estimate(messages)
	m.logger.DebugContext(ctx, "building context",
		"conversation_id", conversationID, "message_count", len(messages), "token_count", tokens)

	if tokens <= MaxTokens {
		return &Context{
			Messages:   toMessages(messages),
			Entities:   entity.Extract(messages),
			TokenCount: tokens,
			Compacted:  false,
		}, nil
	}

	return m.compact(ctx, messages), nil
}

func (m *Manager) compact(ctx context.Context, messages []*model.Message) *Context {
	split := max(len(messages)-KeepRecent, 0)
	old, recent := messages[:split], messages[split:]

	m.logger.InfoContext(ctx, "compacting conversation context",
		"total_messages", len(messages), "compacting", len(old), "keeping_recent", len(recent))

	summary := m.summarize(ctx, old)

	out := make([]Message, 0, len(recent)+1)
	out = append(out, Message{Role: model.RoleSystem, Content: "Previous conversation summary: " + summary})
	out = append(out, toMessages(recent)...)

	return &Context{
		Messages:   out,
		Entities:   entity.Extract(messages),
		TokenCount: token.Estimate(recent) + token.EstimateText(summary),
		Compacted:  true,
	}
}

// summarize 摘要失败、超时或为空时退回到最近几条旧消息的截断拼接
func (m *Manager) summarize(ctx context.Context, old []*model.Message) string {
	if len(old) == 0 {
		return ""
	}

	if m.summarizer != nil {
		cctx, cancel := context.WithTimeout(ctx, m.summaryTimeout)
		defer cancel()

		resp, err := m.summarizer.Generate(cctx, []*schema.Message{schema.UserMessage(summaryPrompt(old))},
			ecomodel.WithMaxTokens(summaryMaxTokens))
		switch {
		case err != nil:
			m.logger.WarnContext(ctx, "failed to summarize messages", "error", err)
		case resp == nil || strings.TrimSpace(resp.Content) == "":
			m.logger.WarnContext(ctx, "summarizer returned empty content")
		default:
			return strings.TrimSpace(resp.Content)
		}
	}

	return fallbackSummary(old)
}

func summaryPrompt(old []*model.Message) string {
	var sb strings.Builder
	for i, msg := range old {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(strings.ToUpper(msg.Role))
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
	}

	return fmt.Sprintf(`Summarize this customer support conversation concisely. Keep every order number (ORD-*), invoice number (INV-*), tracking ID (TRK-*) and amount exactly as written, along with the main issues raised.

Conversation:
%s

Reply with a 2-3 sentence summary containing only what is needed to keep helping this customer.`, sb.String())
}

func fallbackSummary(old []*model.Message) string {
	tail := old[max(len(old)-fallbackMessages, 0):]
	parts := make([]string, len(tail))
	for i, msg := range tail {
		parts[i] = msg.Role + ": " + truncateRunes(msg.Content, fallbackChars)
	}
	return strings.Join(parts, " | ")
}

func toMessages(messages []*model.Message) []Message {
	out := make([]Message, len(messages))
	for i, msg := range messages {
		out[i] = Message{Role: msg.Role, Content: msg.Content}
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
