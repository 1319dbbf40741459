// Package agent 定义三个专职客服 Agent 及其工具
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/ashwinyue/next-support/internal/repository"
	"github.com/ashwinyue/next-support/internal/service/knowledge"
)

// Type Agent 类型
type Type string

const (
	TypeGeneralSupport Type = "general-support"
	TypeOrder          Type = "order"
	TypeBilling        Type = "billing"
)

var (
	// ErrUnknownTool 工具不属于该 Agent
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidArguments 工具参数无法解析或缺少必填项
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// ParseType 归一化 Agent 类型，support/general 都视为 general-support
func ParseType(s string) (Type, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "support", "general", string(TypeGeneralSupport):
		return TypeGeneralSupport, true
	case string(TypeOrder):
		return TypeOrder, true
	case string(TypeBilling):
		return TypeBilling, true
	}
	return "", false
}

// Agent 固定配置的专职 Agent
type Agent struct {
	Type         Type
	Name         string
	Description  string
	SystemPrompt string
	tools        []*Tool
	logger       *slog.Logger
}

// Tools 按注册顺序返回工具
func (a *Agent) Tools() []*Tool {
	return a.tools
}

// Tool 按名称查找工具
func (a *Agent) Tool(name string) (*Tool, bool) {
	for _, t := range a.tools {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// ExecuteTool 解析参数并执行工具，返回实际使用的参数和结果
func (a *Agent) ExecuteTool(ctx context.Context, name, arguments, userID string) (Params, any, error) {
	t, ok := a.Tool(name)
	if !ok {
		a.logger.ErrorContext(ctx, "unknown tool", "tool", name)
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	params, err := parseArguments(t, arguments)
	if err != nil {
		a.logger.ErrorContext(ctx, "invalid tool arguments", "tool", name, "arguments", truncate(arguments, 200), "error", err)
		return nil, nil, err
	}

	a.logger.InfoContext(ctx, "executing tool", "tool", name, "user_id", userID, "input", truncate(arguments, 200))
	out, err := t.Execute(ctx, params, userID)
	if err != nil {
		a.logger.ErrorContext(ctx, "tool execution failed", "tool", name, "error", err)
		return params, nil, fmt.Errorf("tool %s: %w", name, err)
	}
	return params, out, nil
}

// ToolInfos eino 工具声明，用于 WithTools
func (a *Agent) ToolInfos() []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, len(a.tools))
	for i, t := range a.tools {
		infos[i] = t.ToolInfo()
	}
	return infos
}

// FunctionTools function-call 格式导出
func (a *Agent) FunctionTools() []FunctionTool {
	out := make([]FunctionTool, len(a.tools))
	for i, t := range a.tools {
		out[i] = t.FunctionTool()
	}
	return out
}

// InputSchemaTools input_schema 格式导出
func (a *Agent) InputSchemaTools() []InputSchemaTool {
	out := make([]InputSchemaTool, len(a.tools))
	for i, t := range a.tools {
		out[i] = t.InputSchemaTool()
	}
	return out
}

// ToolSummary 工具摘要
type ToolSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Capabilities Agent 能力描述
type Capabilities struct {
	Type        Type          `json:"type"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Tools       []ToolSummary `json:"tools"`
}

// Capabilities 返回能力描述
func (a *Agent) Capabilities() Capabilities {
	tools := make([]ToolSummary, len(a.tools))
	for i, t := range a.tools {
		tools[i] = ToolSummary{Name: t.Name, Description: t.Description}
	}
	return Capabilities{Type: a.Type, Name: a.Name, Description: a.Description, Tools: tools}
}

// Dependencies 工具依赖的数据访问
type Dependencies struct {
	Users         repository.UserRepository
	Orders        repository.OrderRepository
	Payments      repository.PaymentRepository
	Conversations repository.ConversationRepository
	Knowledge     knowledge.Searcher
	Now           func() time.Time
	Logger        *slog.Logger
}

// Registry Agent 注册表，创建后只读
type Registry struct {
	agents []*Agent
}

// NewRegistry 创建全部 Agent
func NewRegistry(deps Dependencies) *Registry {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	build := func(t Type, name, desc, prompt string, tools []*Tool) *Agent {
		return &Agent{
			Type:         t,
			Name:         name,
			Description:  desc,
			SystemPrompt: prompt,
			tools:        tools,
			logger:       deps.Logger.With("component", "agent", "agent_type", string(t)),
		}
	}

	return &Registry{agents: []*Agent{
		build(TypeGeneralSupport, "Support Agent",
			"Handles general inquiries, FAQs, account issues, and troubleshooting",
			supportPrompt, supportTools(deps)),
		build(TypeOrder, "Order Agent",
			"Handles order inquiries, tracking, shipping, modifications, and cancellations",
			orderPrompt, orderTools(deps)),
		build(TypeBilling, "Billing Agent",
			"Handles payments, invoices, refunds, subscriptions, and billing inquiries",
			billingPrompt, billingTools(deps)),
	}}
}

// Get 按类型查找
func (r *Registry) Get(t Type) (*Agent, bool) {
	for _, a := range r.agents {
		if a.Type == t {
			return a, true
		}
	}
	return nil, false
}

// All 按注册顺序返回全部 Agent
func (r *Registry) All() []*Agent {
	return r.agents
}

type conversationKey struct{}

// WithConversationID 把当前会话 ID 放入 ctx，供需要会话上下文的工具使用
func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, conversationKey{}, id)
}

// ConversationID 从 ctx 读取会话 ID
func ConversationID(ctx context.Context) string {
	id, _ := ctx.Value(conversationKey{}).(string)
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
