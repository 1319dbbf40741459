// Package routing 把用户消息分派给专职 Agent
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	ecomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/ashwinyue/next-support/internal/service/agent"
	"github.com/ashwinyue/next-support/internal/service/history"
)

const (
	// ConfidenceThreshold 低于该值时回退到通用客服
	ConfidenceThreshold = 0.6

	contextTurns = 3
	temperature  = float32(0.3)
	maxTokens    = 512
)

// FailedReasoning 路由失败时的说明
const FailedReasoning = "Routing failed - defaulting to general support agent"

var errEmptyResponse = errors.New("empty routing response")

// Decision 路由结果
type Decision struct {
	Agent      agent.Type `json:"agent"`
	Confidence float64    `json:"confidence"`
	Reasoning  string     `json:"reasoning"`
	Entities   []string   `json:"entities"`
}

// Fallback 路由失败时使用的默认结果
func Fallback() Decision {
	return Decision{
		Agent:      agent.TypeGeneralSupport,
		Confidence: 0.5,
		Reasoning:  FailedReasoning,
		Entities:   []string{},
	}
}

// Engine 路由引擎
type Engine struct {
	model  ecomodel.BaseChatModel
	logger *slog.Logger
}

// NewEngine 创建路由引擎
func NewEngine(m ecomodel.BaseChatModel, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{model: m, logger: logger.With("component", "routing")}
}

// Route 对消息分类，任何失败都返回 Fallback
func (e *Engine) Route(ctx context.Context, text string, recent []history.Message) Decision {
	d, err := e.classify(ctx, text, recent)
	if err != nil {
		e.logger.ErrorContext(ctx, "routing failed", "message", preview(text), "error", err)
		return Fallback()
	}

	e.logger.InfoContext(ctx, "message routed",
		"message", preview(text), "agent", d.Agent, "confidence", d.Confidence, "reasoning", d.Reasoning)

	if d.Confidence < ConfidenceThreshold {
		e.logger.InfoContext(ctx, "low confidence, defaulting to general support",
			"original_agent", d.Agent, "confidence", d.Confidence)
		d.Reasoning = fmt.Sprintf("Low confidence (%s) for %s agent - defaulting to general support agent. Original reasoning: %s",
			strconv.FormatFloat(d.Confidence, 'f', -1, 64), d.Agent, d.Reasoning)
		d.Agent = agent.TypeGeneralSupport
	}
	return d
}

func (e *Engine) classify(ctx context.Context, text string, recent []history.Message) (Decision, error) {
	if e.model == nil {
		return Decision{}, errors.New("no generation model configured")
	}

	resp, err := e.model.Generate(ctx, []*schema.Message{schema.UserMessage(buildPrompt(text, recent))},
		ecomodel.WithTemperature(temperature),
		ecomodel.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return Decision{}, fmt.Errorf("generate: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return Decision{}, errEmptyResponse
	}
	return parseDecision(resp.Content)
}

type rawDecision struct {
	Agent      string   `json:"agent"`
	Confidence *float64 `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	Entities   []any    `json:"entities"`
}

// parseDecision 解析模型输出，容忍代码块和多余文字
func parseDecision(content string) (Decision, error) {
	var raw rawDecision
	if err := json.Unmarshal([]byte(agent.RepairJSON(content)), &raw); err != nil {
		return Decision{}, fmt.Errorf("parse routing response: %w", err)
	}

	t, ok := agent.ParseType(raw.Agent)
	if !ok {
		return Decision{}, fmt.Errorf("unknown agent %q", raw.Agent)
	}
	if raw.Confidence == nil {
		return Decision{}, errors.New("missing confidence")
	}

	entities := make([]string, 0, len(raw.Entities))
	for _, v := range raw.Entities {
		if s, ok := v.(string); ok && s != "" {
			entities = append(entities, s)
		}
	}

	return Decision{
		Agent:      t,
		Confidence: min(max(*raw.Confidence, 0), 1),
		Reasoning:  raw.Reasoning,
		Entities:   entities,
	}, nil
}

func buildPrompt(text string, recent []history.Message) string {
	var sb strings.Builder
	sb.WriteString("You are the routing layer of a customer support system. Decide which specialist agent should handle the customer's message.\n\n")
	fmt.Fprintf(&sb, "Customer message: %q\n\n", text)

	if n := len(recent); n > 0 {
		sb.WriteString("Recent conversation context:\n")
		for _, m := range recent[max(n-contextTurns, 0):] {
			fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
		}
		sb.WriteString("\n")
	}

	sb.WriteString(`Available agents:
1. support - general help, FAQs, account issues, password resets, troubleshooting, anything else
2. order - order status, tracking, shipping, delivery problems, order changes and cancellations
3. billing - payments, invoices, refunds, charges, subscriptions, payment methods

Answer with a single JSON object and nothing else:
{
  "agent": "support" | "order" | "billing",
  "confidence": number between 0 and 1,
  "reasoning": "one sentence explaining the choice",
  "entities": ["order numbers, invoice numbers or tracking ids found in the message"]
}`)
	return sb.String()
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= 100 {
		return s
	}
	return string(r[:100])
}
