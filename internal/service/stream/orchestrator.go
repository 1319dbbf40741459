// Package stream 驱动 生成 -> 工具调用 -> 继续生成 的流式循环
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	ecomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/ashwinyue/next-support/internal/model"
	"github.com/ashwinyue/next-support/internal/repository"
	"github.com/ashwinyue/next-support/internal/service/agent"
	"github.com/ashwinyue/next-support/internal/service/history"
)

const (
	// MaxSteps 单轮最多的生成轮次
	MaxSteps = 5

	temperature = float32(0.7)
	maxTokens   = 2048
	eventBuffer = 16
)

// ToolExecutor Agent 的工具绑定
type ToolExecutor interface {
	ToolInfos() []*schema.ToolInfo
	ExecuteTool(ctx context.Context, name, arguments, userID string) (agent.Params, any, error)
}

// Request 一次流式生成的输入
type Request struct {
	ConversationID string
	UserID         string
	SystemPrompt   string
	AgentType      string
	Tools          ToolExecutor
	History        []history.Message
	Reasoning      string
}

// Orchestrator 流式编排器
type Orchestrator struct {
	model    ecomodel.ToolCallingChatModel
	messages repository.MessageRepository
	logger   *slog.Logger
}

// NewOrchestrator 创建编排器
func NewOrchestrator(m ecomodel.ToolCallingChatModel, messages repository.MessageRepository, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		model:    m,
		messages: messages,
		logger:   logger.With("component", "stream"),
	}
}

// Stream 启动一轮生成，事件按产生顺序写入返回的通道
// 通道以 done 或 error 结束后关闭；ctx 取消时停止且不落库
func (o *Orchestrator) Stream(ctx context.Context, req Request) <-chan Event {
	ch := make(chan Event, eventBuffer)
	go o.run(ctx, req, ch)
	return ch
}

// turn 单轮运行状态
type turn struct {
	req      Request
	out      chan<- Event
	text     strings.Builder
	streamed bool
	tokens   int
	records  model.ToolCallRecords
}

// emit 发送事件，ctx 取消时返回 false
func (t *turn) emit(ctx context.Context, e Event) bool {
	select {
	case t.out <- e:
		return true
	case <-ctx.Done():
		return false
	}
}

func (o *Orchestrator) run(ctx context.Context, req Request, out chan<- Event) {
	defer close(out)

	t := &turn{req: req, out: out}
	msgID, err := o.execute(ctx, t)
	if err != nil {
		if ctx.Err() != nil {
			o.logger.InfoContext(ctx, "stream cancelled", "conversation_id", req.ConversationID, "error", err)
			return
		}
		o.logger.ErrorContext(ctx, "stream error",
			"conversation_id", req.ConversationID, "agent_type", req.AgentType, "error", err)
		t.emit(ctx, ErrorEvent())
		return
	}

	o.logger.InfoContext(ctx, "stream completed and message saved",
		"conversation_id", req.ConversationID, "message_id", msgID, "agent_type", req.AgentType,
		"tokens_used", t.tokens, "tool_call_count", len(t.records))
	t.emit(ctx, doneEvent(msgID, t.tokens))
}

// execute 运行生成循环并持久化助手消息，返回消息 ID
func (o *Orchestrator) execute(ctx context.Context, t *turn) (string, error) {
	req := t.req
	if !t.emit(ctx, statusEvent(StatusThinking, req.AgentType, "")) {
		return "", ctx.Err()
	}
	if req.Reasoning != "" {
		if !t.emit(ctx, reasoningEvent(req.Reasoning)) {
			return "", ctx.Err()
		}
	}

	if o.model == nil {
		return "", errors.New("no generation model configured")
	}
	chat := o.model
	if req.Tools != nil {
		if infos := req.Tools.ToolInfos(); len(infos) > 0 {
			bound, err := o.model.WithTools(infos)
			if err != nil {
				return "", fmt.Errorf("bind tools: %w", err)
			}
			chat = bound
		}
	}

	msgs := buildMessages(req)
	var final *schema.Message
	for step := 0; step < MaxSteps; step++ {
		msg, err := o.step(ctx, t, chat, msgs)
		if err != nil {
			return "", fmt.Errorf("step %d: %w", step+1, err)
		}
		final = msg
		if msg == nil || len(msg.ToolCalls) == 0 {
			break
		}

		msgs = append(msgs, schema.AssistantMessage(msg.Content, msg.ToolCalls))
		for _, call := range msg.ToolCalls {
			result, err := o.callTool(ctx, t, call)
			if err != nil {
				return "", err
			}
			msgs = append(msgs, schema.ToolMessage(result, call.ID, schema.WithToolName(call.Function.Name)))
		}
	}

	if !t.streamed && final != nil && final.Content != "" {
		t.text.WriteString(final.Content)
		if !t.emit(ctx, textEvent(final.Content)) {
			return "", ctx.Err()
		}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return o.persist(ctx, t)
}

// step 一次流式生成，文本分片立即转发
func (o *Orchestrator) step(ctx context.Context, t *turn, chat ecomodel.BaseChatModel, msgs []*schema.Message) (*schema.Message, error) {
	sr, err := chat.Stream(ctx, msgs, ecomodel.WithTemperature(temperature), ecomodel.WithMaxTokens(maxTokens))
	if err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}
	defer sr.Close()

	var chunks []*schema.Message
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("recv: %w", err)
		}
		if chunk == nil {
			continue
		}
		if chunk.Content != "" {
			t.text.WriteString(chunk.Content)
			t.streamed = true
			if !t.emit(ctx, textEvent(chunk.Content)) {
				return nil, ctx.Err()
			}
		}
		chunks = append(chunks, chunk)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	msg, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, fmt.Errorf("concat chunks: %w", err)
	}
	if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		t.tokens += msg.ResponseMeta.Usage.TotalTokens
	}
	return msg, nil
}

// callTool 执行一次工具调用，返回回填给模型的结果 JSON
func (o *Orchestrator) callTool(ctx context.Context, t *turn, call schema.ToolCall) (string, error) {
	name := call.Function.Name
	if !t.emit(ctx, statusEvent(StatusToolCalling, "", name)) {
		return "", ctx.Err()
	}
	if !t.emit(ctx, toolCallEvent(name, decodeInput(call.Function.Arguments))) {
		return "", ctx.Err()
	}

	if t.req.Tools == nil {
		return "", fmt.Errorf("%w: %s", agent.ErrUnknownTool, name)
	}
	params, result, err := t.req.Tools.ExecuteTool(ctx, name, call.Function.Arguments, t.req.UserID)
	if err != nil {
		return "", err
	}

	if !t.emit(ctx, toolResultEvent(name, result)) {
		return "", ctx.Err()
	}
	t.records = append(t.records, model.ToolCallRecord{ToolName: name, Input: params, Output: result})

	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal %s result: %w", name, err)
	}
	return string(data), nil
}

func (o *Orchestrator) persist(ctx context.Context, t *turn) (string, error) {
	msg := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: t.req.ConversationID,
		Role:           model.RoleAssistant,
		Content:        t.text.String(),
		AgentType:      t.req.AgentType,
		ToolCalls:      t.records,
		Reasoning:      t.req.Reasoning,
		TokensUsed:     t.tokens,
	}
	if err := o.messages.Create(ctx, msg); err != nil {
		return "", fmt.Errorf("save assistant message: %w", err)
	}
	return msg.ID, nil
}

// buildMessages 系统提示在前，历史中的系统消息（压缩摘要）并入系统提示
func buildMessages(req Request) []*schema.Message {
	system := req.SystemPrompt
	turns := make([]*schema.Message, 0, len(req.History))
	for _, m := range req.History {
		switch m.Role {
		case model.RoleSystem:
			system += "\n\n" + m.Content
		case model.RoleAssistant:
			turns = append(turns, schema.AssistantMessage(m.Content, nil))
		default:
			turns = append(turns, schema.UserMessage(m.Content))
		}
	}
	return append([]*schema.Message{schema.SystemMessage(system)}, turns...)
}

// decodeInput 事件中展示的工具入参，无法解析时原样返回
func decodeInput(arguments string) any {
	if strings.TrimSpace(arguments) == "" {
		return map[string]any{}
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(agent.RepairJSON(arguments)), &v); err != nil {
		return arguments
	}
	return v
}
