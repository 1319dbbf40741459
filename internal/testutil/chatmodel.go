package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ErrScriptExhausted 脚本中没有更多响应
var ErrScriptExhausted = errors.New("fake chat model: no scripted response")

// Reply 一次 Generate 的脚本响应
type Reply struct {
	Message *schema.Message
	Err     error
	Delay   time.Duration // 模拟慢响应，遵守 ctx 取消
}

// StreamStep 一次 Stream 调用的脚本响应
type StreamStep struct {
	Chunks  []*schema.Message
	Err     error // Stream 调用本身失败
	RecvErr error // 所有分片之后从流中返回的错误
	Hold    bool  // 发完分片后挂起，直到 ctx 取消
}

// Call 记录一次调用
type Call struct {
	Input   []*schema.Message
	Options *model.Options
}

// FakeChatModel 按脚本回放的 ToolCallingChatModel
type FakeChatModel struct {
	mu          sync.Mutex
	replies     []Reply
	steps       []StreamStep
	calls       []Call
	streamCalls []Call
	tools       []*schema.ToolInfo
}

var _ model.ToolCallingChatModel = (*FakeChatModel)(nil)

// NewFakeChatModel 创建脚本模型
func NewFakeChatModel() *FakeChatModel {
	return &FakeChatModel{}
}

// OnGenerate 追加 Generate 响应
func (m *FakeChatModel) OnGenerate(replies ...Reply) *FakeChatModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, replies...)
	return m
}

// OnStream 追加 Stream 响应
func (m *FakeChatModel) OnStream(steps ...StreamStep) *FakeChatModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, steps...)
	return m
}

// Generate 实现 model.BaseChatModel
func (m *FakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Input: input, Options: model.GetCommonOptions(nil, opts...)})
	if len(m.replies) == 0 {
		m.mu.Unlock()
		return nil, ErrScriptExhausted
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	m.mu.Unlock()

	if reply.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(reply.Delay):
		}
	}
	return reply.Message, reply.Err
}

// Stream 实现 model.BaseChatModel
func (m *FakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.mu.Lock()
	m.streamCalls = append(m.streamCalls, Call{Input: input, Options: model.GetCommonOptions(nil, opts...)})
	if len(m.steps) == 0 {
		m.mu.Unlock()
		return nil, ErrScriptExhausted
	}
	step := m.steps[0]
	m.steps = m.steps[1:]
	m.mu.Unlock()

	if step.Err != nil {
		return nil, step.Err
	}
	if step.RecvErr == nil && !step.Hold {
		return schema.StreamReaderFromArray(step.Chunks), nil
	}

	sr, sw := schema.Pipe[*schema.Message](len(step.Chunks) + 1)
	go func() {
		defer sw.Close()
		for _, c := range step.Chunks {
			sw.Send(c, nil)
		}
		if step.Hold {
			<-ctx.Done()
			sw.Send(nil, ctx.Err())
			return
		}
		sw.Send(nil, step.RecvErr)
	}()
	return sr, nil
}

// WithTools 实现 model.ToolCallingChatModel，记录绑定的工具
func (m *FakeChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools = tools
	return m, nil
}

// Calls Generate 调用记录
func (m *FakeChatModel) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// StreamCalls Stream 调用记录
func (m *FakeChatModel) StreamCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.streamCalls...)
}

// BoundTools 最近一次绑定的工具
func (m *FakeChatModel) BoundTools() []*schema.ToolInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tools
}

// ========== 消息构造 ==========

// AssistantText 纯文本回复
func AssistantText(content string) *schema.Message {
	return schema.AssistantMessage(content, nil)
}

// TextChunks 把若干文本片段转为流式分片
func TextChunks(parts ...string) []*schema.Message {
	out := make([]*schema.Message, len(parts))
	for i, p := range parts {
		out[i] = schema.AssistantMessage(p, nil)
	}
	return out
}

// ToolCallChunk 携带一次工具调用的分片
func ToolCallChunk(index int, id, name, arguments string) *schema.Message {
	idx := index
	return schema.AssistantMessage("", []schema.ToolCall{{
		Index: &idx,
		ID:    id,
		Type:  "function",
		Function: schema.FunctionCall{
			Name:      name,
			Arguments: arguments,
		},
	}})
}

// UsageChunk 携带 token 用量的尾分片
func UsageChunk(total int) *schema.Message {
	msg := schema.AssistantMessage("", nil)
	msg.ResponseMeta = &schema.ResponseMeta{
		Usage: &schema.TokenUsage{TotalTokens: total},
	}
	return msg
}
