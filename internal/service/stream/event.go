package stream

import (
	"encoding/json"
	"fmt"
)

// EventType 事件类型
type EventType string

const (
	// EventStatus 状态变化
	EventStatus EventType = "status"
	// EventReasoning 路由说明
	EventReasoning EventType = "reasoning"
	// EventText 增量文本
	EventText EventType = "text"
	// EventToolCall 工具调用
	EventToolCall EventType = "tool_call"
	// EventToolResult 工具结果
	EventToolResult EventType = "tool_result"
	// EventDone 正常结束
	EventDone EventType = "done"
	// EventError 异常结束
	EventError EventType = "error"
)

// 状态值
const (
	StatusThinking    = "thinking"
	StatusToolCalling = "tool_calling"
)

// ErrorMessage 对调用方公开的统一错误文案
const ErrorMessage = "An error occurred while generating response"

// StoppedMessage 生成被用户停止
const StoppedMessage = "Generation stopped by user"

// Event 流事件
type Event struct {
	Type EventType
	Data any
}

// StatusData status 事件负载
type StatusData struct {
	Status string `json:"status"`
	Agent  string `json:"agent,omitempty"`
	Tool   string `json:"tool,omitempty"`
}

// TextData text / reasoning 事件负载
type TextData struct {
	Text string `json:"text"`
}

// ToolCallData tool_call 事件负载
type ToolCallData struct {
	Name  string `json:"name"`
	Input any    `json:"input"`
}

// ToolResultData tool_result 事件负载
type ToolResultData struct {
	Name   string `json:"name"`
	Result any    `json:"result"`
}

// DoneData done 事件负载
type DoneData struct {
	MessageID  string `json:"messageId"`
	TokensUsed int    `json:"tokensUsed"`
}

// ErrorData error 事件负载
type ErrorData struct {
	Message string `json:"message"`
}

// Encode 序列化为 SSE 帧
func (e Event) Encode() []byte {
	data, err := json.Marshal(e.Data)
	if err != nil {
		data, _ = json.Marshal(ErrorData{Message: ErrorMessage})
		return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", EventError, data))
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", e.Type, data))
}

// IsTerminal done 或 error
func (e Event) IsTerminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

func statusEvent(status, agentType, tool string) Event {
	return Event{Type: EventStatus, Data: StatusData{Status: status, Agent: agentType, Tool: tool}}
}

func reasoningEvent(text string) Event {
	return Event{Type: EventReasoning, Data: TextData{Text: text}}
}

func textEvent(text string) Event {
	return Event{Type: EventText, Data: TextData{Text: text}}
}

func toolCallEvent(name string, input any) Event {
	return Event{Type: EventToolCall, Data: ToolCallData{Name: name, Input: input}}
}

func toolResultEvent(name string, result any) Event {
	return Event{Type: EventToolResult, Data: ToolResultData{Name: name, Result: result}}
}

func doneEvent(messageID string, tokens int) Event {
	return Event{Type: EventDone, Data: DoneData{MessageID: messageID, TokensUsed: tokens}}
}

// ErrorEvent 通用错误事件
func ErrorEvent() Event {
	return Event{Type: EventError, Data: ErrorData{Message: ErrorMessage}}
}

// StoppedEvent 停止生成时的结束事件
func StoppedEvent() Event {
	return Event{Type: EventError, Data: ErrorData{Message: StoppedMessage}}
}
