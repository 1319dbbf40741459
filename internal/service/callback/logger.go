// Package callback 提供 Eino Callback 日志支持
package callback

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	ecomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// 参数日志截断长度
const maxLogChars = 200

// Logger 日志回调处理器
// 实现 callbacks.Handler 接口，记录模型与工具的执行事件
type Logger struct {
	logger      *slog.Logger
	enableDebug bool
}

var _ callbacks.Handler = (*Logger)(nil)

// NewLogger 创建日志回调处理器，enableDebug 为 false 时只记录错误
func NewLogger(logger *slog.Logger, enableDebug bool) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger.With("component", "eino"), enableDebug: enableDebug}
}

// OnStart 组件执行开始时调用
func (l *Logger) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	if !l.enableDebug || info == nil {
		return ctx
	}
	attrs := runAttrs(info)
	switch info.Component {
	case components.ComponentOfChatModel:
		if in := ecomodel.ConvCallbackInput(input); in != nil {
			attrs = append(attrs, "message_count", len(in.Messages), "tool_count", len(in.Tools))
		}
	case components.ComponentOfTool:
		if in := tool.ConvCallbackInput(input); in != nil {
			attrs = append(attrs, "arguments", truncate(in.ArgumentsInJSON))
		}
	}
	l.logger.DebugContext(ctx, "component started", attrs...)
	return ctx
}

// OnEnd 组件执行成功结束时调用
func (l *Logger) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	if !l.enableDebug || info == nil {
		return ctx
	}
	attrs := runAttrs(info)
	switch info.Component {
	case components.ComponentOfChatModel:
		if out := ecomodel.ConvCallbackOutput(output); out != nil {
			if out.Message != nil {
				attrs = append(attrs, "content", truncate(out.Message.Content), "tool_calls", len(out.Message.ToolCalls))
			}
			if out.TokenUsage != nil {
				attrs = append(attrs, "total_tokens", out.TokenUsage.TotalTokens)
			}
		}
	case components.ComponentOfTool:
		if out := tool.ConvCallbackOutput(output); out != nil {
			attrs = append(attrs, "response", truncate(out.Response))
		}
	}
	l.logger.DebugContext(ctx, "component finished", attrs...)
	return ctx
}

// OnError 组件执行出错时调用
func (l *Logger) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	attrs := append(runAttrs(info), "error", err)
	l.logger.ErrorContext(ctx, "component failed", attrs...)
	return ctx
}

// OnStartWithStreamInput 流式输入开始时调用，必须关闭 input
func (l *Logger) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo, input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	if l.enableDebug {
		l.logger.DebugContext(ctx, "component stream input started", runAttrs(info)...)
	}
	return ctx
}

// OnEndWithStreamOutput 流式输出结束时调用，在后台读完并关闭 output
func (l *Logger) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo, output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	if !l.enableDebug {
		output.Close()
		return ctx
	}
	go func() {
		defer output.Close()
		chunks, tokens := 0, 0
		for {
			frame, err := output.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				l.logger.WarnContext(ctx, "component stream failed", append(runAttrs(info), "error", err)...)
				return
			}
			chunks++
			if out := ecomodel.ConvCallbackOutput(frame); out != nil && out.TokenUsage != nil {
				tokens += out.TokenUsage.TotalTokens
			}
		}
		l.logger.DebugContext(ctx, "component stream finished",
			append(runAttrs(info), "chunks", chunks, "total_tokens", tokens)...)
	}()
	return ctx
}

// Setup 注册全局回调，之后创建的模型和工具都会带上日志
func Setup(logger *slog.Logger, enableDebug bool) {
	callbacks.AppendGlobalHandlers(NewLogger(logger, enableDebug))
}

func runAttrs(info *callbacks.RunInfo) []any {
	if info == nil {
		return nil
	}
	return []any{"name", info.Name, "type", info.Type, "kind", string(info.Component)}
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxLogChars {
		return s
	}
	return string(r[:maxLogChars]) + "..."
}
