// Package logger 提供基于 slog 的结构化日志
package logger

import (
	"context"
	"log/slog"
	"os"
)

type ctxKey string

const ctxKeyRequestID ctxKey = "request_id"

var base = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// New 创建日志器，debug 模式输出文本格式
func New(debug bool) *slog.Logger {
	var h slog.Handler
	if debug {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	l := slog.New(h)
	base = l
	slog.SetDefault(l)
	return l
}

// L 返回全局日志器
func L() *slog.Logger {
	return base
}

// WithRequestID 在上下文中保存 request_id
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// RequestID 从上下文读取 request_id
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// FromContext 返回附带 request_id 的日志器
func FromContext(ctx context.Context, l *slog.Logger) *slog.Logger {
	if l == nil {
		l = base
	}
	if id := RequestID(ctx); id != "" {
		return l.With("request_id", id)
	}
	return l
}
