package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-support/internal/errs"
	"github.com/ashwinyue/next-support/internal/service/chat"
	"github.com/ashwinyue/next-support/internal/service/stream"
)

const (
	// ContextKeyUserID 认证中间件写入的用户 ID
	ContextKeyUserID = "user_id"

	defaultConversationLimit = 20
	defaultMessageLimit      = 50
)

// ChatHandler 会话处理器
type ChatHandler struct {
	chat *chat.Service
}

// NewChatHandler 创建会话处理器
func NewChatHandler(svc *chat.Service) *ChatHandler {
	return &ChatHandler{chat: svc}
}

// CreateConversationRequest 创建会话请求
type CreateConversationRequest struct {
	Title          string `json:"title"`
	InitialMessage string `json:"initialMessage"`
}

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	Content string `json:"content"`
}

// userID 认证中间件写入的用户
func userID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

// bindJSON 空请求体视为零值
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return errs.Validation("Invalid request body")
	}
	return nil
}

// CreateConversation 创建会话，带初始消息时直接返回 SSE
// POST /api/v1/conversations
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	var req CreateConversationRequest
	if err := bindJSON(c, &req); err != nil {
		Error(c, err)
		return
	}
	if req.InitialMessage != "" {
		if err := chat.ValidateContent(req.InitialMessage); err != nil {
			Error(c, err)
			return
		}
	}

	ctx := c.Request.Context()
	conv, err := h.chat.CreateConversation(ctx, userID(c), req.Title)
	if err != nil {
		Error(c, err)
		return
	}

	if req.InitialMessage == "" {
		Created(c, gin.H{"conversation": conv})
		return
	}

	events, err := h.chat.SendMessage(ctx, conv.ID, userID(c), req.InitialMessage)
	if err != nil {
		Error(c, err)
		return
	}
	writeEvents(c, events)
}

// ListConversations 会话列表
// GET /api/v1/conversations
func (h *ChatHandler) ListConversations(c *gin.Context) {
	page, limit, err := pagination(c, defaultConversationLimit)
	if err != nil {
		Error(c, err)
		return
	}
	result, err := h.chat.ListConversations(c.Request.Context(), userID(c), page, limit)
	if err != nil {
		Error(c, err)
		return
	}
	Paginated(c, result)
}

// GetConversation 会话详情
// GET /api/v1/conversations/:id
func (h *ChatHandler) GetConversation(c *gin.Context) {
	conv, err := h.chat.GetConversation(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, gin.H{"conversation": conv})
}

// UpdateConversation 更新标题或状态
// PATCH /api/v1/conversations/:id
func (h *ChatHandler) UpdateConversation(c *gin.Context) {
	var req chat.UpdateConversationRequest
	if err := bindJSON(c, &req); err != nil {
		Error(c, err)
		return
	}
	conv, err := h.chat.UpdateConversation(c.Request.Context(), c.Param("id"), userID(c), req)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, gin.H{"conversation": conv})
}

// DeleteConversation 删除会话
// DELETE /api/v1/conversations/:id
func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	if err := h.chat.DeleteConversation(c.Request.Context(), c.Param("id"), userID(c)); err != nil {
		Error(c, err)
		return
	}
	NoContent(c)
}

// ListMessages 会话消息
// GET /api/v1/conversations/:id/messages
func (h *ChatHandler) ListMessages(c *gin.Context) {
	page, limit, err := pagination(c, defaultMessageLimit)
	if err != nil {
		Error(c, err)
		return
	}
	result, err := h.chat.ListMessages(c.Request.Context(), c.Param("id"), userID(c), page, limit)
	if err != nil {
		Error(c, err)
		return
	}
	Paginated(c, result)
}

// SendMessage 发送消息，响应为 SSE 流
// POST /api/v1/conversations/:id/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := bindJSON(c, &req); err != nil {
		Error(c, err)
		return
	}
	events, err := h.chat.SendMessage(c.Request.Context(), c.Param("id"), userID(c), req.Content)
	if err != nil {
		Error(c, err)
		return
	}
	writeEvents(c, events)
}

// StopGeneration 停止进行中的生成
// POST /api/v1/conversations/:id/stop
func (h *ChatHandler) StopGeneration(c *gin.Context) {
	stopped, err := h.chat.StopGeneration(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, gin.H{"stopped": stopped})
}

// writeEvents 逐个写出 SSE 事件，通道关闭时结束
func writeEvents(c *gin.Context, events <-chan stream.Event) {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	for e := range events {
		if _, err := c.Writer.Write(e.Encode()); err != nil {
			// 客户端断开后 ctx 会被取消，上游随之结束
			continue
		}
		c.Writer.Flush()
	}
}
