// Package repository 定义数据访问接口
// 接口抽象使依赖注入和单元测试成为可能
package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ashwinyue/next-support/internal/model"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// ConversationRepository 会话数据访问接口
type ConversationRepository interface {
	Create(ctx context.Context, conv *model.Conversation) error
	GetByID(ctx context.Context, id string) (*model.Conversation, error)
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]*model.Conversation, int64, error)
	Update(ctx context.Context, conv *model.Conversation) error
	// UpdateMetadata 覆盖元数据，同时刷新 updated_at 使会话排到列表前面
	UpdateMetadata(ctx context.Context, id string, meta model.ConversationMetadata) error
	Delete(ctx context.Context, id string) error
}

// MessageRepository 消息数据访问接口，消息只追加不修改
type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	// ListByConversation 按创建时间升序返回全部消息
	ListByConversation(ctx context.Context, conversationID string) ([]*model.Message, error)
	ListPage(ctx context.Context, conversationID string, offset, limit int) ([]*model.Message, int64, error)
}

// UserRepository 用户数据访问接口
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// OrderRepository 订单数据访问接口，所有查询都按用户隔离
type OrderRepository interface {
	FindByNumber(ctx context.Context, userID, orderNumber string) (*model.Order, error)
	ListByUser(ctx context.Context, userID, status string, limit int) ([]*model.Order, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	UpdateStatus(ctx context.Context, id, status string) error
	GetByID(ctx context.Context, id string) (*model.Order, error)
}

// PaymentRepository 支付数据访问接口
type PaymentRepository interface {
	FindByInvoice(ctx context.Context, userID, invoiceNumber string) (*model.Payment, error)
	ListByUser(ctx context.Context, userID, status string, limit int) ([]*model.Payment, error)
	ApplyRefund(ctx context.Context, id string, refund RefundUpdate) error
}

// RefundUpdate 退款写入字段
type RefundUpdate struct {
	Status       string
	RefundStatus string
	RefundAmount float64
	RefundReason string
}

// KnowledgeRepository FAQ 数据访问接口
type KnowledgeRepository interface {
	Search(ctx context.Context, query, category string, limit int) ([]*model.KnowledgeArticle, error)
	ListAll(ctx context.Context) ([]*model.KnowledgeArticle, error)
}

// 确保实现了接口
var (
	_ ConversationRepository = (*conversationRepository)(nil)
	_ MessageRepository      = (*messageRepository)(nil)
	_ UserRepository         = (*userRepository)(nil)
	_ OrderRepository        = (*orderRepository)(nil)
	_ PaymentRepository      = (*paymentRepository)(nil)
	_ KnowledgeRepository    = (*knowledgeRepository)(nil)
)

// notFound 把 gorm 的未找到错误统一为 ErrNotFound
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
