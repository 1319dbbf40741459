package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ashwinyue/next-support/internal/model"
)

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建会话仓库
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// Create 创建会话
func (r *conversationRepository) Create(ctx context.Context, conv *model.Conversation) error {
	return r.db.WithContext(ctx).Create(conv).Error
}

// GetByID 获取会话，不预加载消息
func (r *conversationRepository) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, notFound(err)
	}
	return &conv, nil
}

// ListByUser 按最近更新倒序分页
func (r *conversationRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*model.Conversation, int64, error) {
	var (
		convs []*model.Conversation
		total int64
	)
	query := r.db.WithContext(ctx).Model(&model.Conversation{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("updated_at DESC").Offset(offset).Limit(limit).Find(&convs).Error
	return convs, total, err
}

// Update 更新标题和状态
func (r *conversationRepository) Update(ctx context.Context, conv *model.Conversation) error {
	return r.db.WithContext(ctx).Model(conv).
		Select("title", "status", "updated_at").
		Updates(conv).Error
}

// UpdateMetadata 一条语句覆盖元数据并刷新 updated_at
func (r *conversationRepository) UpdateMetadata(ctx context.Context, id string, meta model.ConversationMetadata) error {
	return r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"metadata":   meta,
			"updated_at": time.Now().UTC(),
		}).Error
}

// Delete 删除会话及其消息
func (r *conversationRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&model.Message{}, "conversation_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Conversation{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息仓库
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create 追加消息
func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// ListByConversation 获取会话全部消息
func (r *messageRepository) ListByConversation(ctx context.Context, conversationID string) ([]*model.Message, error) {
	var messages []*model.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

// ListPage 分页获取消息
func (r *messageRepository) ListPage(ctx context.Context, conversationID string, offset, limit int) ([]*model.Message, int64, error) {
	var (
		messages []*model.Message
		total    int64
	)
	query := r.db.WithContext(ctx).Model(&model.Message{}).Where("conversation_id = ?", conversationID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at ASC").Offset(offset).Limit(limit).Find(&messages).Error
	return messages, total, err
}
