package repository

import "gorm.io/gorm"

// Repositories 仓库集合，用于统一管理所有仓库
type Repositories struct {
	DB            *gorm.DB // 直接访问数据库
	Conversations ConversationRepository
	Messages      MessageRepository
	Users         UserRepository
	Orders        OrderRepository
	Payments      PaymentRepository
	Knowledge     KnowledgeRepository
}

// NewRepositories 创建所有仓库
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:            db,
		Conversations: NewConversationRepository(db),
		Messages:      NewMessageRepository(db),
		Users:         NewUserRepository(db),
		Orders:        NewOrderRepository(db),
		Payments:      NewPaymentRepository(db),
		Knowledge:     NewKnowledgeRepository(db),
	}
}
