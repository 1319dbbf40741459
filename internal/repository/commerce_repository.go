package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ashwinyue/next-support/internal/model"
)

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓库
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// GetByID 获取用户
func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// FindByNumber 按订单号查询，只返回属于该用户的订单
func (r *orderRepository) FindByNumber(ctx context.Context, userID, orderNumber string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("order_number = ? AND user_id = ?", orderNumber, userID).
		First(&order).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// ListByUser 最近的订单，status 为空时不过滤
func (r *orderRepository) ListByUser(ctx context.Context, userID, status string, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("created_at DESC").Limit(limit).Find(&orders).Error
	return orders, err
}

// CountByUser 用户订单总数
func (r *orderRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).Where("user_id = ?", userID).Count(&total).Error
	return total, err
}

// UpdateStatus 更新订单状态
func (r *orderRepository) UpdateStatus(ctx context.Context, id, status string) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID 获取订单
func (r *orderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付仓库
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// FindByInvoice 按发票号查询
func (r *paymentRepository) FindByInvoice(ctx context.Context, userID, invoiceNumber string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("invoice_number = ? AND user_id = ?", invoiceNumber, userID).
		First(&payment).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &payment, nil
}

// ListByUser 最近的支付记录
func (r *paymentRepository) ListByUser(ctx context.Context, userID, status string, limit int) ([]*model.Payment, error) {
	var payments []*model.Payment
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("created_at DESC").Limit(limit).Find(&payments).Error
	return payments, err
}

// ApplyRefund 写入退款信息
func (r *paymentRepository) ApplyRefund(ctx context.Context, id string, refund RefundUpdate) error {
	res := r.db.WithContext(ctx).Model(&model.Payment{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        refund.Status,
		"refund_status": refund.RefundStatus,
		"refund_amount": refund.RefundAmount,
		"refund_reason": refund.RefundReason,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
