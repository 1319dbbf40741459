package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// 订单状态
const (
	OrderPending        = "pending"
	OrderProcessing     = "processing"
	OrderShipped        = "shipped"
	OrderOutForDelivery = "out_for_delivery"
	OrderDelivered      = "delivered"
	OrderCancelled      = "cancelled"
	OrderReturned       = "returned"
)

// 支付状态
const (
	PaymentPending           = "pending"
	PaymentCompleted         = "completed"
	PaymentFailed            = "failed"
	PaymentRefunded          = "refunded"
	PaymentPartiallyRefunded = "partially_refunded"
)

// 退款状态
const (
	RefundPending    = "pending"
	RefundProcessing = "processing"
	RefundCompleted  = "completed"
	RefundRejected   = "rejected"
)

// 支付方式
const (
	MethodCreditCard   = "credit_card"
	MethodDebitCard    = "debit_card"
	MethodPayPal       = "paypal"
	MethodBankTransfer = "bank_transfer"
	MethodApplePay     = "apple_pay"
	MethodGooglePay    = "google_pay"
)

// User 客户
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name      string    `gorm:"size:255" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// Order 订单
type Order struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	UserID          string     `gorm:"index;size:36;not null" json:"userId"`
	OrderNumber     string     `gorm:"uniqueIndex;size:64;not null" json:"orderNumber"`
	Status          string     `gorm:"index;size:32;default:pending" json:"status"`
	Items           OrderItems `gorm:"type:jsonb" json:"items"`
	TotalAmount     float64    `gorm:"type:numeric(10,2)" json:"totalAmount"`
	TrackingID      string     `gorm:"size:64" json:"trackingId,omitempty"`
	Carrier         string     `gorm:"size:64" json:"carrier,omitempty"`
	DeliveryDate    *time.Time `json:"deliveryDate,omitempty"`
	ShippingAddress *Address   `gorm:"type:jsonb" json:"shippingAddress,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// OrderItem 订单行
type OrderItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// OrderItems jsonb 列
type OrderItems []OrderItem

// Address 地址
type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// Payment 支付记录，InvoiceNumber 对应发票号
type Payment struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	UserID         string    `gorm:"index;size:36;not null" json:"userId"`
	OrderID        *string   `gorm:"index;size:36" json:"orderId,omitempty"`
	InvoiceNumber  string    `gorm:"uniqueIndex;size:64;not null" json:"invoiceNumber"`
	Amount         float64   `gorm:"type:numeric(10,2)" json:"amount"`
	Status         string    `gorm:"index;size:32;default:pending" json:"status"`
	Method         string    `gorm:"size:32" json:"method"`
	RefundStatus   string    `gorm:"size:32" json:"refundStatus,omitempty"`
	RefundAmount   *float64  `gorm:"type:numeric(10,2)" json:"refundAmount,omitempty"`
	RefundReason   string    `gorm:"type:text" json:"refundReason,omitempty"`
	BillingAddress *Address  `gorm:"type:jsonb" json:"billingAddress,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

func (Order) TableName() string {
	return "orders"
}

func (Payment) TableName() string {
	return "payments"
}

// Value 实现 driver.Valuer
func (i OrderItems) Value() (driver.Value, error) {
	if i == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(i)
}

// Scan 实现 sql.Scanner
func (i *OrderItems) Scan(value interface{}) error {
	return scanJSON(value, i)
}

func (OrderItems) GormDataType() string {
	return "jsonb"
}

// Value 实现 driver.Valuer
func (a Address) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan 实现 sql.Scanner
func (a *Address) Scan(value interface{}) error {
	return scanJSON(value, a)
}

func (Address) GormDataType() string {
	return "jsonb"
}
