package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/ashwinyue/next-support/internal/model"
)

// SeedResult 演示数据写入统计
type SeedResult struct {
	Users    []model.User
	Orders   int
	Payments int
	Articles []*model.KnowledgeArticle
}

// Seed 清空业务表并写入演示数据
func Seed(ctx context.Context, db *gorm.DB) (*SeedResult, error) {
	result := &SeedResult{}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 按外键依赖顺序清空
		for _, m := range []interface{}{
			&model.Message{}, &model.Conversation{}, &model.Payment{},
			&model.Order{}, &model.KnowledgeArticle{}, &model.User{},
		} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
				return fmt.Errorf("clear %T: %w", m, err)
			}
		}

		users := seedUsers()
		if err := tx.Create(&users).Error; err != nil {
			return fmt.Errorf("create users: %w", err)
		}
		result.Users = users

		orders := seedOrders(users)
		if err := tx.Create(&orders).Error; err != nil {
			return fmt.Errorf("create orders: %w", err)
		}
		result.Orders = len(orders)

		payments := seedPayments(orders)
		if err := tx.Create(&payments).Error; err != nil {
			return fmt.Errorf("create payments: %w", err)
		}
		result.Payments = len(payments)

		articles := seedArticles()
		if err := tx.Create(&articles).Error; err != nil {
			return fmt.Errorf("create knowledge articles: %w", err)
		}
		result.Articles = articles
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "database seeded",
		"users", len(result.Users),
		"orders", result.Orders,
		"payments", result.Payments,
		"articles", len(result.Articles))
	return result, nil
}

func seedUsers() []model.User {
	people := []struct{ email, name string }{
		{"john.smith@example.com", "John Smith"},
		{"sarah.johnson@example.com", "Sarah Johnson"},
		{"mike.wilson@example.com", "Mike Wilson"},
		{"emily.davis@example.com", "Emily Davis"},
		{"alex.martinez@example.com", "Alex Martinez"},
	}
	users := make([]model.User, 0, len(people))
	for _, p := range people {
		users = append(users, model.User{ID: uuid.NewString(), Email: p.email, Name: p.name})
	}
	return users
}

func date(s string) *time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return &t
}

func seedOrders(users []model.User) []model.Order {
	ny := &model.Address{Street: "123 Main St", City: "New York", State: "NY", Zip: "10001"}
	la := &model.Address{Street: "456 Oak Ave", City: "Los Angeles", State: "CA", Zip: "90001"}
	chi := &model.Address{Street: "789 Pine Rd", City: "Chicago", State: "IL", Zip: "60601"}
	hou := &model.Address{Street: "321 Elm Blvd", City: "Houston", State: "TX", Zip: "77001"}

	orders := []model.Order{
		{
			UserID: users[0].ID, OrderNumber: "ORD-2024-001", Status: model.OrderDelivered,
			Items: model.OrderItems{
				{Name: "Wireless Headphones", Quantity: 1, Price: 149.99},
				{Name: "Phone Case", Quantity: 2, Price: 24.99},
			},
			TotalAmount: 199.97, TrackingID: "TRK-1234567890", Carrier: "FedEx",
			DeliveryDate: date("2024-01-10"), ShippingAddress: ny,
		},
		{
			UserID: users[0].ID, OrderNumber: "ORD-2024-002", Status: model.OrderShipped,
			Items:       model.OrderItems{{Name: "Laptop Stand", Quantity: 1, Price: 79.99}},
			TotalAmount: 79.99, TrackingID: "TRK-2345678901", Carrier: "UPS", ShippingAddress: ny,
		},
		{
			UserID: users[0].ID, OrderNumber: "ORD-2024-003", Status: model.OrderProcessing,
			Items: model.OrderItems{
				{Name: "Mechanical Keyboard", Quantity: 1, Price: 159.99},
				{Name: "Mouse Pad XL", Quantity: 1, Price: 29.99},
			},
			TotalAmount: 189.98, ShippingAddress: ny,
		},
		{
			UserID: users[1].ID, OrderNumber: "ORD-2024-004", Status: model.OrderDelivered,
			Items:       model.OrderItems{{Name: "Smart Watch", Quantity: 1, Price: 299.99}},
			TotalAmount: 299.99, TrackingID: "TRK-3456789012", Carrier: "USPS",
			DeliveryDate: date("2024-01-05"), ShippingAddress: la,
		},
		{
			UserID: users[1].ID, OrderNumber: "ORD-2024-005", Status: model.OrderOutForDelivery,
			Items: model.OrderItems{
				{Name: "Bluetooth Speaker", Quantity: 1, Price: 89.99},
				{Name: "USB-C Cable", Quantity: 3, Price: 14.99},
			},
			TotalAmount: 134.96, TrackingID: "TRK-4567890123", Carrier: "FedEx", ShippingAddress: la,
		},
		{
			UserID: users[1].ID, OrderNumber: "ORD-2024-006", Status: model.OrderCancelled,
			Items:       model.OrderItems{{Name: "Gaming Mouse", Quantity: 1, Price: 69.99}},
			TotalAmount: 69.99, ShippingAddress: la,
		},
		{
			UserID: users[2].ID, OrderNumber: "ORD-2024-007", Status: model.OrderDelivered,
			Items: model.OrderItems{
				{Name: "Webcam HD", Quantity: 1, Price: 129.99},
				{Name: "Ring Light", Quantity: 1, Price: 49.99},
			},
			TotalAmount: 179.98, TrackingID: "TRK-5678901234", Carrier: "UPS",
			DeliveryDate: date("2024-01-08"), ShippingAddress: chi,
		},
		{
			UserID: users[2].ID, OrderNumber: "ORD-2024-008", Status: model.OrderPending,
			Items:       model.OrderItems{{Name: "Monitor 27 inch", Quantity: 1, Price: 349.99}},
			TotalAmount: 349.99, ShippingAddress: chi,
		},
		{
			UserID: users[2].ID, OrderNumber: "ORD-2024-009", Status: model.OrderShipped,
			Items: model.OrderItems{
				{Name: "Desk Lamp", Quantity: 2, Price: 39.99},
				{Name: "Monitor Arm", Quantity: 1, Price: 89.99},
			},
			TotalAmount: 169.97, TrackingID: "TRK-6789012345", Carrier: "USPS", ShippingAddress: chi,
		},
		{
			UserID: users[3].ID, OrderNumber: "ORD-2024-010", Status: model.OrderDelivered,
			Items: model.OrderItems{
				{Name: "Tablet 10 inch", Quantity: 1, Price: 449.99},
				{Name: "Tablet Case", Quantity: 1, Price: 34.99},
				{Name: "Screen Protector", Quantity: 2, Price: 9.99},
			},
			TotalAmount: 504.96, TrackingID: "TRK-7890123456", Carrier: "FedEx",
			DeliveryDate: date("2024-01-03"), ShippingAddress: hou,
		},
		{
			UserID: users[3].ID, OrderNumber: "ORD-2024-011", Status: model.OrderReturned,
			Items:       model.OrderItems{{Name: "Wireless Earbuds", Quantity: 1, Price: 199.99}},
			TotalAmount: 199.99, TrackingID: "TRK-8901234567", Carrier: "UPS", ShippingAddress: hou,
		},
		{
			UserID: users[4].ID, OrderNumber: "ORD-2024-012", Status: model.OrderProcessing,
			Items: model.OrderItems{
				{Name: "Power Bank", Quantity: 2, Price: 49.99},
				{Name: "Charging Cable", Quantity: 1, Price: 29.99},
			},
			TotalAmount: 129.97,
			ShippingAddress: &model.Address{Street: "654 Maple Dr", City: "Phoenix", State: "AZ", Zip: "85001"},
		},
	}
	for i := range orders {
		orders[i].ID = uuid.NewString()
	}
	return orders
}

func seedPayments(orders []model.Order) []model.Payment {
	methods := []string{
		model.MethodCreditCard, model.MethodPayPal, model.MethodCreditCard, model.MethodDebitCard,
		model.MethodApplePay, model.MethodCreditCard, model.MethodGooglePay, model.MethodBankTransfer,
		model.MethodCreditCard, model.MethodCreditCard, model.MethodPayPal, model.MethodDebitCard,
	}

	payments := make([]model.Payment, 0, len(orders))
	for i, o := range orders {
		orderID := o.ID
		p := model.Payment{
			ID:             uuid.NewString(),
			UserID:         o.UserID,
			OrderID:        &orderID,
			InvoiceNumber:  fmt.Sprintf("INV-2024-%03d", i+1),
			Amount:         o.TotalAmount,
			Status:         model.PaymentCompleted,
			Method:         methods[i%len(methods)],
			BillingAddress: o.ShippingAddress,
		}
		switch o.Status {
		case model.OrderPending:
			p.Status = model.PaymentPending
		case model.OrderCancelled, model.OrderReturned:
			amount := o.TotalAmount
			p.Status = model.PaymentRefunded
			p.RefundStatus = model.RefundCompleted
			p.RefundAmount = &amount
			p.RefundReason = "Order cancelled by customer"
			if o.Status == model.OrderReturned {
				p.RefundReason = "Product returned - defective"
			}
		}
		payments = append(payments, p)
	}
	return payments
}

func seedArticles() []*model.KnowledgeArticle {
	articles := []*model.KnowledgeArticle{
		{
			Category: "Account", Priority: 10,
			Question: "How do I reset my password?",
			Answer:   "To reset your password, go to the login page and click 'Forgot Password'. Enter your email address and we'll send you a password reset link. The link expires in 24 hours. If you don't receive the email, check your spam folder or contact support.",
			Keywords: pq.StringArray{"password", "reset", "forgot", "login", "account", "access"},
		},
		{
			Category: "Account", Priority: 8,
			Question: "How do I update my email address?",
			Answer:   "To update your email address, log into your account and go to Settings > Account Information. Click 'Edit' next to your email, enter your new email address, and verify it through the confirmation email we'll send. Your old email will remain active until you confirm the new one.",
			Keywords: pq.StringArray{"email", "update", "change", "account", "settings"},
		},
		{
			Category: "Orders", Priority: 10,
			Question: "How do I track my order?",
			Answer:   "You can track your order by logging into your account and going to 'My Orders'. Click on the order you want to track and you'll see the current status and tracking information. You can also use the tracking number provided in your shipping confirmation email on the carrier's website.",
			Keywords: pq.StringArray{"track", "tracking", "order", "shipment", "delivery", "status"},
		},
		{
			Category: "Orders", Priority: 9,
			Question: "Can I modify or cancel my order?",
			Answer:   "You can modify or cancel your order within 1 hour of placing it, as long as it hasn't been processed yet. Go to 'My Orders', find your order, and click 'Modify' or 'Cancel'. If the option isn't available, the order has already been processed. Contact support for assistance with processed orders.",
			Keywords: pq.StringArray{"modify", "cancel", "change", "order", "edit"},
		},
		{
			Category: "Orders", Priority: 8,
			Question: "What are your shipping options?",
			Answer:   "We offer Standard Shipping (5-7 business days), Express Shipping (2-3 business days), and Next Day Delivery (order by 2pm). Shipping costs vary based on location and order value. Orders over $50 qualify for free standard shipping. International shipping is available to select countries.",
			Keywords: pq.StringArray{"shipping", "delivery", "options", "time", "cost", "express"},
		},
		{
			Category: "Returns", Priority: 10,
			Question: "What is your return policy?",
			Answer:   "We accept returns within 30 days of delivery for most items in original condition with tags attached. Electronics have a 15-day return window. To initiate a return, go to 'My Orders', select the item, and click 'Return Item'. You'll receive a prepaid shipping label. Refunds are processed within 5-7 business days after we receive the item.",
			Keywords: pq.StringArray{"return", "policy", "refund", "exchange", "send back"},
		},
		{
			Category: "Returns", Priority: 7,
			Question: "How do I exchange an item?",
			Answer:   "To exchange an item, initiate a return through 'My Orders' and select 'Exchange' instead of 'Refund'. Choose the new size/color/variant you want. The exchange will be shipped once we receive your return. If the new item costs more, you'll be charged the difference. If it costs less, we'll refund the difference.",
			Keywords: pq.StringArray{"exchange", "swap", "different", "size", "color", "return"},
		},
		{
			Category: "Billing", Priority: 9,
			Question: "What payment methods do you accept?",
			Answer:   "We accept all major credit cards (Visa, MasterCard, American Express, Discover), debit cards, PayPal, Apple Pay, Google Pay, and bank transfers. For orders over $200, we also offer financing options through Affirm. All payments are processed securely through encrypted connections.",
			Keywords: pq.StringArray{"payment", "methods", "credit card", "paypal", "apple pay", "billing"},
		},
		{
			Category: "Billing", Priority: 10,
			Question: "How do I request a refund?",
			Answer:   "To request a refund, first initiate a return through 'My Orders'. Once we receive and inspect the returned item, refunds are processed within 5-7 business days. Credit card refunds may take an additional 3-5 business days to appear on your statement. PayPal refunds are typically faster.",
			Keywords: pq.StringArray{"refund", "money back", "return", "billing", "payment"},
		},
		{
			Category: "Billing", Priority: 8,
			Question: "Why was my payment declined?",
			Answer:   "Payments can be declined for several reasons: insufficient funds, incorrect card details, expired card, or bank security measures. Please verify your card information and try again. If the issue persists, contact your bank or try a different payment method. Our support team can help if you continue experiencing issues.",
			Keywords: pq.StringArray{"payment", "declined", "failed", "card", "error", "billing"},
		},
		{
			Category: "Products", Priority: 6,
			Question: "How do I find product specifications?",
			Answer:   "Product specifications are available on each product page under the 'Specifications' or 'Details' tab. This includes dimensions, materials, compatibility, and technical specs. If you need additional information not listed, please contact our support team and we'll be happy to help.",
			Keywords: pq.StringArray{"specifications", "specs", "details", "product", "info", "dimensions"},
		},
		{
			Category: "Products", Priority: 7,
			Question: "Do you offer warranties?",
			Answer:   "Yes! All electronics come with a minimum 1-year manufacturer warranty. Extended warranties (2-3 years) are available for purchase at checkout. Warranty covers manufacturing defects and malfunctions under normal use. Accidental damage protection can be added for an additional fee.",
			Keywords: pq.StringArray{"warranty", "guarantee", "protection", "coverage", "repair"},
		},
	}
	for _, a := range articles {
		a.ID = uuid.NewString()
	}
	return articles
}
