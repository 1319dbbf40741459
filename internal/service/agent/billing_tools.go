package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ashwinyue/next-support/internal/model"
	"github.com/ashwinyue/next-support/internal/repository"
)

var paymentStatusMessages = map[string]string{
	model.PaymentPending:           "Payment is pending",
	model.PaymentCompleted:         "Payment completed successfully",
	model.PaymentFailed:            "Payment failed - please try again or use a different method",
	model.PaymentRefunded:          "Full refund has been processed",
	model.PaymentPartiallyRefunded: "Partial refund has been processed",
}

func billingTools(deps Dependencies) []*Tool {
	return []*Tool{
		{
			Name:        "getPaymentHistory",
			Description: "Get the customer's payment and transaction history",
			Params: []Param{
				{Name: "limit", Kind: KindNumber, Optional: true,
					Description: "Number of payments to retrieve (optional, default: 10, max: 20)"},
				{Name: "status", Kind: KindString, Optional: true,
					Description: "Filter by status (optional): pending, completed, failed, refunded"},
			},
			Execute: func(ctx context.Context, params Params, userID string) (any, error) {
				limit := min(params.Int("limit", 10), 20)
				payments, err := deps.Payments.ListByUser(ctx, userID, params.String("status"), limit)
				if err != nil {
					return nil, err
				}

				var completed, pending, refunded int
				list := make([]map[string]any, len(payments))
				for i, p := range payments {
					switch p.Status {
					case model.PaymentCompleted:
						completed++
					case model.PaymentPending:
						pending++
					case model.PaymentRefunded, model.PaymentPartiallyRefunded:
						refunded++
					}
					entry := map[string]any{
						"invoiceNumber": p.InvoiceNumber,
						"amount":        money(p.Amount),
						"status":        p.Status,
						"method":        p.Method,
						"refundStatus":  p.RefundStatus,
						"createdAt":     p.CreatedAt,
					}
					if p.RefundAmount != nil {
						entry["refundAmount"] = money(*p.RefundAmount)
					}
					list[i] = entry
				}

				return map[string]any{
					"summary": map[string]any{
						"totalPayments": len(payments),
						"completed":     completed,
						"pending":       pending,
						"refunded":      refunded,
					},
					"payments": list,
				}, nil
			},
		},
		{
			Name:        "getInvoice",
			Description: "Get detailed information for a specific invoice",
			Params: []Param{
				{Name: "invoiceNumber", Kind: KindString, Description: "The invoice number (e.g., INV-1234)"},
			},
			Execute: func(ctx context.Context, params Params, userID string) (any, error) {
				number := params.String("invoiceNumber")
				payment, err := deps.Payments.FindByInvoice(ctx, userID, number)
				if errors.Is(err, repository.ErrNotFound) {
					return map[string]any{
						"found": false,
						"error": fmt.Sprintf("Invoice %s not found or you don't have access to it", number),
					}, nil
				}
				if err != nil {
					return nil, err
				}

				var order map[string]any
				if payment.OrderID != nil {
					o, err := deps.Orders.GetByID(ctx, *payment.OrderID)
					switch {
					case err == nil:
						order = map[string]any{
							"orderNumber": o.OrderNumber,
							"items":       o.Items,
							"status":      o.Status,
						}
					case !errors.Is(err, repository.ErrNotFound):
						return nil, err
					}
				}

				var refund map[string]any
				if payment.RefundStatus != "" {
					refund = map[string]any{
						"status": payment.RefundStatus,
						"reason": payment.RefundReason,
					}
					if payment.RefundAmount != nil {
						refund["amount"] = money(*payment.RefundAmount)
					}
				}

				return map[string]any{
					"found":          true,
					"invoiceNumber":  payment.InvoiceNumber,
					"amount":         money(payment.Amount),
					"status":         payment.Status,
					"statusMessage":  statusMessage(paymentStatusMessages, payment.Status),
					"method":         payment.Method,
					"billingAddress": payment.BillingAddress,
					"createdAt":      payment.CreatedAt,
					"order":          order,
					"refund":         refund,
					"canRefund":      payment.Status == model.PaymentCompleted && payment.RefundStatus == "",
				}, nil
			},
		},
		{
			Name:        "requestRefund",
			Description: "Process a refund request for a payment",
			Params: []Param{
				{Name: "invoiceNumber", Kind: KindString, Description: "The invoice number for the refund"},
				{Name: "reason", Kind: KindString, Description: "Reason for the refund request"},
				{Name: "amount", Kind: KindNumber, Optional: true,
					Description: "Amount to refund (optional - defaults to full amount)"},
			},
			Execute: func(ctx context.Context, params Params, userID string) (any, error) {
				return requestRefund(ctx, deps, params, userID)
			},
		},
		{
			Name:        "updatePaymentMethod",
			Description: "Provide information about updating payment methods (cannot actually update - directs to secure portal)",
			Params: []Param{
				{Name: "currentMethod", Kind: KindString, Description: "The current payment method"},
				{Name: "newMethod", Kind: KindString, Description: "The desired new payment method"},
			},
			Execute: func(ctx context.Context, params Params, userID string) (any, error) {
				return map[string]any{
					"canUpdateViaChat": false,
					"message":          "For your security, payment method changes must be made through our secure account portal.",
					"instructions": []string{
						"1. Log in to your account at account.example.com",
						"2. Navigate to 'Payment Methods' in your account settings",
						"3. Click 'Add New Payment Method' or 'Update' on an existing method",
						"4. Enter your new payment details securely",
						"5. Save your changes",
					},
					"supportedMethods": []string{
						"Credit Card", "Debit Card", "PayPal", "Bank Transfer", "Apple Pay", "Google Pay",
					},
					"note": "If you're having trouble accessing your account or updating payment methods, " +
						"I can help troubleshoot or escalate to our technical team.",
				}, nil
			},
		},
	}
}

// requestRefund 退款只允许从 completed 发起，金额不能超过原支付
func requestRefund(ctx context.Context, deps Dependencies, params Params, userID string) (any, error) {
	number := params.String("invoiceNumber")
	payment, err := deps.Payments.FindByInvoice(ctx, userID, number)
	if errors.Is(err, repository.ErrNotFound) {
		return map[string]any{"success": false, "error": fmt.Sprintf("Invoice %s not found", number)}, nil
	}
	if err != nil {
		return nil, err
	}

	if payment.Status != model.PaymentCompleted {
		return map[string]any{
			"success":       false,
			"error":         "Cannot refund a payment with status: " + payment.Status,
			"currentStatus": payment.Status,
		}, nil
	}
	if payment.RefundStatus == model.RefundCompleted {
		return map[string]any{"success": false, "error": "This payment has already been fully refunded"}, nil
	}

	amount, ok := params.Number("amount")
	if !ok || amount <= 0 {
		amount = payment.Amount
	}
	if amount > payment.Amount {
		return map[string]any{
			"success": false,
			"error": fmt.Sprintf("Refund amount ($%s) exceeds payment amount ($%s)",
				money(amount), money(payment.Amount)),
		}, nil
	}

	partial := amount < payment.Amount
	status := model.PaymentRefunded
	if partial {
		status = model.PaymentPartiallyRefunded
	}
	err = deps.Payments.ApplyRefund(ctx, payment.ID, repository.RefundUpdate{
		Status:       status,
		RefundStatus: model.RefundProcessing,
		RefundAmount: amount,
		RefundReason: params.String("reason"),
	})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"success":             true,
		"invoiceNumber":       payment.InvoiceNumber,
		"refundAmount":        money(amount),
		"originalAmount":      money(payment.Amount),
		"isPartialRefund":     partial,
		"refundStatus":        model.RefundProcessing,
		"estimatedCompletion": "5-10 business days",
		"refundMethod":        fmt.Sprintf("Original payment method (%s)", payment.Method),
		"message": fmt.Sprintf("Your refund of $%s has been initiated. It will be credited to your %s within 5-10 business days.",
			money(amount), strings.ReplaceAll(payment.Method, "_", " ")),
	}, nil
}
