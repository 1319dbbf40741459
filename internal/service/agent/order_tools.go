package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashwinyue/next-support/internal/model"
	"github.com/ashwinyue/next-support/internal/repository"
)

var orderStatusMessages = map[string]string{
	model.OrderPending:        "Order received and awaiting processing",
	model.OrderProcessing:     "Order is being prepared for shipment",
	model.OrderShipped:        "Order has been shipped and is on its way",
	model.OrderOutForDelivery: "Order is out for delivery today",
	model.OrderDelivered:      "Order has been delivered",
	model.OrderCancelled:      "Order has been cancelled",
	model.OrderReturned:       "Order has been returned",
}

var cancelRefusals = map[string]string{
	model.OrderShipped:        "This order has already shipped. Please contact support for return instructions.",
	model.OrderOutForDelivery: "This order is out for delivery. Please refuse delivery or request a return after receiving.",
	model.OrderDelivered:      "This order has been delivered. Please request a return instead.",
	model.OrderCancelled:      "This order has already been cancelled.",
	model.OrderReturned:       "This order has already been returned.",
}

// cancellable 只有未发货的订单可以取消
func cancellable(status string) bool {
	return status == model.OrderPending || status == model.OrderProcessing
}

func orderTools(deps Dependencies) []*Tool {
	return []*Tool{
		{
			Name:        "getOrderStatus",
			Description: "Get detailed status and information for a specific order",
			Params: []Param{
				{Name: "orderNumber", Kind: KindString, Description: "The order number (e.g., ORD-1234)"},
			},
			Execute: func(ctx context.Context, params Params, userID string) (any, error) {
				number := params.String("orderNumber")
				order, err := deps.Orders.FindByNumber(ctx, userID, number)
				if errors.Is(err, repository.ErrNotFound) {
					return map[string]any{
						"found": false,
						"error": fmt.Sprintf("Order %s not found or you don't have access to it", number),
					}, nil
				}
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"found":           true,
					"orderNumber":     order.OrderNumber,
					"status":          order.Status,
					"statusMessage":   statusMessage(orderStatusMessages, order.Status),
					"items":           order.Items,
					"totalAmount":     money(order.TotalAmount),
					"trackingId":      order.TrackingID,
					"carrier":         order.Carrier,
					"deliveryDate":    order.DeliveryDate,
					"shippingAddress": order.ShippingAddress,
					"createdAt":       order.CreatedAt,
					"canCancel":       cancellable(order.Status),
				}, nil
			},
		},
		{
			Name:        "getOrderHistory",
			Description: "Get the customer's recent order history",
			Params: []Param{
				{Name: "limit", Kind: KindNumber, Optional: true,
					Description: "Number of orders to retrieve (optional, default: 10, max: 20)"},
				{Name: "status", Kind: KindString, Optional: true,
					Description: "Filter by status (optional): pending, processing, shipped, delivered, cancelled"},
			},
			Execute: func(ctx context.Context, params Params, userID string) (any, error) {
				limit := min(params.Int("limit", 10), 20)
				orders, err := deps.Orders.ListByUser(ctx, userID, params.String("status"), limit)
				if err != nil {
					return nil, err
				}
				out := make([]map[string]any, len(orders))
				for i, o := range orders {
					out[i] = map[string]any{
						"orderNumber":  o.OrderNumber,
						"status":       o.Status,
						"totalAmount":  money(o.TotalAmount),
						"itemCount":    len(o.Items),
						"createdAt":    o.CreatedAt,
						"deliveryDate": o.DeliveryDate,
					}
				}
				return map[string]any{"totalOrders": len(orders), "orders": out}, nil
			},
		},
		{
			Name:        "trackShipment",
			Description: "Get real-time tracking information for a shipment",
			Params: []Param{
				{Name: "orderNumber", Kind: KindString, Description: "The order number to track"},
			},
			Execute: func(ctx context.Context, params Params, userID string) (any, error) {
				number := params.String("orderNumber")
				order, err := deps.Orders.FindByNumber(ctx, userID, number)
				if errors.Is(err, repository.ErrNotFound) {
					return map[string]any{"error": fmt.Sprintf("Order %s not found", number)}, nil
				}
				if err != nil {
					return nil, err
				}

				if order.TrackingID == "" {
					msg := "No tracking information available for this order"
					if cancellable(order.Status) {
						msg = "Tracking information will be available once the order ships"
					}
					return map[string]any{
						"orderNumber": order.OrderNumber,
						"status":      order.Status,
						"tracking":    nil,
						"message":     msg,
					}, nil
				}

				carrier := order.Carrier
				if carrier == "" {
					carrier = "Standard Shipping"
				}
				return map[string]any{
					"orderNumber":       order.OrderNumber,
					"trackingId":        order.TrackingID,
					"carrier":           carrier,
					"status":            order.Status,
					"estimatedDelivery": order.DeliveryDate,
					"events":            trackingEvents(order),
				}, nil
			},
		},
		{
			Name:        "cancelOrder",
			Description: "Process an order cancellation request",
			Params: []Param{
				{Name: "orderNumber", Kind: KindString, Description: "The order number to cancel"},
				{Name: "reason", Kind: KindString, Description: "Reason for cancellation"},
			},
			Execute: func(ctx context.Context, params Params, userID string) (any, error) {
				number := params.String("orderNumber")
				order, err := deps.Orders.FindByNumber(ctx, userID, number)
				if errors.Is(err, repository.ErrNotFound) {
					return map[string]any{
						"success": false,
						"error":   fmt.Sprintf("Order %s not found", number),
					}, nil
				}
				if err != nil {
					return nil, err
				}

				if !cancellable(order.Status) {
					msg, ok := cancelRefusals[order.Status]
					if !ok {
						msg = "This order cannot be cancelled."
					}
					return map[string]any{
						"success":       false,
						"canCancel":     false,
						"currentStatus": order.Status,
						"message":       msg,
					}, nil
				}

				if err := deps.Orders.UpdateStatus(ctx, order.ID, model.OrderCancelled); err != nil {
					return nil, err
				}
				return map[string]any{
					"success":        true,
					"orderNumber":    order.OrderNumber,
					"previousStatus": order.Status,
					"newStatus":      model.OrderCancelled,
					"reason":         params.String("reason"),
					"refundMessage":  "A full refund will be processed within 5-7 business days.",
				}, nil
			},
		},
	}
}

// TrackingEvent 物流节点
type TrackingEvent struct {
	Date     time.Time `json:"date"`
	Location string    `json:"location"`
	Status   string    `json:"status"`
}

// trackingEvents 按订单状态推算物流节点，最新的在前
func trackingEvents(o *model.Order) []TrackingEvent {
	created := o.CreatedAt.UTC()
	reached := func(statuses ...string) bool {
		for _, s := range statuses {
			if o.Status == s {
				return true
			}
		}
		return false
	}

	events := []TrackingEvent{{Date: created, Location: "Warehouse", Status: "Order received"}}
	if reached(model.OrderProcessing, model.OrderShipped, model.OrderOutForDelivery, model.OrderDelivered) {
		events = append(events, TrackingEvent{Date: created.Add(2 * time.Hour), Location: "Warehouse", Status: "Order processed"})
	}
	if reached(model.OrderShipped, model.OrderOutForDelivery, model.OrderDelivered) {
		events = append(events, TrackingEvent{Date: created.AddDate(0, 0, 1), Location: "Distribution Center", Status: "Shipped - In transit"})
	}
	if reached(model.OrderOutForDelivery, model.OrderDelivered) {
		events = append(events, TrackingEvent{Date: created.AddDate(0, 0, 3), Location: "Local Facility", Status: "Out for delivery"})
	}
	if o.Status == model.OrderDelivered {
		delivered := created.AddDate(0, 0, 3)
		if o.DeliveryDate != nil {
			delivered = o.DeliveryDate.UTC()
		}
		location := "Destination"
		if o.ShippingAddress != nil && o.ShippingAddress.City != "" {
			location = o.ShippingAddress.City
		}
		events = append(events, TrackingEvent{Date: delivered, Location: location, Status: "Delivered"})
	}

	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events
}

func statusMessage(messages map[string]string, status string) string {
	if msg, ok := messages[status]; ok {
		return msg
	}
	return status
}
