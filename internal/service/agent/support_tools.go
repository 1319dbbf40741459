package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ashwinyue/next-support/internal/repository"
)

func supportTools(deps Dependencies) []*Tool {
	return []*Tool{
		{
			Name:        "searchKnowledgeBase",
			Description: "Search the FAQ and knowledge base for answers to common questions",
			Params: []Param{
				{Name: "query", Kind: KindString, Description: "The search query to find relevant articles"},
				{Name: "category", Kind: KindString, Optional: true,
					Description: "Optional category filter (Account, Orders, Returns, Billing, Products)",
					Enum:        []string{"Account", "Orders", "Returns", "Billing", "Products"}},
			},
			Execute: func(ctx context.Context, params Params, userID string) (any, error) {
				articles, err := deps.Knowledge.Search(ctx, params.String("query"), params.String("category"), 5)
				if err != nil {
					return nil, err
				}
				out := make([]map[string]any, len(articles))
				for i, a := range articles {
					out[i] = map[string]any{
						"category": a.Category,
						"question": a.Question,
						"answer":   a.Answer,
					}
				}
				return map[string]any{"found": len(articles), "articles": out}, nil
			},
		},
		{
			Name:        "getUserInfo",
			Description: "Retrieve user account information",
			Params: []Param{
				{Name: "includeOrders", Kind: KindBoolean, Optional: true,
					Description: "Whether to include a recent order summary (optional)"},
			},
			Execute: func(ctx context.Context, params Params, userID string) (any, error) {
				user, err := deps.Users.GetByID(ctx, userID)
				if errors.Is(err, repository.ErrNotFound) {
					return map[string]any{"error": "User not found"}, nil
				}
				if err != nil {
					return nil, err
				}

				result := map[string]any{
					"id":          user.ID,
					"email":       user.Email,
					"name":        user.Name,
					"memberSince": user.CreatedAt,
				}
				if !params.Bool("includeOrders") {
					return result, nil
				}

				orders, err := deps.Orders.ListByUser(ctx, userID, "", 5)
				if err != nil {
					return nil, err
				}
				total, err := deps.Orders.CountByUser(ctx, userID)
				if err != nil {
					return nil, err
				}
				recent := make([]map[string]any, len(orders))
				for i, o := range orders {
					recent[i] = map[string]any{
						"orderNumber": o.OrderNumber,
						"status":      o.Status,
						"totalAmount": money(o.TotalAmount),
						"createdAt":   o.CreatedAt,
					}
				}
				result["orders"] = map[string]any{"recentOrders": recent, "totalOrders": total}
				return result, nil
			},
		},
		{
			Name:        "escalateToHuman",
			Description: "Flag the conversation for human agent review when the issue cannot be resolved automatically",
			Params: []Param{
				{Name: "reason", Kind: KindString, Description: "The reason for escalation"},
				{Name: "priority", Kind: KindString, Description: "Priority level: low, medium, high",
					Enum: []string{"low", "medium", "high"}},
			},
			Execute: func(ctx context.Context, params Params, userID string) (any, error) {
				priority := params.String("priority")
				ticketID := "ESC-" + strconv.FormatInt(deps.Now().UnixMilli(), 10)

				if err := markEscalated(ctx, deps, userID, ticketID); err != nil {
					return nil, err
				}

				return map[string]any{
					"escalated": true,
					"ticketId":  ticketID,
					"message": fmt.Sprintf("Your request has been escalated to a human agent with %s priority. "+
						"A support representative will review your case shortly.", priority),
					"estimatedWaitTime": waitTime(priority),
					"reason":            params.String("reason"),
				}, nil
			},
		},
	}
}

// markEscalated 在会话元数据上记录工单号
func markEscalated(ctx context.Context, deps Dependencies, userID, ticketID string) error {
	id := ConversationID(ctx)
	if id == "" || deps.Conversations == nil {
		return nil
	}
	conv, err := deps.Conversations.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	if conv.UserID != userID {
		return nil
	}
	meta := conv.Metadata
	meta.Escalated = true
	meta.TicketID = ticketID
	return deps.Conversations.UpdateMetadata(ctx, id, meta)
}

func waitTime(priority string) string {
	switch priority {
	case "high":
		return "15-30 minutes"
	case "medium":
		return "1-2 hours"
	default:
		return "4-8 hours"
	}
}

// money 金额去掉多余的小数位
func money(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
