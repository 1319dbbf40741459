// Package entity 从对话文本中抽取订单号、发票号、运单号和金额
package entity

import (
	"regexp"
	"strings"

	"github.com/ashwinyue/next-support/internal/model"
)

var (
	orderPattern    = regexp.MustCompile(`ORD-\w+`)
	invoicePattern  = regexp.MustCompile(`INV-\w+`)
	trackingPattern = regexp.MustCompile(`TRK-\w+|1Z[A-Z0-9]{16}|\d{12,22}`)
	amountPattern   = regexp.MustCompile(`\$[\d,]+\.?\d*`)
)

// Entities 抽取结果，各列表去重且保持首次出现顺序
type Entities struct {
	OrderNumbers   []string `json:"orderNumbers"`
	InvoiceNumbers []string `json:"invoiceNumbers"`
	TrackingIDs    []string `json:"trackingIds"`
	Amounts        []string `json:"amounts"`
}

// Extract 合并所有消息正文后抽取
func Extract(messages []*model.Message) Entities {
	parts := make([]string, len(messages))
	for i, m := range messages {
		parts[i] = m.Content
	}
	return ExtractText(strings.Join(parts, " "))
}

// ExtractText 从单段文本抽取
func ExtractText(text string) Entities {
	return Entities{
		OrderNumbers:   findUnique(orderPattern, text),
		InvoiceNumbers: findUnique(invoicePattern, text),
		TrackingIDs:    findUnique(trackingPattern, text),
		Amounts:        findUnique(amountPattern, text),
	}
}

// Identifiers 订单号、发票号、运单号合并列表，用于会话元数据
func (e Entities) Identifiers() []string {
	out := make([]string, 0, len(e.OrderNumbers)+len(e.InvoiceNumbers)+len(e.TrackingIDs))
	out = append(out, e.OrderNumbers...)
	out = append(out, e.InvoiceNumbers...)
	out = append(out, e.TrackingIDs...)
	return out
}

func findUnique(re *regexp.Regexp, text string) []string {
	matches := re.FindAllString(text, -1)
	out := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
