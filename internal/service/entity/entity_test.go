package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ashwinyue/next-support/internal/model"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected Entities
	}{
		{
			name: "order number",
			text: "Where is my order ORD-1234?",
			expected: Entities{
				OrderNumbers:   []string{"ORD-1234"},
				InvoiceNumbers: []string{},
				TrackingIDs:    []string{},
				Amounts:        []string{},
			},
		},
		{
			name: "duplicates collapse",
			text: "ORD-1234 ORD-1234 ORD-1234",
			expected: Entities{
				OrderNumbers:   []string{"ORD-1234"},
				InvoiceNumbers: []string{},
				TrackingIDs:    []string{},
				Amounts:        []string{},
			},
		},
		{
			name: "every category",
			text: "Invoice INV-2024 for $1,299.99 shipped as TRK-998877 and 1Z999AA10123456784, ref 123456789012",
			expected: Entities{
				OrderNumbers:   []string{},
				InvoiceNumbers: []string{"INV-2024"},
				TrackingIDs:    []string{"TRK-998877", "1Z999AA10123456784", "123456789012"},
				Amounts:        []string{"$1,299.99"},
			},
		},
		{
			name: "short digit run is not tracking",
			text: "call me at 5551234",
			expected: Entities{
				OrderNumbers:   []string{},
				InvoiceNumbers: []string{},
				TrackingIDs:    []string{},
				Amounts:        []string{},
			},
		},
		{
			name: "case is not normalized",
			text: "ord-1 ORD-2",
			expected: Entities{
				OrderNumbers:   []string{"ORD-2"},
				InvoiceNumbers: []string{},
				TrackingIDs:    []string{},
				Amounts:        []string{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractText(tt.text))
		})
	}
}

func TestExtract_JoinsMessages(t *testing.T) {
	messages := []*model.Message{
		{Role: model.RoleUser, Content: "My order is ORD-1"},
		{Role: model.RoleAssistant, Content: "I found ORD-1, invoice INV-9 for $20"},
		{Role: model.RoleUser, Content: "and ORD-2"},
	}

	got := Extract(messages)

	assert.Equal(t, []string{"ORD-1", "ORD-2"}, got.OrderNumbers)
	assert.Equal(t, []string{"INV-9"}, got.InvoiceNumbers)
	assert.Equal(t, []string{"$20"}, got.Amounts)
	assert.Equal(t, []string{"ORD-1", "ORD-2", "INV-9"}, got.Identifiers())
}

func TestExtract_Empty(t *testing.T) {
	got := Extract(nil)
	assert.Empty(t, got.Identifiers())
	assert.Empty(t, got.Amounts)
	assert.NotNil(t, got.OrderNumbers)
	assert.NotNil(t, got.Amounts)
}
