package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/next-support/internal/service/agent"
	"github.com/ashwinyue/next-support/internal/service/history"
	"github.com/ashwinyue/next-support/internal/testutil"
)

func TestRoute(t *testing.T) {
	tests := []struct {
		name     string
		reply    testutil.Reply
		expected Decision
	}{
		{
			name:  "order with entities",
			reply: testutil.Reply{Message: testutil.AssistantText(`{"agent":"order","confidence":0.95,"reasoning":"Order status question","entities":["ORD-1234"]}`)},
			expected: Decision{
				Agent: agent.TypeOrder, Confidence: 0.95, Reasoning: "Order status question", Entities: []string{"ORD-1234"},
			},
		},
		{
			name:  "support alias normalized",
			reply: testutil.Reply{Message: testutil.AssistantText(`{"agent":"support","confidence":0.8,"reasoning":"FAQ","entities":[]}`)},
			expected: Decision{
				Agent: agent.TypeGeneralSupport, Confidence: 0.8, Reasoning: "FAQ", Entities: []string{},
			},
		},
		{
			name:  "fenced json with prose",
			reply: testutil.Reply{Message: testutil.AssistantText("Here you go:\n```json\n{\"agent\":\"billing\",\"confidence\":0.9,\"reasoning\":\"refund\",\"entities\":[\"INV-7\"]}\n```")},
			expected: Decision{
				Agent: agent.TypeBilling, Confidence: 0.9, Reasoning: "refund", Entities: []string{"INV-7"},
			},
		},
		{
			name:  "threshold is inclusive",
			reply: testutil.Reply{Message: testutil.AssistantText(`{"agent":"billing","confidence":0.6,"reasoning":"maybe billing","entities":[]}`)},
			expected: Decision{
				Agent: agent.TypeBilling, Confidence: 0.6, Reasoning: "maybe billing", Entities: []string{},
			},
		},
		{
			name:  "low confidence overridden",
			reply: testutil.Reply{Message: testutil.AssistantText(`{"agent":"billing","confidence":0.59,"reasoning":"unclear","entities":["INV-1"]}`)},
			expected: Decision{
				Agent:      agent.TypeGeneralSupport,
				Confidence: 0.59,
				Reasoning:  "Low confidence (0.59) for billing agent - defaulting to general support agent. Original reasoning: unclear",
				Entities:   []string{"INV-1"},
			},
		},
		{
			name:  "confidence clamped",
			reply: testutil.Reply{Message: testutil.AssistantText(`{"agent":"order","confidence":1.7,"reasoning":"sure","entities":null}`)},
			expected: Decision{
				Agent: agent.TypeOrder, Confidence: 1, Reasoning: "sure", Entities: []string{},
			},
		},
		{name: "service error", reply: testutil.Reply{Err: errors.New("503")}, expected: Fallback()},
		{name: "not json", reply: testutil.Reply{Message: testutil.AssistantText("I think order")}, expected: Fallback()},
		{name: "empty", reply: testutil.Reply{Message: testutil.AssistantText("")}, expected: Fallback()},
		{name: "unknown agent", reply: testutil.Reply{Message: testutil.AssistantText(`{"agent":"shipping","confidence":0.9}`)}, expected: Fallback()},
		{name: "missing confidence", reply: testutil.Reply{Message: testutil.AssistantText(`{"agent":"order","reasoning":"x"}`)}, expected: Fallback()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := testutil.NewFakeChatModel().OnGenerate(tt.reply)
			got := NewEngine(llm, nil).Route(context.Background(), "Where is my order ORD-1234?", nil)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRoute_NoModel(t *testing.T) {
	got := NewEngine(nil, nil).Route(context.Background(), "hi", nil)
	assert.Equal(t, Fallback(), got)
}

func TestRoute_PromptAndOptions(t *testing.T) {
	llm := testutil.NewFakeChatModel().OnGenerate(testutil.Reply{
		Message: testutil.AssistantText(`{"agent":"order","confidence":0.9,"reasoning":"r","entities":[]}`),
	})
	recent := []history.Message{
		{Role: "user", Content: "first turn"},
		{Role: "assistant", Content: "second turn"},
		{Role: "user", Content: "third turn"},
		{Role: "assistant", Content: "fourth turn"},
	}

	NewEngine(llm, nil).Route(context.Background(), "cancel ORD-9", recent)

	calls := llm.Calls()
	require.Len(t, calls, 1)
	prompt := calls[0].Input[0].Content
	assert.Contains(t, prompt, `Customer message: "cancel ORD-9"`)
	assert.NotContains(t, prompt, "first turn")
	assert.Contains(t, prompt, "user: third turn")
	assert.Contains(t, prompt, "assistant: fourth turn")

	opts := calls[0].Options
	require.NotNil(t, opts.Temperature)
	require.NotNil(t, opts.MaxTokens)
	assert.InDelta(t, 0.3, float64(*opts.Temperature), 1e-6)
	assert.Equal(t, 512, *opts.MaxTokens)
}

func TestRoute_NoContextSection(t *testing.T) {
	llm := testutil.NewFakeChatModel().OnGenerate(testutil.Reply{Err: errors.New("x")})
	NewEngine(llm, nil).Route(context.Background(), "hello", nil)
	assert.NotContains(t, llm.Calls()[0].Input[0].Content, "Recent conversation context")
}
