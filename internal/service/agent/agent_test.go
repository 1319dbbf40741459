package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/next-support/internal/model"
	"github.com/ashwinyue/next-support/internal/service/knowledge"
	"github.com/ashwinyue/next-support/internal/testutil"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRegistry(store *testutil.MemoryStore) *Registry {
	return NewRegistry(Dependencies{
		Users:         store.UserRepo(),
		Orders:        store.OrderRepo(),
		Payments:      store.PaymentRepo(),
		Conversations: store.ConversationRepo(),
		Knowledge:     knowledge.NewService(store.KnowledgeRepo(), nil, "", nil),
		Now:           func() time.Time { return fixedNow },
	})
}

func mustAgent(t *testing.T, r *Registry, typ Type) *Agent {
	t.Helper()
	a, ok := r.Get(typ)
	require.True(t, ok, "agent %s not registered", typ)
	return a
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
		ok   bool
	}{
		{"support", TypeGeneralSupport, true},
		{"general", TypeGeneralSupport, true},
		{"general-support", TypeGeneralSupport, true},
		{" Order ", TypeOrder, true},
		{"BILLING", TypeBilling, true},
		{"shipping", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseType(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry(t *testing.T) {
	r := newTestRegistry(testutil.NewMemoryStore())

	want := map[Type][]string{
		TypeGeneralSupport: {"searchKnowledgeBase", "getUserInfo", "escalateToHuman"},
		TypeOrder:          {"getOrderStatus", "getOrderHistory", "trackShipment", "cancelOrder"},
		TypeBilling:        {"getPaymentHistory", "getInvoice", "requestRefund", "updatePaymentMethod"},
	}

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, TypeGeneralSupport, all[0].Type)
	assert.Equal(t, TypeOrder, all[1].Type)
	assert.Equal(t, TypeBilling, all[2].Type)

	for typ, names := range want {
		a := mustAgent(t, r, typ)
		assert.NotEmpty(t, a.SystemPrompt)
		assert.NotEmpty(t, a.Name)

		var got []string
		for _, tool := range a.Tools() {
			got = append(got, tool.Name)
		}
		assert.Equal(t, names, got)

		caps := a.Capabilities()
		assert.Equal(t, typ, caps.Type)
		assert.Len(t, caps.Tools, len(names))
	}

	_, ok := r.Get("shipping")
	assert.False(t, ok)
}

func TestToolExports(t *testing.T) {
	r := newTestRegistry(testutil.NewMemoryStore())
	billing := mustAgent(t, r, TypeBilling)

	refund, ok := billing.Tool("requestRefund")
	require.True(t, ok)

	t.Run("object schema", func(t *testing.T) {
		s := refund.ObjectSchema()
		assert.Equal(t, "object", s.Type)
		assert.Equal(t, []string{"invoiceNumber", "reason"}, s.Required)
		assert.Equal(t, "number", s.Properties["amount"].Type)
	})

	t.Run("function format", func(t *testing.T) {
		raw, err := json.Marshal(refund.FunctionTool())
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Equal(t, "function", decoded["type"])
		fn := decoded["function"].(map[string]any)
		assert.Equal(t, "requestRefund", fn["name"])
		assert.Contains(t, fn, "parameters")
	})

	t.Run("input schema format", func(t *testing.T) {
		raw, err := json.Marshal(refund.InputSchemaTool())
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"input_schema"`)
	})

	t.Run("no required params still emits empty list", func(t *testing.T) {
		support := mustAgent(t, r, TypeGeneralSupport)
		info, ok := support.Tool("getUserInfo")
		require.True(t, ok)
		raw, err := json.Marshal(info.ObjectSchema())
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"required":[]`)
	})

	t.Run("eino tool infos", func(t *testing.T) {
		infos := billing.ToolInfos()
		require.Len(t, infos, 4)
		assert.Equal(t, "getPaymentHistory", infos[0].Name)

		js, err := infos[2].ParamsOneOf.ToJSONSchema()
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"invoiceNumber", "reason"}, js.Required)
	})

	t.Run("enum carried over", func(t *testing.T) {
		support := mustAgent(t, r, TypeGeneralSupport)
		escalate, ok := support.Tool("escalateToHuman")
		require.True(t, ok)
		assert.Equal(t, []string{"low", "medium", "high"}, escalate.ObjectSchema().Properties["priority"].Enum)
	})
}

func TestParseArguments(t *testing.T) {
	tool := &Tool{
		Name: "lookup_echo",
		Params: []Param{
			{Name: "id", Kind: KindString, Description: "identifier"},
			{Name: "limit", Kind: KindNumber, Description: "how many (optional)"},
			{Name: "flag", Kind: KindBoolean, Optional: true},
		},
	}

	tests := []struct {
		name    string
		raw     string
		want    Params
		wantErr bool
	}{
		{name: "valid", raw: `{"id":"A","limit":3,"flag":true}`, want: Params{"id": "A", "limit": 3.0, "flag": true}},
		{name: "stringly typed values", raw: `{"id":42,"limit":"7","flag":"true"}`, want: Params{"id": "42", "limit": 7.0, "flag": true}},
		{name: "fenced and trailing comma", raw: "```json\n{\"id\":\"A\",}\n```", want: Params{"id": "A"}},
		{name: "surrounding prose", raw: `sure: {"id":"A"} done`, want: Params{"id": "A"}},
		{name: "missing required", raw: `{"limit":3}`, wantErr: true},
		{name: "null required", raw: `{"id":null}`, wantErr: true},
		{name: "empty input", raw: "", wantErr: true},
		{name: "wrong type", raw: `{"id":"A","flag":"maybe"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArguments(tool, tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArguments)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParamsInt(t *testing.T) {
	p := Params{"a": 4.9, "b": -1.0, "c": 0.0}
	assert.Equal(t, 4, p.Int("a", 10))
	assert.Equal(t, 10, p.Int("b", 10))
	assert.Equal(t, 10, p.Int("c", 10))
	assert.Equal(t, 10, p.Int("missing", 10))
}

func TestExecuteToolErrors(t *testing.T) {
	store := testutil.NewMemoryStore()
	r := newTestRegistry(store)
	orders := mustAgent(t, r, TypeOrder)
	ctx := context.Background()

	t.Run("unknown tool", func(t *testing.T) {
		_, _, err := orders.ExecuteTool(ctx, "requestRefund", `{}`, "u1")
		assert.ErrorIs(t, err, ErrUnknownTool)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		_, _, err := orders.ExecuteTool(ctx, "getOrderStatus", `{}`, "u1")
		assert.ErrorIs(t, err, ErrInvalidArguments)
	})

	t.Run("repository failure is wrapped", func(t *testing.T) {
		boom := errors.New("connection reset")
		store.Fail("orders.find", boom)
		t.Cleanup(func() { store.Fail("orders.find", nil) })

		_, _, err := orders.ExecuteTool(ctx, "getOrderStatus", `{"orderNumber":"ORD-1"}`, "u1")
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "tool getOrderStatus")
	})
}

func TestConversationIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ConversationID(ctx))
	assert.Equal(t, "c1", ConversationID(WithConversationID(ctx, "c1")))
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "129.99", money(129.99))
	assert.Equal(t, "50", money(50))
	assert.Equal(t, "0.5", money(0.5))
}

func seedOrder(store *testutil.MemoryStore, userID, number, status string) *model.Order {
	return store.AddOrder(&model.Order{
		UserID:      userID,
		OrderNumber: number,
		Status:      status,
		Items:       model.OrderItems{{Name: "Headphones", Quantity: 1, Price: 129.99}},
		TotalAmount: 129.99,
	})
}
