package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/next-support/internal/errs"
	"github.com/ashwinyue/next-support/internal/model"
	"github.com/ashwinyue/next-support/internal/service/agent"
	"github.com/ashwinyue/next-support/internal/service/history"
	"github.com/ashwinyue/next-support/internal/service/knowledge"
	"github.com/ashwinyue/next-support/internal/service/routing"
	"github.com/ashwinyue/next-support/internal/service/session"
	"github.com/ashwinyue/next-support/internal/service/stream"
	"github.com/ashwinyue/next-support/internal/testutil"
)

type fixture struct {
	store *testutil.MemoryStore
	llm   *testutil.FakeChatModel
	guard *session.TurnGuard
	svc   *Service
}

func newFixture() *fixture {
	store := testutil.NewMemoryStore()
	llm := testutil.NewFakeChatModel()
	repos := store.Repositories()
	registry := agent.NewRegistry(agent.Dependencies{
		Users:         repos.Users,
		Orders:        repos.Orders,
		Payments:      repos.Payments,
		Conversations: repos.Conversations,
		Knowledge:     knowledge.NewService(repos.Knowledge, nil, "", nil),
	})
	executor := stream.NewExecutor(registry, stream.NewOrchestrator(llm, repos.Messages, nil), nil)
	guard := session.NewTurnGuard(nil, nil)
	svc := NewService(repos, history.NewManager(repos.Messages, llm), routing.NewEngine(llm, nil), executor, guard, nil)
	return &fixture{store: store, llm: llm, guard: guard, svc: svc}
}

func (f *fixture) conversation(userID string) *model.Conversation {
	return f.store.AddConversation(&model.Conversation{UserID: userID, Title: "Help"})
}

func collect(t *testing.T, ch <-chan stream.Event) []stream.Event {
	t.Helper()
	var events []stream.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, e)
		case <-timeout:
			t.Fatal("stream did not finish")
			return nil
		}
	}
}

func routeTo(agentType string, confidence string) testutil.Reply {
	return testutil.Reply{Message: testutil.AssistantText(
		`{"agent":"` + agentType + `","confidence":` + confidence + `,"reasoning":"matched","entities":["ORD-1"]}`)}
}

func TestCreateConversation(t *testing.T) {
	tests := []struct {
		name      string
		title     string
		expected  string
		wantError string
	}{
		{name: "default title", title: "", expected: DefaultTitle},
		{name: "blank title", title: "   ", expected: DefaultTitle},
		{name: "custom title", title: " Refund ", expected: "Refund"},
		{name: "too long", title: strings.Repeat("x", MaxTitleLength+1), wantError: errs.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			conv, err := f.svc.CreateConversation(context.Background(), "u1", tt.title)
			if tt.wantError != "" {
				assert.True(t, errs.HasCode(err, tt.wantError))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, conv.Title)
			assert.Equal(t, model.ConversationActive, conv.Status)
			assert.NotNil(t, f.store.Conversation(conv.ID))
		})
	}
}

func TestOwnership(t *testing.T) {
	f := newFixture()
	conv := f.conversation("u1")
	ctx := context.Background()

	calls := map[string]func(id, userID string) error{
		"get": func(id, userID string) error {
			_, err := f.svc.GetConversation(ctx, id, userID)
			return err
		},
		"messages": func(id, userID string) error {
			_, err := f.svc.ListMessages(ctx, id, userID, 1, 20)
			return err
		},
		"update": func(id, userID string) error {
			_, err := f.svc.UpdateConversation(ctx, id, userID, UpdateConversationRequest{Title: "x"})
			return err
		},
		"delete": func(id, userID string) error {
			return f.svc.DeleteConversation(ctx, id, userID)
		},
		"stop": func(id, userID string) error {
			_, err := f.svc.StopGeneration(ctx, id, userID)
			return err
		},
		"send": func(id, userID string) error {
			_, err := f.svc.SendMessage(ctx, id, userID, "hi")
			return err
		},
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			assert.True(t, errs.HasCode(call("missing", "u1"), errs.CodeNotFound))
			assert.True(t, errs.HasCode(call(conv.ID, "u2"), errs.CodeForbidden))
		})
	}
	assert.NotNil(t, f.store.Conversation(conv.ID))
	assert.Empty(t, f.store.Messages(conv.ID))
}

func TestGetConversation_PreviewsMessages(t *testing.T) {
	f := newFixture()
	conv := f.conversation("u1")
	for i := 0; i < PreviewMessages+5; i++ {
		f.store.AddMessage(&model.Message{ConversationID: conv.ID, Role: model.RoleUser, Content: "m"})
	}

	got, err := f.svc.GetConversation(context.Background(), conv.ID, "u1")
	require.NoError(t, err)
	assert.Len(t, got.Messages, PreviewMessages)
}

func TestListConversations(t *testing.T) {
	f := newFixture()
	first := f.conversation("u1")
	second := f.conversation("u1")
	f.conversation("u2")

	page, err := f.svc.ListConversations(context.Background(), "u1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.Limit)
	assert.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, second.ID, page.Items[0].ID, "most recently updated first")
	assert.Equal(t, first.ID, page.Items[1].ID)

	page, err = f.svc.ListConversations(context.Background(), "u1", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, first.ID, page.Items[0].ID)

	empty, err := f.svc.ListConversations(context.Background(), "nobody", 1, 20)
	require.NoError(t, err)
	assert.NotNil(t, empty.Items)
	assert.Zero(t, empty.TotalPages)
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		name        string
		page, limit int
		wantPage    int
		wantLimit   int
		wantErr     bool
	}{
		{name: "defaults", wantPage: 1, wantLimit: 20},
		{name: "explicit", page: 3, limit: 50, wantPage: 3, wantLimit: 50},
		{name: "max limit", page: 1, limit: 100, wantPage: 1, wantLimit: 100},
		{name: "limit too large", page: 1, limit: 101, wantErr: true},
		{name: "negative page", page: -1, limit: 10, wantErr: true},
		{name: "negative limit", page: 1, limit: -5, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, limit, err := normalizePage(tt.page, tt.limit)
			if tt.wantErr {
				assert.True(t, errs.HasCode(err, errs.CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}

func TestUpdateConversation(t *testing.T) {
	f := newFixture()
	conv := f.conversation("u1")
	ctx := context.Background()

	updated, err := f.svc.UpdateConversation(ctx, conv.ID, "u1", UpdateConversationRequest{Status: model.ConversationResolved})
	require.NoError(t, err)
	assert.Equal(t, "Help", updated.Title, "empty title is left unchanged")
	assert.Equal(t, model.ConversationResolved, f.store.Conversation(conv.ID).Status)

	_, err = f.svc.UpdateConversation(ctx, conv.ID, "u1", UpdateConversationRequest{Title: "Billing"})
	require.NoError(t, err)
	assert.Equal(t, "Billing", f.store.Conversation(conv.ID).Title)
	assert.Equal(t, model.ConversationResolved, f.store.Conversation(conv.ID).Status)

	_, err = f.svc.UpdateConversation(ctx, conv.ID, "u1", UpdateConversationRequest{Status: "closed"})
	assert.True(t, errs.HasCode(err, errs.CodeValidation))
}

func TestDeleteConversation(t *testing.T) {
	f := newFixture()
	conv := f.conversation("u1")
	f.store.AddMessage(&model.Message{ConversationID: conv.ID, Role: model.RoleUser, Content: "hi"})

	turnCtx, turn, err := f.guard.Acquire(context.Background(), conv.ID)
	require.NoError(t, err)
	defer f.guard.Release(turn)

	require.NoError(t, f.svc.DeleteConversation(context.Background(), conv.ID, "u1"))
	assert.Nil(t, f.store.Conversation(conv.ID))
	assert.Empty(t, f.store.Messages(conv.ID))
	assert.Error(t, turnCtx.Err(), "in-flight generation is cancelled")
}

func TestSendMessage_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "empty", content: "", wantErr: true},
		{name: "whitespace", content: " \n\t", wantErr: true},
		{name: "at limit", content: strings.Repeat("é", MaxContentLength)},
		{name: "over limit", content: strings.Repeat("a", MaxContentLength+1), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateContent(tt.content)
			if tt.wantErr {
				assert.True(t, errs.HasCode(err, errs.CodeValidation))
				return
			}
			assert.NoError(t, err)
		})
	}

	f := newFixture()
	conv := f.conversation("u1")
	_, err := f.svc.SendMessage(context.Background(), conv.ID, "u1", "")
	assert.True(t, errs.HasCode(err, errs.CodeValidation))
	assert.Empty(t, f.store.Messages(conv.ID))
	assert.False(t, f.guard.Active(conv.ID))
}

func TestSendMessage_Pipeline(t *testing.T) {
	f := newFixture()
	conv := f.store.AddConversation(&model.Conversation{
		UserID:   "u1",
		Metadata: model.ConversationMetadata{LastAgent: "general-support", Escalated: true, TicketID: "ESC-1"},
	})
	before := f.store.Conversation(conv.ID).UpdatedAt

	f.llm.OnGenerate(routeTo("order", "0.92"))
	f.llm.OnStream(testutil.StreamStep{Chunks: append(testutil.TextChunks("Your order ", "is on its way"), testutil.UsageChunk(9))})

	events, err := f.svc.SendMessage(context.Background(), conv.ID, "u1", "Where is ORD-1?")
	require.NoError(t, err)
	got := collect(t, events)

	require.NotEmpty(t, got)
	assert.Equal(t, stream.EventStatus, got[0].Type)
	assert.Equal(t, stream.StatusData{Status: stream.StatusThinking, Agent: "order"}, got[0].Data)
	assert.Equal(t, stream.TextData{Text: "matched"}, got[1].Data)
	last := got[len(got)-1]
	assert.Equal(t, stream.EventDone, last.Type)

	saved := f.store.Messages(conv.ID)
	require.Len(t, saved, 2)
	assert.Equal(t, model.RoleUser, saved[0].Role)
	assert.Equal(t, "Where is ORD-1?", saved[0].Content)
	assert.Equal(t, model.RoleAssistant, saved[1].Role)
	assert.Equal(t, "Your order is on its way", saved[1].Content)
	assert.Equal(t, "order", saved[1].AgentType)
	assert.Equal(t, stream.DoneData{MessageID: saved[1].ID, TokensUsed: 9}, last.Data)

	updated := f.store.Conversation(conv.ID)
	assert.Equal(t, model.ConversationMetadata{
		LastAgent: "order",
		Entities:  []string{"ORD-1"},
		Escalated: true,
		TicketID:  "ESC-1",
	}, updated.Metadata)
	assert.True(t, updated.UpdatedAt.After(before))
	assert.Equal(t, 1, f.store.MetadataWrites(), "metadata and updated_at are written together once per turn")

	// 路由看到的是包含当前消息的上下文
	calls := f.llm.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Input[len(calls[0].Input)-1].Content, "Where is ORD-1?")

	streamCalls := f.llm.StreamCalls()
	require.Len(t, streamCalls, 1)
	input := streamCalls[0].Input
	assert.Equal(t, "Where is ORD-1?", input[len(input)-1].Content)

	assert.False(t, f.guard.Active(conv.ID), "guard released after the stream ends")
}

func TestSendMessage_LowConfidenceFallsBack(t *testing.T) {
	f := newFixture()
	conv := f.conversation("u1")
	f.llm.OnGenerate(routeTo("billing", "0.4"))
	f.llm.OnStream(testutil.StreamStep{Chunks: testutil.TextChunks("Happy to help")})

	events, err := f.svc.SendMessage(context.Background(), conv.ID, "u1", "hmm")
	require.NoError(t, err)
	got := collect(t, events)

	assert.Equal(t, stream.StatusData{Status: stream.StatusThinking, Agent: "general-support"}, got[0].Data)
	assert.Equal(t, "general-support", f.store.Conversation(conv.ID).Metadata.LastAgent)
}

func TestSendMessage_RoutingFailureStillAnswers(t *testing.T) {
	f := newFixture()
	conv := f.conversation("u1")
	f.llm.OnGenerate(testutil.Reply{Err: errors.New("model down")})
	f.llm.OnStream(testutil.StreamStep{Chunks: testutil.TextChunks("Hi")})

	events, err := f.svc.SendMessage(context.Background(), conv.ID, "u1", "hello")
	require.NoError(t, err)
	got := collect(t, events)

	assert.Equal(t, stream.TextData{Text: routing.FailedReasoning}, got[1].Data)
	assert.Equal(t, stream.EventDone, got[len(got)-1].Type)
	assert.Empty(t, f.store.Conversation(conv.ID).Metadata.Entities)
}

func TestSendMessage_MetadataIncludesHistoryEntities(t *testing.T) {
	f := newFixture()
	conv := f.conversation("u1")
	f.store.AddMessage(&model.Message{ConversationID: conv.ID, Role: model.RoleUser, Content: "I was charged twice on INV-7"})
	f.store.AddMessage(&model.Message{ConversationID: conv.ID, Role: model.RoleAssistant, Content: "Sorry about that."})
	f.llm.OnGenerate(routeTo("order", "0.9"))
	f.llm.OnStream(testutil.StreamStep{Chunks: testutil.TextChunks("ok")})

	events, err := f.svc.SendMessage(context.Background(), conv.ID, "u1", "Also ORD-1 and TRK-55 never arrived")
	require.NoError(t, err)
	collect(t, events)

	assert.Equal(t, []string{"ORD-1", "INV-7", "TRK-55"}, f.store.Conversation(conv.ID).Metadata.Entities)
}

func TestMergeEntities(t *testing.T) {
	tests := []struct {
		name      string
		routed    []string
		extracted []string
		want      []string
	}{
		{name: "both empty", want: []string{}},
		{name: "routed only", routed: []string{"ORD-1"}, want: []string{"ORD-1"}},
		{name: "routed first", routed: []string{"ORD-2"}, extracted: []string{"ORD-1", "ORD-2"}, want: []string{"ORD-2", "ORD-1"}},
		{name: "drops blanks and duplicates", routed: []string{"", "INV-1", "INV-1"}, extracted: []string{"INV-1"}, want: []string{"INV-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mergeEntities(tt.routed, tt.extracted))
		})
	}
}

func TestSendMessage_Conflict(t *testing.T) {
	f := newFixture()
	conv := f.conversation("u1")

	_, turn, err := f.guard.Acquire(context.Background(), conv.ID)
	require.NoError(t, err)

	_, err = f.svc.SendMessage(context.Background(), conv.ID, "u1", "again")
	assert.True(t, errs.HasCode(err, errs.CodeConflict))
	assert.Empty(t, f.store.Messages(conv.ID), "rejected turn saves nothing")

	f.guard.Release(turn)
	f.llm.OnGenerate(routeTo("order", "0.9"))
	f.llm.OnStream(testutil.StreamStep{Chunks: testutil.TextChunks("ok")})
	events, err := f.svc.SendMessage(context.Background(), conv.ID, "u1", "again")
	require.NoError(t, err)
	collect(t, events)
}

func TestSendMessage_StoreFailures(t *testing.T) {
	tests := []struct {
		name  string
		op    string
		saved int
	}{
		{name: "user message", op: "messages.create.user", saved: 0},
		{name: "history", op: "messages.list", saved: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			conv := f.conversation("u1")
			f.store.Fail(tt.op, errors.New("db down"))

			_, err := f.svc.SendMessage(context.Background(), conv.ID, "u1", "hi")
			require.Error(t, err)
			_, typed := errs.As(err)
			assert.False(t, typed, "store failures surface as internal errors")
			assert.False(t, f.guard.Active(conv.ID))

			f.store.Fail(tt.op, nil)
			assert.Len(t, f.store.Messages(conv.ID), tt.saved)
		})
	}
}

func TestSendMessage_MetadataFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	conv := f.conversation("u1")
	f.store.Fail("conversations.metadata", errors.New("db down"))
	f.llm.OnGenerate(routeTo("order", "0.9"))
	f.llm.OnStream(testutil.StreamStep{Chunks: testutil.TextChunks("ok")})

	events, err := f.svc.SendMessage(context.Background(), conv.ID, "u1", "hi")
	require.NoError(t, err)
	got := collect(t, events)
	assert.Equal(t, stream.EventDone, got[len(got)-1].Type)
}

func TestStopGeneration(t *testing.T) {
	f := newFixture()
	conv := f.conversation("u1")

	stopped, err := f.svc.StopGeneration(context.Background(), conv.ID, "u1")
	require.NoError(t, err)
	assert.False(t, stopped)

	turnCtx, turn, err := f.guard.Acquire(context.Background(), conv.ID)
	require.NoError(t, err)
	defer f.guard.Release(turn)

	stopped, err = f.svc.StopGeneration(context.Background(), conv.ID, "u1")
	require.NoError(t, err)
	assert.True(t, stopped)
	assert.ErrorIs(t, turnCtx.Err(), context.Canceled)
}

func TestSendMessage_StopEndsStreamWithError(t *testing.T) {
	f := newFixture()
	conv := f.conversation("u1")
	f.llm.OnGenerate(routeTo("order", "0.9"))
	f.llm.OnStream(testutil.StreamStep{Chunks: testutil.TextChunks("Checking your order"), Hold: true})

	events, err := f.svc.SendMessage(context.Background(), conv.ID, "u1", "Where is ORD-1?")
	require.NoError(t, err)

	var got []stream.Event
	timeout := time.After(5 * time.Second)
	for len(got) == 0 || got[len(got)-1].Type != stream.EventText {
		select {
		case e, ok := <-events:
			require.True(t, ok, "stream closed before any text")
			got = append(got, e)
		case <-timeout:
			t.Fatal("no text event")
		}
	}

	stopped, err := f.svc.StopGeneration(context.Background(), conv.ID, "u1")
	require.NoError(t, err)
	require.True(t, stopped)
	got = append(got, collect(t, events)...)

	terminal := 0
	for _, e := range got {
		if e.IsTerminal() {
			terminal++
		}
	}
	assert.Equal(t, 1, terminal, "exactly one terminal event")
	assert.Equal(t, stream.StoppedEvent(), got[len(got)-1])
	assert.Len(t, f.store.Messages(conv.ID), 1, "no assistant message for a stopped turn")
	assert.Eventually(t, func() bool { return !f.guard.Active(conv.ID) }, time.Second, 10*time.Millisecond)
}

func TestSendMessage_CallerCancels(t *testing.T) {
	f := newFixture()
	conv := f.conversation("u1")
	f.llm.OnGenerate(routeTo("order", "0.9"))
	f.llm.OnStream(testutil.StreamStep{Chunks: testutil.TextChunks("a", "b", "c")})

	ctx, cancel := context.WithCancel(context.Background())
	events, err := f.svc.SendMessage(ctx, conv.ID, "u1", "hi")
	require.NoError(t, err)
	cancel()

	for _, e := range collect(t, events) {
		assert.NotEqual(t, stream.EventError, e.Type)
	}
	assert.Eventually(t, func() bool { return !f.guard.Active(conv.ID) }, time.Second, 10*time.Millisecond)
}
