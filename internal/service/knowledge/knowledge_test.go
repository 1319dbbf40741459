package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/next-support/internal/model"
	"github.com/ashwinyue/next-support/internal/testutil"
)

// mockESSearcher 用于测试的 mock ES 搜索器
type mockESSearcher struct {
	searchFunc func(ctx context.Context, index string, queryJSON []byte) (*ESResponse, error)
}

func (m *mockESSearcher) DoSearch(ctx context.Context, index string, queryJSON []byte) (*ESResponse, error) {
	return m.searchFunc(ctx, index, queryJSON)
}

func jsonResponse(v interface{}) *ESResponse {
	data, _ := json.Marshal(v)
	return &ESResponse{Body: io.NopCloser(bytes.NewReader(data)), String: string(data)}
}

func searchHits(sources ...map[string]interface{}) map[string]interface{} {
	hits := make([]map[string]interface{}, len(sources))
	for i, s := range sources {
		hits[i] = map[string]interface{}{"_id": s["id"], "_score": 1.0, "_source": s}
	}
	return map[string]interface{}{"hits": map[string]interface{}{"hits": hits}}
}

func seededStore() *testutil.MemoryStore {
	store := testutil.NewMemoryStore()
	store.AddArticle(&model.KnowledgeArticle{
		Category: "Account", Priority: 10,
		Question: "How do I reset my password?",
		Answer:   "Use the Forgot Password link.",
		Keywords: []string{"password", "reset"},
	})
	store.AddArticle(&model.KnowledgeArticle{
		Category: "Returns", Priority: 7,
		Question: "How do I exchange an item?",
		Answer:   "Start a return and pick Exchange.",
		Keywords: []string{"exchange", "return"},
	})
	store.AddArticle(&model.KnowledgeArticle{
		Category: "Returns", Priority: 10,
		Question: "What is your return policy?",
		Answer:   "Returns are accepted within 30 days.",
		Keywords: []string{"return", "policy"},
	})
	return store
}

func TestService_Search_DatabaseOnly(t *testing.T) {
	store := seededStore()
	svc := NewService(store.KnowledgeRepo(), nil, "kb", nil)

	tests := []struct {
		name      string
		query     string
		category  string
		questions []string
	}{
		{"keyword overlap ordered by priority", "return", "", []string{"What is your return policy?", "How do I exchange an item?"}},
		{"category filter", "password", "Returns", nil},
		{"question match", "reset my password", "", []string{"How do I reset my password?"}},
		{"no match", "warranty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			articles, err := svc.Search(context.Background(), tt.query, tt.category, 5)
			require.NoError(t, err)
			var got []string
			for _, a := range articles {
				got = append(got, a.Question)
			}
			assert.Equal(t, tt.questions, got)
		})
	}
}

func TestService_Search_Elasticsearch(t *testing.T) {
	var captured map[string]interface{}
	searcher := &mockESSearcher{searchFunc: func(ctx context.Context, index string, queryJSON []byte) (*ESResponse, error) {
		assert.Equal(t, "kb", index)
		require.NoError(t, json.Unmarshal(queryJSON, &captured))
		return jsonResponse(searchHits(map[string]interface{}{
			"id": "a1", "category": "Billing", "question": "How do I request a refund?",
			"answer": "Start a return.", "keywords": []string{"refund"}, "priority": 10,
		})), nil
	}}
	svc := NewService(testutil.NewMemoryStore().KnowledgeRepo(), searcher, "kb", nil)

	articles, err := svc.Search(context.Background(), "refund", "Billing", 5)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "a1", articles[0].ID)
	assert.Equal(t, "How do I request a refund?", articles[0].Question)
	assert.Equal(t, 10, articles[0].Priority)

	assert.EqualValues(t, 5, captured["size"])
	boolQuery := captured["query"].(map[string]interface{})["bool"].(map[string]interface{})
	assert.Contains(t, boolQuery, "filter")
}

func TestService_Search_FallsBackToDatabase(t *testing.T) {
	tests := []struct {
		name     string
		searcher ESSearcher
	}{
		{
			name: "transport error",
			searcher: &mockESSearcher{searchFunc: func(ctx context.Context, index string, queryJSON []byte) (*ESResponse, error) {
				return nil, errors.New("connection refused")
			}},
		},
		{
			name: "error response",
			searcher: &mockESSearcher{searchFunc: func(ctx context.Context, index string, queryJSON []byte) (*ESResponse, error) {
				resp := jsonResponse(map[string]interface{}{"error": map[string]interface{}{"reason": "index_not_found"}})
				resp.IsError = true
				return resp, nil
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(seededStore().KnowledgeRepo(), tt.searcher, "kb", nil)
			articles, err := svc.Search(context.Background(), "password", "", 5)
			require.NoError(t, err)
			require.Len(t, articles, 1)
			assert.Equal(t, "Account", articles[0].Category)
		})
	}
}

func TestService_Search_DatabaseError(t *testing.T) {
	store := seededStore()
	store.Fail("knowledge.search", errors.New("db down"))
	svc := NewService(store.KnowledgeRepo(), nil, "kb", nil)

	_, err := svc.Search(context.Background(), "password", "", 5)
	assert.ErrorContains(t, err, "db down")
}

func TestRealESSearcher(t *testing.T) {
	ts := testutil.NewElasticServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			_, _ = w.Write([]byte(`{"version":{"number":"8.16.0","build_flavor":"default"},"tagline":"You Know, for Search"}`))
			return
		}
		assert.Equal(t, "/next_support_knowledge/_search", r.URL.Path)
		_ = json.NewEncoder(w).Encode(searchHits(map[string]interface{}{
			"id": "a2", "category": "Orders", "question": "How do I track my order?",
			"answer": "Open My Orders.", "priority": 10,
		}))
	})
	searcher := NewESSearcher(testutil.NewElasticClient(t, ts))
	svc := NewService(testutil.NewMemoryStore().KnowledgeRepo(), searcher, IndexName("next_support"), nil)

	articles, err := svc.Search(context.Background(), "track", "", 5)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "How do I track my order?", articles[0].Question)
}

func TestArticlesToDocuments(t *testing.T) {
	docs := ArticlesToDocuments([]*model.KnowledgeArticle{{
		ID: "a1", Category: "Billing", Question: "Q", Answer: "A", Keywords: []string{"k"}, Priority: 3,
	}})
	require.Len(t, docs, 1)
	assert.Equal(t, "a1", docs[0].ID)
	assert.Equal(t, "A", docs[0].Content)

	fields := documentToESFields(docs[0])
	assert.Equal(t, "A", fields["answer"].Value)
	assert.Equal(t, "Q", fields["question"].Value)
	assert.Equal(t, 3, fields["priority"].Value)
	assert.Equal(t, []string{"k"}, fields["keywords"].Value)
}
