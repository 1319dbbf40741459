package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino-ext/components/indexer/es8"
	"github.com/cloudwego/eino/schema"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/ashwinyue/next-support/internal/model"
)

// Indexer 把知识库条目同步到 Elasticsearch
// 只做词法检索，不配置向量化
type Indexer struct {
	indexer   *es8.Indexer
	client    *elasticsearch.Client
	indexName string
}

// NewIndexer 创建知识库索引器
func NewIndexer(ctx context.Context, client *elasticsearch.Client, indexName string) (*Indexer, error) {
	indexer, err := es8.NewIndexer(ctx, &es8.IndexerConfig{
		Client:    client,
		Index:     indexName,
		BatchSize: 10,
		DocumentToFields: func(ctx context.Context, doc *schema.Document) (map[string]es8.FieldValue, error) {
			return documentToESFields(doc), nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ES8 indexer: %w", err)
	}
	return &Indexer{indexer: indexer, client: client, indexName: indexName}, nil
}

// Sync 确保索引存在并写入全部条目
func (x *Indexer) Sync(ctx context.Context, articles []*model.KnowledgeArticle) (int, error) {
	if err := ensureESIndex(ctx, x.client, x.indexName); err != nil {
		return 0, err
	}
	if len(articles) == 0 {
		return 0, nil
	}
	ids, err := x.indexer.Store(ctx, ArticlesToDocuments(articles))
	if err != nil {
		return 0, fmt.Errorf("failed to store articles: %w", err)
	}
	slog.InfoContext(ctx, "knowledge articles indexed", "index", x.indexName, "count", len(ids))
	return len(ids), nil
}

// ArticlesToDocuments 转换为 Eino Document，ID 沿用条目 ID
func ArticlesToDocuments(articles []*model.KnowledgeArticle) []*schema.Document {
	docs := make([]*schema.Document, len(articles))
	for i, a := range articles {
		docs[i] = &schema.Document{
			ID:      a.ID,
			Content: a.Answer,
			MetaData: map[string]any{
				"category": a.Category,
				"question": a.Question,
				"keywords": []string(a.Keywords),
				"priority": a.Priority,
			},
		}
	}
	return docs
}

// documentToESFields 将 Eino Document 转换为 ES 字段
func documentToESFields(doc *schema.Document) map[string]es8.FieldValue {
	fields := map[string]es8.FieldValue{
		"answer": {Value: doc.Content},
	}
	for k, v := range doc.MetaData {
		fields[k] = es8.FieldValue{Value: v}
	}
	return fields
}

// ensureESIndex 确保 ES 索引存在（如不存在则创建）
func ensureESIndex(ctx context.Context, client *elasticsearch.Client, indexName string) error {
	res, err := client.Indices.Exists([]string{indexName}, client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}

	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"category": map[string]interface{}{"type": "keyword"},
				"question": map[string]interface{}{"type": "text"},
				"answer":   map[string]interface{}{"type": "text"},
				"keywords": map[string]interface{}{"type": "text"},
				"priority": map[string]interface{}{"type": "integer"},
			},
		},
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
	}

	mappingData, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	req := esapi.IndicesCreateRequest{
		Index: indexName,
		Body:  bytes.NewReader(mappingData),
	}
	res, err = req.Do(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("failed to create index: %s", res.String())
	}

	slog.InfoContext(ctx, "index created", "index", indexName)
	return nil
}
