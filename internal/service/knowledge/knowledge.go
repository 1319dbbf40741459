// Package knowledge FAQ 检索，优先 Elasticsearch，不可用时回退数据库
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ashwinyue/next-support/internal/model"
	"github.com/ashwinyue/next-support/internal/repository"
)

// Searcher 知识库检索接口
type Searcher interface {
	Search(ctx context.Context, query, category string, limit int) ([]*model.KnowledgeArticle, error)
}

// Service 知识库检索服务
type Service struct {
	repo       repository.KnowledgeRepository
	esSearcher ESSearcher // 为 nil 时只走数据库
	index      string
	logger     *slog.Logger
}

// NewService 创建知识库服务
func NewService(repo repository.KnowledgeRepository, esSearcher ESSearcher, index string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		esSearcher: esSearcher,
		index:      index,
		logger:     logger.With("component", "knowledge"),
	}
}

// IndexName 知识库索引名
func IndexName(prefix string) string {
	return prefix + "_knowledge"
}

// Search 按优先级返回最相关的条目
func (s *Service) Search(ctx context.Context, query, category string, limit int) ([]*model.KnowledgeArticle, error) {
	if s.esSearcher != nil {
		articles, err := s.searchES(ctx, query, category, limit)
		if err == nil {
			return articles, nil
		}
		s.logger.WarnContext(ctx, "elasticsearch search failed, falling back to database", "error", err)
	}

	articles, err := s.repo.Search(ctx, query, category, limit)
	if err != nil {
		return nil, fmt.Errorf("search knowledge base: %w", err)
	}
	return articles, nil
}

func (s *Service) searchES(ctx context.Context, query, category string, limit int) ([]*model.KnowledgeArticle, error) {
	boolQuery := map[string]interface{}{
		"must": []interface{}{
			map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":  query,
					"fields": []string{"question^2", "answer", "keywords^3"},
				},
			},
		},
	}
	if category != "" {
		boolQuery["filter"] = []interface{}{
			map[string]interface{}{
				"term": map[string]interface{}{"category": category},
			},
		}
	}

	body := map[string]interface{}{
		"size":  limit,
		"query": map[string]interface{}{"bool": boolQuery},
		"sort": []interface{}{
			map[string]interface{}{"priority": map[string]interface{}{"order": "desc"}},
			"_score",
		},
	}

	queryJSON, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := s.esSearcher.DoSearch(ctx, s.index, queryJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError {
		return nil, fmt.Errorf("elasticsearch error: %s", res.String)
	}

	var response struct {
		Hits struct {
			Hits []struct {
				ID     string        `json:"_id"`
				Source articleSource `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	articles := make([]*model.KnowledgeArticle, 0, len(response.Hits.Hits))
	for _, hit := range response.Hits.Hits {
		articles = append(articles, &model.KnowledgeArticle{
			ID:       hit.ID,
			Category: hit.Source.Category,
			Question: hit.Source.Question,
			Answer:   hit.Source.Answer,
			Keywords: hit.Source.Keywords,
			Priority: hit.Source.Priority,
		})
	}
	return articles, nil
}

// articleSource 索引文档字段
type articleSource struct {
	Category string   `json:"category"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Keywords []string `json:"keywords"`
	Priority int      `json:"priority"`
}
