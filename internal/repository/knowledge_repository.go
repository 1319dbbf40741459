package repository

import (
	"context"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/ashwinyue/next-support/internal/model"
)

type knowledgeRepository struct {
	db *gorm.DB
}

// NewKnowledgeRepository 创建知识库仓库
func NewKnowledgeRepository(db *gorm.DB) KnowledgeRepository {
	return &knowledgeRepository{db: db}
}

// Search 问题或答案模糊匹配，或关键词与查询词有交集
func (r *knowledgeRepository) Search(ctx context.Context, query, category string, limit int) ([]*model.KnowledgeArticle, error) {
	var articles []*model.KnowledgeArticle

	like := containsPattern(query)
	words := pq.StringArray(strings.Fields(strings.ToLower(query)))

	db := r.db.WithContext(ctx).
		Where(`(question ILIKE ? ESCAPE '\' OR answer ILIKE ? ESCAPE '\' OR keywords && ?)`, like, like, words)
	if category != "" {
		db = db.Where("category = ?", category)
	}
	err := db.Order("priority DESC").Limit(limit).Find(&articles).Error
	return articles, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// containsPattern 转义通配符后包成包含匹配
func containsPattern(query string) string {
	return "%" + likeEscaper.Replace(query) + "%"
}

// ListAll 全部条目，用于建立搜索索引
func (r *knowledgeRepository) ListAll(ctx context.Context) ([]*model.KnowledgeArticle, error) {
	var articles []*model.KnowledgeArticle
	err := r.db.WithContext(ctx).Order("priority DESC").Find(&articles).Error
	return articles, err
}
