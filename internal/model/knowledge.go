package model

import (
	"time"

	"github.com/lib/pq"
)

// KnowledgeArticle FAQ / 知识库条目
type KnowledgeArticle struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	Category  string         `gorm:"index;size:64" json:"category"`
	Question  string         `gorm:"type:text;not null" json:"question"`
	Answer    string         `gorm:"type:text;not null" json:"answer"`
	Keywords  pq.StringArray `gorm:"type:text[]" json:"keywords"`
	Priority  int            `gorm:"index;default:0" json:"priority"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定表名
func (KnowledgeArticle) TableName() string {
	return "knowledge_articles"
}
