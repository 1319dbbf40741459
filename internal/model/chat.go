package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// 会话状态
const (
	ConversationActive   = "active"
	ConversationResolved = "resolved"
	ConversationArchived = "archived"
)

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// IsValidConversationStatus 校验会话状态
func IsValidConversationStatus(s string) bool {
	switch s {
	case ConversationActive, ConversationResolved, ConversationArchived:
		return true
	}
	return false
}

// Conversation 客服会话
type Conversation struct {
	ID        string               `gorm:"primaryKey;size:36" json:"id"`
	UserID    string               `gorm:"index;size:36;not null" json:"userId"`
	Title     string               `gorm:"size:255" json:"title"`
	Status    string               `gorm:"index;size:20;default:active" json:"status"`
	Metadata  ConversationMetadata `gorm:"type:jsonb" json:"metadata"`
	CreatedAt time.Time            `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time            `gorm:"autoUpdateTime;index" json:"updatedAt"`
	Messages  []Message            `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// ConversationMetadata 最近一次路由结果
type ConversationMetadata struct {
	LastAgent string   `json:"lastAgent,omitempty"`
	Entities  []string `json:"entities,omitempty"`
	Escalated bool     `json:"escalated,omitempty"`
	TicketID  string   `json:"ticketId,omitempty"`
}

// Message 会话消息，创建后不可修改
type Message struct {
	ID             string          `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string          `gorm:"index:idx_messages_conversation_created,priority:1;size:36;not null" json:"conversationId"`
	Role           string          `gorm:"size:20" json:"role"`
	Content        string          `gorm:"type:text" json:"content"`
	AgentType      string          `gorm:"size:32" json:"agentType,omitempty"`
	ToolCalls      ToolCallRecords `gorm:"type:jsonb" json:"toolCalls,omitempty"`
	Reasoning      string          `gorm:"type:text" json:"reasoning,omitempty"`
	TokensUsed     int             `gorm:"default:0" json:"tokensUsed,omitempty"`
	CreatedAt      time.Time       `gorm:"autoCreateTime;index:idx_messages_conversation_created,priority:2" json:"createdAt"`
}

// ToolCallRecord 一次工具调用的输入输出
type ToolCallRecord struct {
	ToolName string         `json:"toolName"`
	Input    map[string]any `json:"input"`
	Output   any            `json:"output"`
}

// ToolCallRecords jsonb 列
type ToolCallRecords []ToolCallRecord

// TableName 指定表名
func (Conversation) TableName() string {
	return "conversations"
}

func (Message) TableName() string {
	return "messages"
}

// Value 实现 driver.Valuer
func (m ConversationMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan 实现 sql.Scanner
func (m *ConversationMetadata) Scan(value interface{}) error {
	return scanJSON(value, m)
}

func (ConversationMetadata) GormDataType() string {
	return "jsonb"
}

// Value 实现 driver.Valuer，空列表存 NULL
func (r ToolCallRecords) Value() (driver.Value, error) {
	if len(r) == 0 {
		return nil, nil
	}
	return json.Marshal(r)
}

// Scan 实现 sql.Scanner
func (r *ToolCallRecords) Scan(value interface{}) error {
	return scanJSON(value, r)
}

func (ToolCallRecords) GormDataType() string {
	return "jsonb"
}

func scanJSON(value interface{}, dst any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported jsonb value type %T", value)
	}
}
