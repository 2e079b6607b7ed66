package model

import (
	"time"

	"gorm.io/gorm"
)

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DoubtSession 是一次答疑会话，question_preview 保存首个问题的前 200 个字符。
type DoubtSession struct {
	ID              string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          string    `gorm:"type:uuid;not null;index" json:"user_id"`
	QuestionPreview string    `gorm:"type:text;not null" json:"question_preview"`
	TopicID         *string   `gorm:"type:uuid" json:"topic_id"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (DoubtSession) TableName() string { return "doubt_sessions" }

func (s *DoubtSession) BeforeCreate(*gorm.DB) error {
	newID(&s.ID)
	return nil
}

// DoubtMessage 是会话中的一条消息。
type DoubtMessage struct {
	ID             string    `gorm:"type:uuid;primaryKey" json:"id"`
	DoubtSessionID string    `gorm:"type:uuid;not null;index" json:"doubt_session_id"`
	Role           string    `gorm:"type:varchar(16);not null" json:"role"`
	MessageText    string    `gorm:"type:text;not null" json:"message_text"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (DoubtMessage) TableName() string { return "doubt_messages" }

func (m *DoubtMessage) BeforeCreate(*gorm.DB) error {
	newID(&m.ID)
	return nil
}

// ChatMessage 代表缓存在 Redis 中的单条对话消息。
type ChatMessage struct {
	Role      string    `json:"role"` // "user" 或 "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
