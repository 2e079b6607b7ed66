package model

import (
	"time"

	"gorm.io/gorm"
)

// AI 功能类型
const (
	FeatureDoubt    = "doubt"
	FeatureQuiz     = "quiz"
	FeatureMaterial = "material"
)

// AIUsageLog 每次 AI 调用记录一行，RequestStatus 为 success 或 error。token 和费用字段暂不填写。
type AIUsageLog struct {
	ID               string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           string    `gorm:"type:uuid;not null;index" json:"user_id"`
	FeatureType      string    `gorm:"type:varchar(32);not null" json:"feature_type"`
	ModelName        string    `gorm:"type:varchar(128);not null" json:"model_name"`
	PromptTokens     *int      `json:"prompt_tokens"`
	CompletionTokens *int      `json:"completion_tokens"`
	TotalTokens      *int      `json:"total_tokens"`
	EstimatedCost    *float64  `json:"estimated_cost"`
	RequestStatus    string    `gorm:"type:varchar(16);not null" json:"request_status"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (AIUsageLog) TableName() string { return "ai_usage_logs" }

func (l *AIUsageLog) BeforeCreate(*gorm.DB) error {
	newID(&l.ID)
	return nil
}
