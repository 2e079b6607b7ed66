package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Quiz struct {
	ID            string         `gorm:"type:uuid;primaryKey" json:"id"`
	TopicID       *string        `gorm:"type:uuid" json:"topic_id"`
	GeneratedByAI bool           `gorm:"column:generated_by_ai;not null;default:false" json:"generated_by_ai"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	Questions     []QuizQuestion `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string { return "quizzes" }

func (q *Quiz) BeforeCreate(*gorm.DB) error {
	newID(&q.ID)
	return nil
}

// QuizQuestion 的 correct_answer 是正确选项下标的字符串形式。
type QuizQuestion struct {
	ID            string                      `gorm:"type:uuid;primaryKey" json:"id"`
	QuizID        string                      `gorm:"type:uuid;not null;index" json:"quiz_id"`
	QuestionText  string                      `gorm:"type:text;not null" json:"question_text"`
	Options       datatypes.JSONSlice[string] `json:"options"`
	CorrectAnswer string                      `gorm:"type:varchar(8);not null" json:"correct_answer"`
	Explanation   string                      `gorm:"type:text" json:"explanation"`
	CreatedAt     time.Time                   `gorm:"autoCreateTime" json:"created_at"`
}

func (QuizQuestion) TableName() string { return "quiz_questions" }

func (q *QuizQuestion) BeforeCreate(*gorm.DB) error {
	newID(&q.ID)
	return nil
}

// QuizAttempt 记录用户完成一次测验的得分和获得的 XP。
type QuizAttempt struct {
	ID             string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         string    `gorm:"type:uuid;not null;index" json:"user_id"`
	QuizID         *string   `gorm:"type:uuid" json:"quiz_id"`
	TopicID        *string   `gorm:"type:uuid" json:"topic_id"`
	TopicTitle     string    `gorm:"type:varchar(255)" json:"topic_title"`
	Score          int       `gorm:"not null" json:"score"`
	TotalQuestions int       `gorm:"not null" json:"total_questions"`
	XPAwarded      int       `gorm:"column:xp_awarded;not null;default:0" json:"xp_awarded"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (QuizAttempt) TableName() string { return "quiz_attempts" }

func (a *QuizAttempt) BeforeCreate(*gorm.DB) error {
	newID(&a.ID)
	return nil
}
