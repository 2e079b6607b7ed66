package model

import (
	"time"

	"gorm.io/gorm"
)

// XP 来源
const (
	XPSourceQuiz         = "quiz"
	XPSourceStudySession = "study_session"
)

// XPLog 是 XP 流水，用户总 XP 在读取时求和。
type XPLog struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      string    `gorm:"type:uuid;not null;index" json:"user_id"`
	SourceType  string    `gorm:"type:varchar(32);not null" json:"source_type"`
	ReferenceID *string   `gorm:"type:uuid" json:"reference_id"`
	XPAmount    int       `gorm:"column:xp_amount;not null" json:"xp_amount"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (XPLog) TableName() string { return "xp_logs" }

func (l *XPLog) BeforeCreate(*gorm.DB) error {
	newID(&l.ID)
	return nil
}

type StudySession struct {
	ID              string     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          string     `gorm:"type:uuid;not null;index" json:"user_id"`
	StartedAt       time.Time  `gorm:"not null" json:"started_at"`
	EndedAt         *time.Time `json:"ended_at"`
	DurationSeconds int        `gorm:"not null" json:"duration_seconds"`
	XPAwarded       int        `gorm:"column:xp_awarded;not null;default:0" json:"xp_awarded"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (StudySession) TableName() string { return "study_sessions" }

func (s *StudySession) BeforeCreate(*gorm.DB) error {
	newID(&s.ID)
	return nil
}

// UserStreak 每个用户一行，LastStudyDate 只关心日期部分（UTC）。
type UserStreak struct {
	UserID        string     `gorm:"type:uuid;primaryKey" json:"user_id"`
	CurrentStreak int        `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak int        `gorm:"not null;default:0" json:"longest_streak"`
	LastStudyDate *time.Time `json:"last_study_date"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserStreak) TableName() string { return "user_streaks" }
