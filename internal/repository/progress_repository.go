package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"studymind-go/internal/model"
)

// LeaderboardEntry 是排行榜上的一行。
type LeaderboardEntry struct {
	UserID  string `json:"userId"`
	TotalXP int    `json:"totalXp"`
}

// ProgressRepository 定义了 XP、学习时长和连续学习天数的数据操作接口。
type ProgressRepository interface {
	CreateXPLog(ctx context.Context, entry *model.XPLog) error
	CreateStudySession(ctx context.Context, session *model.StudySession) error
	// FindStreak 返回 nil, nil 表示用户还没有连续学习记录。
	FindStreak(ctx context.Context, userID string) (*model.UserStreak, error)
	SaveStreak(ctx context.Context, streak *model.UserStreak) error
	SumXP(ctx context.Context, userID string) (int, error)
	SumStudySeconds(ctx context.Context, userID string) (int, error)
	TopXP(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}

type progressRepository struct {
	db *gorm.DB
}

// NewProgressRepository 创建一个新的 ProgressRepository 实例。
func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

func (r *progressRepository) CreateXPLog(ctx context.Context, entry *model.XPLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *progressRepository) CreateStudySession(ctx context.Context, session *model.StudySession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *progressRepository) FindStreak(ctx context.Context, userID string) (*model.UserStreak, error) {
	var streak model.UserStreak
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&streak).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &streak, nil
}

// SaveStreak 按 user_id 插入或更新。
func (r *progressRepository) SaveStreak(ctx context.Context, streak *model.UserStreak) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"current_streak", "longest_streak", "last_study_date", "updated_at"}),
	}).Create(streak).Error
}

func (r *progressRepository) SumXP(ctx context.Context, userID string) (int, error) {
	var total int
	err := r.db.WithContext(ctx).Model(&model.XPLog{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(xp_amount), 0)").
		Scan(&total).Error
	return total, err
}

func (r *progressRepository) SumStudySeconds(ctx context.Context, userID string) (int, error) {
	var total int
	err := r.db.WithContext(ctx).Model(&model.StudySession{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(duration_seconds), 0)").
		Scan(&total).Error
	return total, err
}

// TopXP 按 XP 总和倒序返回前 limit 名用户。
func (r *progressRepository) TopXP(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	var entries []LeaderboardEntry
	err := r.db.WithContext(ctx).Model(&model.XPLog{}).
		Select("user_id, SUM(xp_amount) AS total_xp").
		Group("user_id").
		Order("total_xp DESC").
		Order("user_id ASC").
		Limit(limit).
		Scan(&entries).Error
	return entries, err
}
