package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"studymind-go/internal/model"
)

// DoubtRepository 定义了对 doubt_sessions / doubt_messages 表的数据操作接口。
type DoubtRepository interface {
	CreateSession(ctx context.Context, session *model.DoubtSession) error
	// FindSession 返回 nil, nil 表示会话不存在。
	FindSession(ctx context.Context, id string) (*model.DoubtSession, error)
	ListSessionsByUser(ctx context.Context, userID string) ([]model.DoubtSession, error)
	CreateMessage(ctx context.Context, msg *model.DoubtMessage) error
	// ListMessages 按时间顺序返回会话的最近 limit 条消息，limit<=0 表示全部。
	ListMessages(ctx context.Context, sessionID string, limit int) ([]model.DoubtMessage, error)
}

type doubtRepository struct {
	db *gorm.DB
}

// NewDoubtRepository 创建一个新的 DoubtRepository 实例。
func NewDoubtRepository(db *gorm.DB) DoubtRepository {
	return &doubtRepository{db: db}
}

func (r *doubtRepository) CreateSession(ctx context.Context, session *model.DoubtSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *doubtRepository) FindSession(ctx context.Context, id string) (*model.DoubtSession, error) {
	var session model.DoubtSession
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessionsByUser 按创建时间倒序返回用户的会话。
func (r *doubtRepository) ListSessionsByUser(ctx context.Context, userID string) ([]model.DoubtSession, error) {
	var sessions []model.DoubtSession
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&sessions).Error
	return sessions, err
}

func (r *doubtRepository) CreateMessage(ctx context.Context, msg *model.DoubtMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *doubtRepository) ListMessages(ctx context.Context, sessionID string, limit int) ([]model.DoubtMessage, error) {
	var messages []model.DoubtMessage
	q := r.db.WithContext(ctx).Where("doubt_session_id = ?", sessionID).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&messages).Error; err != nil {
		return nil, err
	}
	// 倒序取最近的 limit 条，再翻转成时间正序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
