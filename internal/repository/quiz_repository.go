package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"studymind-go/internal/model"
)

// QuizRepository 定义了测验相关表的数据操作接口。
type QuizRepository interface {
	// CreateWithQuestions 先插入 quiz，再批量插入题目。两步之间没有事务。
	CreateWithQuestions(ctx context.Context, quiz *model.Quiz, questions []*model.QuizQuestion) error
	FindQuestions(ctx context.Context, quizID string) ([]model.QuizQuestion, error)
	CreateAttempt(ctx context.Context, attempt *model.QuizAttempt) error
}

type quizRepository struct {
	db *gorm.DB
}

// NewQuizRepository 创建一个新的 QuizRepository 实例。
func NewQuizRepository(db *gorm.DB) QuizRepository {
	return &quizRepository{db: db}
}

func (r *quizRepository) CreateWithQuestions(ctx context.Context, quiz *model.Quiz, questions []*model.QuizQuestion) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit("Questions").Create(quiz).Error; err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	for _, q := range questions {
		q.QuizID = quiz.ID
	}
	if len(questions) == 0 {
		return nil
	}
	if err := db.Create(questions).Error; err != nil {
		return fmt.Errorf("insert quiz questions: %w", err)
	}
	return nil
}

func (r *quizRepository) FindQuestions(ctx context.Context, quizID string) ([]model.QuizQuestion, error) {
	var questions []model.QuizQuestion
	err := r.db.WithContext(ctx).Where("quiz_id = ?", quizID).Order("created_at ASC").Find(&questions).Error
	return questions, err
}

func (r *quizRepository) CreateAttempt(ctx context.Context, attempt *model.QuizAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}
