package repository

import (
	"context"

	"gorm.io/gorm"

	"studymind-go/internal/model"
)

// UsageRepository 写入 ai_usage_logs。
type UsageRepository interface {
	Create(ctx context.Context, entry *model.AIUsageLog) error
}

type usageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &usageRepository{db: db}
}

func (r *usageRepository) Create(ctx context.Context, entry *model.AIUsageLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
