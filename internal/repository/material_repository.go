package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"studymind-go/internal/model"
)

// MaterialRepository 定义了对 materials 表的数据操作接口。
type MaterialRepository interface {
	Create(ctx context.Context, material *model.Material) error
	// FindByID 返回 nil, nil 表示资料不存在。
	FindByID(ctx context.Context, id string) (*model.Material, error)
	ListByUser(ctx context.Context, userID string) ([]model.Material, error)
	SetExtractedText(ctx context.Context, id, text, status string) error
	UpdateStatus(ctx context.Context, id, status string) error
}

type materialRepository struct {
	db *gorm.DB
}

// NewMaterialRepository 创建一个新的 MaterialRepository 实例。
func NewMaterialRepository(db *gorm.DB) MaterialRepository {
	return &materialRepository{db: db}
}

func (r *materialRepository) Create(ctx context.Context, material *model.Material) error {
	return r.db.WithContext(ctx).Create(material).Error
}

func (r *materialRepository) FindByID(ctx context.Context, id string) (*model.Material, error) {
	var material model.Material
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&material).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &material, nil
}

// ListByUser 按上传时间倒序返回用户的资料，不加载 extracted_text。
func (r *materialRepository) ListByUser(ctx context.Context, userID string) ([]model.Material, error) {
	var materials []model.Material
	err := r.db.WithContext(ctx).
		Omit("extracted_text").
		Where("user_id = ?", userID).
		Order("uploaded_at DESC").
		Find(&materials).Error
	return materials, err
}

func (r *materialRepository) SetExtractedText(ctx context.Context, id, text, status string) error {
	return r.db.WithContext(ctx).Model(&model.Material{}).Where("id = ?", id).
		Updates(map[string]interface{}{"extracted_text": text, "processing_status": status}).Error
}

func (r *materialRepository) UpdateStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).Model(&model.Material{}).Where("id = ?", id).
		Update("processing_status", status).Error
}
