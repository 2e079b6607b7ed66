package repository

import (
	"context"

	"gorm.io/gorm"

	"studymind-go/internal/model"
)

// MaterialChunkRepository 定义了对 material_chunks 表的数据操作接口。
type MaterialChunkRepository interface {
	BatchCreate(ctx context.Context, chunks []*model.MaterialChunk) error
	// FindByMaterialID 按 chunk_index 顺序返回前 limit 个切块，limit<=0 表示全部。
	FindByMaterialID(ctx context.Context, materialID string, limit int) ([]model.MaterialChunk, error)
	DeleteByMaterialID(ctx context.Context, materialID string) error
}

type materialChunkRepository struct {
	db *gorm.DB
}

// NewMaterialChunkRepository 创建一个新的 MaterialChunkRepository 实例。
func NewMaterialChunkRepository(db *gorm.DB) MaterialChunkRepository {
	return &materialChunkRepository{db: db}
}

// BatchCreate 批量创建切块记录。
func (r *materialChunkRepository) BatchCreate(ctx context.Context, chunks []*model.MaterialChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(chunks, 100).Error // 每100条记录一批
}

func (r *materialChunkRepository) FindByMaterialID(ctx context.Context, materialID string, limit int) ([]model.MaterialChunk, error) {
	var chunks []model.MaterialChunk
	q := r.db.WithContext(ctx).Where("material_id = ?", materialID).Order("chunk_index ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&chunks).Error
	return chunks, err
}

// DeleteByMaterialID 删除资料的全部切块，重新处理时先调用它。
func (r *materialChunkRepository) DeleteByMaterialID(ctx context.Context, materialID string) error {
	return r.db.WithContext(ctx).Where("material_id = ?", materialID).Delete(&model.MaterialChunk{}).Error
}
