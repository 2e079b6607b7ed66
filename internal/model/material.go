package model

import (
	"time"

	"gorm.io/gorm"
)

// 资料处理状态
const (
	MaterialProcessing = "processing"
	MaterialReady      = "ready"
	MaterialError      = "error"
)

// Material 是用户上传的一份学习资料。
type Material struct {
	ID               string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           string    `gorm:"type:uuid;not null;index" json:"user_id"`
	FileName         string    `gorm:"type:varchar(255);not null" json:"file_name"`
	StoragePath      string    `gorm:"type:varchar(512);not null" json:"storage_path"`
	ContentType      string    `gorm:"type:varchar(128)" json:"content_type"`
	FileSize         int64     `gorm:"not null;default:0" json:"file_size"`
	ExtractedText    *string   `gorm:"type:text" json:"extracted_text,omitempty"`
	ProcessingStatus string    `gorm:"type:varchar(16);not null;default:'processing'" json:"processing_status"`
	UploadedAt       time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
}

func (Material) TableName() string { return "materials" }

func (m *Material) BeforeCreate(*gorm.DB) error {
	newID(&m.ID)
	return nil
}

// MaterialChunk 是资料提取文本的一个段落切块。
type MaterialChunk struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	MaterialID string    `gorm:"type:uuid;not null;index" json:"material_id"`
	ChunkIndex int       `gorm:"not null" json:"chunk_index"`
	ChunkText  string    `gorm:"type:text;not null" json:"chunk_text"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (MaterialChunk) TableName() string { return "material_chunks" }

func (c *MaterialChunk) BeforeCreate(*gorm.DB) error {
	newID(&c.ID)
	return nil
}
