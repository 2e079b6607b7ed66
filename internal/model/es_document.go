// Package model 定义了与数据库表对应的 Go 结构体。
package model

// ChunkDocument 是资料切块在 Elasticsearch 中的文档结构。
type ChunkDocument struct {
	ChunkID    string `json:"chunk_id"`
	MaterialID string `json:"material_id"`
	UserID     string `json:"user_id"`
	ChunkIndex int    `json:"chunk_index"`
	ChunkText  string `json:"chunk_text"`
}
