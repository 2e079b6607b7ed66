// Package pipeline 定义了学习资料处理的核心流程。
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"studymind-go/internal/config"
	"studymind-go/internal/model"
	"studymind-go/internal/repository"
	"studymind-go/pkg/log"
	"studymind-go/pkg/metrics"
	"studymind-go/pkg/tasks"
)

// ExtractionFailedText 在无法提取文本时写入 extracted_text，用户仍然可以针对资料提问。
const ExtractionFailedText = "Document uploaded but text extraction failed. You can still ask questions about it."

var (
	ErrMaterialNotFound = errors.New("material not found")
	ErrDownloadFailed   = errors.New("could not download file")
)

// ObjectGetter 从对象存储下载文件。
type ObjectGetter interface {
	Get(ctx context.Context, objectName string) ([]byte, error)
}

// TextExtractor 从二进制文档中提取纯文本。
type TextExtractor interface {
	ExtractText(ctx context.Context, r io.Reader, fileName, contentType string) (string, error)
}

// ChunkIndexer 把切块写入全文索引。
type ChunkIndexer interface {
	ReplaceMaterialChunks(ctx context.Context, materialID string, docs []model.ChunkDocument) error
}

// Processor 封装了资料处理的所有依赖和逻辑。
type Processor struct {
	materialRepo repository.MaterialRepository
	chunkRepo    repository.MaterialChunkRepository
	objects      ObjectGetter
	extractor    TextExtractor
	indexer      ChunkIndexer // 未启用 Elasticsearch 时为 nil
	cfg          config.MaterialConfig
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(
	materialRepo repository.MaterialRepository,
	chunkRepo repository.MaterialChunkRepository,
	objects ObjectGetter,
	extractor TextExtractor,
	indexer ChunkIndexer,
	cfg config.MaterialConfig,
) *Processor {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.MaxTextRunes <= 0 {
		cfg.MaxTextRunes = 50000
	}
	return &Processor{
		materialRepo: materialRepo,
		chunkRepo:    chunkRepo,
		objects:      objects,
		extractor:    extractor,
		indexer:      indexer,
		cfg:          cfg,
	}
}

// ProcessTask 实现 kafka.TaskProcessor。
func (p *Processor) ProcessTask(ctx context.Context, task tasks.MaterialProcessingTask) error {
	_, err := p.Process(ctx, task.MaterialID)
	return err
}

// Process 下载资料、提取文本、切块并保存，返回切块数量。重复处理同一份资料会覆盖旧的切块。
func (p *Processor) Process(ctx context.Context, materialID string) (int, error) {
	log.Infof("[Processor] 开始处理资料, MaterialID: %s", materialID)

	material, err := p.materialRepo.FindByID(ctx, materialID)
	if err != nil {
		return 0, fmt.Errorf("查询资料失败: %w", err)
	}
	if material == nil {
		return 0, ErrMaterialNotFound
	}

	// 1. 从对象存储下载文件
	log.Infof("[Processor] 步骤1: 下载文件, Object: %s", material.StoragePath)
	data, err := p.objects.Get(ctx, material.StoragePath)
	if err != nil {
		log.Errorf("[Processor] 下载文件失败, Object: %s, Error: %v", material.StoragePath, err)
		p.markError(ctx, materialID)
		return 0, ErrDownloadFailed
	}
	log.Infof("[Processor] 步骤1: 文件下载成功, 大小: %d字节", len(data))

	// 2. 提取文本
	text := p.extractText(ctx, material, data)
	log.Infof("[Processor] 步骤2: 文本提取完成, 内容长度: %d 字符", utf8.RuneCountInString(text))

	// 3. 文本切块
	chunks := ChunkParagraphs(text, p.cfg.ChunkSize)
	log.Infof("[Processor] 步骤3: 文本分块完成, chunkSize: %d, 共生成 %d 个分块", p.cfg.ChunkSize, len(chunks))

	// 4. 先保存提取的文本，再写切块
	if err := p.materialRepo.SetExtractedText(ctx, materialID, truncateRunes(text, p.cfg.MaxTextRunes), model.MaterialReady); err != nil {
		log.Errorf("[Processor] 保存提取文本失败, MaterialID: %s, Error: %v", materialID, err)
		p.markError(ctx, materialID)
		return 0, fmt.Errorf("保存提取文本失败: %w", err)
	}

	// 为避免重复写入导致的累计膨胀，处理前先清理该资料既有的分块记录（幂等）
	if err := p.chunkRepo.DeleteByMaterialID(ctx, materialID); err != nil {
		log.Warnf("[Processor] 清理 material_chunks 旧记录失败 (material_id=%s): %v", materialID, err)
	}
	rows := make([]*model.MaterialChunk, 0, len(chunks))
	for i, chunk := range chunks {
		rows = append(rows, &model.MaterialChunk{MaterialID: materialID, ChunkIndex: i, ChunkText: chunk})
	}
	if err := p.chunkRepo.BatchCreate(ctx, rows); err != nil {
		log.Errorf("[Processor] 批量保存文本分块失败, Error: %v", err)
		p.markError(ctx, materialID)
		return 0, fmt.Errorf("批量保存文本分块失败: %w", err)
	}
	log.Infof("[Processor] 成功将 %d 个分块存入数据库", len(rows))

	// 5. 索引到 Elasticsearch，失败不影响结果
	if p.indexer != nil {
		docs := make([]model.ChunkDocument, 0, len(rows))
		for _, row := range rows {
			docs = append(docs, model.ChunkDocument{
				ChunkID:    row.ID,
				MaterialID: materialID,
				UserID:     material.UserID,
				ChunkIndex: row.ChunkIndex,
				ChunkText:  row.ChunkText,
			})
		}
		if err := p.indexer.ReplaceMaterialChunks(ctx, materialID, docs); err != nil {
			log.Warnf("[Processor] 索引分块到Elasticsearch失败, MaterialID: %s, Error: %v", materialID, err)
		}
	}

	metrics.MaterialsProcessed.WithLabelValues(model.MaterialReady).Inc()
	log.Infof("[Processor] 资料处理成功完成, MaterialID: %s", materialID)
	return len(rows), nil
}

// extractText 文本类文件直接解码，其他类型交给 Tika。提取失败或结果为空时返回占位文本。
func (p *Processor) extractText(ctx context.Context, material *model.Material, data []byte) string {
	var text string
	if isPlainText(material.ContentType, material.FileName) {
		text = string(data)
	} else {
		extracted, err := p.extractor.ExtractText(ctx, bytes.NewReader(data), material.FileName, material.ContentType)
		if err != nil {
			log.Warnf("[Processor] 使用Tika提取文本失败, FileName: %s, Error: %v", material.FileName, err)
		}
		text = extracted
	}

	// Postgres 的 text 列不接受 NUL 和非法 UTF-8
	text = strings.ToValidUTF8(strings.ReplaceAll(text, "\x00", ""), "")
	if strings.TrimSpace(text) == "" {
		return ExtractionFailedText
	}
	return text
}

func (p *Processor) markError(ctx context.Context, materialID string) {
	metrics.MaterialsProcessed.WithLabelValues(model.MaterialError).Inc()
	if err := p.materialRepo.UpdateStatus(ctx, materialID, model.MaterialError); err != nil {
		log.Errorf("[Processor] 更新资料状态失败, MaterialID: %s, Error: %v", materialID, err)
	}
}

func isPlainText(contentType, fileName string) bool {
	if strings.Contains(contentType, "text") {
		return true
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	return ext == ".txt" || ext == ".md"
}

// truncateRunes 截断到最多 n 个字符。
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
