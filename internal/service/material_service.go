package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"studymind-go/internal/config"
	"studymind-go/internal/model"
	"studymind-go/internal/repository"
	"studymind-go/pkg/llm"
	"studymind-go/pkg/log"
	"studymind-go/pkg/tasks"
)

// ObjectStore 是资料文件所在的对象存储。
type ObjectStore interface {
	Put(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error
	PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// ChunkSearcher 在一份资料的切块中做全文检索。
type ChunkSearcher interface {
	SearchMaterial(ctx context.Context, materialID, question string, size int) ([]model.ChunkDocument, error)
}

// TaskPublisher 把资料处理任务交给异步消费者。
type TaskPublisher interface {
	PublishMaterialTask(ctx context.Context, task tasks.MaterialProcessingTask) error
}

// MaterialProcessor 由 pipeline.Processor 实现。
type MaterialProcessor interface {
	Process(ctx context.Context, materialID string) (int, error)
}

// MaterialView 是资料列表中的一项。
type MaterialView struct {
	model.Material
	DownloadURL string `json:"download_url,omitempty"`
}

// MaterialService 定义了学习资料的上传、处理和问答接口。
type MaterialService interface {
	Upload(ctx context.Context, userID string, file *multipart.FileHeader) (*model.Material, error)
	List(ctx context.Context, userID string) ([]MaterialView, error)
	Process(ctx context.Context, userID, materialID string) (int, error)
	Query(ctx context.Context, userID, materialID, question string) (io.ReadCloser, error)
}

type materialService struct {
	llmClient    llm.Client
	materialRepo repository.MaterialRepository
	chunkRepo    repository.MaterialChunkRepository
	processor    MaterialProcessor
	store        ObjectStore
	searcher     ChunkSearcher // 未启用 Elasticsearch 时为 nil
	publisher    TaskPublisher // 未启用 Kafka 时为 nil
	usage        usageRecorder
	background   *Background
	cfg          config.MaterialConfig
	prompt       string
}

// MaterialDeps 汇总 MaterialService 的依赖。
type MaterialDeps struct {
	LLM          llm.Client
	MaterialRepo repository.MaterialRepository
	ChunkRepo    repository.MaterialChunkRepository
	UsageRepo    repository.UsageRepository
	Processor    MaterialProcessor
	Store        ObjectStore
	Searcher     ChunkSearcher
	Publisher    TaskPublisher
	Background   *Background
	Config       config.MaterialConfig
	SystemPrompt string
}

// NewMaterialService 创建一个新的 MaterialService 实例。
func NewMaterialService(d MaterialDeps) MaterialService {
	cfg := d.Config
	if cfg.ContextChunks <= 0 {
		cfg.ContextChunks = 10
	}
	if cfg.FallbackContext <= 0 {
		cfg.FallbackContext = 8000
	}
	if cfg.MaxUploadSizeMiB <= 0 {
		cfg.MaxUploadSizeMiB = 20
	}
	return &materialService{
		llmClient:    d.LLM,
		materialRepo: d.MaterialRepo,
		chunkRepo:    d.ChunkRepo,
		processor:    d.Processor,
		store:        d.Store,
		searcher:     d.Searcher,
		publisher:    d.Publisher,
		usage:        usageRecorder{repo: d.UsageRepo, modelName: d.LLM.Model()},
		background:   d.Background,
		cfg:          cfg,
		prompt:       promptOr(d.SystemPrompt, defaultMaterialPrompt),
	}
}

// Upload 把文件存入对象存储，创建 processing 状态的资料记录，并发布处理任务。
func (s *materialService) Upload(ctx context.Context, userID string, file *multipart.FileHeader) (*model.Material, error) {
	if file.Size > int64(s.cfg.MaxUploadSizeMiB)<<20 {
		return nil, fmt.Errorf("%w: limit is %d MiB", ErrFileTooLarge, s.cfg.MaxUploadSizeMiB)
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("打开上传文件失败: %w", err)
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(file.Filename))
	contentType := file.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			contentType = byExt
		}
	}
	objectName := fmt.Sprintf("%s/%s%s", userID, uuid.NewString(), ext)
	if err := s.store.Put(ctx, objectName, src, file.Size, contentType); err != nil {
		return nil, err
	}

	material := &model.Material{
		UserID:           userID,
		FileName:         file.Filename,
		StoragePath:      objectName,
		ContentType:      contentType,
		FileSize:         file.Size,
		ProcessingStatus: model.MaterialProcessing,
	}
	if err := s.materialRepo.Create(ctx, material); err != nil {
		return nil, fmt.Errorf("保存资料记录失败: %w", err)
	}
	log.Infof("[MaterialService] 资料已上传, MaterialID: %s, Object: %s", material.ID, objectName)

	if s.publisher != nil {
		task := tasks.MaterialProcessingTask{
			MaterialID:  material.ID,
			UserID:      userID,
			StoragePath: objectName,
			FileName:    file.Filename,
		}
		if err := s.publisher.PublishMaterialTask(ctx, task); err != nil {
			// 客户端仍可以主动调用 /process-material
			log.Warnf("[MaterialService] 发布资料处理任务失败, MaterialID: %s: %v", material.ID, err)
		}
	}
	return material, nil
}

func (s *materialService) List(ctx context.Context, userID string) ([]MaterialView, error) {
	materials, err := s.materialRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]MaterialView, 0, len(materials))
	for _, m := range materials {
		view := MaterialView{Material: m}
		if url, err := s.store.PresignedURL(ctx, m.StoragePath, time.Hour); err == nil {
			view.DownloadURL = url
		}
		views = append(views, view)
	}
	return views, nil
}

// Process 同步处理一份资料。userID 非空时只能处理自己的资料。
func (s *materialService) Process(ctx context.Context, userID, materialID string) (int, error) {
	if userID != "" {
		if _, err := s.findOwned(ctx, userID, materialID); err != nil {
			return 0, err
		}
	}
	return s.processor.Process(ctx, materialID)
}

// findOwned 加载资料；资料不存在或属于其他用户时都返回 ErrMaterialNotFound。
func (s *materialService) findOwned(ctx context.Context, userID, materialID string) (*model.Material, error) {
	material, err := s.materialRepo.FindByID(ctx, materialID)
	if err != nil {
		return nil, fmt.Errorf("查询资料失败: %w", err)
	}
	if material == nil || (userID != "" && material.UserID != userID) {
		return nil, ErrMaterialNotFound
	}
	return material, nil
}

// Query 用资料内容作为上下文向网关提问，返回上游 SSE 流。userID 非空时只能查询自己的资料。
func (s *materialService) Query(ctx context.Context, userID, materialID, question string) (io.ReadCloser, error) {
	material, err := s.findOwned(ctx, userID, materialID)
	if err != nil {
		return nil, err
	}
	if material.ExtractedText == nil || *material.ExtractedText == "" {
		return nil, ErrNoExtractedText
	}

	contextText := s.buildContext(ctx, material, question)
	messages := []llm.Message{
		{Role: "system", Content: materialSystemPrompt(s.prompt, material.FileName, contextText)},
		{Role: model.RoleUser, Content: question},
	}

	body, err := s.llmClient.StreamChat(context.WithoutCancel(ctx), messages)
	observeAI(model.FeatureMaterial, err)
	if err != nil {
		return nil, err
	}

	if userID != "" {
		s.background.Go("material-usage", func(bg context.Context) {
			s.usage.record(bg, userID, model.FeatureMaterial)
		})
	}
	return body, nil
}

// buildContext 依次尝试：全文检索命中的切块、按顺序的前 N 个切块、提取文本的开头部分。
func (s *materialService) buildContext(ctx context.Context, material *model.Material, question string) string {
	if s.searcher != nil {
		docs, err := s.searcher.SearchMaterial(ctx, material.ID, question, s.cfg.ContextChunks)
		if err != nil {
			log.Warnf("[MaterialService] 全文检索失败, 回退到顺序切块, MaterialID: %s: %v", material.ID, err)
		} else if len(docs) > 0 {
			texts := make([]string, 0, len(docs))
			for _, d := range docs {
				texts = append(texts, d.ChunkText)
			}
			return strings.Join(texts, "\n\n")
		}
	}

	chunks, err := s.chunkRepo.FindByMaterialID(ctx, material.ID, s.cfg.ContextChunks)
	if err != nil {
		log.Warnf("[MaterialService] 读取切块失败, MaterialID: %s: %v", material.ID, err)
	}
	if len(chunks) > 0 {
		texts := make([]string, 0, len(chunks))
		for _, c := range chunks {
			texts = append(texts, c.ChunkText)
		}
		return strings.Join(texts, "\n\n")
	}

	text := *material.ExtractedText
	if utf8.RuneCountInString(text) > s.cfg.FallbackContext {
		text = string([]rune(text)[:s.cfg.FallbackContext])
	}
	return text
}
