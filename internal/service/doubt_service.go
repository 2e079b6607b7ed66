package service

import (
	"context"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"studymind-go/internal/model"
	"studymind-go/internal/repository"
	"studymind-go/pkg/llm"
	"studymind-go/pkg/log"
	"studymind-go/pkg/sse"
	"studymind-go/pkg/stream"
)

const (
	questionPreviewRunes = 200
	historyTurns         = 20
)

// DoubtRequest 是一次答疑请求。UserID 为空表示匿名用户，不做任何持久化。
type DoubtRequest struct {
	UserID    string
	Question  string
	SessionID string
}

// DoubtStream 是交给浏览器的上游 SSE 流以及本次使用的会话 ID（可能为空）。
type DoubtStream struct {
	SessionID string
	Body      io.ReadCloser
}

// DoubtService 定义了答疑操作的接口。
type DoubtService interface {
	Solve(ctx context.Context, req DoubtRequest) (*DoubtStream, error)
	ListSessions(ctx context.Context, userID string) ([]model.DoubtSession, error)
	ListMessages(ctx context.Context, userID, sessionID string) ([]model.DoubtMessage, error)
}

type doubtService struct {
	llmClient  llm.Client
	doubtRepo  repository.DoubtRepository
	history    repository.HistoryCache // 可以为 nil
	usage      usageRecorder
	background *Background
	prompt     string
}

// NewDoubtService 创建一个新的 DoubtService 实例。
func NewDoubtService(
	llmClient llm.Client,
	doubtRepo repository.DoubtRepository,
	history repository.HistoryCache,
	usageRepo repository.UsageRepository,
	background *Background,
	systemPrompt string,
) DoubtService {
	return &doubtService{
		llmClient:  llmClient,
		doubtRepo:  doubtRepo,
		history:    history,
		usage:      usageRecorder{repo: usageRepo, modelName: llmClient.Model()},
		background: background,
		prompt:     promptOr(systemPrompt, defaultDoubtPrompt),
	}
}

// Solve 在调用网关之前准备会话，然后把上游流分成两路：一路返回给调用方，
// 另一路由后台 goroutine 读完并保存助手回答和用量记录。
func (s *doubtService) Solve(ctx context.Context, req DoubtRequest) (*DoubtStream, error) {
	sessionID := req.SessionID
	var history []model.ChatMessage
	if req.UserID != "" {
		sessionID, history = s.prepareSession(ctx, req)
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: s.prompt})
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: model.RoleUser, Content: req.Question})

	// 浏览器断开不应取消上游请求，否则后台无法拿到完整回答
	body, err := s.llmClient.StreamChat(context.WithoutCancel(ctx), messages)
	observeAI(model.FeatureDoubt, err)
	if err != nil {
		return nil, err
	}

	if req.UserID == "" || sessionID == "" {
		return &DoubtStream{SessionID: sessionID, Body: body}, nil
	}

	clientBranch, saveBranch := stream.Tee(body)
	userID, question := req.UserID, req.Question
	s.background.Go("doubt-persist", func(bg context.Context) {
		s.persistAnswer(bg, userID, sessionID, question, saveBranch)
	})
	return &DoubtStream{SessionID: sessionID, Body: clientBranch}, nil
}

// prepareSession 复用属于该用户的会话并加载历史，否则新建会话；两种情况下都先保存用户消息。
// 持久化失败只记录日志，返回的会话 ID 可能为空。
func (s *doubtService) prepareSession(ctx context.Context, req DoubtRequest) (string, []model.ChatMessage) {
	if req.SessionID != "" {
		session, err := s.doubtRepo.FindSession(ctx, req.SessionID)
		if err != nil {
			persistenceFailed(model.FeatureDoubt, "查询答疑会话失败", err)
		}
		if session != nil && session.UserID == req.UserID {
			history := s.loadHistory(ctx, session.ID)
			s.saveMessage(ctx, session.ID, model.RoleUser, req.Question)
			return session.ID, history
		}
		if err == nil {
			log.Warnf("[DoubtService] 会话 %s 不属于用户 %s，新建会话", req.SessionID, req.UserID)
		}
	}

	session := &model.DoubtSession{
		UserID:          req.UserID,
		QuestionPreview: truncatePreview(req.Question),
	}
	if err := s.doubtRepo.CreateSession(ctx, session); err != nil {
		persistenceFailed(model.FeatureDoubt, "创建答疑会话失败", err)
		return "", nil
	}
	s.saveMessage(ctx, session.ID, model.RoleUser, req.Question)
	return session.ID, nil
}

// loadHistory 优先读 Redis 缓存，未命中时从数据库重建缓存。
func (s *doubtService) loadHistory(ctx context.Context, sessionID string) []model.ChatMessage {
	if s.history != nil {
		cached, err := s.history.Get(ctx, sessionID)
		if err != nil {
			log.Warnf("[DoubtService] 读取会话缓存失败, session=%s: %v", sessionID, err)
		} else if cached != nil {
			return cached
		}
	}

	rows, err := s.doubtRepo.ListMessages(ctx, sessionID, historyTurns)
	if err != nil {
		log.Errorf("[DoubtService] 加载会话历史失败, session=%s: %v", sessionID, err)
		return nil
	}
	history := make([]model.ChatMessage, 0, len(rows))
	for _, row := range rows {
		history = append(history, model.ChatMessage{Role: row.Role, Content: row.MessageText, Timestamp: row.CreatedAt})
	}
	if s.history != nil {
		if err := s.history.Set(ctx, sessionID, history); err != nil {
			log.Warnf("[DoubtService] 写入会话缓存失败, session=%s: %v", sessionID, err)
		}
	}
	return history
}

func (s *doubtService) saveMessage(ctx context.Context, sessionID, role, text string) {
	msg := &model.DoubtMessage{DoubtSessionID: sessionID, Role: role, MessageText: text}
	if err := s.doubtRepo.CreateMessage(ctx, msg); err != nil {
		persistenceFailed(model.FeatureDoubt, fmt.Sprintf("保存 %s 消息失败", role), err)
	}
}

// persistAnswer 读完保存分支，拼出完整回答后写入数据库。
func (s *doubtService) persistAnswer(ctx context.Context, userID, sessionID, question string, branch io.ReadCloser) {
	defer branch.Close()

	status := usageSuccess
	answer, err := sse.Accumulate(branch)
	if err != nil {
		// 上游中断时仍保存已经收到的部分
		log.Warnf("[DoubtService] 读取上游流失败, session=%s: %v", sessionID, err)
		status = usageError
	}

	turn := []model.ChatMessage{{Role: model.RoleUser, Content: question, Timestamp: time.Now()}}
	if answer != "" {
		s.saveMessage(ctx, sessionID, model.RoleAssistant, answer)
		turn = append(turn, model.ChatMessage{Role: model.RoleAssistant, Content: answer, Timestamp: time.Now()})
	}
	if s.history != nil {
		if err := s.history.Append(ctx, sessionID, turn...); err != nil {
			log.Warnf("[DoubtService] 更新会话缓存失败, session=%s: %v", sessionID, err)
		}
	}

	s.usage.recordStatus(ctx, userID, model.FeatureDoubt, status)
	log.Infof("[DoubtService] 已保存回答, session=%s, 长度=%d", sessionID, utf8.RuneCountInString(answer))
}

func (s *doubtService) ListSessions(ctx context.Context, userID string) ([]model.DoubtSession, error) {
	return s.doubtRepo.ListSessionsByUser(ctx, userID)
}

// ListMessages 返回会话的全部消息，会话不存在或不属于该用户时返回 ErrSessionNotFound。
func (s *doubtService) ListMessages(ctx context.Context, userID, sessionID string) ([]model.DoubtMessage, error) {
	session, err := s.doubtRepo.FindSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return s.doubtRepo.ListMessages(ctx, sessionID, 0)
}

func truncatePreview(question string) string {
	if utf8.RuneCountInString(question) <= questionPreviewRunes {
		return question
	}
	return string([]rune(question)[:questionPreviewRunes])
}
