package service

import (
	"context"
	"fmt"
	"strconv"

	"studymind-go/internal/model"
	"studymind-go/internal/repository"
	"studymind-go/pkg/llm"
	"studymind-go/pkg/log"
)

// DefaultQuizCount 是未指定题目数量时生成的题数。
const DefaultQuizCount = 5

type QuizRequest struct {
	UserID  string
	Topic   string
	Subject string
	Count   int
	TopicID string
}

// QuizResult 是返回给前端的测验；持久化失败时 QuizID 为 nil。
type QuizResult struct {
	Questions []GeneratedQuestion `json:"questions"`
	QuizID    *string             `json:"quizId"`
}

// QuizService 定义了测验生成的接口。
type QuizService interface {
	Generate(ctx context.Context, req QuizRequest) (*QuizResult, error)
}

type quizService struct {
	llmClient  llm.Client
	quizRepo   repository.QuizRepository
	usage      usageRecorder
	background *Background
	prompt     string
}

// NewQuizService 创建一个新的 QuizService 实例。
func NewQuizService(llmClient llm.Client, quizRepo repository.QuizRepository, usageRepo repository.UsageRepository, background *Background, systemPrompt string) QuizService {
	return &quizService{
		llmClient:  llmClient,
		quizRepo:   quizRepo,
		usage:      usageRecorder{repo: usageRepo, modelName: llmClient.Model()},
		background: background,
		prompt:     promptOr(systemPrompt, defaultQuizPrompt),
	}
}

// Generate 通过强制工具调用生成题目，然后保存测验。保存失败不影响返回题目。
func (s *quizService) Generate(ctx context.Context, req QuizRequest) (*QuizResult, error) {
	if req.Count <= 0 {
		req.Count = DefaultQuizCount
	}
	messages := []llm.Message{
		{Role: "system", Content: s.prompt},
		{Role: model.RoleUser, Content: quizUserPrompt(req.Count, req.Topic, req.Subject)},
	}

	raw, err := s.llmClient.CallTool(context.WithoutCancel(ctx), messages, quizTool())
	observeAI(model.FeatureQuiz, err)
	if err != nil {
		return nil, err
	}

	questions, err := ParseQuizPayload(raw, req.Count)
	if err != nil {
		log.Errorf("[QuizService] 工具调用参数不合法, topic=%s: %v", req.Topic, err)
		return nil, err
	}

	result := &QuizResult{Questions: questions, QuizID: s.persist(ctx, req, questions)}
	if req.UserID != "" {
		userID := req.UserID
		s.background.Go("quiz-usage", func(bg context.Context) {
			s.usage.record(bg, userID, model.FeatureQuiz)
		})
	}
	return result, nil
}

func (s *quizService) persist(ctx context.Context, req QuizRequest, questions []GeneratedQuestion) *string {
	quiz := &model.Quiz{GeneratedByAI: true}
	if req.TopicID != "" {
		topicID := req.TopicID
		quiz.TopicID = &topicID
	}
	rows := make([]*model.QuizQuestion, 0, len(questions))
	for _, q := range questions {
		rows = append(rows, &model.QuizQuestion{
			QuestionText:  q.Question,
			Options:       q.Options,
			CorrectAnswer: strconv.Itoa(*q.Correct),
			Explanation:   q.Explanation,
		})
	}

	if err := s.quizRepo.CreateWithQuestions(context.WithoutCancel(ctx), quiz, rows); err != nil {
		persistenceFailed(model.FeatureQuiz, fmt.Sprintf("保存测验失败, topic=%s", req.Topic), err)
		return nil
	}
	log.Infof("[QuizService] 已保存测验 %s, 共 %d 题", quiz.ID, len(rows))
	return &quiz.ID
}
