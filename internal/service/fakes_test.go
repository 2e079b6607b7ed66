package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing/iotest"
	"time"

	"studymind-go/internal/model"
	"studymind-go/internal/repository"
	"studymind-go/pkg/llm"
	"studymind-go/pkg/tasks"
)

func sseBody(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		chunk, _ := json.Marshal(map[string]interface{}{
			"choices": []interface{}{map[string]interface{}{"delta": map[string]string{"content": p}}},
		})
		fmt.Fprintf(&b, "data: %s\n\n", chunk)
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

type fakeLLM struct {
	mu        sync.Mutex
	stream    string
	toolArgs  string
	err       error
	// streamErr 非空时，流在 stream 之后以该错误中断
	streamErr error
	calls     [][]llm.Message
	ctxErr    []error
}

func (f *fakeLLM) StreamChat(ctx context.Context, messages []llm.Message) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messages)
	f.ctxErr = append(f.ctxErr, ctx.Err())
	if f.err != nil {
		return nil, f.err
	}
	if f.streamErr != nil {
		return io.NopCloser(io.MultiReader(strings.NewReader(f.stream), iotest.ErrReader(f.streamErr))), nil
	}
	return io.NopCloser(strings.NewReader(f.stream)), nil
}

func (f *fakeLLM) CallTool(_ context.Context, messages []llm.Message, tool llm.Tool) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.toolArgs), nil
}

func (f *fakeLLM) Model() string { return "test-model" }

func (f *fakeLLM) lastCall() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeDoubtRepo struct {
	mu         sync.Mutex
	sessions   map[string]*model.DoubtSession
	messages   []model.DoubtMessage
	failCreate bool
	seq        int
}

func newFakeDoubtRepo() *fakeDoubtRepo {
	return &fakeDoubtRepo{sessions: map[string]*model.DoubtSession{}}
}

func (f *fakeDoubtRepo) CreateSession(_ context.Context, s *model.DoubtSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return errors.New("db down")
	}
	f.seq++
	s.ID = fmt.Sprintf("session-%d", f.seq)
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeDoubtRepo) FindSession(_ context.Context, id string) (*model.DoubtSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeDoubtRepo) ListSessionsByUser(_ context.Context, userID string) ([]model.DoubtSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.DoubtSession
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeDoubtRepo) CreateMessage(_ context.Context, m *model.DoubtMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return errors.New("db down")
	}
	m.CreatedAt = time.Now()
	f.messages = append(f.messages, *m)
	return nil
}

func (f *fakeDoubtRepo) ListMessages(_ context.Context, sessionID string, limit int) ([]model.DoubtMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.DoubtMessage
	for _, m := range f.messages {
		if m.DoubtSessionID == sessionID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeDoubtRepo) messagesFor(sessionID string) []model.DoubtMessage {
	out, _ := f.ListMessages(context.Background(), sessionID, 0)
	return out
}

type fakeHistory struct {
	mu    sync.Mutex
	cache map[string][]model.ChatMessage
}

func (f *fakeHistory) Get(_ context.Context, id string) ([]model.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cache[id], nil
}

func (f *fakeHistory) Append(_ context.Context, id string, msgs ...model.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.cache[id]; ok {
		f.cache[id] = append(h, msgs...)
	}
	return nil
}

func (f *fakeHistory) Set(_ context.Context, id string, msgs []model.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache[id] = append([]model.ChatMessage{}, msgs...)
	return nil
}

type fakeUsageRepo struct {
	mu      sync.Mutex
	entries []model.AIUsageLog
}

func (f *fakeUsageRepo) Create(_ context.Context, e *model.AIUsageLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeUsageRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func (f *fakeUsageRepo) last() model.AIUsageLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[len(f.entries)-1]
}

type fakeQuizRepo struct {
	mu        sync.Mutex
	quizzes   []*model.Quiz
	questions []*model.QuizQuestion
	attempts  []*model.QuizAttempt
	fail      bool
}

func (f *fakeQuizRepo) CreateWithQuestions(_ context.Context, quiz *model.Quiz, qs []*model.QuizQuestion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("insert quiz: db down")
	}
	quiz.ID = fmt.Sprintf("quiz-%d", len(f.quizzes)+1)
	f.quizzes = append(f.quizzes, quiz)
	for _, q := range qs {
		q.QuizID = quiz.ID
	}
	f.questions = append(f.questions, qs...)
	return nil
}

func (f *fakeQuizRepo) FindQuestions(_ context.Context, quizID string) ([]model.QuizQuestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.QuizQuestion
	for _, q := range f.questions {
		if q.QuizID == quizID {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (f *fakeQuizRepo) CreateAttempt(_ context.Context, a *model.QuizAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("db down")
	}
	a.ID = fmt.Sprintf("attempt-%d", len(f.attempts)+1)
	f.attempts = append(f.attempts, a)
	return nil
}

type fakeProgressRepo struct {
	xp       []model.XPLog
	sessions []model.StudySession
	streaks  map[string]model.UserStreak
	top      []repository.LeaderboardEntry
	topCalls int
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{streaks: map[string]model.UserStreak{}}
}

func (f *fakeProgressRepo) CreateXPLog(_ context.Context, e *model.XPLog) error {
	f.xp = append(f.xp, *e)
	return nil
}

func (f *fakeProgressRepo) CreateStudySession(_ context.Context, s *model.StudySession) error {
	s.ID = fmt.Sprintf("study-%d", len(f.sessions)+1)
	f.sessions = append(f.sessions, *s)
	return nil
}

func (f *fakeProgressRepo) FindStreak(_ context.Context, userID string) (*model.UserStreak, error) {
	s, ok := f.streaks[userID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeProgressRepo) SaveStreak(_ context.Context, s *model.UserStreak) error {
	f.streaks[s.UserID] = *s
	return nil
}

func (f *fakeProgressRepo) SumXP(_ context.Context, userID string) (int, error) {
	total := 0
	for _, e := range f.xp {
		if e.UserID == userID {
			total += e.XPAmount
		}
	}
	return total, nil
}

func (f *fakeProgressRepo) SumStudySeconds(_ context.Context, userID string) (int, error) {
	total := 0
	for _, s := range f.sessions {
		if s.UserID == userID {
			total += s.DurationSeconds
		}
	}
	return total, nil
}

func (f *fakeProgressRepo) TopXP(_ context.Context, limit int) ([]repository.LeaderboardEntry, error) {
	f.topCalls++
	return f.top, nil
}

type fakeLeaderboardCache struct {
	entries map[int][]repository.LeaderboardEntry
}

func (f *fakeLeaderboardCache) Get(_ context.Context, limit int) ([]repository.LeaderboardEntry, error) {
	return f.entries[limit], nil
}

func (f *fakeLeaderboardCache) Set(_ context.Context, limit int, e []repository.LeaderboardEntry) error {
	f.entries[limit] = e
	return nil
}

type fakeMaterialRepo struct {
	materials map[string]*model.Material
	created   []*model.Material
}

func (f *fakeMaterialRepo) Create(_ context.Context, m *model.Material) error {
	m.ID = fmt.Sprintf("material-%d", len(f.created)+1)
	f.created = append(f.created, m)
	f.materials[m.ID] = m
	return nil
}

func (f *fakeMaterialRepo) FindByID(_ context.Context, id string) (*model.Material, error) {
	m, ok := f.materials[id]
	if !ok {
		return nil, nil
	}
	return m, nil
}

func (f *fakeMaterialRepo) ListByUser(_ context.Context, userID string) ([]model.Material, error) {
	var out []model.Material
	for _, m := range f.created {
		if m.UserID == userID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMaterialRepo) SetExtractedText(context.Context, string, string, string) error { return nil }
func (f *fakeMaterialRepo) UpdateStatus(context.Context, string, string) error             { return nil }

type fakeChunkRepo struct {
	chunks []model.MaterialChunk
}

func (f *fakeChunkRepo) BatchCreate(context.Context, []*model.MaterialChunk) error { return nil }

func (f *fakeChunkRepo) FindByMaterialID(_ context.Context, _ string, limit int) ([]model.MaterialChunk, error) {
	if limit > 0 && len(f.chunks) > limit {
		return f.chunks[:limit], nil
	}
	return f.chunks, nil
}

func (f *fakeChunkRepo) DeleteByMaterialID(context.Context, string) error { return nil }

type fakeStore struct {
	objects map[string][]byte
}

func (f *fakeStore) Put(_ context.Context, name string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[name] = data
	return nil
}

func (f *fakeStore) PresignedURL(_ context.Context, name string, _ time.Duration) (string, error) {
	return "https://minio.local/" + name, nil
}

type fakeSearcher struct {
	docs []model.ChunkDocument
	err  error
}

func (f *fakeSearcher) SearchMaterial(context.Context, string, string, int) ([]model.ChunkDocument, error) {
	return f.docs, f.err
}

type fakePublisher struct {
	tasks []tasks.MaterialProcessingTask
}

func (f *fakePublisher) PublishMaterialTask(_ context.Context, t tasks.MaterialProcessingTask) error {
	f.tasks = append(f.tasks, t)
	return nil
}
