package service

import (
	"context"
	"fmt"
	"time"

	"studymind-go/internal/model"
	"studymind-go/internal/repository"
	"studymind-go/pkg/log"
	"studymind-go/pkg/metrics"
)

const (
	xpPerCorrectAnswer = 10
	xpPerStudyMinute   = 5
	minStudySeconds    = 10

	DefaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

type QuizAttemptInput struct {
	QuizID         string
	TopicID        string
	TopicTitle     string
	Score          int
	TotalQuestions int
}

type StudySessionInput struct {
	StartedAt       time.Time
	EndedAt         *time.Time
	DurationSeconds int
}

// Stats 是 /me/stats 的响应。
type Stats struct {
	TotalXP       int `json:"totalXp"`
	StudySeconds  int `json:"studySeconds"`
	CurrentStreak int `json:"currentStreak"`
	LongestStreak int `json:"longestStreak"`
}

// ProgressService 负责 XP、学习时长、连续学习天数和排行榜。
type ProgressService interface {
	SubmitQuizAttempt(ctx context.Context, userID string, in QuizAttemptInput) (*model.QuizAttempt, error)
	RecordStudySession(ctx context.Context, userID string, in StudySessionInput) (*model.StudySession, error)
	Stats(ctx context.Context, userID string) (*Stats, error)
	Leaderboard(ctx context.Context, limit int) ([]repository.LeaderboardEntry, error)
}

type progressService struct {
	quizRepo     repository.QuizRepository
	progressRepo repository.ProgressRepository
	leaderboard  repository.LeaderboardCache // 可以为 nil
}

// NewProgressService 创建一个新的 ProgressService 实例。
func NewProgressService(quizRepo repository.QuizRepository, progressRepo repository.ProgressRepository, leaderboard repository.LeaderboardCache) ProgressService {
	return &progressService{quizRepo: quizRepo, progressRepo: progressRepo, leaderboard: leaderboard}
}

// SubmitQuizAttempt 记录一次测验成绩，每答对一题奖励 10 XP。
// 引用已保存的测验时，题目总数必须与测验一致。
// 成绩和 XP 流水分两次写入，XP 流水写入失败只记录日志。
func (s *progressService) SubmitQuizAttempt(ctx context.Context, userID string, in QuizAttemptInput) (*model.QuizAttempt, error) {
	if in.QuizID != "" {
		questions, err := s.quizRepo.FindQuestions(ctx, in.QuizID)
		if err != nil {
			return nil, fmt.Errorf("查询测验题目失败: %w", err)
		}
		// 未保存的测验（生成时持久化失败）没有题目，不做校验
		if len(questions) > 0 && len(questions) != in.TotalQuestions {
			return nil, fmt.Errorf("%w: quiz %s has %d questions, got %d", ErrQuizMismatch, in.QuizID, len(questions), in.TotalQuestions)
		}
	}
	attempt := &model.QuizAttempt{
		UserID:         userID,
		QuizID:         optional(in.QuizID),
		TopicID:        optional(in.TopicID),
		TopicTitle:     in.TopicTitle,
		Score:          in.Score,
		TotalQuestions: in.TotalQuestions,
		XPAwarded:      in.Score * xpPerCorrectAnswer,
	}
	if err := s.quizRepo.CreateAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("保存测验成绩失败: %w", err)
	}
	s.awardXP(ctx, userID, model.XPSourceQuiz, attempt.ID, attempt.XPAwarded)
	return attempt, nil
}

// RecordStudySession 记录一次学习，每满一分钟奖励 5 XP，并更新连续学习天数。
func (s *progressService) RecordStudySession(ctx context.Context, userID string, in StudySessionInput) (*model.StudySession, error) {
	if in.DurationSeconds < minStudySeconds {
		return nil, ErrSessionTooShort
	}
	session := &model.StudySession{
		UserID:          userID,
		StartedAt:       in.StartedAt,
		EndedAt:         in.EndedAt,
		DurationSeconds: in.DurationSeconds,
		XPAwarded:       in.DurationSeconds / 60 * xpPerStudyMinute,
	}
	if err := s.progressRepo.CreateStudySession(ctx, session); err != nil {
		return nil, fmt.Errorf("保存学习记录失败: %w", err)
	}
	s.awardXP(ctx, userID, model.XPSourceStudySession, session.ID, session.XPAwarded)

	studyDay := in.StartedAt.Add(time.Duration(in.DurationSeconds) * time.Second)
	if in.EndedAt != nil {
		studyDay = *in.EndedAt
	}
	if err := s.updateStreak(ctx, userID, studyDay); err != nil {
		log.Errorf("[ProgressService] 更新连续学习天数失败, user=%s: %v", userID, err)
	}
	return session, nil
}

func (s *progressService) awardXP(ctx context.Context, userID, source, referenceID string, amount int) {
	if amount <= 0 {
		return
	}
	entry := &model.XPLog{UserID: userID, SourceType: source, ReferenceID: optional(referenceID), XPAmount: amount}
	if err := s.progressRepo.CreateXPLog(ctx, entry); err != nil {
		log.Errorf("[ProgressService] 写入 xp_logs 失败, user=%s, source=%s: %v", userID, source, err)
		metrics.PersistenceFailures.WithLabelValues(source).Inc()
		return
	}
	metrics.XPAwarded.WithLabelValues(source).Add(float64(amount))
}

// updateStreak 同一天不变，隔天加一，中断后重置为 1。日期按 UTC 计算。
func (s *progressService) updateStreak(ctx context.Context, userID string, at time.Time) error {
	day := truncateDay(at)
	streak, err := s.progressRepo.FindStreak(ctx, userID)
	if err != nil {
		return err
	}
	if streak == nil {
		streak = &model.UserStreak{UserID: userID}
	}
	streak.CurrentStreak, streak.LongestStreak = nextStreak(streak, day)
	if streak.LastStudyDate == nil || day.After(*streak.LastStudyDate) {
		streak.LastStudyDate = &day
	}
	return s.progressRepo.SaveStreak(ctx, streak)
}

func nextStreak(streak *model.UserStreak, day time.Time) (current, longest int) {
	current, longest = streak.CurrentStreak, streak.LongestStreak
	if streak.LastStudyDate == nil || current == 0 {
		current = 1
	} else {
		gap := int(day.Sub(truncateDay(*streak.LastStudyDate)).Hours() / 24)
		switch {
		case gap == 1:
			current++
		case gap > 1:
			current = 1
		}
	}
	if current > longest {
		longest = current
	}
	return current, longest
}

func (s *progressService) Stats(ctx context.Context, userID string) (*Stats, error) {
	totalXP, err := s.progressRepo.SumXP(ctx, userID)
	if err != nil {
		return nil, err
	}
	seconds, err := s.progressRepo.SumStudySeconds(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats := &Stats{TotalXP: totalXP, StudySeconds: seconds}
	streak, err := s.progressRepo.FindStreak(ctx, userID)
	if err != nil {
		return nil, err
	}
	if streak != nil {
		stats.CurrentStreak = streak.CurrentStreak
		stats.LongestStreak = streak.LongestStreak
	}
	return stats, nil
}

// Leaderboard 返回 XP 总和最高的用户，结果在 Redis 中缓存 60 秒。
func (s *progressService) Leaderboard(ctx context.Context, limit int) ([]repository.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	if limit > maxLeaderboardSize {
		limit = maxLeaderboardSize
	}

	if s.leaderboard != nil {
		cached, err := s.leaderboard.Get(ctx, limit)
		if err != nil {
			log.Warnf("[ProgressService] 读取排行榜缓存失败: %v", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	entries, err := s.progressRepo.TopXP(ctx, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []repository.LeaderboardEntry{}
	}
	if s.leaderboard != nil {
		if err := s.leaderboard.Set(ctx, limit, entries); err != nil {
			log.Warnf("[ProgressService] 写入排行榜缓存失败: %v", err)
		}
	}
	return entries, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
