package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"studymind-go/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.All()...))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestDoubtRepository_SessionsAndMessages(t *testing.T) {
	ctx := context.Background()
	repo := NewDoubtRepository(newTestDB(t))

	session := &model.DoubtSession{UserID: "u1", QuestionPreview: "What is a derivative?"}
	require.NoError(t, repo.CreateSession(ctx, session))
	require.NotEmpty(t, session.ID)

	for i, text := range []string{"q1", "a1", "q2", "a2"} {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		require.NoError(t, repo.CreateMessage(ctx, &model.DoubtMessage{DoubtSessionID: session.ID, Role: role, MessageText: text}))
		time.Sleep(2 * time.Millisecond)
	}

	all, err := repo.ListMessages(ctx, session.ID, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "q1", all[0].MessageText)
	assert.Equal(t, "a2", all[3].MessageText)

	recent, err := repo.ListMessages(ctx, session.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "q2", recent[0].MessageText)
	assert.Equal(t, "a2", recent[1].MessageText)

	found, err := repo.FindSession(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "u1", found.UserID)

	missing, err := repo.FindSession(ctx, "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Nil(t, missing)

	sessions, err := repo.ListSessionsByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestMaterialRepositories(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	materials := NewMaterialRepository(db)
	chunks := NewMaterialChunkRepository(db)

	m := &model.Material{UserID: "u1", FileName: "bio.pdf", StoragePath: "u1/x.pdf", ContentType: "application/pdf"}
	require.NoError(t, materials.Create(ctx, m))

	got, err := materials.FindByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MaterialProcessing, got.ProcessingStatus)
	assert.Nil(t, got.ExtractedText)

	require.NoError(t, materials.SetExtractedText(ctx, m.ID, "cells", model.MaterialReady))
	got, err = materials.FindByID(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ExtractedText)
	assert.Equal(t, "cells", *got.ExtractedText)
	assert.Equal(t, model.MaterialReady, got.ProcessingStatus)

	list, err := materials.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].ExtractedText)

	batch := make([]*model.MaterialChunk, 0, 150)
	for i := 0; i < 150; i++ {
		batch = append(batch, &model.MaterialChunk{MaterialID: m.ID, ChunkIndex: i, ChunkText: fmt.Sprintf("chunk %d", i)})
	}
	require.NoError(t, chunks.BatchCreate(ctx, batch))

	first, err := chunks.FindByMaterialID(ctx, m.ID, 10)
	require.NoError(t, err)
	require.Len(t, first, 10)
	assert.Equal(t, 0, first[0].ChunkIndex)
	assert.Equal(t, 9, first[9].ChunkIndex)

	require.NoError(t, chunks.DeleteByMaterialID(ctx, m.ID))
	rest, err := chunks.FindByMaterialID(ctx, m.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, rest)
}

func TestQuizRepository_CreateWithQuestions(t *testing.T) {
	ctx := context.Background()
	repo := NewQuizRepository(newTestDB(t))

	quiz := &model.Quiz{GeneratedByAI: true}
	questions := []*model.QuizQuestion{
		{QuestionText: "2+2?", Options: []string{"1", "2", "3", "4"}, CorrectAnswer: "3", Explanation: "sum"},
		{QuestionText: "3*3?", Options: []string{"6", "9", "12", "3"}, CorrectAnswer: "1", Explanation: "product"},
	}
	require.NoError(t, repo.CreateWithQuestions(ctx, quiz, questions))
	require.NotEmpty(t, quiz.ID)

	stored, err := repo.FindQuestions(ctx, quiz.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, q := range stored {
		assert.Len(t, q.Options, 4)
		assert.Equal(t, quiz.ID, q.QuizID)
	}

	attempt := &model.QuizAttempt{UserID: "u1", QuizID: &quiz.ID, TopicTitle: "Math", Score: 2, TotalQuestions: 2, XPAwarded: 20}
	require.NoError(t, repo.CreateAttempt(ctx, attempt))
	assert.NotEmpty(t, attempt.ID)
}

func TestProgressRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressRepository(newTestDB(t))

	for _, e := range []model.XPLog{
		{UserID: "u1", SourceType: model.XPSourceQuiz, XPAmount: 30},
		{UserID: "u1", SourceType: model.XPSourceStudySession, XPAmount: 15},
		{UserID: "u2", SourceType: model.XPSourceQuiz, XPAmount: 50},
		{UserID: "u3", SourceType: model.XPSourceQuiz, XPAmount: 5},
	} {
		e := e
		require.NoError(t, repo.CreateXPLog(ctx, &e))
	}

	total, err := repo.SumXP(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 45, total)

	none, err := repo.SumXP(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, none)

	top, err := repo.TopXP(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []LeaderboardEntry{{UserID: "u2", TotalXP: 50}, {UserID: "u1", TotalXP: 45}}, top)

	require.NoError(t, repo.CreateStudySession(ctx, &model.StudySession{UserID: "u1", StartedAt: time.Now(), DurationSeconds: 600, XPAwarded: 50}))
	require.NoError(t, repo.CreateStudySession(ctx, &model.StudySession{UserID: "u1", StartedAt: time.Now(), DurationSeconds: 120, XPAwarded: 10}))
	secs, err := repo.SumStudySeconds(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 720, secs)

	streak, err := repo.FindStreak(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, streak)

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveStreak(ctx, &model.UserStreak{UserID: "u1", CurrentStreak: 1, LongestStreak: 1, LastStudyDate: &day}))
	next := day.AddDate(0, 0, 1)
	require.NoError(t, repo.SaveStreak(ctx, &model.UserStreak{UserID: "u1", CurrentStreak: 2, LongestStreak: 2, LastStudyDate: &next}))

	streak, err = repo.FindStreak(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, streak)
	assert.Equal(t, 2, streak.CurrentStreak)
	assert.True(t, streak.LastStudyDate.Equal(next))
}
