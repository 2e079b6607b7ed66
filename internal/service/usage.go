package service

import (
	"context"
	"errors"

	"studymind-go/internal/model"
	"studymind-go/internal/repository"
	"studymind-go/pkg/llm"
	"studymind-go/pkg/log"
	"studymind-go/pkg/metrics"
)

// ai_usage_logs.request_status 的取值
const (
	usageSuccess = "success"
	usageError   = "error"
)

// usageRecorder 为每次 AI 调用写一行 ai_usage_logs，失败只记日志。
type usageRecorder struct {
	repo      repository.UsageRepository
	modelName string
}

func (u usageRecorder) record(ctx context.Context, userID, feature string) {
	u.recordStatus(ctx, userID, feature, usageSuccess)
}

// recordStatus 用于上游流中途失败的情况，status 为 usageError。
func (u usageRecorder) recordStatus(ctx context.Context, userID, feature, status string) {
	if userID == "" || u.repo == nil {
		return
	}
	entry := &model.AIUsageLog{
		UserID:        userID,
		FeatureType:   feature,
		ModelName:     u.modelName,
		RequestStatus: status,
	}
	if err := u.repo.Create(ctx, entry); err != nil {
		persistenceFailed(feature, "写入 ai_usage_logs 失败", err)
	}
}

func persistenceFailed(feature, msg string, err error) {
	metrics.PersistenceFailures.WithLabelValues(feature).Inc()
	log.Errorf("[Persistence] feature=%s %s: %v", feature, msg, err)
}

// observeAI 按结果统计一次网关调用。
func observeAI(feature string, err error) {
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, llm.ErrRateLimited):
		status = "rate_limited"
	case errors.Is(err, llm.ErrCreditsExhausted):
		status = "credits_exhausted"
	default:
		status = "error"
	}
	metrics.AIRequests.WithLabelValues(feature, status).Inc()
}
