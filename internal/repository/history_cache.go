package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"studymind-go/internal/model"
)

const (
	historyLimit = 20
	historyTTL   = 7 * 24 * time.Hour
)

// HistoryCache 在 Redis 中缓存答疑会话最近的对话轮次。
type HistoryCache interface {
	// Get 返回 nil, nil 表示缓存未命中。
	Get(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	Append(ctx context.Context, sessionID string, messages ...model.ChatMessage) error
	Set(ctx context.Context, sessionID string, messages []model.ChatMessage) error
}

type redisHistoryCache struct {
	redisClient *redis.Client
}

// NewHistoryCache 创建一个新的 HistoryCache 实例。
func NewHistoryCache(redisClient *redis.Client) HistoryCache {
	return &redisHistoryCache{redisClient: redisClient}
}

func historyKey(sessionID string) string {
	return fmt.Sprintf("doubt:history:%s", sessionID)
}

// Get 从 Redis 获取对话历史记录。
func (r *redisHistoryCache) Get(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	jsonData, err := r.redisClient.Get(ctx, historyKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get doubt history: %w", err)
	}
	var messages []model.ChatMessage
	if err := json.Unmarshal([]byte(jsonData), &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal doubt history: %w", err)
	}
	return messages, nil
}

// Append 在缓存已存在时追加消息。缓存未命中时什么都不做，下次读取会从数据库重建。
func (r *redisHistoryCache) Append(ctx context.Context, sessionID string, messages ...model.ChatMessage) error {
	history, err := r.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if history == nil {
		return nil
	}
	return r.Set(ctx, sessionID, append(history, messages...))
}

// Set 覆盖缓存，只保留最近 20 条。
func (r *redisHistoryCache) Set(ctx context.Context, sessionID string, messages []model.ChatMessage) error {
	if len(messages) > historyLimit {
		messages = messages[len(messages)-historyLimit:]
	}
	jsonData, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal doubt history: %w", err)
	}
	if err := r.redisClient.Set(ctx, historyKey(sessionID), jsonData, historyTTL).Err(); err != nil {
		return fmt.Errorf("failed to set doubt history: %w", err)
	}
	return nil
}
