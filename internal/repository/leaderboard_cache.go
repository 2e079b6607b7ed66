package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const leaderboardTTL = 60 * time.Second

// LeaderboardCache 缓存排行榜查询结果 60 秒。
type LeaderboardCache interface {
	// Get 返回 nil, nil 表示缓存未命中。
	Get(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	Set(ctx context.Context, limit int, entries []LeaderboardEntry) error
}

type redisLeaderboardCache struct {
	redisClient *redis.Client
}

func NewLeaderboardCache(redisClient *redis.Client) LeaderboardCache {
	return &redisLeaderboardCache{redisClient: redisClient}
}

func leaderboardKey(limit int) string {
	return fmt.Sprintf("leaderboard:xp:%d", limit)
}

func (r *redisLeaderboardCache) Get(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	jsonData, err := r.redisClient.Get(ctx, leaderboardKey(limit)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []LeaderboardEntry
	if err := json.Unmarshal(jsonData, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *redisLeaderboardCache) Set(ctx context.Context, limit int, entries []LeaderboardEntry) error {
	jsonData, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return r.redisClient.Set(ctx, leaderboardKey(limit), jsonData, leaderboardTTL).Err()
}
