package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore Redis 窗口存储实现
//
// 每个 scope 对应一个 ZSET，score 为请求时间戳（UnixNano），
// member 用 UUID 保证同一纳秒内的唯一性。
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore 创建 Redis 窗口存储
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "ratelimit:window:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// buildKey 构造完整的 key
func (s *RedisStore) buildKey(scope string) string {
	return s.keyPrefix + scope
}

// Add 追加时间戳
func (s *RedisStore) Add(ctx context.Context, scope string, ts time.Time) error {
	err := s.client.ZAdd(ctx, s.buildKey(scope), redis.Z{
		Score:  float64(ts.UnixNano()),
		Member: uuid.New().String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("ratelimit: zadd failed: %w", err)
	}
	return nil
}

// Count 返回留存数量
func (s *RedisStore) Count(ctx context.Context, scope string) (int64, error) {
	count, err := s.client.ZCard(ctx, s.buildKey(scope)).Result()
	if err != nil {
		return 0, fmt.Errorf("ratelimit: zcard failed: %w", err)
	}
	return count, nil
}

// EvictBefore 删除早于 cutoff 的时间戳（不含 cutoff 本身）
func (s *RedisStore) EvictBefore(ctx context.Context, scope string, cutoff time.Time) error {
	max := "(" + strconv.FormatFloat(float64(cutoff.UnixNano()), 'f', -1, 64)
	err := s.client.ZRemRangeByScore(ctx, s.buildKey(scope), "-inf", max).Err()
	if err != nil {
		return fmt.Errorf("ratelimit: zremrangebyscore failed: %w", err)
	}
	return nil
}

// Oldest 返回最早的时间戳
func (s *RedisStore) Oldest(ctx context.Context, scope string) (time.Time, bool, error) {
	entries, err := s.client.ZRangeWithScores(ctx, s.buildKey(scope), 0, 0).Result()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("ratelimit: zrange failed: %w", err)
	}
	if len(entries) == 0 {
		return time.Time{}, false, nil
	}
	return time.Unix(0, int64(entries[0].Score)), true, nil
}

// Reset 清空窗口
func (s *RedisStore) Reset(ctx context.Context, scope string) error {
	if err := s.client.Del(ctx, s.buildKey(scope)).Err(); err != nil {
		return fmt.Errorf("ratelimit: del failed: %w", err)
	}
	return nil
}

// Close 关闭存储（client 由调用方管理，此处不关闭）
func (s *RedisStore) Close() error {
	return nil
}
