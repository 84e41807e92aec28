package ratelimit

import (
	"context"
	"time"
)

// WindowStore 滑动窗口存储接口（策略模式）
//
// 每个 scope 对应一个按时间戳有序的请求记录集合。
// 约定：EvictBefore 之后留存的时间戳都满足 ts >= cutoff。
type WindowStore interface {
	// Add 向 scope 的窗口追加一条请求时间戳
	Add(ctx context.Context, scope string, ts time.Time) error

	// Count 返回 scope 窗口中留存的时间戳数量
	Count(ctx context.Context, scope string) (int64, error)

	// EvictBefore 删除 scope 窗口中早于 cutoff 的时间戳
	EvictBefore(ctx context.Context, scope string, cutoff time.Time) error

	// Oldest 返回 scope 窗口中最早的时间戳，窗口为空时 ok=false
	Oldest(ctx context.Context, scope string) (ts time.Time, ok bool, err error)

	// Reset 清空 scope 的窗口
	Reset(ctx context.Context, scope string) error

	// Close 关闭存储
	Close() error
}

// StoreType 存储类型
type StoreType string

const (
	// StoreTypeMemory 内存存储
	StoreTypeMemory StoreType = "memory"

	// StoreTypeRedis Redis 存储
	StoreTypeRedis StoreType = "redis"
)
