// Package ratelimit provides a sliding-window request limiter and an
// adaptive controller that retunes per-host limiters from observed
// success rates.
//
// Design philosophy:
// - timestamps live in a pluggable WindowStore (memory or Redis ZSET),
//   evicted lazily before every read
// - contending callers of the same scope are serialized through a
//   per-scope mutex, so the last slot is never double-observed
// - waits are bounded and computed up front, never open-ended
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KOMKZ/go-pacekit/logger"
)

// SlidingLimiter 滑动窗口限流器
type SlidingLimiter struct {
	cfg    Config
	store  WindowStore
	bus    EventBus
	logger *logger.CtxZapLogger

	ownStore bool
	ownBus   bool

	maxMu       sync.RWMutex
	maxRequests int

	scopeMu sync.Mutex
	scopes  map[string]*sync.Mutex
}

// LimiterOption 限流器选项
type LimiterOption func(*SlidingLimiter)

// WithStore 注入窗口存储（默认内存存储）
func WithStore(store WindowStore) LimiterOption {
	return func(l *SlidingLimiter) { l.store = store }
}

// WithEventBus 注入事件总线
func WithEventBus(bus EventBus) LimiterOption {
	return func(l *SlidingLimiter) { l.bus = bus }
}

// WithLogger 注入 logger
func WithLogger(lg *logger.CtxZapLogger) LimiterOption {
	return func(l *SlidingLimiter) { l.logger = lg }
}

// NewSlidingLimiter 创建滑动窗口限流器
func NewSlidingLimiter(cfg Config, opts ...LimiterOption) (*SlidingLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ratelimit: invalid config: %w", err)
	}

	l := &SlidingLimiter{
		cfg:         cfg,
		maxRequests: cfg.MaxRequests,
		scopes:      make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.store == nil {
		l.store = NewMemoryStore()
		l.ownStore = true
	}
	if l.logger == nil {
		l.logger = logger.GetLogger("ratelimit")
	}

	return l, nil
}

// resolveScope 归一化窗口键
func (l *SlidingLimiter) resolveScope(scope string) string {
	if l.cfg.Global || scope == "" {
		return DefaultScope
	}
	return scope
}

// scopeLock 取 scope 对应的互斥锁（懒创建）
func (l *SlidingLimiter) scopeLock(scope string) *sync.Mutex {
	l.scopeMu.Lock()
	defer l.scopeMu.Unlock()

	mu, exists := l.scopes[scope]
	if !exists {
		mu = &sync.Mutex{}
		l.scopes[scope] = mu
	}
	return mu
}

// CanRequest reports whether the scope's window has capacity right now.
// Stale entries are evicted first; nothing is recorded, so the call is
// idempotent and repeated calls without intervening Record agree.
func (l *SlidingLimiter) CanRequest(ctx context.Context, scope string) (bool, error) {
	scope = l.resolveScope(scope)
	now := time.Now()

	if err := l.store.EvictBefore(ctx, scope, now.Add(-l.cfg.TimeWindow)); err != nil {
		return false, err
	}
	count, err := l.store.Count(ctx, scope)
	if err != nil {
		return false, err
	}
	return count < int64(l.MaxRequests()), nil
}

// Record appends the current time to the scope's window. Not combined
// atomically with CanRequest; callers needing the combined check use
// WaitIfNeeded.
func (l *SlidingLimiter) Record(ctx context.Context, scope string) error {
	return l.store.Add(ctx, l.resolveScope(scope), time.Now())
}

// WaitIfNeeded blocks until the scope's window has capacity, records the
// admission and returns how long it waited (0 when capacity was free).
// Callers contending for the same scope are serialized, so the admitted
// count never exceeds MaxRequests per TimeWindow.
func (l *SlidingLimiter) WaitIfNeeded(ctx context.Context, scope string) (time.Duration, error) {
	scope = l.resolveScope(scope)

	mu := l.scopeLock(scope)
	mu.Lock()
	defer mu.Unlock()

	now := time.Now()
	if err := l.store.EvictBefore(ctx, scope, now.Add(-l.cfg.TimeWindow)); err != nil {
		return 0, err
	}
	count, err := l.store.Count(ctx, scope)
	if err != nil {
		return 0, err
	}

	if count < int64(l.MaxRequests()) {
		return 0, l.store.Add(ctx, scope, now)
	}

	oldest, ok, err := l.store.Oldest(ctx, scope)
	if err != nil {
		return 0, err
	}

	// 等最老的记录滑出窗口
	var wait time.Duration
	if ok {
		wait = oldest.Add(l.cfg.TimeWindow).Sub(now)
		if wait < 0 {
			wait = 0
		}
	}

	if wait > 0 {
		time.Sleep(wait)
		l.publishWaited(scope, wait)
		l.logger.Debug("rate limit wait",
			zap.String("scope", scope),
			zap.Duration("waited", wait))
	}

	// 记录 now+wait，即真正放行的时刻
	return wait, l.store.Add(ctx, scope, now.Add(wait))
}

// SetMaxRequests 调整单窗口允许的请求数（下限 1）
func (l *SlidingLimiter) SetMaxRequests(n int) {
	if n < 1 {
		n = 1
	}
	l.maxMu.Lock()
	l.maxRequests = n
	l.maxMu.Unlock()
}

// MaxRequests 返回当前单窗口允许的请求数
func (l *SlidingLimiter) MaxRequests() int {
	l.maxMu.RLock()
	defer l.maxMu.RUnlock()
	return l.maxRequests
}

// Close 关闭限流器（仅释放自有资源）
func (l *SlidingLimiter) Close() error {
	if l.ownBus && l.bus != nil {
		l.bus.Close()
	}
	if l.ownStore {
		return l.store.Close()
	}
	return nil
}

// publishWaited 发布等待事件（未注入总线时为空操作）
func (l *SlidingLimiter) publishWaited(scope string, waited time.Duration) {
	if l.bus == nil {
		return
	}
	l.bus.Publish(&WaitedEvent{
		BaseEvent: NewBaseEvent(EventWaited, scope),
		Waited:    waited,
	})
}
