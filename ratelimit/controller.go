package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KOMKZ/go-pacekit/logger"
)

// Controller 自适应速率控制器
//
// 每个 host 一个滑动窗口限流器，成功/失败计入一个全局滚动窗口，
// 窗口到期时按成功率重算速率并下发给所有已存在的限流器。
//
// 注意：速率调整是全局的——各 host 虽有独立窗口，但共享同一个
// 成功率信号，单个异常 host 会拉低所有 host 的速率。
type Controller struct {
	cfg    ControllerConfig
	store  WindowStore
	bus    EventBus
	logger *logger.CtxZapLogger

	ownStore bool
	ownBus   bool

	mu           sync.RWMutex
	limiters     map[string]*SlidingLimiter
	currentRate  int
	successCount int
	failureCount int
	windowStart  time.Time
	closed       bool
}

// ControllerOption 控制器选项
type ControllerOption func(*Controller)

// WithControllerStore 注入共享窗口存储（默认内存存储）
func WithControllerStore(store WindowStore) ControllerOption {
	return func(c *Controller) { c.store = store }
}

// WithControllerEventBus 注入事件总线
func WithControllerEventBus(bus EventBus) ControllerOption {
	return func(c *Controller) { c.bus = bus }
}

// WithControllerLogger 注入 logger
func WithControllerLogger(lg *logger.CtxZapLogger) ControllerOption {
	return func(c *Controller) { c.logger = lg }
}

// NewController 创建自适应速率控制器
func NewController(cfg ControllerConfig, opts ...ControllerOption) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ratelimit: invalid controller config: %w", err)
	}

	c := &Controller{
		cfg:         cfg,
		limiters:    make(map[string]*SlidingLimiter),
		currentRate: cfg.InitialRate,
		windowStart: time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = NewMemoryStore()
		c.ownStore = true
	}
	if c.bus == nil {
		c.bus = NewEventBus(0)
		c.ownBus = true
	}
	if c.logger == nil {
		c.logger = logger.GetLogger("ratelimit")
	}

	return c, nil
}

// limiterFor 取 host 的限流器，首次访问时以当前速率懒创建
func (c *Controller) limiterFor(host string) (*SlidingLimiter, error) {
	if host == "" {
		host = DefaultScope
	}

	c.mu.RLock()
	l, exists := c.limiters[host]
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, ErrControllerClosed
	}
	if exists {
		return l, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrControllerClosed
	}
	if l, exists = c.limiters[host]; exists {
		return l, nil
	}

	l, err := NewSlidingLimiter(
		Config{MaxRequests: c.currentRate, TimeWindow: c.cfg.TimeWindow},
		WithStore(c.store),
		WithEventBus(c.bus),
		WithLogger(c.logger),
	)
	if err != nil {
		return nil, err
	}
	c.limiters[host] = l
	return l, nil
}

// WaitIfNeeded 委托给 host 的限流器（host 为空时落到 default 窗口）
func (c *Controller) WaitIfNeeded(ctx context.Context, host string) (time.Duration, error) {
	l, err := c.limiterFor(host)
	if err != nil {
		return 0, err
	}
	if host == "" {
		host = DefaultScope
	}
	return l.WaitIfNeeded(ctx, host)
}

// CanRequest 委托给 host 的限流器
func (c *Controller) CanRequest(ctx context.Context, host string) (bool, error) {
	l, err := c.limiterFor(host)
	if err != nil {
		return false, err
	}
	if host == "" {
		host = DefaultScope
	}
	return l.CanRequest(ctx, host)
}

// ReportResult feeds one request outcome into the rolling window. Once
// WindowSize has elapsed since the last rollover the success rate is
// recomputed and the adjusted rate pushed to every existing limiter.
func (c *Controller) ReportResult(host string, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	if success {
		c.successCount++
	} else {
		c.failureCount++
	}

	if time.Since(c.windowStart) >= c.cfg.WindowSize {
		c.rollover(host)
	}
}

// rollover 窗口到期，重算速率（调用方需持有 mu）
func (c *Controller) rollover(host string) {
	total := c.successCount + c.failureCount

	// 空窗口视为全部成功，避免除零
	successRate := 1.0
	if total > 0 {
		successRate = float64(c.successCount) / float64(total)
	}

	newRate := c.currentRate
	switch {
	case successRate > 0.9:
		newRate = int(float64(c.currentRate) * 1.1)
	case successRate < 0.7:
		newRate = int(float64(c.currentRate) * 0.9)
	}
	if newRate < c.cfg.MinRate {
		newRate = c.cfg.MinRate
	}
	if newRate > c.cfg.MaxRate {
		newRate = c.cfg.MaxRate
	}

	if newRate != c.currentRate {
		oldRate := c.currentRate
		c.currentRate = newRate

		// 全局下发：所有 host 共享一个自适应速率
		for _, l := range c.limiters {
			l.SetMaxRequests(newRate)
		}

		c.logger.Info("adaptive rate adjusted",
			zap.Int("old_rate", oldRate),
			zap.Int("new_rate", newRate),
			zap.Float64("success_rate", successRate),
			zap.Int("window_total", total))

		c.bus.Publish(&RateChangedEvent{
			BaseEvent:   NewBaseEvent(EventRateChanged, host),
			OldRate:     oldRate,
			NewRate:     newRate,
			SuccessRate: successRate,
		})
	}

	c.successCount = 0
	c.failureCount = 0
	c.windowStart = time.Now()
}

// CurrentRate 返回当前速率
func (c *Controller) CurrentRate() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentRate
}

// SetHostRate pins one host's limiter to a fixed rate, clamped to the
// configured bounds. The next global rollover overwrites it again.
func (c *Controller) SetHostRate(host string, rate int) error {
	if rate < c.cfg.MinRate {
		rate = c.cfg.MinRate
	}
	if rate > c.cfg.MaxRate {
		rate = c.cfg.MaxRate
	}

	l, err := c.limiterFor(host)
	if err != nil {
		return err
	}
	l.SetMaxRequests(rate)

	c.logger.Info("host rate pinned",
		zap.String("host", host), zap.Int("rate", rate))
	return nil
}

// Subscribe 订阅限流事件
func (c *Controller) Subscribe(listener EventListener) {
	c.bus.Subscribe(listener)
}

// Close 关闭控制器及自有资源
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.limiters = make(map[string]*SlidingLimiter)
	c.mu.Unlock()

	if c.ownBus {
		c.bus.Close()
	}
	if c.ownStore {
		return c.store.Close()
	}
	return nil
}
