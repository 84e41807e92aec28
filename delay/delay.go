// Package delay injects a configurable pause before outbound requests,
// independent of any rate limiting. Callers apply the delay first and
// take the rate-limiter wait second.
package delay

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KOMKZ/go-pacekit/logger"
)

// Injector 请求延迟注入器
type Injector struct {
	cfg    Config
	logger *logger.CtxZapLogger

	mu        sync.RWMutex
	overrides map[string]time.Duration // host -> 覆盖基础延迟
}

// Option 注入器选项
type Option func(*Injector)

// WithLogger 注入 logger
func WithLogger(l *logger.CtxZapLogger) Option {
	return func(i *Injector) { i.logger = l }
}

// New 创建延迟注入器
func New(cfg Config, opts ...Option) (*Injector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("delay: invalid config: %w", err)
	}

	i := &Injector{
		cfg:       cfg,
		overrides: make(map[string]time.Duration),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.logger == nil {
		i.logger = logger.GetLogger("delay")
	}

	return i, nil
}

// Delay returns the effective delay for one host: the per-host override
// (or the base delay) plus a symmetric uniform jitter, floored at 0.
func (i *Injector) Delay(host string) time.Duration {
	i.mu.RLock()
	base, overridden := i.overrides[host]
	i.mu.RUnlock()
	if !overridden {
		base = i.cfg.BaseDelay
	}

	d := base
	if i.cfg.Jitter > 0 {
		d += time.Duration((rand.Float64()*2 - 1) * float64(i.cfg.Jitter))
	}
	if d < 0 {
		d = 0
	}
	return d
}

// Apply sleeps for the host's effective delay and returns the duration
// actually slept. Zero delay returns immediately.
func (i *Injector) Apply(host string) time.Duration {
	d := i.Delay(host)
	if d <= 0 {
		return 0
	}

	i.logger.Debug("injecting delay",
		zap.String("host", host), zap.Duration("delay", d))
	time.Sleep(d)
	return d
}

// SetHostDelay 覆盖单个 host 的基础延迟（负值按 0 处理）
func (i *Injector) SetHostDelay(host string, d time.Duration) {
	if d < 0 {
		d = 0
	}
	i.mu.Lock()
	i.overrides[host] = d
	i.mu.Unlock()
}

// ClearHostDelay 取消单个 host 的覆盖，回落到基础延迟
func (i *Injector) ClearHostDelay(host string) {
	i.mu.Lock()
	delete(i.overrides, host)
	i.mu.Unlock()
}
