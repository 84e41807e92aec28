package scheduler

import (
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy 退避策略接口
type BackoffStrategy interface {
	// Next 返回第 N 次重试前的等待时间（attempt 从 1 开始）
	Next(attempt int) time.Duration
}

// BackoffOption 退避策略选项
type BackoffOption func(*backoffConfig)

type backoffConfig struct {
	multiplier float64       // 指数倍数（默认 2.0）
	maxDelay   time.Duration // 最大等待（默认 60s）
	jitter     float64       // 抖动比例 0.0-1.0（默认 0，重试间隔可预测）
}

func defaultBackoffConfig() *backoffConfig {
	return &backoffConfig{
		multiplier: 2.0,
		maxDelay:   60 * time.Second,
	}
}

// WithMultiplier 设置指数倍数
func WithMultiplier(m float64) BackoffOption {
	return func(c *backoffConfig) {
		if m > 0 {
			c.multiplier = m
		}
	}
}

// WithMaxDelay 设置单次等待上限
func WithMaxDelay(d time.Duration) BackoffOption {
	return func(c *backoffConfig) {
		if d > 0 {
			c.maxDelay = d
		}
	}
}

// WithBackoffJitter 设置抖动比例（0.0 - 1.0）
func WithBackoffJitter(ratio float64) BackoffOption {
	return func(c *backoffConfig) {
		if ratio >= 0 && ratio <= 1.0 {
			c.jitter = ratio
		}
	}
}

// ============================================================
// 指数退避
// ============================================================

type exponentialBackoff struct {
	factor time.Duration
	config *backoffConfig
}

// ExponentialBackoff 创建指数退避策略
// delay = factor * multiplier^(attempt-1)
// 例如 factor=1s, multiplier=2: 1s, 2s, 4s, 8s...
func ExponentialBackoff(factor time.Duration, opts ...BackoffOption) BackoffStrategy {
	config := defaultBackoffConfig()
	for _, opt := range opts {
		opt(config)
	}
	return &exponentialBackoff{factor: factor, config: config}
}

func (b *exponentialBackoff) Next(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := float64(b.factor) * math.Pow(b.config.multiplier, float64(attempt-1))
	return b.config.finish(delay)
}

// ============================================================
// 线性退避
// ============================================================

type linearBackoff struct {
	base   time.Duration
	config *backoffConfig
}

// LinearBackoff 创建线性退避策略: delay = base * attempt
func LinearBackoff(base time.Duration, opts ...BackoffOption) BackoffStrategy {
	config := defaultBackoffConfig()
	for _, opt := range opts {
		opt(config)
	}
	return &linearBackoff{base: base, config: config}
}

func (b *linearBackoff) Next(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return b.config.finish(float64(b.base) * float64(attempt))
}

// ============================================================
// 固定退避
// ============================================================

type constantBackoff struct {
	delay  time.Duration
	config *backoffConfig
}

// ConstantBackoff 创建固定退避策略
func ConstantBackoff(delay time.Duration, opts ...BackoffOption) BackoffStrategy {
	config := defaultBackoffConfig()
	for _, opt := range opts {
		opt(config)
	}
	return &constantBackoff{delay: delay, config: config}
}

func (b *constantBackoff) Next(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return b.config.finish(float64(b.delay))
}

// NoBackoff 立即重试
func NoBackoff() BackoffStrategy {
	return &constantBackoff{delay: 0, config: defaultBackoffConfig()}
}

// finish 应用上限和抖动
func (c *backoffConfig) finish(delay float64) time.Duration {
	if delay > float64(c.maxDelay) {
		delay = float64(c.maxDelay)
	}
	if c.jitter > 0 {
		delta := delay * c.jitter
		delay += (rand.Float64()*2 - 1) * delta
		if delay < 0 {
			delay = 0
		}
	}
	return time.Duration(delay)
}
