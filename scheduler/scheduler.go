// Package scheduler layers retry and batch semantics on top of the
// worker pool.
//
// - ScheduleWithBackoff: sequential retry of one logical task with
//   exponentially growing pauses, last error propagated
// - ScheduleBatch: fixed-size waves, each wave fully drained before the
//   next; failures are logged and leave nil slots instead of aborting
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/KOMKZ/go-pacekit/logger"
	"github.com/KOMKZ/go-pacekit/pool"
)

// Scheduler 任务调度器
type Scheduler struct {
	pool   *pool.Pool
	logger *logger.CtxZapLogger
}

// New 创建调度器
func New(p *pool.Pool) *Scheduler {
	return &Scheduler{
		pool:   p,
		logger: logger.GetLogger("scheduler"),
	}
}

// NewWithLogger 创建调度器并注入 logger
func NewWithLogger(p *pool.Pool, l *logger.CtxZapLogger) *Scheduler {
	s := New(p)
	if l != nil {
		s.logger = l
	}
	return s
}

// ============================================================
// 重试调度
// ============================================================

// RetryOption 重试选项
type RetryOption func(*retryConfig)

type retryConfig struct {
	maxRetries int
	backoff    BackoffStrategy
	onRetry    func(attempt int, err error)
}

func defaultRetryConfig() *retryConfig {
	return &retryConfig{
		maxRetries: 3,
		backoff:    ExponentialBackoff(time.Second),
	}
}

// WithMaxRetries 设置最大重试次数（不含首次尝试）
func WithMaxRetries(n int) RetryOption {
	return func(c *retryConfig) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBackoff 设置退避策略
func WithBackoff(strategy BackoffStrategy) RetryOption {
	return func(c *retryConfig) {
		if strategy != nil {
			c.backoff = strategy
		}
	}
}

// WithBackoffFactor 便捷方法: factor·2^attempt 的指数退避
func WithBackoffFactor(factor time.Duration) RetryOption {
	return WithBackoff(ExponentialBackoff(factor))
}

// WithOnRetry 设置重试回调（观测用）
func WithOnRetry(fn func(attempt int, err error)) RetryOption {
	return func(c *retryConfig) { c.onRetry = fn }
}

// ScheduleWithBackoff submits fn to the pool and blocks for its result,
// retrying failed attempts with exponential backoff. After the retry
// budget is exhausted the last error is returned. Retry is strictly
// sequential: one attempt in flight at a time.
func (s *Scheduler) ScheduleWithBackoff(ctx context.Context, fn pool.TaskFunc, opts ...RetryOption) (interface{}, error) {
	cfg := defaultRetryConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		value, err := s.runOnce(fn)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if attempt == cfg.maxRetries {
			break
		}

		if cfg.onRetry != nil {
			cfg.onRetry(attempt+1, err)
		}

		// attempt 0 → factor·2^0, attempt 1 → factor·2^1 ...
		wait := cfg.backoff.Next(attempt + 1)
		s.logger.Debug("task failed, backing off",
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err))

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// runOnce 执行一次尝试
func (s *Scheduler) runOnce(fn pool.TaskFunc) (interface{}, error) {
	task, err := s.pool.Submit(fn)
	if err != nil {
		return nil, err
	}
	return task.Wait()
}

// ============================================================
// 批量调度
// ============================================================

// ScheduleBatch splits tasks into consecutive waves of maxConcurrent
// and drains each wave through the pool before starting the next.
// Slot i corresponds to task i; failed tasks are logged and leave nil.
// maxConcurrent <= 0 defaults to the pool's current worker count.
func (s *Scheduler) ScheduleBatch(ctx context.Context, tasks []pool.TaskFunc, maxConcurrent int) []interface{} {
	if maxConcurrent <= 0 {
		maxConcurrent = s.pool.WorkerCount()
	}

	results := make([]interface{}, len(tasks))

	for start := 0; start < len(tasks); start += maxConcurrent {
		if ctx.Err() != nil {
			s.logger.Warn("batch aborted, remaining slots stay nil",
				zap.Int("completed", start), zap.Error(ctx.Err()))
			return results
		}

		end := start + maxConcurrent
		if end > len(tasks) {
			end = len(tasks)
		}

		handles := make([]*pool.Task, end-start)
		for i, fn := range tasks[start:end] {
			task, err := s.pool.Submit(fn)
			if err != nil {
				s.logger.Error("batch submit failed",
					zap.Int("index", start+i), zap.Error(err))
				continue
			}
			handles[i] = task
		}

		// 等整波完成再进入下一波
		for i, task := range handles {
			if task == nil {
				continue
			}
			value, err := task.Wait()
			if err != nil {
				s.logger.Error("batch task failed",
					zap.Int("index", start+i), zap.Error(err))
				continue
			}
			results[start+i] = value
		}
	}

	return results
}
