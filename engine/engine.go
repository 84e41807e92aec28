// Package engine assembles the pacing components — load sampler, worker
// pool, retry scheduler, adaptive rate controller and delay injector —
// into one process-scoped context object. Nothing here is a package
// global: construct an Engine, pass it around, shut it down once.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/samber/do/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KOMKZ/go-pacekit/delay"
	"github.com/KOMKZ/go-pacekit/logger"
	"github.com/KOMKZ/go-pacekit/pool"
	"github.com/KOMKZ/go-pacekit/ratelimit"
	"github.com/KOMKZ/go-pacekit/scheduler"
	"github.com/KOMKZ/go-pacekit/sysload"
	"github.com/KOMKZ/go-pacekit/telemetry"
)

// 自动扩缩的经验边界
const (
	optimalMaxWorkers = 50
	highCPUPercent    = 80.0
	highMemPercent    = 80.0
	lowCPUPercent     = 30.0
	lowMemPercent     = 50.0
)

// Engine 节奏控制引擎
type Engine struct {
	cfg      Config
	injector do.Injector
	logger   *logger.CtxZapLogger

	sampler    *sysload.Sampler
	pool       *pool.Pool
	scheduler  *scheduler.Scheduler
	controller *ratelimit.Controller
	delayer    *delay.Injector
	telemetry  *telemetry.Manager
	metrics    *telemetry.MetricsKit

	closed atomic.Bool
}

// Option 引擎选项
type Option func(*Engine)

// WithLogger 注入 logger
func WithLogger(l *logger.CtxZapLogger) Option {
	return func(e *Engine) { e.logger = l }
}

// New builds and starts an Engine: all components are registered in a
// do injector, the sampler begins its cadence and its snapshots drive
// the pool's sizing.
func New(ctx context.Context, cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		injector: do.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.GetLogger("engine")
	}

	if err := e.provideComponents(ctx); err != nil {
		return nil, err
	}
	if err := e.resolveComponents(); err != nil {
		return nil, err
	}

	e.wire()

	if err := e.sampler.Start(); err != nil {
		return nil, fmt.Errorf("engine: start sampler failed: %w", err)
	}

	e.logger.Info("engine started",
		zap.Int("workers", e.pool.WorkerCount()),
		zap.Int("initial_rate", e.controller.CurrentRate()))
	return e, nil
}

// provideComponents 向注入器注册组件构造器
func (e *Engine) provideComponents(ctx context.Context) error {
	do.Provide(e.injector, func(do.Injector) (*pool.Pool, error) {
		return pool.New(e.cfg.Pool, pool.WithLogger(logger.GetLogger("pool")))
	})

	do.Provide(e.injector, func(i do.Injector) (*sysload.Sampler, error) {
		p, err := do.Invoke[*pool.Pool](i)
		if err != nil {
			return nil, err
		}
		return sysload.NewSampler(e.cfg.Sampler,
			sysload.WithDepthProvider(p),
			sysload.WithLogger(logger.GetLogger("sysload")))
	})

	do.Provide(e.injector, func(i do.Injector) (*scheduler.Scheduler, error) {
		p, err := do.Invoke[*pool.Pool](i)
		if err != nil {
			return nil, err
		}
		return scheduler.NewWithLogger(p, logger.GetLogger("scheduler")), nil
	})

	do.Provide(e.injector, func(do.Injector) (*ratelimit.Controller, error) {
		return ratelimit.NewController(e.cfg.Controller,
			ratelimit.WithControllerLogger(logger.GetLogger("ratelimit")))
	})

	do.Provide(e.injector, func(do.Injector) (*delay.Injector, error) {
		return delay.New(e.cfg.Delay, delay.WithLogger(logger.GetLogger("delay")))
	})

	do.Provide(e.injector, func(i do.Injector) (*telemetry.Manager, error) {
		return telemetry.NewManager(ctx, e.cfg.Telemetry)
	})

	return nil
}

// resolveComponents 从注入器取出组件实例
func (e *Engine) resolveComponents() error {
	var err error
	if e.pool, err = do.Invoke[*pool.Pool](e.injector); err != nil {
		return fmt.Errorf("engine: resolve pool failed: %w", err)
	}
	if e.sampler, err = do.Invoke[*sysload.Sampler](e.injector); err != nil {
		return fmt.Errorf("engine: resolve sampler failed: %w", err)
	}
	if e.scheduler, err = do.Invoke[*scheduler.Scheduler](e.injector); err != nil {
		return fmt.Errorf("engine: resolve scheduler failed: %w", err)
	}
	if e.controller, err = do.Invoke[*ratelimit.Controller](e.injector); err != nil {
		return fmt.Errorf("engine: resolve controller failed: %w", err)
	}
	if e.delayer, err = do.Invoke[*delay.Injector](e.injector); err != nil {
		return fmt.Errorf("engine: resolve delay injector failed: %w", err)
	}
	if e.telemetry, err = do.Invoke[*telemetry.Manager](e.injector); err != nil {
		return fmt.Errorf("engine: resolve telemetry failed: %w", err)
	}

	if e.telemetry.IsEnabled() {
		kit, err := telemetry.NewMetricsKit(
			e.telemetry.Meter("pacekit"), e.cfg.Telemetry.Namespace, e.pool)
		if err != nil {
			return fmt.Errorf("engine: create metrics kit failed: %w", err)
		}
		e.metrics = kit
	}

	return nil
}

// wire 建立组件间的回调关系
func (e *Engine) wire() {
	// 每个采样周期驱动一次池扩缩
	e.sampler.OnSample(func(snap sysload.Snapshot) {
		e.pool.AdjustForLoad(snap.CPUPercent, snap.MemoryPercent)
	})

	if e.metrics != nil {
		e.controller.Subscribe(ratelimit.EventListenerFunc(func(ev ratelimit.Event) {
			switch event := ev.(type) {
			case *ratelimit.WaitedEvent:
				e.metrics.RecordWait(context.Background(), event.Scope(), event.Waited)
			case *ratelimit.RateChangedEvent:
				e.metrics.RecordRetune(context.Background(), event.OldRate, event.NewRate)
			}
		}))
	}
}

// ============================================================
// 任务入口
// ============================================================

// Submit 提交单个任务，立即返回任务句柄
func (e *Engine) Submit(fn pool.TaskFunc) (*pool.Task, error) {
	return e.pool.Submit(fn)
}

// Map 为每个 item 提交一个任务并等全部完成，槽位与 item 一一对应
func (e *Engine) Map(fn func(item interface{}) (interface{}, error), items []interface{}) []interface{} {
	return e.pool.Map(fn, items)
}

// ScheduleWithBackoff 带指数退避的重试执行
func (e *Engine) ScheduleWithBackoff(ctx context.Context, fn pool.TaskFunc, opts ...scheduler.RetryOption) (interface{}, error) {
	return e.scheduler.ScheduleWithBackoff(ctx, fn, opts...)
}

// ScheduleBatch 按固定波次批量执行
func (e *Engine) ScheduleBatch(ctx context.Context, tasks []pool.TaskFunc, maxConcurrent int) []interface{} {
	return e.scheduler.ScheduleBatch(ctx, tasks, maxConcurrent)
}

// ============================================================
// 节奏控制入口
// ============================================================

// WaitBeforeRequest applies the full pre-request pacing for one host:
// the injected delay first, then the rate-limiter wait. Returns the
// rate-limiter wait amount.
func (e *Engine) WaitBeforeRequest(ctx context.Context, host string) (time.Duration, error) {
	e.delayer.Apply(host)
	return e.controller.WaitIfNeeded(ctx, host)
}

// ReportResult 上报一次请求结果，驱动自适应调速
func (e *Engine) ReportResult(host string, success bool) {
	e.controller.ReportResult(host, success)
	if e.metrics != nil {
		e.metrics.RecordTask(context.Background(), success)
	}
}

// SetHostRate 固定单个 host 的速率
func (e *Engine) SetHostRate(host string, rate int) error {
	return e.controller.SetHostRate(host, rate)
}

// ApplyDelay 只注入延迟，不走限流
func (e *Engine) ApplyDelay(host string) time.Duration {
	return e.delayer.Apply(host)
}

// SetHostDelay 覆盖单个 host 的延迟
func (e *Engine) SetHostDelay(host string, d time.Duration) {
	e.delayer.SetHostDelay(host, d)
}

// ============================================================
// 观测入口
// ============================================================

// WorkerCount 当前工作协程数
func (e *Engine) WorkerCount() int {
	return e.pool.WorkerCount()
}

// QueueDepth 已入队未执行的任务数
func (e *Engine) QueueDepth() int {
	return e.pool.QueueDepth()
}

// CurrentRate 当前自适应速率
func (e *Engine) CurrentRate() int {
	return e.controller.CurrentRate()
}

// CurrentSnapshot 最近一次资源快照（无历史时现场采一次）
func (e *Engine) CurrentSnapshot() sysload.Snapshot {
	return e.sampler.LatestOrProbe()
}

// OptimalWorkerCount suggests a worker count from the current load:
// halve under pressure (floor 1), double when mostly idle (cap 50),
// otherwise keep the base.
func (e *Engine) OptimalWorkerCount(base int) int {
	snap := e.sampler.LatestOrProbe()
	return optimalFor(base, snap.CPUPercent, snap.MemoryPercent)
}

// optimalFor 按负载折算建议的工作协程数
func optimalFor(base int, cpuPercent, memPercent float64) int {
	if base < 1 {
		base = 1
	}

	switch {
	case cpuPercent > highCPUPercent || memPercent > highMemPercent:
		half := base / 2
		if half < 1 {
			half = 1
		}
		return half
	case cpuPercent < lowCPUPercent && memPercent < lowMemPercent:
		double := base * 2
		if double > optimalMaxWorkers {
			double = optimalMaxWorkers
		}
		return double
	default:
		return base
	}
}

// Shutdown stops the engine: the sampler goes down first so no resize
// fires mid-drain, then the remaining components tear down in parallel.
func (e *Engine) Shutdown(ctx context.Context) error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	if err := e.sampler.Stop(); err != nil {
		e.logger.Warn("sampler stop failed", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e.pool.Shutdown(true)
		return nil
	})
	g.Go(func() error {
		return e.controller.Close()
	})
	g.Go(func() error {
		return e.telemetry.Shutdown(gctx)
	})

	// 组件已显式关闭，不再走注入器的 shutdown，避免重复释放
	err := g.Wait()

	e.logger.Info("engine stopped")
	return err
}
