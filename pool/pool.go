// Package pool provides a dynamically sized worker pool.
//
// Design philosophy:
// - ants.Pool as the execution substrate, resized in place via Tune:
//   in-flight tasks finish on the old capacity, new submissions observe
//   the new one
// - Submission never blocks the caller beyond the enqueue itself
// - Sizing reacts to resource snapshots in ±2 steps, clamped to
//   [MinWorkers, MaxWorkers]; pacing comes from the sampler cadence
package pool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-pacekit/logger"
)

var (
	// ErrPoolClosed 池已关闭
	ErrPoolClosed = errors.New("pool: closed")

	// ErrQueueFull 提交队列已满
	ErrQueueFull = errors.New("pool: submission queue full")
)

// resizeStep 每次调整的步长
const resizeStep = 2

type submission struct {
	fn   TaskFunc
	task *Task
}

// Pool 动态工作池
type Pool struct {
	cfg    Config
	logger *logger.CtxZapLogger

	workers *ants.Pool
	queue   chan *submission
	stop    chan struct{}

	sizeMu  sync.Mutex // guards current
	current int

	queued   atomic.Int64   // 已入队未开始执行的任务数
	inFlight sync.WaitGroup // 已提交未完成的任务数
	closed   atomic.Bool
}

// Option 池选项
type Option func(*Pool)

// WithLogger 注入 logger
func WithLogger(l *logger.CtxZapLogger) Option {
	return func(p *Pool) { p.logger = l }
}

// New 创建工作池，初始容量为 MinWorkers
func New(cfg Config, opts ...Option) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pool: invalid config: %w", err)
	}

	p := &Pool{
		cfg:     cfg,
		queue:   make(chan *submission, cfg.QueueSize),
		stop:    make(chan struct{}),
		current: cfg.MinWorkers,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.GetLogger("pool")
	}

	workers, err := ants.NewPool(cfg.MinWorkers)
	if err != nil {
		return nil, fmt.Errorf("pool: create ants pool failed: %w", err)
	}
	p.workers = workers

	go p.dispatchLoop()

	return p, nil
}

// Submit enqueues a unit of work and returns its handle.
// It never blocks beyond the enqueue: a full queue yields ErrQueueFull.
func (p *Pool) Submit(fn TaskFunc) (*Task, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}

	task := newTask()
	sub := &submission{fn: fn, task: task}

	p.inFlight.Add(1)
	p.queued.Add(1)

	select {
	case p.queue <- sub:
		return task, nil
	default:
		p.queued.Add(-1)
		p.inFlight.Done()
		return nil, ErrQueueFull
	}
}

// Map submits one task per item and waits for all of them.
// Slot i always corresponds to item i; a failed item is logged and
// leaves a nil slot, the rest of the batch still completes.
func (p *Pool) Map(fn func(item interface{}) (interface{}, error), items []interface{}) []interface{} {
	results := make([]interface{}, len(items))
	tasks := make([]*Task, len(items))

	for i, item := range items {
		item := item
		task, err := p.Submit(func() (interface{}, error) { return fn(item) })
		if err != nil {
			p.logger.Error("map submit failed", zap.Int("index", i), zap.Error(err))
			continue
		}
		tasks[i] = task
	}

	for i, task := range tasks {
		if task == nil {
			continue
		}
		value, err := task.Wait()
		if err != nil {
			p.logger.Error("map task failed", zap.Int("index", i), zap.Error(err))
			continue
		}
		results[i] = value
	}
	return results
}

// AdjustForLoad runs one sizing step against a fresh resource sample.
// Shrink wins over growth; both move in resizeStep increments clamped
// to the configured bounds.
func (p *Pool) AdjustForLoad(cpuPercent, memPercent float64) {
	p.sizeMu.Lock()
	defer p.sizeMu.Unlock()

	switch {
	case cpuPercent > p.cfg.CPUThreshold || memPercent > p.cfg.MemoryThreshold:
		if p.current > p.cfg.MinWorkers {
			p.resize(maxInt(p.cfg.MinWorkers, p.current-resizeStep))
			p.logger.Info("shrinking workers due to high resource usage",
				zap.Int("workers", p.current),
				zap.Float64("cpu_percent", cpuPercent),
				zap.Float64("memory_percent", memPercent))
		}

	case cpuPercent < p.cfg.CPUThreshold*0.6 &&
		memPercent < p.cfg.MemoryThreshold*0.6 &&
		p.QueueDepth() > p.current:
		if p.current < p.cfg.MaxWorkers {
			p.resize(minInt(p.cfg.MaxWorkers, p.current+resizeStep))
			p.logger.Info("growing workers due to low resource usage",
				zap.Int("workers", p.current),
				zap.Float64("cpu_percent", cpuPercent),
				zap.Float64("memory_percent", memPercent))
		}
	}
}

// resize 调整执行容量（调用方需持有 sizeMu）
// ants.Tune 只影响新派发的任务，已在执行的任务继续跑完
func (p *Pool) resize(target int) {
	p.current = target
	p.workers.Tune(target)
}

// WorkerCount returns the current pool capacity.
func (p *Pool) WorkerCount() int {
	p.sizeMu.Lock()
	defer p.sizeMu.Unlock()
	return p.current
}

// QueueDepth returns the number of submitted tasks not yet running.
func (p *Pool) QueueDepth() int {
	return int(p.queued.Load())
}

// Running returns the number of currently executing tasks.
func (p *Pool) Running() int {
	return p.workers.Running()
}

// Shutdown closes the pool. With wait=true it blocks until every
// submitted task has completed; otherwise queued tasks are failed with
// ErrPoolClosed and only already-running work finishes.
func (p *Pool) Shutdown(wait bool) {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}

	if wait {
		p.inFlight.Wait()
	}

	close(p.stop)
	p.workers.Release()

	p.logger.Debug("pool shut down", zap.Bool("waited", wait))
}

// dispatchLoop 把队列中的任务派发给 ants 执行
// ants.Submit 在容量占满时阻塞，阻塞发生在这里而不是调用方
func (p *Pool) dispatchLoop() {
	for {
		select {
		case <-p.stop:
			p.drainQueue()
			return
		case sub := <-p.queue:
			p.dispatch(sub)
		}
	}
}

func (p *Pool) dispatch(sub *submission) {
	err := p.workers.Submit(func() {
		p.queued.Add(-1)
		defer p.inFlight.Done()
		defer func() {
			if r := recover(); r != nil {
				sub.task.complete(nil, fmt.Errorf("pool: task panicked: %v", r))
			}
		}()

		value, err := sub.fn()
		sub.task.complete(value, err)
	})
	if err != nil {
		p.queued.Add(-1)
		p.inFlight.Done()
		sub.task.complete(nil, fmt.Errorf("pool: dispatch failed: %w", err))
	}
}

// drainQueue 关闭后清空残留队列，唤醒所有等待者
func (p *Pool) drainQueue() {
	for {
		select {
		case sub := <-p.queue:
			p.queued.Add(-1)
			sub.task.complete(nil, ErrPoolClosed)
			p.inFlight.Done()
		default:
			return
		}
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
