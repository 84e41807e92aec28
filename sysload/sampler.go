package sysload

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-pacekit/logger"
)

// ProbeFunc 读取 CPU/内存使用率（百分比）
// window 为 CPU 观察窗口，实现可以阻塞这么久
type ProbeFunc func(window time.Duration) (cpuPercent, memPercent float64, err error)

// Sampler 后台资源采样器
type Sampler struct {
	cfg       Config
	probe     ProbeFunc
	depth     DepthProvider
	logger    *logger.CtxZapLogger
	scheduler gocron.Scheduler

	mu        sync.RWMutex
	history   []Snapshot
	callbacks []func(Snapshot)
	started   bool
}

// SamplerOption 采样器选项
type SamplerOption func(*Sampler)

// WithProbe 注入自定义采样函数（测试用）
func WithProbe(probe ProbeFunc) SamplerOption {
	return func(s *Sampler) { s.probe = probe }
}

// WithDepthProvider 注入并发深度来源（worker pool）
func WithDepthProvider(p DepthProvider) SamplerOption {
	return func(s *Sampler) { s.depth = p }
}

// WithLogger 注入 logger
func WithLogger(l *logger.CtxZapLogger) SamplerOption {
	return func(s *Sampler) { s.logger = l }
}

// NewSampler 创建采样器（不启动后台任务）
func NewSampler(cfg Config, opts ...SamplerOption) (*Sampler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Sampler{
		cfg:   cfg,
		probe: systemProbe,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.GetLogger("sysload")
	}
	return s, nil
}

// OnSample registers a callback invoked with every new snapshot.
// Callbacks run on the sampling goroutine and must not block.
func (s *Sampler) OnSample(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, fn)
}

// Start launches the periodic sampling job.
func (s *Sampler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("sysload: create scheduler failed: %w", err)
	}

	// 单例模式：CPU 观察窗口占用 1s，上一轮没结束就跳过本轮
	_, err = scheduler.NewJob(
		gocron.DurationJob(s.cfg.Interval),
		gocron.NewTask(s.sampleOnce),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("sysload: register job failed: %w", err)
	}

	scheduler.Start()
	s.scheduler = scheduler
	s.started = true

	s.logger.Debug("resource sampler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("cpu_window", s.cfg.CPUWindow))
	return nil
}

// Stop shuts the sampling job down and waits for a running cycle to end.
func (s *Sampler) Stop() error {
	s.mu.Lock()
	scheduler := s.scheduler
	s.scheduler = nil
	s.started = false
	s.mu.Unlock()

	if scheduler == nil {
		return nil
	}
	if err := scheduler.Shutdown(); err != nil {
		return fmt.Errorf("sysload: scheduler shutdown failed: %w", err)
	}
	s.logger.Debug("resource sampler stopped")
	return nil
}

// sampleOnce 执行一轮采样：读取指标、写历史、通知订阅者
func (s *Sampler) sampleOnce() {
	cpuPercent, memPercent, err := s.probe(s.cfg.CPUWindow)
	if err != nil {
		// 采样失败不能影响进程，记录后等下一轮
		s.logger.Error("resource sampling failed", zap.Error(err))
		return
	}

	snap := Snapshot{
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Timestamp:     time.Now(),
	}
	if s.depth != nil {
		snap.ActiveWorkers = s.depth.WorkerCount()
		snap.QueueDepth = s.depth.QueueDepth()
	}

	s.mu.Lock()
	s.history = append(s.history, snap)
	if len(s.history) > s.cfg.HistoryCap {
		trimmed := make([]Snapshot, s.cfg.HistoryKeep)
		copy(trimmed, s.history[len(s.history)-s.cfg.HistoryKeep:])
		s.history = trimmed
	}
	callbacks := make([]func(Snapshot), len(s.callbacks))
	copy(callbacks, s.callbacks)
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(snap)
	}
}

// Latest returns the most recent snapshot, or false when none was taken yet.
func (s *Sampler) Latest() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.history) == 0 {
		return Snapshot{}, false
	}
	return s.history[len(s.history)-1], true
}

// LatestOrProbe returns the most recent snapshot, probing synchronously
// when the history is still empty.
func (s *Sampler) LatestOrProbe() Snapshot {
	if snap, ok := s.Latest(); ok {
		return snap
	}

	cpuPercent, memPercent, err := s.probe(0)
	if err != nil {
		s.logger.Error("on-demand sampling failed", zap.Error(err))
		return Snapshot{Timestamp: time.Now()}
	}
	return Snapshot{
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Timestamp:     time.Now(),
	}
}

// History returns a copy of the retained snapshots, oldest first.
func (s *Sampler) History() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Snapshot, len(s.history))
	copy(out, s.history)
	return out
}

// CPUUsage 最近一次采样的 CPU 使用率（供限速控制器做负载参考）
func (s *Sampler) CPUUsage() float64 {
	snap, _ := s.Latest()
	return snap.CPUPercent
}

// MemoryUsage 最近一次采样的内存使用率
func (s *Sampler) MemoryUsage() float64 {
	snap, _ := s.Latest()
	return snap.MemoryPercent
}

// systemProbe 默认采样实现（gopsutil）
func systemProbe(window time.Duration) (float64, float64, error) {
	cpuPercents, err := cpu.Percent(window, false)
	if err != nil {
		return 0, 0, fmt.Errorf("read cpu failed: %w", err)
	}
	var cpuPercent float64
	if len(cpuPercents) > 0 {
		cpuPercent = cpuPercents[0]
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, fmt.Errorf("read memory failed: %w", err)
	}

	return cpuPercent, vm.UsedPercent, nil
}
