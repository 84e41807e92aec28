// Package sysload periodically samples host CPU/memory utilization and
// the engine's concurrency depth.
//
// Design philosophy:
// - Pure producer: one Snapshot per cycle, appended to a bounded history
// - Consumers subscribe via OnSample (the worker pool's sizing step) or
//   poll Latest()
// - Sampling errors are logged and never stop the loop
package sysload

import "time"

// Snapshot 某一时刻的资源快照，创建后不可变
type Snapshot struct {
	// CPUPercent CPU 使用率 [0,100]
	CPUPercent float64

	// MemoryPercent 内存使用率 [0,100]
	MemoryPercent float64

	// ActiveWorkers 当前工作协程数
	ActiveWorkers int

	// QueueDepth 等待执行的任务数
	QueueDepth int

	// Timestamp 采样时间
	Timestamp time.Time
}

// DepthProvider 提供当前并发深度（由 worker pool 实现，可选）
type DepthProvider interface {
	WorkerCount() int
	QueueDepth() int
}

// Config 采样器配置
type Config struct {
	// Interval 采样周期（默认 2s）
	Interval time.Duration `mapstructure:"interval"`

	// CPUWindow CPU 观察窗口（默认 1s，采样调用会阻塞这么久）
	CPUWindow time.Duration `mapstructure:"cpu_window"`

	// HistoryCap 历史上限，超过后裁剪（默认 100）
	HistoryCap int `mapstructure:"history_cap"`

	// HistoryKeep 裁剪后保留的条数（默认 50）
	HistoryKeep int `mapstructure:"history_keep"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Interval:    2 * time.Second,
		CPUWindow:   1 * time.Second,
		HistoryCap:  100,
		HistoryKeep: 50,
	}
}

// Validate 校验并填充默认值
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		c.Interval = 2 * time.Second
	}
	if c.CPUWindow <= 0 {
		c.CPUWindow = 1 * time.Second
	}
	if c.HistoryCap <= 0 {
		c.HistoryCap = 100
	}
	if c.HistoryKeep <= 0 || c.HistoryKeep > c.HistoryCap {
		c.HistoryKeep = c.HistoryCap / 2
	}
	return nil
}
