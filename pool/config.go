package pool

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config 动态工作池配置
type Config struct {
	// MinWorkers 最小工作协程数（默认 2）
	MinWorkers int `mapstructure:"min_workers"`

	// MaxWorkers 最大工作协程数（默认 20）
	MaxWorkers int `mapstructure:"max_workers"`

	// CPUThreshold CPU 使用率收缩阈值，百分比（默认 80）
	CPUThreshold float64 `mapstructure:"cpu_threshold"`

	// MemoryThreshold 内存使用率收缩阈值，百分比（默认 80）
	MemoryThreshold float64 `mapstructure:"memory_threshold"`

	// QueueSize 提交队列容量，塞满后 Submit 返回 ErrQueueFull（默认 4096）
	QueueSize int `mapstructure:"queue_size"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MinWorkers:      2,
		MaxWorkers:      20,
		CPUThreshold:    80,
		MemoryThreshold: 80,
		QueueSize:       4096,
	}
}

// Validate 校验配置（零值字段先填默认值）
func (c *Config) Validate() error {
	def := DefaultConfig()
	if c.MinWorkers == 0 {
		c.MinWorkers = def.MinWorkers
	}
	if c.MaxWorkers == 0 {
		c.MaxWorkers = def.MaxWorkers
	}
	if c.CPUThreshold == 0 {
		c.CPUThreshold = def.CPUThreshold
	}
	if c.MemoryThreshold == 0 {
		c.MemoryThreshold = def.MemoryThreshold
	}
	if c.QueueSize == 0 {
		c.QueueSize = def.QueueSize
	}

	return validation.ValidateStruct(c,
		validation.Field(&c.MinWorkers, validation.Min(1)),
		validation.Field(&c.MaxWorkers, validation.Min(c.MinWorkers)),
		validation.Field(&c.CPUThreshold, validation.Min(1.0), validation.Max(100.0)),
		validation.Field(&c.MemoryThreshold, validation.Min(1.0), validation.Max(100.0)),
		validation.Field(&c.QueueSize, validation.Min(1)),
	)
}
