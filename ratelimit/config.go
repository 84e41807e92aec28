package ratelimit

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// DefaultScope 未指定 host 时使用的窗口键
const DefaultScope = "default"

// Config 滑动窗口限流器配置
type Config struct {
	// MaxRequests 单窗口允许的请求数（默认 10）
	MaxRequests int `mapstructure:"max_requests"`

	// TimeWindow 窗口长度（默认 1s）
	TimeWindow time.Duration `mapstructure:"time_window"`

	// Global 为 true 时所有 scope 共享一个窗口（默认按 scope 分窗口）
	Global bool `mapstructure:"global"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxRequests: 10,
		TimeWindow:  time.Second,
	}
}

// Validate 校验配置（零值字段先填默认值）
func (c *Config) Validate() error {
	def := DefaultConfig()
	if c.MaxRequests == 0 {
		c.MaxRequests = def.MaxRequests
	}
	if c.TimeWindow == 0 {
		c.TimeWindow = def.TimeWindow
	}

	return validation.ValidateStruct(c,
		validation.Field(&c.MaxRequests, validation.Min(1)),
		validation.Field(&c.TimeWindow, validation.Min(time.Millisecond)),
	)
}

// ControllerConfig 自适应速率控制器配置
type ControllerConfig struct {
	// InitialRate 初始速率，即每窗口允许的请求数（默认 10）
	InitialRate int `mapstructure:"initial_rate"`

	// MinRate 速率下限（默认 1）
	MinRate int `mapstructure:"min_rate"`

	// MaxRate 速率上限（默认 100）
	MaxRate int `mapstructure:"max_rate"`

	// WindowSize 成功率统计窗口，到期后重算速率（默认 10s）
	WindowSize time.Duration `mapstructure:"window_size"`

	// TimeWindow 每个 host 限流器的滑动窗口长度（默认 1s）
	TimeWindow time.Duration `mapstructure:"time_window"`
}

// DefaultControllerConfig 返回默认配置
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		InitialRate: 10,
		MinRate:     1,
		MaxRate:     100,
		WindowSize:  10 * time.Second,
		TimeWindow:  time.Second,
	}
}

// Validate 校验配置（零值字段先填默认值）
func (c *ControllerConfig) Validate() error {
	def := DefaultControllerConfig()
	if c.InitialRate == 0 {
		c.InitialRate = def.InitialRate
	}
	if c.MinRate == 0 {
		c.MinRate = def.MinRate
	}
	if c.MaxRate == 0 {
		c.MaxRate = def.MaxRate
	}
	if c.WindowSize == 0 {
		c.WindowSize = def.WindowSize
	}
	if c.TimeWindow == 0 {
		c.TimeWindow = def.TimeWindow
	}

	return validation.ValidateStruct(c,
		validation.Field(&c.MinRate, validation.Min(1)),
		validation.Field(&c.MaxRate, validation.Min(c.MinRate)),
		validation.Field(&c.InitialRate,
			validation.Min(c.MinRate), validation.Max(c.MaxRate)),
		validation.Field(&c.WindowSize, validation.Min(time.Millisecond)),
		validation.Field(&c.TimeWindow, validation.Min(time.Millisecond)),
	)
}
