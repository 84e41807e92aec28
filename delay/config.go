package delay

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config 延迟注入器配置
type Config struct {
	// BaseDelay 基础延迟，0 表示不注入（默认 0）
	BaseDelay time.Duration `mapstructure:"base_delay"`

	// Jitter 对称抖动幅度，实际延迟在 base±jitter 内均匀分布（默认 0）
	Jitter time.Duration `mapstructure:"jitter"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{}
}

// Validate 校验配置
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.Jitter, validation.Min(time.Duration(0))),
	)
}
