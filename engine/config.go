package engine

import (
	"fmt"

	"github.com/KOMKZ/go-pacekit/delay"
	"github.com/KOMKZ/go-pacekit/pool"
	"github.com/KOMKZ/go-pacekit/ratelimit"
	"github.com/KOMKZ/go-pacekit/sysload"
	"github.com/KOMKZ/go-pacekit/telemetry"
)

// Config 引擎配置，聚合各组件配置
type Config struct {
	Sampler    sysload.Config             `mapstructure:"sampler"`
	Pool       pool.Config                `mapstructure:"pool"`
	Controller ratelimit.ControllerConfig `mapstructure:"controller"`
	Delay      delay.Config               `mapstructure:"delay"`
	Telemetry  telemetry.Config           `mapstructure:"telemetry"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Sampler:    sysload.DefaultConfig(),
		Pool:       pool.DefaultConfig(),
		Controller: ratelimit.DefaultControllerConfig(),
		Delay:      delay.DefaultConfig(),
		Telemetry:  telemetry.DefaultConfig(),
	}
}

// Validate 逐组件校验
func (c *Config) Validate() error {
	if err := c.Sampler.Validate(); err != nil {
		return fmt.Errorf("engine: sampler config: %w", err)
	}
	if err := c.Pool.Validate(); err != nil {
		return fmt.Errorf("engine: pool config: %w", err)
	}
	if err := c.Controller.Validate(); err != nil {
		return fmt.Errorf("engine: controller config: %w", err)
	}
	if err := c.Delay.Validate(); err != nil {
		return fmt.Errorf("engine: delay config: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("engine: telemetry config: %w", err)
	}
	return nil
}
