package logger

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// ManagerConfig 日志管理器配置
type ManagerConfig struct {
	// AppName 应用名称（注入到每条日志）
	AppName string `mapstructure:"app_name"`

	// Level 全局日志级别: debug, info, warn, error
	Level string `mapstructure:"level"`

	// Format 输出格式: console, json
	Format string `mapstructure:"format"`

	// Console 是否输出到标准输出
	Console bool `mapstructure:"console"`

	// Directory 日志文件目录（为空则不写文件）
	Directory string `mapstructure:"directory"`

	// 文件轮转配置（lumberjack）
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`

	// ModuleLevels 模块级别覆盖（模块名 -> 级别）
	ModuleLevels map[string]string `mapstructure:"module_levels"`
}

// DefaultManagerConfig 返回默认配置（控制台输出、info 级别）
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		AppName:    "pacekit",
		Level:      "info",
		Format:     "console",
		Console:    true,
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 30,
	}
}

// Validate 校验配置
func (c *ManagerConfig) Validate() error {
	if c.Level == "" {
		c.Level = "info"
	}
	if _, err := parseLevel(c.Level); err != nil {
		return err
	}
	if c.Format == "" {
		c.Format = "console"
	}
	if c.Format != "console" && c.Format != "json" {
		return fmt.Errorf("logger: unsupported format %q", c.Format)
	}
	for module, lvl := range c.ModuleLevels {
		if _, err := parseLevel(lvl); err != nil {
			return fmt.Errorf("logger: module %q: %w", module, err)
		}
	}
	return nil
}

// moduleLevel 返回模块的生效级别
func (c *ManagerConfig) moduleLevel(module string) zapcore.Level {
	if lvl, ok := c.ModuleLevels[module]; ok {
		if parsed, err := parseLevel(lvl); err == nil {
			return parsed
		}
	}
	parsed, _ := parseLevel(c.Level)
	return parsed
}

func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("logger: unknown level %q", level)
	}
}
