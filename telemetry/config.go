package telemetry

import (
	"fmt"
	"time"
)

// Config OpenTelemetry 指标配置
type Config struct {
	Enabled        bool           `mapstructure:"enabled"`         // 是否启用
	ServiceName    string         `mapstructure:"service_name"`    // 服务名
	ServiceVersion string         `mapstructure:"service_version"` // 服务版本
	Namespace      string         `mapstructure:"namespace"`       // 指标名前缀
	Exporter       ExporterConfig `mapstructure:"exporter"`        // 导出器配置
	ExportInterval time.Duration  `mapstructure:"export_interval"` // 导出间隔
	ExportTimeout  time.Duration  `mapstructure:"export_timeout"`  // 导出超时
}

// ExporterConfig 导出器配置
type ExporterConfig struct {
	Type     string            `mapstructure:"type"`     // 导出类型: otlp, stdout
	Endpoint string            `mapstructure:"endpoint"` // 导出端点
	Insecure bool              `mapstructure:"insecure"` // 是否使用非加密连接
	Timeout  time.Duration     `mapstructure:"timeout"`  // 导出超时
	Headers  map[string]string `mapstructure:"headers"`  // 自定义 Headers（认证等）
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "pacekit",
		ServiceVersion: "1.0.0",
		Namespace:      "pacekit",
		Exporter: ExporterConfig{
			Type:     "stdout",
			Endpoint: "localhost:4317",
			Insecure: true,
			Timeout:  10 * time.Second,
		},
		ExportInterval: 10 * time.Second,
		ExportTimeout:  5 * time.Second,
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required when telemetry is enabled")
	}

	switch c.Exporter.Type {
	case "otlp", "stdout":
	default:
		return fmt.Errorf("unsupported exporter type: %s (supported: otlp, stdout)", c.Exporter.Type)
	}

	if c.Exporter.Type == "otlp" && c.Exporter.Endpoint == "" {
		return fmt.Errorf("exporter endpoint is required for otlp exporter")
	}

	if c.ExportInterval <= 0 {
		return fmt.Errorf("export_interval must be positive, got: %s", c.ExportInterval)
	}

	return nil
}
