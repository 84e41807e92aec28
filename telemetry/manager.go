// Package telemetry wires an OpenTelemetry meter provider with a
// pluggable exporter and a MetricsKit carrying the pacing metrics:
// worker count, queue depth, wait durations and rate retunes.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Manager 指标管理器
type Manager struct {
	meterProvider *sdkmetric.MeterProvider
	config        Config
	enabled       bool
}

// NewManager 创建指标管理器；未启用时所有操作为空实现
func NewManager(ctx context.Context, cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("telemetry: invalid config: %w", err)
	}

	if !cfg.Enabled {
		return &Manager{config: cfg, enabled: false}, nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource failed: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				exporter,
				sdkmetric.WithInterval(cfg.ExportInterval),
				sdkmetric.WithTimeout(cfg.ExportTimeout),
			),
		),
	)

	otel.SetMeterProvider(mp)

	return &Manager{
		meterProvider: mp,
		config:        cfg,
		enabled:       true,
	}, nil
}

// newExporter 按配置创建导出器
func newExporter(ctx context.Context, cfg Config) (sdkmetric.Exporter, error) {
	switch cfg.Exporter.Type {
	case "otlp":
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(cfg.Exporter.Endpoint),
			otlpmetricgrpc.WithTimeout(cfg.Exporter.Timeout),
		}
		if cfg.Exporter.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		if len(cfg.Exporter.Headers) > 0 {
			opts = append(opts, otlpmetricgrpc.WithHeaders(cfg.Exporter.Headers))
		}

		exporter, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("telemetry: create OTLP exporter failed: %w", err)
		}
		return exporter, nil

	case "stdout":
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("telemetry: create stdout exporter failed: %w", err)
		}
		return exporter, nil

	default:
		return nil, fmt.Errorf("telemetry: unsupported exporter type: %s", cfg.Exporter.Type)
	}
}

// newResource 构造服务资源信息
func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("component", "pacekit"),
		),
		resource.WithTelemetrySDK(),
	)
}

// Meter 获取 Meter（供组件使用）
func (m *Manager) Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// IsEnabled 是否启用
func (m *Manager) IsEnabled() bool {
	return m.enabled
}

// Shutdown 冲刷并关闭 MeterProvider
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.meterProvider == nil {
		return nil
	}
	return m.meterProvider.Shutdown(ctx)
}
