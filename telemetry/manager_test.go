package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate(), "默认配置（未启用）应通过")

	cfg.Enabled = true
	require.NoError(t, cfg.Validate())

	cfg.Exporter.Type = "jaeger"
	assert.Error(t, cfg.Validate(), "不支持的导出器类型应报错")

	cfg = DefaultConfig()
	cfg.Enabled = true
	cfg.ServiceName = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Enabled = true
	cfg.Exporter.Type = "otlp"
	cfg.Exporter.Endpoint = ""
	assert.Error(t, cfg.Validate())
}

func TestManager_Disabled(t *testing.T) {
	m, err := NewManager(context.Background(), DefaultConfig())
	require.NoError(t, err)

	assert.False(t, m.IsEnabled())
	assert.NoError(t, m.Shutdown(context.Background()))

	// 未启用时 Meter 仍可用（noop）
	_ = m.Meter("test")
}

func TestManager_StdoutExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Exporter.Type = "stdout"

	m, err := NewManager(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, m.IsEnabled())

	require.NoError(t, m.Shutdown(context.Background()))
}

type fakeStats struct {
	workers int
	depth   int
}

func (f *fakeStats) WorkerCount() int { return f.workers }
func (f *fakeStats) QueueDepth() int  { return f.depth }

func TestMetricsKit_RecordsAndObserves(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	kit, err := NewMetricsKit(mp.Meter("test"), "pacekit", &fakeStats{workers: 4, depth: 7})
	require.NoError(t, err)

	ctx := context.Background()
	kit.RecordWait(ctx, "host-a", 250*time.Millisecond)
	kit.RecordRetune(ctx, 10, 11)
	kit.RecordRetune(ctx, 11, 9)
	kit.RecordTask(ctx, true)
	kit.RecordTask(ctx, false)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.NotEmpty(t, rm.ScopeMetrics)

	names := make(map[string]bool)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}

	assert.True(t, names["pacekit_pool_workers"])
	assert.True(t, names["pacekit_pool_queue_depth"])
	assert.True(t, names["pacekit_ratelimit_wait_seconds"])
	assert.True(t, names["pacekit_ratelimit_retunes_total"])
	assert.True(t, names["pacekit_tasks_total"])
}

func TestMetricsKit_NilStatsIsSafe(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	_, err := NewMetricsKit(mp.Meter("test"), "", nil)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	assert.NoError(t, reader.Collect(context.Background(), &rm))
}
