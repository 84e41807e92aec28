package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PoolStats 工作池观测回调
type PoolStats interface {
	// WorkerCount 当前工作协程数
	WorkerCount() int

	// QueueDepth 已入队未执行的任务数
	QueueDepth() int
}

// MetricsKit 节奏控制相关指标集合
type MetricsKit struct {
	workers  metric.Int64ObservableGauge
	queue    metric.Int64ObservableGauge
	waitHist metric.Float64Histogram
	retunes  metric.Int64Counter
	tasks    metric.Int64Counter
}

// NewMetricsKit 创建指标集合并注册工作池 gauge 回调
func NewMetricsKit(meter metric.Meter, namespace string, stats PoolStats) (*MetricsKit, error) {
	fullName := func(name string) string {
		if namespace == "" {
			return name
		}
		return namespace + "_" + name
	}

	workers, err := meter.Int64ObservableGauge(
		fullName("pool_workers"),
		metric.WithDescription("Current number of pool workers"),
		metric.WithUnit("{worker}"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			if stats != nil {
				o.Observe(int64(stats.WorkerCount()))
			}
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	queue, err := meter.Int64ObservableGauge(
		fullName("pool_queue_depth"),
		metric.WithDescription("Number of queued tasks not yet running"),
		metric.WithUnit("{task}"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			if stats != nil {
				o.Observe(int64(stats.QueueDepth()))
			}
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	waitHist, err := meter.Float64Histogram(
		fullName("ratelimit_wait_seconds"),
		metric.WithDescription("Time spent waiting for rate-limit capacity"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	retunes, err := meter.Int64Counter(
		fullName("ratelimit_retunes_total"),
		metric.WithDescription("Total number of adaptive rate adjustments"),
		metric.WithUnit("{count}"),
	)
	if err != nil {
		return nil, err
	}

	tasks, err := meter.Int64Counter(
		fullName("tasks_total"),
		metric.WithDescription("Total number of tasks by outcome"),
		metric.WithUnit("{count}"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsKit{
		workers:  workers,
		queue:    queue,
		waitHist: waitHist,
		retunes:  retunes,
		tasks:    tasks,
	}, nil
}

// RecordWait 记录一次限流等待
func (k *MetricsKit) RecordWait(ctx context.Context, host string, waited time.Duration) {
	k.waitHist.Record(ctx, waited.Seconds(),
		metric.WithAttributes(attribute.String("host", host)))
}

// RecordRetune 记录一次速率调整
func (k *MetricsKit) RecordRetune(ctx context.Context, oldRate, newRate int) {
	direction := "up"
	if newRate < oldRate {
		direction = "down"
	}
	k.retunes.Add(ctx, 1,
		metric.WithAttributes(attribute.String("direction", direction)))
}

// RecordTask 记录一次任务结果
func (k *MetricsKit) RecordTask(ctx context.Context, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	k.tasks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}
