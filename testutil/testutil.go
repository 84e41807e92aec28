// Package testutil 提供测试用的基础件：控制台 logger 和固定负载的假采样
package testutil

import (
	"testing"
	"time"

	"github.com/KOMKZ/go-pacekit/logger"
	"github.com/KOMKZ/go-pacekit/sysload"
)

// NewTestLogger 创建只输出到控制台的 logger，随测试结束关闭
func NewTestLogger(t *testing.T, module string) *logger.CtxZapLogger {
	t.Helper()

	mgr := logger.NewManager(logger.ManagerConfig{
		AppName:   "test",
		Level:     "debug",
		Console:   true,
		Directory: t.TempDir(),
	})
	t.Cleanup(mgr.CloseAll)

	return mgr.GetLogger(module)
}

// StaticLoadProbe 返回恒定负载的采样函数，测试里替换 gopsutil 采样
func StaticLoadProbe(cpuPercent, memPercent float64) sysload.ProbeFunc {
	return func(_ time.Duration) (float64, float64, error) {
		return cpuPercent, memPercent, nil
	}
}

// StaticDepth 固定的工作池观测值
// 同时满足 sysload.DepthProvider 和 telemetry.PoolStats
type StaticDepth struct {
	Workers int
	Depth   int
}

// WorkerCount 当前工作协程数
func (s *StaticDepth) WorkerCount() int { return s.Workers }

// QueueDepth 已入队未执行的任务数
func (s *StaticDepth) QueueDepth() int { return s.Depth }
