package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Manager 按模块管理 zap logger 实例
// 设计思路：每个模块一个 logger，创建后缓存复用；文件输出走 lumberjack 轮转
type Manager struct {
	mu      sync.RWMutex
	cfg     ManagerConfig
	loggers map[string]*CtxZapLogger
	writers []*lumberjack.Logger
}

var (
	defaultManager *Manager
	managerOnce    sync.Once
	managerMu      sync.RWMutex
)

// NewManager 创建日志管理器
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		cfg:     cfg,
		loggers: make(map[string]*CtxZapLogger),
	}
}

// InitManager 初始化全局日志管理器（进程启动时调用一次）
func InitManager(cfg ManagerConfig) {
	managerMu.Lock()
	defer managerMu.Unlock()
	defaultManager = NewManager(cfg)
}

// GetLogger 从全局管理器获取模块 logger
// 未初始化时退化为默认控制台配置，组件可以独立使用
func GetLogger(module string) *CtxZapLogger {
	managerMu.RLock()
	m := defaultManager
	managerMu.RUnlock()

	if m == nil {
		managerOnce.Do(func() {
			managerMu.Lock()
			if defaultManager == nil {
				defaultManager = NewManager(DefaultManagerConfig())
			}
			managerMu.Unlock()
		})
		managerMu.RLock()
		m = defaultManager
		managerMu.RUnlock()
	}

	return m.GetLogger(module)
}

// GetLogger 获取模块 logger（已存在则复用）
func (m *Manager) GetLogger(module string) *CtxZapLogger {
	m.mu.RLock()
	if l, ok := m.loggers[module]; ok {
		m.mu.RUnlock()
		return l
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// double check
	if l, ok := m.loggers[module]; ok {
		return l
	}

	l := m.buildLogger(module)
	m.loggers[module] = l
	return l
}

// buildLogger 为模块构建 zap logger（调用方需持有写锁）
func (m *Manager) buildLogger(module string) *CtxZapLogger {
	level := m.cfg.moduleLevel(module)
	encoder := createEncoder(m.cfg.Format)

	var cores []zapcore.Core

	if m.cfg.Console || m.cfg.Directory == "" {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	}

	if m.cfg.Directory != "" {
		writer := &lumberjack.Logger{
			Filename:   filepath.Join(m.cfg.Directory, module+".log"),
			MaxSize:    m.cfg.MaxSizeMB,
			MaxBackups: m.cfg.MaxBackups,
			MaxAge:     m.cfg.MaxAgeDays,
			Compress:   m.cfg.Compress,
		}
		m.writers = append(m.writers, writer)
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(writer), level))
	}

	base := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1)).
		With(zap.String("module", module))

	return &CtxZapLogger{
		base:    base,
		module:  module,
		appName: m.cfg.AppName,
	}
}

// CloseAll 关闭所有文件写入器并清空缓存
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.loggers {
		_ = l.base.Sync()
	}
	for _, w := range m.writers {
		_ = w.Close()
	}
	m.loggers = make(map[string]*CtxZapLogger)
	m.writers = nil
}

func createEncoder(format string) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if format == "json" {
		return zapcore.NewJSONEncoder(encoderConfig)
	}
	return zapcore.NewConsoleEncoder(encoderConfig)
}
