// Package application 提供探测类 CLI 应用的启动框架
// App 负责加载配置、校验目标、组装引擎并驱动调用方的 Runner
package application

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/KOMKZ/go-pacekit/engine"
	"github.com/KOMKZ/go-pacekit/logger"
	"github.com/KOMKZ/go-pacekit/settings"
	"github.com/KOMKZ/go-pacekit/validator"
)

// Runner 业务探测逻辑，由调用方提供
// targets 已通过校验并归一化；引擎已启动，退出前由 App 统一关闭
type Runner func(ctx context.Context, eng *engine.Engine, targets []string) error

// AppState 应用状态
type AppState int

const (
	StateInit AppState = iota
	StateSetup
	StateRunning
	StateStopping
	StateStopped
)

// String 状态字符串表示
func (s AppState) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateSetup:
		return "Setup"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// App 探测应用
type App struct {
	name   string
	runner Runner

	settings  *settings.Store
	engine    *engine.Engine
	validator *validator.TargetValidator
	logger    *logger.CtxZapLogger

	ctx    context.Context
	cancel context.CancelFunc
	state  AppState
	mu     sync.RWMutex

	onShutdown func(context.Context) error
}

// New 创建探测应用
func New(name string, runner Runner) *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		name:      name,
		runner:    runner,
		validator: validator.NewTargetValidator(),
		logger:    logger.GetLogger("application"),
		ctx:       ctx,
		cancel:    cancel,
		state:     StateInit,
	}
}

// OnShutdown 注册关闭前回调（业务层清理）
func (a *App) OnShutdown(fn func(context.Context) error) *App {
	a.onShutdown = fn
	return a
}

// Settings 返回设置仓库（Setup 之后可用）
func (a *App) Settings() *settings.Store {
	return a.settings
}

// Engine 返回引擎实例（Setup 之后可用）
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// Context 返回应用上下文
func (a *App) Context() context.Context {
	return a.ctx
}

// Cancel 手动触发关闭（测试或程序控制用）
func (a *App) Cancel() {
	a.cancel()
}

// GetState 当前状态（线程安全）
func (a *App) GetState() AppState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// setState 设置状态（线程安全）
func (a *App) setState(state AppState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = state
}

// setup 加载配置并组装引擎
func (a *App) setup(opts Options) error {
	a.setState(StateSetup)

	store, err := settings.Load(settings.LoadOptions{
		ConfigFile: opts.ConfigFile,
		EnvPrefix:  "PACEKIT",
	})
	if err != nil {
		return fmt.Errorf("application: load settings failed: %w", err)
	}

	// 命令行 flag 覆盖配置文件和环境变量
	if opts.Workers > 0 {
		store.Set(settings.KeyWorkers, opts.Workers)
	}
	if opts.Delay > 0 {
		store.Set(settings.KeyDelay, opts.Delay)
	}
	if opts.Debug {
		store.Set(settings.KeyDebug, true)
	}
	a.settings = store

	a.validator.AllowPrivate = opts.AllowPrivate
	a.validator.AllowLoopback = opts.AllowPrivate

	cfg := a.buildEngineConfig(opts)
	eng, err := engine.New(a.ctx, cfg)
	if err != nil {
		return fmt.Errorf("application: build engine failed: %w", err)
	}
	a.engine = eng

	return nil
}

// buildEngineConfig 从设置仓库推导引擎配置
func (a *App) buildEngineConfig(opts Options) engine.Config {
	cfg := engine.DefaultConfig()

	workers := a.settings.GetInt(settings.KeyWorkers, 10)
	if workers > cfg.Pool.MaxWorkers {
		cfg.Pool.MaxWorkers = workers
	}
	cfg.Delay.BaseDelay = a.settings.GetDuration(settings.KeyDelay, 0)
	if opts.Rate > 0 {
		cfg.Controller.InitialRate = opts.Rate
	}

	return cfg
}

// validateTargets 校验并归一化目标列表，任一非法目标即失败
func (a *App) validateTargets(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("application: no targets given")
	}

	targets := make([]string, 0, len(raw))
	for _, t := range raw {
		host, err := validator.NormalizeHost(t)
		if err != nil {
			return nil, fmt.Errorf("application: bad target %q: %w", t, err)
		}
		if err := a.validator.ValidateHost(host); err != nil {
			return nil, fmt.Errorf("application: target %q rejected: %w", t, err)
		}
		targets = append(targets, host)
	}
	return targets, nil
}

// Run executes the full lifecycle for one invocation: setup, target
// validation, the caller's Runner, then graceful shutdown. A SIGINT or
// SIGTERM cancels the runner's context; a second signal forces exit.
func (a *App) Run(opts Options) error {
	if err := a.setup(opts); err != nil {
		return err
	}

	targets, err := a.validateTargets(opts.Targets)
	if err != nil {
		a.shutdown()
		return err
	}

	workers := a.settings.GetInt(settings.KeyWorkers, 10)
	optimal := a.engine.OptimalWorkerCount(workers)
	if optimal != workers {
		a.logger.Info("adjusted worker count for current load",
			zap.Int("requested", workers), zap.Int("optimal", optimal))
	}

	a.setState(StateRunning)
	a.logger.Info("starting run",
		zap.String("app", a.name),
		zap.Int("targets", len(targets)),
		zap.Int("workers", optimal))

	a.watchSignals()

	runErr := a.runner(a.ctx, a.engine, targets)

	shutdownErr := a.shutdown()
	if runErr != nil {
		return runErr
	}
	return shutdownErr
}

// watchSignals 第一次信号取消 context，第二次强制退出
func (a *App) watchSignals() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-quit:
			a.logger.Warn("shutdown signal received",
				zap.String("signal", sig.String()))
			a.cancel()

			sig = <-quit
			a.logger.Warn("second signal received, forcing exit",
				zap.String("signal", sig.String()))
			os.Exit(1)

		case <-a.ctx.Done():
		}
	}()
}

// shutdown 优雅关闭
func (a *App) shutdown() error {
	a.setState(StateStopping)
	defer a.setState(StateStopped)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.onShutdown != nil {
		if err := a.onShutdown(ctx); err != nil {
			a.logger.Error("shutdown callback failed", zap.Error(err))
		}
	}

	a.cancel()
	if a.engine != nil {
		return a.engine.Shutdown(ctx)
	}
	return nil
}
