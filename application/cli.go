package application

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/KOMKZ/go-pacekit/flagx"
)

// Options 命令行选项（flagx 声明式绑定）
type Options struct {
	// Targets 探测目标，host、host:port 或 URL
	Targets []string `flag:"target,t" usage:"probe targets (host, host:port or URL)" required:"true"`

	// ConfigFile 配置文件路径
	ConfigFile string `flag:"config,c" usage:"config file path"`

	// Workers 工作协程数，0 表示用配置值
	Workers int `flag:"workers,w" usage:"worker count (0 = from config)"`

	// Rate 初始速率（每窗口请求数），0 表示用默认
	Rate int `flag:"rate,r" usage:"initial requests per window (0 = default)"`

	// Delay 每个请求前的基础延迟
	Delay time.Duration `flag:"delay" usage:"base delay before each request"`

	// AllowPrivate 放行私有/回环地址目标
	AllowPrivate bool `flag:"allow-private" usage:"allow private and loopback targets"`

	// Debug 输出调试日志
	Debug bool `flag:"debug" usage:"verbose output"`
}

// RootCmd 构建应用的 cobra 根命令
func (a *App) RootCmd() *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.name + " - adaptive pacing probe runner",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flagx.Parse(cmd, &opts); err != nil {
				return err
			}
			return a.Run(opts)
		},
	}

	if err := flagx.Bind(cmd, &opts); err != nil {
		// tag 写错属于编程错误，启动期直接暴露
		panic(err)
	}

	return cmd
}

// Execute 执行根命令
func (a *App) Execute() error {
	return a.RootCmd().Execute()
}
