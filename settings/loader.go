package settings

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoadOptions 配置加载选项
type LoadOptions struct {
	// ConfigFile 配置文件路径（yaml/json/toml，由扩展名决定；为空则跳过文件）
	ConfigFile string

	// EnvPrefix 环境变量前缀（如 "PACEKIT"，为空则跳过环境变量）
	EnvPrefix string
}

// Load builds a Store: defaults, then config file, then environment
// variables — later sources override earlier ones.
func Load(opts LoadOptions) (*Store, error) {
	v := viper.New()

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	if opts.ConfigFile != "" {
		if _, err := os.Stat(opts.ConfigFile); err != nil {
			return nil, fmt.Errorf("settings: config file %s: %w", opts.ConfigFile, err)
		}
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("settings: read config failed: %w", err)
		}
	}

	if opts.EnvPrefix != "" {
		v.SetEnvPrefix(opts.EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
		// AutomaticEnv 不会把未 Set 过的 env 键带入 AllSettings，
		// 对已知键显式绑定一次
		for key := range Defaults() {
			_ = v.BindEnv(key)
		}
	}

	store := NewStore()
	for key, value := range v.AllSettings() {
		store.Set(key, value)
	}

	// viper 会把时间类键解码成字符串，保留 Get 侧的字符串解析兜底
	return store, nil
}
