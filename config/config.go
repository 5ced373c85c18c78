// Package config loads runtime settings from an optional file, WAKE_*
// environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "WAKE"

// Config 运行时配置
type Config struct {
	// Library 原生引擎动态库路径，空表示不加载
	Library string `mapstructure:"library"`
	// Allocator go | malloc | checked
	Allocator string `mapstructure:"allocator"`
	// ChunkSize 读 CSV 时每个 chunk 的行数
	ChunkSize int `mapstructure:"chunk_size"`

	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Trace   TraceConfig   `mapstructure:"trace"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	Encoding    string `mapstructure:"encoding"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type TraceConfig struct {
	// Stdout 把 span 打印到 stderr，调试用
	Stdout bool `mapstructure:"stdout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("library", "")
	v.SetDefault("allocator", "go")
	v.SetDefault("chunk_size", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.encoding", "console")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("trace.stdout", false)
}

// Load 读取配置。path 为空时只使用环境变量和默认值。
// 优先级：环境变量 > 配置文件 > 默认值；POLARS_BRIDGE_LIB 作为 library 的后备。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("library", envPrefix+"_LIBRARY", "POLARS_BRIDGE_LIB"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	var errs []error
	switch c.Allocator {
	case AllocatorGo, AllocatorMalloc, AllocatorChecked:
	default:
		errs = append(errs, fmt.Errorf("unknown allocator %q", c.Allocator))
	}
	if c.ChunkSize < 0 {
		errs = append(errs, fmt.Errorf("chunk_size must not be negative, got %d", c.ChunkSize))
	}
	return errors.Join(errs...)
}
