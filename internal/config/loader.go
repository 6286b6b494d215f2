// Package config loads runtime configuration for checkrun.
//
// Configuration is resolved with the following precedence, highest first:
// runtime overrides passed to Load, CHECKRUN_* environment variables, and
// built-in defaults.
package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// ServerConfig holds HTTP server settings for the serve command.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RunnerConfig holds job execution settings.
type RunnerConfig struct {
	Shell  string `mapstructure:"shell"`
	LogDir string `mapstructure:"log_dir"`
}

// Config is the root configuration document.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Runner  RunnerConfig  `mapstructure:"runner"`
}

var (
	configMu  sync.Mutex
	appConfig *Config
)

// envSpec maps an environment variable to a configuration key.
type envSpec struct {
	Name string
	Path string
}

func getEnvSpecs() []envSpec {
	return []envSpec{
		{Name: "CHECKRUN_HOST", Path: "server.host"},
		{Name: "CHECKRUN_PORT", Path: "server.port"},
		{Name: "CHECKRUN_READ_TIMEOUT", Path: "server.read_timeout"},
		{Name: "CHECKRUN_WRITE_TIMEOUT", Path: "server.write_timeout"},
		{Name: "CHECKRUN_IDLE_TIMEOUT", Path: "server.idle_timeout"},
		{Name: "CHECKRUN_SHUTDOWN_TIMEOUT", Path: "server.shutdown_timeout"},
		{Name: "CHECKRUN_LOG_LEVEL", Path: "logging.level"},
		{Name: "CHECKRUN_LOG_FORMAT", Path: "logging.format"},
		{Name: "CHECKRUN_SHELL", Path: "runner.shell"},
		{Name: "CHECKRUN_LOG_DIR", Path: "runner.log_dir"},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("runner.shell", "/bin/sh")
	v.SetDefault("runner.log_dir", "checkrun-logs")
}

// flattenOverrides rewrites a nested override document into dotted keys so
// overrides land above environment variables in viper's precedence order.
func flattenOverrides(prefix string, in map[string]any, out map[string]any) {
	for k, val := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			flattenOverrides(key, nested, out)
			continue
		}
		out[key] = val
	}
}

// Load resolves the configuration and caches it for GetConfig.
//
// Overrides are nested documents keyed like the Config struct, typically
// built from command-line flags. Later overrides win over earlier ones.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	configMu.Lock()
	defer configMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	for _, spec := range getEnvSpecs() {
		if err := v.BindEnv(spec.Path, spec.Name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", spec.Name, err)
		}
	}

	for _, o := range overrides {
		flat := make(map[string]any)
		flattenOverrides("", o, flat)
		for key, val := range flat {
			v.Set(key, val)
		}
	}

	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	appConfig = &cfg
	return appConfig, nil
}

// GetConfig returns the most recently loaded configuration, or nil if Load
// has not been called.
func GetConfig() *Config {
	configMu.Lock()
	defer configMu.Unlock()
	return appConfig
}
