package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/openkitx403/openkitx403/core"
)

// FileConfig is the on-disk/environment configuration shape, merged by
// viper from (in ascending priority) a config file, OPENKITX403D_* environment
// variables, and command-line flags — grounded on
// AINative-Studio-ainative-code's internal/cmd/root.go initConfig
// precedence chain.
type FileConfig struct {
	Issuer           string `mapstructure:"issuer"`
	Audience         string `mapstructure:"audience"`
	TTLSeconds       int64  `mapstructure:"ttl_seconds"`
	ClockSkewSeconds int64  `mapstructure:"clock_skew_seconds"`
	BindMethodPath   bool   `mapstructure:"bind_method_path"`
	OriginBinding    bool   `mapstructure:"origin_binding"`
	UABinding        bool   `mapstructure:"ua_binding"`

	ListenAddr string `mapstructure:"listen_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`

	ReplayBackend string `mapstructure:"replay_backend"` // "memory" | "redis" | "sqlite" | "mysql"
	ReplayDSN     string `mapstructure:"replay_dsn"`
	ReplayMaxEntries int `mapstructure:"replay_max_entries"`

	LogLevel  string `mapstructure:"log_level"`
	LogOutput string `mapstructure:"log_output"`
}

// DefaultFileConfig is what a brand-new deployment starts from before any
// config file, environment variable, or flag override is applied.
func DefaultFileConfig() FileConfig {
	return FileConfig{
		TTLSeconds:       core.DefaultTTLSeconds,
		ClockSkewSeconds: core.DefaultClockSkewSeconds,
		BindMethodPath:   core.DefaultBindMethodPath,
		ListenAddr:       ":8443",
		MetricsAddr:      ":9090",
		ReplayBackend:    "memory",
		ReplayMaxEntries: 10_000,
		LogLevel:         "info",
		LogOutput:        "stderr",
	}
}

// LoadConfig merges DefaultFileConfig with cfgFile (if non-empty) and
// OPENKITX403D_*-prefixed environment variables.
func LoadConfig(cfgFile string) (FileConfig, error) {
	v := viper.New()
	def := DefaultFileConfig()
	v.SetDefault("issuer", def.Issuer)
	v.SetDefault("audience", def.Audience)
	v.SetDefault("ttl_seconds", def.TTLSeconds)
	v.SetDefault("clock_skew_seconds", def.ClockSkewSeconds)
	v.SetDefault("bind_method_path", def.BindMethodPath)
	v.SetDefault("origin_binding", def.OriginBinding)
	v.SetDefault("ua_binding", def.UABinding)
	v.SetDefault("listen_addr", def.ListenAddr)
	v.SetDefault("metrics_addr", def.MetricsAddr)
	v.SetDefault("replay_backend", def.ReplayBackend)
	v.SetDefault("replay_max_entries", def.ReplayMaxEntries)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_output", def.LogOutput)

	v.SetEnvPrefix("OPENKITX403D")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return FileConfig{}, fmt.Errorf("config: reading %s: %w", cfgFile, err)
		}
	}

	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return FileConfig{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if fc.Issuer == "" {
		return FileConfig{}, fmt.Errorf("config: issuer is required")
	}
	if fc.Audience == "" {
		return FileConfig{}, fmt.Errorf("config: audience is required")
	}
	return fc, nil
}

// ToCoreConfig builds the immutable core.Config this FileConfig describes.
// replayStore and tokenGate are supplied separately by server.go, since
// they depend on backend construction (and, for tests, on a fake clock)
// that this package does not own.
func (fc FileConfig) ToCoreConfig(replayStore core.ReplayStore, tokenGate core.TokenGate) core.Config {
	opts := []core.ConfigOption{
		core.WithTTL(time.Duration(fc.TTLSeconds) * time.Second),
		core.WithClockSkew(time.Duration(fc.ClockSkewSeconds) * time.Second),
		core.WithBindMethodPath(fc.BindMethodPath),
		core.WithOriginBinding(fc.OriginBinding),
		core.WithUABinding(fc.UABinding),
	}
	if replayStore != nil {
		opts = append(opts, core.WithReplayStore(replayStore))
	}
	if tokenGate != nil {
		opts = append(opts, core.WithTokenGate(tokenGate))
	}
	return core.NewConfig(fc.Issuer, fc.Audience, opts...)
}
