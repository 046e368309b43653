// rsx_config.go - Configuration for the RSX offload core, loaded from YAML and RSX_* environment variables

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine

License: GPLv3 or later
*/

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	// Copies at or below this size run on the calling goroutine.
	DEFAULT_IMMEDIATE_TRANSFER_SIZE = 65536
	DEFAULT_SYNC_SPINS              = 4096
	DEFAULT_IDLE_SPINS              = 64
	DEFAULT_PRESENT_TIMEOUT         = time.Second

	configEnvPrefix = "RSX"
)

type VideoConfig struct {
	MultithreadedRSX      bool   `mapstructure:"multithreaded_rsx"`
	ImmediateTransferSize uint32 `mapstructure:"immediate_transfer_size"`
}

type CoreConfig struct {
	ThreadSchedulerEnabled bool  `mapstructure:"thread_scheduler_enabled"`
	RSXAffinity            []int `mapstructure:"rsx_affinity"`
}

type OffloadTuning struct {
	SyncSpins   int           `mapstructure:"sync_spins"`
	IdleSpins   int           `mapstructure:"idle_spins"`
	IdleBackoff time.Duration `mapstructure:"idle_backoff"`
}

type VulkanConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	PresentTimeout time.Duration `mapstructure:"present_timeout"`
}

type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// Config is the full runtime configuration. The offload core only ever
// reads it; a running session never observes changes.
type Config struct {
	Video   VideoConfig   `mapstructure:"video"`
	Core    CoreConfig    `mapstructure:"core"`
	Offload OffloadTuning `mapstructure:"offload"`
	Vulkan  VulkanConfig  `mapstructure:"vulkan"`
	Logging LogConfig     `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

func DefaultConfig() Config {
	return Config{
		Video: VideoConfig{
			MultithreadedRSX:      true,
			ImmediateTransferSize: DEFAULT_IMMEDIATE_TRANSFER_SIZE,
		},
		Offload: OffloadTuning{
			SyncSpins: DEFAULT_SYNC_SPINS,
			IdleSpins: DEFAULT_IDLE_SPINS,
		},
		Vulkan: VulkanConfig{
			Enabled:        true,
			PresentTimeout: DEFAULT_PRESENT_TIMEOUT,
		},
		Logging: LogConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}

// SpinPolicy derives the wait policy from the offload tuning section.
func (c Config) SpinPolicy() SpinPolicy {
	return SpinPolicy{
		SyncSpins:   c.Offload.SyncSpins,
		IdleSpins:   c.Offload.IdleSpins,
		IdleBackoff: c.Offload.IdleBackoff,
	}
}

func setConfigDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("video.multithreaded_rsx", d.Video.MultithreadedRSX)
	v.SetDefault("video.immediate_transfer_size", d.Video.ImmediateTransferSize)
	v.SetDefault("core.thread_scheduler_enabled", d.Core.ThreadSchedulerEnabled)
	v.SetDefault("core.rsx_affinity", []int{})
	v.SetDefault("offload.sync_spins", d.Offload.SyncSpins)
	v.SetDefault("offload.idle_spins", d.Offload.IdleSpins)
	v.SetDefault("offload.idle_backoff", d.Offload.IdleBackoff)
	v.SetDefault("vulkan.enabled", d.Vulkan.Enabled)
	v.SetDefault("vulkan.present_timeout", d.Vulkan.PresentTimeout)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", "")
	v.SetDefault("metrics.listen", "")
}

func newConfigViper(path string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(configEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setConfigDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	}
	return v
}

// LoadConfig reads path (optional) over the defaults, applies RSX_*
// environment overrides and validates the result.
func LoadConfig(path string) (Config, error) {
	v := newConfigViper(path)

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Offload.SyncSpins < 0 {
		errs = append(errs, fmt.Errorf("offload.sync_spins must be >= 0, got %d", c.Offload.SyncSpins))
	}
	if c.Offload.IdleSpins < 0 {
		errs = append(errs, fmt.Errorf("offload.idle_spins must be >= 0, got %d", c.Offload.IdleSpins))
	}
	if c.Offload.IdleBackoff < 0 {
		errs = append(errs, fmt.Errorf("offload.idle_backoff must be >= 0, got %s", c.Offload.IdleBackoff))
	}
	if c.Vulkan.PresentTimeout <= 0 {
		errs = append(errs, fmt.Errorf("vulkan.present_timeout must be > 0, got %s", c.Vulkan.PresentTimeout))
	}
	for _, cpu := range c.Core.RSXAffinity {
		if cpu < 0 {
			errs = append(errs, fmt.Errorf("core.rsx_affinity contains negative cpu %d", cpu))
		}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// watchLoggingConfig re-applies the logging section whenever the file at
// path changes. A non-empty levelOverride (the --log-level flag) wins over
// logging.level in the file. The offload flags are deliberately not reloaded.
func watchLoggingConfig(path, levelOverride string) error {
	if path == "" {
		return nil
	}
	v := newConfigViper(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		lc := LogConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
			Output: v.GetString("logging.output"),
		}
		if levelOverride != "" {
			lc.Level = levelOverride
		}
		if err := initLogger(lc); err != nil {
			logWarn("logging reload failed", "file", e.Name, "error", err)
			return
		}
		logInfo("logging configuration reloaded", "file", e.Name,
			"level", lc.Level, "format", lc.Format, "output", lc.Output)
	})
	v.WatchConfig()
	return nil
}
