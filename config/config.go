// Package config loads the daemon configuration from a YAML file with
// environment variable overrides for deployment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/pixelhunt/pixelhunt/diff"
	"github.com/pixelhunt/pixelhunt/game"
)

// ServerConfig configures the HTTP/WebSocket listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`

	// MetricsAddr, when set, serves /metrics on a separate listener.
	MetricsAddr string `yaml:"metrics_addr"`
}

// StorageConfig configures on-disk persistence.
type StorageConfig struct {
	// Dir is the base directory for the catalog, saved differences and
	// image assets.
	Dir string `yaml:"dir"`

	// AssetPrefix is the URL prefix assets are served under.
	AssetPrefix string `yaml:"asset_prefix"`
}

// RedisConfig configures the optional Redis-backed difference cache. When
// disabled the daemon uses the in-memory cache.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	DB      int    `yaml:"db"`
}

// DetectionConfig configures the difference detection pipeline.
type DetectionConfig struct {
	// Radius is the expansion radius around each differing pixel.
	Radius int `yaml:"radius"`

	Thresholds diff.Thresholds `yaml:"thresholds"`
}

// GameConfig configures gameplay timing.
type GameConfig struct {
	Constants game.Constants `yaml:"constants"`

	// LimitedBudget is the limited-run wall-clock budget in seconds.
	LimitedBudget int `yaml:"limited_budget"`
}

// Config is the full daemon configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Detection DetectionConfig `yaml:"detection"`
	Game      GameConfig      `yaml:"game"`

	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Storage: StorageConfig{
			Dir:         "data",
			AssetPrefix: "/assets",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Detection: DetectionConfig{
			Radius:     5,
			Thresholds: diff.DefaultThresholds(),
		},
		Game: GameConfig{
			Constants:     game.DefaultConstants(),
			LimitedBudget: game.DefaultLimitedBudget,
		},
	}
}

// Load reads the configuration file, fills in defaults and applies
// environment overrides. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv lets deployments override file settings without editing the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("PIXELHUNT_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("PIXELHUNT_METRICS_ADDR"); v != "" {
		c.Server.MetricsAddr = v
	}
	if v := os.Getenv("PIXELHUNT_DATA_DIR"); v != "" {
		c.Storage.Dir = v
	}
	if v := os.Getenv("PIXELHUNT_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("PIXELHUNT_VERBOSE"); v != "" {
		if verbose, err := strconv.ParseBool(v); err == nil {
			c.Verbose = verbose
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir must not be empty")
	}
	if c.Detection.Radius < 0 {
		return fmt.Errorf("detection.radius must not be negative")
	}
	if c.Detection.Thresholds.MinRegions > c.Detection.Thresholds.MaxRegions {
		return fmt.Errorf("detection.thresholds: min_regions exceeds max_regions")
	}
	if c.Game.Constants.InitialTime <= 0 {
		return fmt.Errorf("game.constants: initial_time must be positive")
	}
	if c.Game.LimitedBudget <= 0 {
		return fmt.Errorf("game.limited_budget must be positive")
	}
	return nil
}
