package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Refresh RefreshConfig `mapstructure:"refresh"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Server  ServerConfig  `mapstructure:"server"`
}

// APIConfig locates the backend node the client talks to.
type APIConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	DemandBase  string        `mapstructure:"demand_base"`
	ProjectBase string        `mapstructure:"project_base"`
	PeersPath   string        `mapstructure:"peers_path"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type RefreshConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// LogConfig holds logrus settings. An empty path logs to stderr.
type LogConfig struct {
	Path  string `mapstructure:"path"`
	Level string `mapstructure:"level"`
}

// MetricsConfig enables the client's /metrics listener when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ServerConfig holds settings for the demo backend.
type ServerConfig struct {
	Addr         string `mapstructure:"addr"`
	DatabasePath string `mapstructure:"database_path"`
	Identity     string `mapstructure:"identity"`
}

// Path returns the config file location. Env var DEMANDBOARD_CONFIG wins.
func Path() string {
	if p := os.Getenv("DEMANDBOARD_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "demandboard", "config.toml")
}

// Load reads configuration from file and env. Env var overrides use prefix DEMANDBOARD_.
func Load() (Config, error) {
	v := viper.New()

	home := os.Getenv("HOME")
	v.SetDefault("api.base_url", "http://localhost:10007")
	v.SetDefault("api.demand_base", "/api/demand/")
	v.SetDefault("api.project_base", "/api/project/")
	v.SetDefault("api.peers_path", "/api/demand/peers")
	v.SetDefault("api.timeout", "0s")
	v.SetDefault("refresh.interval", "5s")
	v.SetDefault("log.path", filepath.Join(home, ".local", "state", "demandboard", "demandboard.log"))
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("server.addr", ":10007")
	v.SetDefault("server.database_path", filepath.Join(home, ".local", "share", "demandboard", "ledger.db"))
	v.SetDefault("server.identity", "O=Sponsor, L=London, C=GB")

	v.SetConfigType("toml")
	v.SetConfigFile(Path())

	v.SetEnvPrefix("DEMANDBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// missing file is fine; defaults and env still apply
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be positive, got %s", c.Refresh.Interval)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative, got %s", c.API.Timeout)
	}
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url is required")
	}
	return nil
}

// Save writes cfg to the config file, creating the directory if needed.
func Save(cfg Config) error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("api.base_url", cfg.API.BaseURL)
	v.Set("api.demand_base", cfg.API.DemandBase)
	v.Set("api.project_base", cfg.API.ProjectBase)
	v.Set("api.peers_path", cfg.API.PeersPath)
	v.Set("api.timeout", cfg.API.Timeout.String())
	v.Set("refresh.interval", cfg.Refresh.Interval.String())
	v.Set("log.path", cfg.Log.Path)
	v.Set("log.level", cfg.Log.Level)
	v.Set("metrics.addr", cfg.Metrics.Addr)
	v.Set("server.addr", cfg.Server.Addr)
	v.Set("server.database_path", cfg.Server.DatabasePath)
	v.Set("server.identity", cfg.Server.Identity)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
