package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	API struct {
		BaseURL               string `yaml:"base_url"`
		RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
		CacheTTLSeconds       int    `yaml:"cache_ttl_seconds"`
		RateLimitPerSecond    int    `yaml:"rate_limit_per_second"`
		RateLimitBurst        int    `yaml:"rate_limit_burst"`
	} `yaml:"api"`

	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		MinDurationHours     int `yaml:"min_duration_hours"`
		MaxDurationHours     int `yaml:"max_duration_hours"`
		DefaultDurationHours int `yaml:"default_duration_hours"`
	} `yaml:"booking"`

	Refresh struct {
		IntervalSeconds int `yaml:"interval_seconds"`
	} `yaml:"refresh"`

	Report struct {
		Path string `yaml:"path"`
	} `yaml:"report"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = "data/parkgrid.db"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) RequestTimeout() time.Duration {
	if c.API.RequestTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.API.RequestTimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	if c.API.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.API.CacheTTLSeconds) * time.Second
}

func (c *Config) RefreshInterval() time.Duration {
	if c.Refresh.IntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Refresh.IntervalSeconds) * time.Second
}

func (c *Config) MinDuration() int {
	if c.Booking.MinDurationHours <= 0 {
		return 1
	}
	return c.Booking.MinDurationHours
}

func (c *Config) MaxDuration() int {
	if c.Booking.MaxDurationHours <= 0 {
		return 6
	}
	return c.Booking.MaxDurationHours
}

func (c *Config) DefaultDuration() int {
	d := c.Booking.DefaultDurationHours
	if d < c.MinDuration() || d > c.MaxDuration() {
		return c.MinDuration()
	}
	return d
}
