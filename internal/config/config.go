package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Cache struct {
		TTL string `yaml:"ttl"`
	} `yaml:"cache"`
	Feed struct {
		Driver string `yaml:"driver"`
	} `yaml:"feed"`
	Realtime struct {
		ReconnectDelay string `yaml:"reconnect_delay"`
		Buffer         int    `yaml:"buffer"`
	} `yaml:"realtime"`
}

// Feed drivers.
const (
	FeedMemory   = "memory"
	FeedRedis    = "redis"
	FeedPostgres = "postgres"
)

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// FeedDriver returns the configured feed driver. Without one, Redis is preferred when
// configured, then Postgres, then the in-process hub.
func (c Config) FeedDriver() string {
	switch c.Feed.Driver {
	case FeedMemory, FeedRedis, FeedPostgres:
		return c.Feed.Driver
	}
	switch {
	case c.Redis.Addr != "":
		return FeedRedis
	case c.Postgres.URL != "":
		return FeedPostgres
	}
	return FeedMemory
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
