// Package config holds the YAML file settings for the quiz service. Anything
// environment-specific (ports, connection strings) comes from here or from the
// CLI's env overrides, never from code.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port string `yaml:"port"`
}

// RedisConfig covers both the live-room keys and the quiz cache. TTL applies
// to cached quiz content only; room liveness keys have no expiry.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTL      string `yaml:"ttl"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

type QuizConfig struct {
	TTL string `yaml:"ttl"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Quiz     QuizConfig     `yaml:"quiz"`
}

// Load parses the YAML file at path. Missing sections stay zero-valued; the
// CLI decides which backends to wire based on what is filled in.
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

// TTLDuration turns a TTL string into a duration, falling back when the field
// is empty or unparseable.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
