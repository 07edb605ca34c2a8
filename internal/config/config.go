package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        int    `yaml:"port"`
	LogLevel    string `yaml:"log_level"`
	ArchivePath string `yaml:"archive_path"`
	NatsURL     string `yaml:"nats_url"`
	NatsToken   string `yaml:"nats_token"`
	DatabaseURL string `yaml:"database_url"`
	APIToken    string `yaml:"api_token"`
}

// Load builds the configuration from, in increasing precedence: defaults, the
// YAML file named by ARBOR_CONFIG, a .env file in the working directory, and
// the process environment.
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	file := Config{}
	if path := os.Getenv("ARBOR_CONFIG"); path != "" {
		var err error
		if file, err = loadFile(path); err != nil {
			return Config{}, err
		}
	}

	return Config{
		Port:        envInt("ARBOR_PORT", or(file.Port, 8760)),
		LogLevel:    envStr("LOG_LEVEL", or(file.LogLevel, "info")),
		ArchivePath: envStr("ARBOR_ARCHIVE", file.ArchivePath),
		NatsURL:     envStr("NATS_URL", file.NatsURL),
		NatsToken:   envStr("NATS_TOKEN", file.NatsToken),
		DatabaseURL: envStr("DATABASE_URL", file.DatabaseURL),
		APIToken:    envStr("ARBOR_API_TOKEN", file.APIToken),
	}, nil
}

func loadFile(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func or[T comparable](v, fallback T) T {
	var zero T
	if v == zero {
		return fallback
	}
	return v
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
