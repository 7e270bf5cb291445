// Package config loads the kernel's startup configuration from a .env file,
// process environment variables, and an optional YAML overlay, following
// the teacher's env-first configuration loading style.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the kernel process's startup configuration.
type Config struct {
	HTTPAddr     string `env:"KERNEL_HTTP_ADDR,default=:8080"`
	LogLevel     string `env:"LOG_LEVEL,default=info"`
	LogFormat    string `env:"LOG_FORMAT,default=json"`
	ModelStoreDSN string `env:"KERNEL_MODELSTORE_DSN"`
	RedisAddr    string `env:"KERNEL_REDIS_ADDR"`
	JWTSecret    string `env:"KERNEL_JWT_SECRET,default=change-me"`

	NamePrefixWidth int `yaml:"name_prefix_width"`
}

// Load reads .env (if present), decodes environment variables into Config,
// then applies an optional YAML overlay at yamlPath (if non-empty and
// present) for fields not covered by environment variables.
func Load(yamlPath string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		// envdecode returns an error when none of the tagged fields were
		// set in the environment; treat that as "no overrides" rather
		// than a hard failure so local runs work without exporting vars.
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode environment: %w", err)
		}
	}
	if cfg.NamePrefixWidth == 0 {
		cfg.NamePrefixWidth = 4
	}

	if yamlPath != "" {
		if data, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse yaml overlay %s: %w", yamlPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read yaml overlay %s: %w", yamlPath, err)
		}
	}
	return &cfg, nil
}

// GetEnv retrieves an environment variable with a fallback default.
func GetEnv(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvBool retrieves a boolean environment variable with a fallback.
func GetEnvBool(key string, defaultValue bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	lower := strings.ToLower(v)
	return lower == "true" || lower == "1" || lower == "yes"
}

// GetEnvFloat retrieves a float environment variable with a fallback.
func GetEnvFloat(key string, defaultValue float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}
