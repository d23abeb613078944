// Package config loads service configuration from an optional YAML file.
// Command-line flags override the values read here.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	EventBusGoChannel = "gochannel"
	EventBusKafka     = "kafka"
)

// Config holds the settings shared by the pipefy binaries.
type Config struct {
	Port        int    `yaml:"port"         validate:"min=1,max=65535"`
	DatabaseURL string `yaml:"database_url" validate:"required"`

	EventBus     string `yaml:"event_bus"     validate:"oneof=gochannel kafka"`
	KafkaBrokers string `yaml:"kafka_brokers" validate:"required_if=EventBus kafka"`

	// RedisURL enables the Redis rule lock; empty means the repository claim.
	RedisURL string `yaml:"redis_url"`

	SweepSpec  string        `yaml:"sweep_spec"  validate:"required"`
	ClaimLease time.Duration `yaml:"claim_lease" validate:"min=1s"`

	LogLevel  string `yaml:"log_level"  validate:"oneof=debug info warn warning error"`
	LogFormat string `yaml:"log_format" validate:"oneof=text json"`

	Otel bool `yaml:"otel"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Port:        9091,
		DatabaseURL: "file://./data",
		EventBus:    EventBusGoChannel,
		SweepSpec:   "@every 1m",
		ClaimLease:  2 * time.Minute,
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the merged configuration.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return err
		}

		problems := make([]string, 0, len(validationErrors))
		for _, fieldErr := range validationErrors {
			problems = append(problems, fmt.Sprintf("%s failed on %s", fieldErr.Field(), fieldErr.Tag()))
		}

		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, ", "))
	}

	return nil
}
