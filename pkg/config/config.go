// Package config loads the taskflow configuration from an optional YAML file.
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
	DefaultDatabaseURL    = "bolt://./taskflow.db"
	DefaultLogLevel       = "info"
	DefaultEventBus       = "gochannel"
	DefaultServiceName    = "taskflow"
	DefaultOpenTimeout    = time.Second
	DefaultRetryAttempts  = 3
	DefaultRetryBaseDelay = 100 * time.Millisecond
)

type Config struct {
	DatabaseURL string      `yaml:"database_url" validate:"required,startswith=bolt://"`
	LogLevel    string      `yaml:"log_level"    validate:"oneof=debug info warn error"`
	EventBus    string      `yaml:"event_bus"    validate:"oneof=gochannel kafka"`
	ServiceName string      `yaml:"service_name" validate:"required"`
	Tracing     bool        `yaml:"tracing"`
	Kafka       KafkaConfig `yaml:"kafka"`
	Store       StoreConfig `yaml:"store"`
}

type KafkaConfig struct {
	Brokers string `yaml:"brokers"`
}

type StoreConfig struct {
	OpenTimeout    time.Duration `yaml:"open_timeout"     validate:"gt=0"`
	RetryAttempts  int           `yaml:"retry_attempts"   validate:"min=1,max=10"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DatabaseURL: DefaultDatabaseURL,
		LogLevel:    DefaultLogLevel,
		EventBus:    DefaultEventBus,
		ServiceName: DefaultServiceName,
		Store: StoreConfig{
			OpenTimeout:    DefaultOpenTimeout,
			RetryAttempts:  DefaultRetryAttempts,
			RetryBaseDelay: DefaultRetryBaseDelay,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration. Kafka requires at least one broker.
func (c Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.EventBus == "kafka" && c.Kafka.Brokers == "" {
		return errors.New("invalid configuration: kafka event bus requires kafka.brokers")
	}

	return nil
}

// DatabasePath strips the bolt:// scheme from DatabaseURL.
func (c Config) DatabasePath() string {
	return strings.TrimPrefix(c.DatabaseURL, "bolt://")
}
