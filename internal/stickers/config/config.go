// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package config loads the service configuration from STICKERS_* environment
// variables and sets up the process logger.
package config

import (
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// EnvPrefix is prepended to every variable name, e.g. STICKERS_HTTP_ADDR.
const EnvPrefix = "stickers"

// Config is the full runtime configuration of sticker-api.
type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	MetricsAddr     string        `envconfig:"METRICS_ADDR"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	StoreAdapter string `envconfig:"STORE_ADAPTER" default:"memory"`
	MySQLDSN     string `envconfig:"MYSQL_DSN"`
	AutoMigrate  bool   `envconfig:"AUTO_MIGRATE" default:"true"`

	// RedisAddr empty starts an embedded in-process server.
	RedisAddr      string        `envconfig:"REDIS_ADDR"`
	RedisPassword  string        `envconfig:"REDIS_PASSWORD"`
	RedisDB        int           `envconfig:"REDIS_DB" default:"0"`
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
	LockTTL        time.Duration `envconfig:"LOCK_TTL" default:"30s"`

	MaxStickersPerTransaction int    `envconfig:"MAX_STICKERS_PER_TRANSACTION" default:"5"`
	SpendPerSticker           string `envconfig:"SPEND_PER_STICKER" default:"10"`

	EventsAdapter string `envconfig:"EVENTS_ADAPTER" default:"none"`
	AMQPURL       string `envconfig:"AMQP_URL"`
	AMQPExchange  string `envconfig:"AMQP_EXCHANGE" default:"stickers"`
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process(EnvPrefix, &c); err != nil {
		return nil, errors.Wrap(err, "process environment")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	if c.IdempotencyTTL <= 0 {
		return errors.New("STICKERS_IDEMPOTENCY_TTL must be positive")
	}
	if c.LockTTL <= 0 {
		return errors.New("STICKERS_LOCK_TTL must be positive")
	}
	if c.MaxStickersPerTransaction < 0 {
		return errors.New("STICKERS_MAX_STICKERS_PER_TRANSACTION must not be negative")
	}
	if _, err := c.SpendPerStickerAmount(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return errors.Errorf("STICKERS_LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "STICKERS_LOG_LEVEL")
	}
	return nil
}

// SpendPerStickerAmount parses SpendPerSticker. It must be a positive decimal.
func (c *Config) SpendPerStickerAmount() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.SpendPerSticker)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "STICKERS_SPEND_PER_STICKER %q", c.SpendPerSticker)
	}
	if !d.IsPositive() {
		return decimal.Zero, errors.Errorf("STICKERS_SPEND_PER_STICKER must be positive, got %s", d)
	}
	return d, nil
}

// SetupLogger configures the standard logrus logger from c and returns it.
func (c *Config) SetupLogger() *log.Logger {
	logger := log.StandardLogger()
	logger.SetOutput(os.Stdout)
	if c.LogFormat == "text" {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
