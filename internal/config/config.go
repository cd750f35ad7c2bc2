// Package config provides configuration parsing and validation for the
// lifeline service.
package config

import (
	"fmt"
	"strings"
	"time"
)

// DefaultCategories is the closed set of responder categories alerts may
// target when no override is configured.
var DefaultCategories = []string{"male", "female", "trans"}

// Config holds all configuration parameters for the lifeline service.
type Config struct {
	HTTPPort            string
	PostgresDSN         string
	RedisAddr           string
	KafkaBrokers        string
	AlertLifecycleTopic string
	JWTSecret           string
	TokenExpiry         time.Duration
	Categories          string
	MetricsInterval     time.Duration
}

// Validate checks that all required configuration fields are set and have
// valid values. Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("http-port cannot be empty")
	}
	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres-dsn cannot be empty")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("redis-addr cannot be empty")
	}
	if c.KafkaBrokers != "" && c.AlertLifecycleTopic == "" {
		return fmt.Errorf("alert-lifecycle-topic cannot be empty when kafka-brokers is set")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt-secret cannot be empty")
	}
	if c.TokenExpiry <= 0 {
		return fmt.Errorf("token-expiry must be positive")
	}
	if len(c.CategoryList()) == 0 {
		return fmt.Errorf("categories cannot be empty")
	}
	return nil
}

// CategoryList splits the comma-separated categories flag, trimming blanks.
func (c *Config) CategoryList() []string {
	var out []string
	for _, cat := range strings.Split(c.Categories, ",") {
		cat = strings.TrimSpace(cat)
		if cat != "" {
			out = append(out, cat)
		}
	}
	return out
}

// KafkaEnabled reports whether lifecycle publishing is configured. Kafka is
// optional; without brokers the service runs with a no-op publisher.
func (c *Config) KafkaEnabled() bool {
	return c.KafkaBrokers != ""
}

// MaskDSN masks sensitive information in a DSN for logging.
func MaskDSN(dsn string) string {
	// Simple masking: replace password with ***
	// This is a basic implementation - in production, use a proper DSN parser
	if len(dsn) > 50 {
		return dsn[:20] + "***" + dsn[len(dsn)-20:]
	}
	return "***"
}
