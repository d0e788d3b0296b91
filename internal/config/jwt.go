package config

import (
	"fmt"
)

// JWTConfig holds configuration for JWT token generation and validation.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

// NewJWTConfig creates a JWT configuration. A non-positive expirationHours
// uses DefaultJWTExpirationHours.
func NewJWTConfig(secret string, expirationHours int) (*JWTConfig, error) {
	if expirationHours <= 0 {
		expirationHours = DefaultJWTExpirationHours
	}
	config := &JWTConfig{
		Secret:          secret,
		ExpirationHours: expirationHours,
	}
	if err := config.normalize(); err != nil {
		return nil, err
	}
	return config, nil
}

// JWT returns the JWT configuration, or nil when no secret is configured.
func (c *Config) JWT() (*JWTConfig, error) {
	if c.JWTSecret == "" {
		return nil, nil
	}
	return NewJWTConfig(c.JWTSecret, c.JWTExpirationHours)
}

// normalize validates the configuration.
func (c *JWTConfig) normalize() error {
	if c.Secret == "" {
		return fmt.Errorf("JWT secret cannot be empty")
	}
	if len(c.Secret) < 16 {
		return fmt.Errorf("JWT secret must be at least 16 bytes, got: %d", len(c.Secret))
	}
	if c.ExpirationHours > 24*30 {
		return fmt.Errorf("JWT expiration must be at most 720 hours, got: %d", c.ExpirationHours)
	}
	return nil
}
