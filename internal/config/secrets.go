package config

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the cost used for client secret hashes.
const DefaultBcryptCost = 12

// SecretConfig hashes and verifies API client secrets.
type SecretConfig struct {
	BcryptCost int
	Pepper     string // optional global secret appended before hashing
}

// NewSecretConfig creates a secret configuration. Zero cost uses DefaultBcryptCost.
func NewSecretConfig(cost int, pepper string) (*SecretConfig, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	config := &SecretConfig{BcryptCost: cost, Pepper: pepper}
	if err := config.normalize(); err != nil {
		return nil, err
	}
	return config, nil
}

// normalize validates the configuration.
func (c *SecretConfig) normalize() error {
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > 14 {
		return fmt.Errorf("bcrypt cost out of range: %d (must be %d-14)", c.BcryptCost, bcrypt.MinCost)
	}
	return nil
}

// HashSecret hashes a client secret using bcrypt (with optional pepper).
func (c *SecretConfig) HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("secret is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret+c.Pepper), c.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hash), nil
}

// VerifySecret verifies a client secret against a stored hash (with optional pepper).
func (c *SecretConfig) VerifySecret(secret, storedHash string) bool {
	if secret == "" || storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(secret+c.Pepper)) == nil
}

// Client returns the configured API client with id, if any.
func (c *Config) Client(id string) (APIClient, bool) {
	for _, client := range c.Clients {
		if client.ID == id {
			return client, true
		}
	}
	return APIClient{}, false
}
