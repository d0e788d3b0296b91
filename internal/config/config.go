// Package config provides configuration loading and validation for the CLI
// and the HTTP server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Default values applied by Defaults and MergeWithDefaults
const (
	DefaultStorageDir         = ".deliverables"
	DefaultPort               = 8080
	DefaultSignedURLTTL       = 300
	DefaultJWTExpirationHours = 24
	DefaultLogMode            = "development"
)

// APIClient is a service allowed to exchange its secret for a bearer token.
// SecretHash is a bcrypt hash produced by the hash-secret command.
type APIClient struct {
	ID         string `json:"id" validate:"required"`
	SecretHash string `json:"secret_hash" validate:"required,startswith=$2"`
}

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults, environment variables
// or CLI flags.
type Config struct {
	// Storage
	StorageDir  string `json:"storage_dir,omitempty"`  // Base dir for blobs and the record envelope
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL URL; replaces the file record store
	GCSBucket   string `json:"gcs_bucket,omitempty"`   // Store blobs in this bucket instead of StorageDir
	GCSPrefix   string `json:"gcs_prefix,omitempty"`   // Object name prefix inside GCSBucket

	// Ingestion
	DownloadURLTemplate string `json:"download_url_template,omitempty"` // e.g. https://lms/api/files/{file_id}/download
	DownloadToken       string `json:"download_token,omitempty"`        // Bearer token for the download API
	MaterialsDir        string `json:"materials_dir,omitempty"`         // Serve materials from a local directory instead
	UseBrowser          bool   `json:"use_browser,omitempty"`           // Re-render thin HTML materials with a headless browser

	// Generation
	APIKey      string `json:"api_key,omitempty"`      // Gemini API key
	Model       string `json:"model,omitempty"`        // Gemini model name
	PayloadFile string `json:"payload_file,omitempty"` // Replay a deliverable JSON file instead of calling a model

	// Delivery
	SignedURLTTLSeconds int `json:"signed_url_ttl_seconds,omitempty" validate:"gte=0,lte=86400"`

	// Server
	Port               int         `json:"port,omitempty" validate:"gte=0,lte=65535"`
	JWTSecret          string      `json:"jwt_secret,omitempty"`
	JWTExpirationHours int         `json:"jwt_expiration_hours,omitempty" validate:"gte=0"`
	Clients            []APIClient `json:"clients,omitempty" validate:"dive"`

	// Behavior
	LogMode string `json:"log_mode,omitempty" validate:"omitempty,oneof=development production dev prod"`
	Verbose bool   `json:"verbose,omitempty"` // Print detailed progress
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		StorageDir:          DefaultStorageDir,
		SignedURLTTLSeconds: DefaultSignedURLTTL,
		Port:                DefaultPort,
		JWTExpirationHours:  DefaultJWTExpirationHours,
		LogMode:             DefaultLogMode,
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// It does not check for required fields since those depend on the command.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if c.DownloadURLTemplate != "" && c.MaterialsDir != "" {
		return fmt.Errorf("config error: 'download_url_template' and 'materials_dir' are mutually exclusive")
	}
	if c.DownloadURLTemplate != "" {
		if !strings.HasPrefix(c.DownloadURLTemplate, "http://") && !strings.HasPrefix(c.DownloadURLTemplate, "https://") {
			return fmt.Errorf("config error: 'download_url_template' must be an http(s) URL")
		}
		if !strings.Contains(c.DownloadURLTemplate, "{file_id}") {
			return fmt.Errorf("config error: 'download_url_template' must contain {file_id}")
		}
	}
	if c.GCSPrefix != "" && c.GCSBucket == "" {
		return fmt.Errorf("config error: 'gcs_prefix' requires 'gcs_bucket'")
	}

	if c.PayloadFile != "" {
		if _, err := os.Stat(c.PayloadFile); os.IsNotExist(err) {
			return fmt.Errorf("config error: payload file not found: %s", c.PayloadFile)
		}
	}
	if c.MaterialsDir != "" {
		if info, err := os.Stat(c.MaterialsDir); err != nil || !info.IsDir() {
			return fmt.Errorf("config error: materials dir not found: %s", c.MaterialsDir)
		}
	}

	seen := make(map[string]bool, len(c.Clients))
	for _, client := range c.Clients {
		if seen[client.ID] {
			return fmt.Errorf("config error: duplicate client id %q", client.ID)
		}
		seen[client.ID] = true
	}
	if len(c.Clients) > 0 && c.JWTSecret == "" {
		return fmt.Errorf("config error: 'clients' requires 'jwt_secret'")
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.StorageDir == "" {
		result.StorageDir = defaults.StorageDir
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.GCSBucket == "" {
		result.GCSBucket = defaults.GCSBucket
	}
	if result.GCSPrefix == "" {
		result.GCSPrefix = defaults.GCSPrefix
	}
	if result.DownloadURLTemplate == "" {
		result.DownloadURLTemplate = defaults.DownloadURLTemplate
	}
	if result.DownloadToken == "" {
		result.DownloadToken = defaults.DownloadToken
	}
	if result.MaterialsDir == "" {
		result.MaterialsDir = defaults.MaterialsDir
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.Model == "" {
		result.Model = defaults.Model
	}
	if result.PayloadFile == "" {
		result.PayloadFile = defaults.PayloadFile
	}
	if result.JWTSecret == "" {
		result.JWTSecret = defaults.JWTSecret
	}
	if result.LogMode == "" {
		result.LogMode = defaults.LogMode
	}

	// Int fields: use default if zero
	if result.SignedURLTTLSeconds == 0 {
		result.SignedURLTTLSeconds = defaults.SignedURLTTLSeconds
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.JWTExpirationHours == 0 {
		result.JWTExpirationHours = defaults.JWTExpirationHours
	}

	if len(result.Clients) == 0 {
		result.Clients = defaults.Clients
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// FromEnv returns a Config holding the values of the supported environment
// variables. It is merged under file and flag values.
func FromEnv() Config {
	return Config{
		StorageDir:          os.Getenv("DELIVERABLE_STORAGE_DIR"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		GCSBucket:           os.Getenv("GCS_BUCKET"),
		DownloadURLTemplate: os.Getenv("DOWNLOAD_URL_TEMPLATE"),
		DownloadToken:       os.Getenv("DOWNLOAD_TOKEN"),
		APIKey:              os.Getenv("GEMINI_API_KEY"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		LogMode:             os.Getenv("LOG_MODE"),
	}
}

// Resolve layers file values over environment values over Defaults.
// A nil file config is treated as empty.
func Resolve(file *Config) Config {
	if file == nil {
		file = &Config{}
	}
	env := FromEnv()
	withEnv := env.MergeWithDefaults(Defaults())
	return file.MergeWithDefaults(withEnv)
}

// SignedURLTTL returns the signed URL lifetime as a duration.
func (c *Config) SignedURLTTL() time.Duration {
	if c.SignedURLTTLSeconds <= 0 {
		return DefaultSignedURLTTL * time.Second
	}
	return time.Duration(c.SignedURLTTLSeconds) * time.Second
}

// RecordsDir is where the file record store keeps its envelope.
func (c *Config) RecordsDir() string {
	return filepath.Join(c.StorageDir, "records")
}

// ObjectsDir is where the local object backend keeps blobs.
func (c *Config) ObjectsDir() string {
	return filepath.Join(c.StorageDir, "objects")
}

// AuthEnabled reports whether the API requires bearer tokens.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}
