// Package config handles loading and validation of service configuration.
// Supports both development (env vars) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"golang.org/x/mod/semver"
)

// Config holds all service configuration.
// Environment determines whether secrets load from env vars (development)
// or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	StoreID    string

	// Store-specific configuration (loaded from secrets)
	Store StoreConfig
}

// StoreConfig contains the per-store credentials and checkout settings.
// In production this is loaded from Secret Manager as JSON; in development
// from individual env vars or CONFIG_FILE.
type StoreConfig struct {
	// Commerce platform Admin API
	ShopDomain string `json:"shop_domain"` // myshop.myshopify.com
	AdminToken string `json:"admin_token"`
	APIVersion string `json:"api_version,omitempty"`

	// Payment gateway
	GatewayAPIKey    string `json:"gateway_api_key"`
	GatewaySecretKey string `json:"gateway_secret_key"`
	GatewaySandbox   bool   `json:"gateway_sandbox,omitempty"`

	// URLs handed to the gateway at session creation
	NotificationURL string `json:"notification_url"`
	SuccessURL      string `json:"success_url,omitempty"`
	BackURL         string `json:"back_url,omitempty"`

	// Conversion event collector; empty disables delivery
	EventsURL string `json:"events_url,omitempty"`

	// Payment-to-order index database
	JournalPath string `json:"journal_path,omitempty"`

	// Poll loop overrides; zero keeps the defaults
	PollIntervalSeconds int `json:"poll_interval_seconds,omitempty"`
	MaxPolls            int `json:"max_polls,omitempty"`
	GracePolls          int `json:"grace_polls,omitempty"`

	// Oldest storefront client version accepted, e.g. "v2.3.0".
	// Empty disables the gate.
	MinClientVersion string `json:"min_client_version,omitempty"`
}

// PollInterval returns the configured poll interval.
func (s StoreConfig) PollInterval() time.Duration {
	if s.PollIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(s.PollIntervalSeconds) * time.Second
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
func Load(ctx context.Context) (*Config, error) {
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Port:        envOrDefault("PORT", "8080"),
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		GCPProject:  os.Getenv("GCP_PROJECT"),
		StoreID:     os.Getenv("STORE_ID"),
	}

	var err error
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if cfg.StoreID == "" {
			return nil, fmt.Errorf("STORE_ID required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		err = cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading store config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig struct {
		Port        string      `json:"port"`
		Environment string      `json:"environment"`
		LogLevel    string      `json:"log_level"`
		StoreID     string      `json:"store_id"`
		Store       StoreConfig `json:"store"`
	}
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:        withDefault(fileConfig.Port, "8080"),
		Environment: withDefault(fileConfig.Environment, "development"),
		LogLevel:    withDefault(fileConfig.LogLevel, "info"),
		StoreID:     fileConfig.StoreID,
		Store:       fileConfig.Store,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromSecretManager fetches store config from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{store_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.StoreID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Store); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	return nil
}

// loadFromEnv reads store config from individual environment variables.
// Used in development mode for local testing.
func (c *Config) loadFromEnv() error {
	c.Store = StoreConfig{
		ShopDomain:       os.Getenv("SHOP_DOMAIN"),
		AdminToken:       os.Getenv("SHOP_ADMIN_TOKEN"),
		APIVersion:       os.Getenv("SHOP_API_VERSION"),
		GatewayAPIKey:    os.Getenv("GATEWAY_API_KEY"),
		GatewaySecretKey: os.Getenv("GATEWAY_SECRET_KEY"),
		GatewaySandbox:   os.Getenv("GATEWAY_SANDBOX") == "true",
		NotificationURL:  os.Getenv("NOTIFICATION_URL"),
		SuccessURL:       os.Getenv("SUCCESS_URL"),
		BackURL:          os.Getenv("BACK_URL"),
		EventsURL:        os.Getenv("EVENTS_URL"),
		JournalPath:      envOrDefault("JOURNAL_PATH", "checkout-journal.db"),
		MinClientVersion: os.Getenv("MIN_CLIENT_VERSION"),
	}
	return nil
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	if c.Store.ShopDomain == "" {
		return fmt.Errorf("shop_domain is required")
	}
	if _, err := url.Parse("https://" + c.Store.ShopDomain); err != nil {
		return fmt.Errorf("invalid shop_domain: %w", err)
	}
	if c.Store.AdminToken == "" {
		return fmt.Errorf("admin_token is required")
	}
	if c.Store.GatewayAPIKey == "" {
		return fmt.Errorf("gateway_api_key is required")
	}
	if c.Store.GatewaySecretKey == "" {
		return fmt.Errorf("gateway_secret_key is required")
	}
	if c.Store.NotificationURL == "" {
		return fmt.Errorf("notification_url is required")
	}
	if v := c.Store.MinClientVersion; v != "" && !semver.IsValid(v) {
		return fmt.Errorf("min_client_version %q is not a valid semantic version", v)
	}
	if c.Store.JournalPath == "" {
		c.Store.JournalPath = "checkout-journal.db"
	}
	return nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// ShopDomain strips any scheme the operator left on the configured domain.
func (c *Config) ShopDomain() string {
	d := strings.TrimPrefix(c.Store.ShopDomain, "https://")
	d = strings.TrimPrefix(d, "http://")
	return strings.Split(d, "/")[0]
}
