// Package config provides configuration management for memgate.
// It loads settings from environment variables with the MEMGATE_ prefix
// and provides sensible defaults for all configuration options.
//
// An optional YAML file (pointed at by MEMGATE_CONFIG) is applied on top
// of the defaults before environment variables, so precedence is
// env > file > default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the memgate service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	ICP      ICPConfig      `yaml:"icp"`
	Kinic    KinicConfig    `yaml:"kinic"`
	Storage  StorageConfig  `yaml:"storage"`
	Security SecurityConfig `yaml:"security"`
	CORS     CORSConfig     `yaml:"cors"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"` // Server port (default: 3002)
	Host string `yaml:"host"` // Server host (default: 127.0.0.1)
}

// ICPConfig contains the Internet Computer query client configuration.
type ICPConfig struct {
	IdentityName string        `yaml:"identity_name"` // dfx identity to export (default: jolt-atlas)
	CanisterID   string        `yaml:"canister_id"`   // zkTAM canister principal
	URL          string        `yaml:"url"`           // boundary node URL (default: https://ic0.app)
	QueryTimeout time.Duration `yaml:"query_timeout"` // per-query deadline (default: 30s)
}

// KinicConfig contains the SDK bridge configuration.
type KinicConfig struct {
	BridgeURL string `yaml:"bridge_url"` // SDK bridge base URL; empty disables the bridge
	Identity  string `yaml:"identity"`   // identity name for SDK handles (default: default)
	UseIC     bool   `yaml:"use_ic"`     // route SDK calls to mainnet (default: true)
}

// StorageConfig contains the local emulation store configuration.
type StorageConfig struct {
	Engine      string `yaml:"engine"`       // memory, sqlite, postgres (default: memory)
	DataPath    string `yaml:"data_path"`    // data directory for the sqlite engine; empty keeps sqlite in-memory
	PostgresDSN string `yaml:"postgres_dsn"` // DSN for the postgres engine
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	Mode     string `yaml:"mode"`      // development, production (default: development)
	APIToken string `yaml:"api_token"` // bearer token required in production mode
}

// CORSConfig contains cross-origin settings for browser clients.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"` // default: ["*"]
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// LoadConfig loads configuration with precedence env > file > default.
// The file step is skipped unless MEMGATE_CONFIG names a readable YAML file.
func LoadConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("MEMGATE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if cfg.Security.Mode == "production" && cfg.Security.APIToken == "" {
		return nil, fmt.Errorf("config: MEMGATE_API_TOKEN is required in production mode")
	}

	return cfg, nil
}

// defaults constructs a Config with every field set to its default value.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 3002,
			Host: "127.0.0.1",
		},
		ICP: ICPConfig{
			IdentityName: "jolt-atlas",
			CanisterID:   "3tq5l-3iaaa-aaaak-apgva-cai",
			URL:          "https://ic0.app",
			QueryTimeout: 30 * time.Second,
		},
		Kinic: KinicConfig{
			BridgeURL: "",
			Identity:  "default",
			UseIC:     true,
		},
		Storage: StorageConfig{
			Engine: "memory",
			// DataPath stays empty so the sqlite engine defaults to an
			// in-memory DSN; file persistence is an explicit opt-in.
		},
		Security: SecurityConfig{
			Mode: "development",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
		},
	}
}

// applyEnv overlays MEMGATE_* environment variables on cfg.
func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvInt("MEMGATE_PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("MEMGATE_HOST", cfg.Server.Host)

	cfg.ICP.IdentityName = getEnv("MEMGATE_ICP_IDENTITY", cfg.ICP.IdentityName)
	cfg.ICP.CanisterID = getEnv("MEMGATE_ICP_CANISTER_ID", cfg.ICP.CanisterID)
	cfg.ICP.URL = getEnv("MEMGATE_ICP_URL", cfg.ICP.URL)
	cfg.ICP.QueryTimeout = getEnvDuration("MEMGATE_ICP_QUERY_TIMEOUT", cfg.ICP.QueryTimeout)

	cfg.Kinic.BridgeURL = getEnv("MEMGATE_KINIC_BRIDGE_URL", cfg.Kinic.BridgeURL)
	cfg.Kinic.Identity = getEnv("MEMGATE_KINIC_IDENTITY", cfg.Kinic.Identity)
	cfg.Kinic.UseIC = getEnvBool("MEMGATE_KINIC_USE_IC", cfg.Kinic.UseIC)

	cfg.Storage.Engine = getEnv("MEMGATE_STORAGE_ENGINE", cfg.Storage.Engine)
	cfg.Storage.DataPath = getEnv("MEMGATE_DATA_PATH", cfg.Storage.DataPath)
	cfg.Storage.PostgresDSN = getEnv("MEMGATE_POSTGRES_DSN", cfg.Storage.PostgresDSN)

	cfg.Security.Mode = getEnv("MEMGATE_SECURITY_MODE", cfg.Security.Mode)
	cfg.Security.APIToken = getEnv("MEMGATE_API_TOKEN", cfg.Security.APIToken)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false.
// If the environment variable exists but cannot be parsed as a boolean,
// it returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable ("30s", "2m") or
// returns a default value when unset or unparsable.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
