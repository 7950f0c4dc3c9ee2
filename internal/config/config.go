// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/passkeylab/go-passkey-rp/pkg/relyingparty"
)

// Config represents the complete server configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
	TLS          TLSConfig          `yaml:"tls"`
	RateLimit    RateLimitConfig    `yaml:"ratelimit"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Health       HealthConfig       `yaml:"health"`
	Storage      StorageConfig      `yaml:"storage"`
	RelyingParty RelyingPartyConfig `yaml:"relying_party"`
}

// ServerConfig contains server-level settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// DefaultUsername is used by the ceremony endpoints when a request
	// does not name a user explicitly.
	DefaultUsername    string `yaml:"default_username"`
	DefaultDisplayName string `yaml:"default_display_name"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TLSConfig controls TLS/SSL settings
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// MinVersion and MaxVersion are TLS version names such as "TLS1.2".
	// MinVersion defaults to TLS 1.2.
	MinVersion string `yaml:"min_version"`
	MaxVersion string `yaml:"max_version"`

	// CipherSuites restricts the TLS 1.2 cipher suites by name. Empty
	// means the Go defaults.
	CipherSuites []string `yaml:"cipher_suites"`

	// ClientAuth enables mTLS: "none", "request", "require", "verify",
	// or "require_and_verify".
	ClientAuth string `yaml:"client_auth"`

	// CAFile and ClientCAs are PEM files trusted for client
	// certificate verification.
	CAFile    string   `yaml:"ca_file"`
	ClientCAs []string `yaml:"client_cas"`
}

// RateLimitConfig controls rate limiting
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min"`
}

// MetricsConfig controls metrics endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// HealthConfig controls health check endpoints
type HealthConfig struct {
	Enabled bool `yaml:"enabled"`
}

// StorageConfig selects the persistence backend for users, credentials,
// and pending challenges.
type StorageConfig struct {
	// Backend is either "memory" or "postgres".
	Backend string `yaml:"backend"`

	// DSN is the PostgreSQL connection string. Required when the
	// backend is "postgres".
	DSN string `yaml:"dsn"`
}

// Storage backend names accepted by StorageConfig.Backend.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// RelyingPartyConfig describes the WebAuthn relying party. ChallengeTTL
// is a Go duration string such as "90s" or "2m".
type RelyingPartyConfig struct {
	ID                      string   `yaml:"id"`
	DisplayName             string   `yaml:"display_name"`
	Origins                 []string `yaml:"origins"`
	ChallengeTTL            string   `yaml:"challenge_ttl"`
	UserVerification        string   `yaml:"user_verification"`
	Attestation             string   `yaml:"attestation"`
	ResidentKey             string   `yaml:"resident_key"`
	AuthenticatorAttachment string   `yaml:"authenticator_attachment"`
	Debug                   bool     `yaml:"debug"`
}

// ToServiceConfig converts the YAML-facing relying-party section into
// the service configuration with defaults applied.
func (r *RelyingPartyConfig) ToServiceConfig() (relyingparty.Config, error) {
	cfg := relyingparty.Config{
		RPID:                    r.ID,
		RPDisplayName:           r.DisplayName,
		RPOrigins:               r.Origins,
		UserVerification:        r.UserVerification,
		AttestationPreference:   r.Attestation,
		ResidentKeyRequirement:  r.ResidentKey,
		AuthenticatorAttachment: r.AuthenticatorAttachment,
		Debug:                   r.Debug,
	}

	if r.ChallengeTTL != "" {
		ttl, err := time.ParseDuration(r.ChallengeTTL)
		if err != nil {
			return relyingparty.Config{}, fmt.Errorf("invalid challenge_ttl %q: %w", r.ChallengeTTL, err)
		}
		if ttl <= 0 {
			return relyingparty.Config{}, fmt.Errorf("challenge_ttl must be positive, got %q", r.ChallengeTTL)
		}
		cfg.ChallengeTTL = ttl
	}

	cfg.SetDefaults()
	return cfg, nil
}

// Load reads configuration from a YAML file and applies environment variable overrides
func Load(path string) (*Config, error) {
	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&cfg)
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration suitable for local development: an
// in-memory store and a relying party bound to localhost.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 600,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Health: HealthConfig{
			Enabled: true,
		},
		Storage: StorageConfig{
			Backend: StorageMemory,
		},
		RelyingParty: RelyingPartyConfig{
			ID:          "localhost",
			DisplayName: "go-passkey-rp",
			Origins:     []string{"http://localhost:8080"},
		},
	}
	cfg.SetDefaults()
	return cfg
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	// Server settings
	if host := os.Getenv("PASSKEY_RP_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("PASSKEY_RP_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			log.Printf("Warning: invalid PASSKEY_RP_PORT value %q, using default %d: %v",
				portStr, cfg.Server.Port, err)
		} else if port < 1 || port > 65535 {
			log.Printf("Warning: invalid PASSKEY_RP_PORT value %q (out of range 1-65535), using default %d",
				portStr, cfg.Server.Port)
		} else {
			cfg.Server.Port = port
		}
	}

	// Logging
	if level := os.Getenv("PASSKEY_RP_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("PASSKEY_RP_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	// Storage
	if backend := os.Getenv("PASSKEY_RP_STORAGE_BACKEND"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if dsn := os.Getenv("PASSKEY_RP_DATABASE_URL"); dsn != "" {
		cfg.Storage.DSN = dsn
	} else if dsn := os.Getenv("DATABASE_URL"); dsn != "" && cfg.Storage.DSN == "" {
		cfg.Storage.DSN = dsn
	}

	// Relying party
	if rpID := os.Getenv("PASSKEY_RP_ID"); rpID != "" {
		cfg.RelyingParty.ID = rpID
	}
	if name := os.Getenv("PASSKEY_RP_DISPLAY_NAME"); name != "" {
		cfg.RelyingParty.DisplayName = name
	}
	if origins := os.Getenv("PASSKEY_RP_ORIGINS"); origins != "" {
		var parsed []string
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				parsed = append(parsed, origin)
			}
		}
		if len(parsed) > 0 {
			cfg.RelyingParty.Origins = parsed
		}
	}
}

// SetDefaults fills unset fields with sensible defaults.
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.RateLimit.RequestsPerMin == 0 {
		c.RateLimit.RequestsPerMin = 600
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageMemory
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if c.TLS.Enabled {
		if c.TLS.CertFile == "" {
			return fmt.Errorf("TLS cert_file is required when TLS is enabled")
		}
		if c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS key_file is required when TLS is enabled")
		}
	}

	switch c.Storage.Backend {
	case StorageMemory:
	case StoragePostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be memory or postgres)", c.Storage.Backend)
	}

	svcCfg, err := c.RelyingParty.ToServiceConfig()
	if err != nil {
		return fmt.Errorf("relying_party: %w", err)
	}
	if err := svcCfg.Validate(); err != nil {
		return fmt.Errorf("relying_party: %w", err)
	}

	return nil
}
