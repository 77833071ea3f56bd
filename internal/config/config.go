// Package config loads the dashboard's configuration from a JSON file
// with environment variable overrides for deploy-time secrets.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

const DefaultAPIKeyPlaceholder = "SET_A_REAL_KEY_IN_CONFIG_OR_ENV"

type ServerConfig struct {
	Port   string `json:"port"`
	APIKey string `json:"apiKey"`
}

type ServiceConfig struct {
	BaseURL        string `json:"baseUrl"`
	APIKey         string `json:"apiKey"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"`
}

func (c ServiceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type DNSConfig struct {
	Resolvers           []string `json:"resolvers"`
	QueryTimeoutSeconds int      `json:"queryTimeoutSeconds"`
	RateLimitQPS        float64  `json:"rateLimitQps"`
}

func (c DNSConfig) QueryTimeout() string {
	return fmt.Sprintf("%ds", c.QueryTimeoutSeconds)
}

type SyncConfig struct {
	IntervalSeconds int `json:"intervalSeconds"`
}

func (c SyncConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

type DatabaseConfig struct {
	// DSN selects the Postgres store when set. Empty keeps campaign
	// state in memory.
	DSN string `json:"dsn"`
}

type LoggingConfig struct {
	Level string `json:"level"`
}

type AppConfig struct {
	Server         ServerConfig   `json:"server"`
	AttackService  ServiceConfig  `json:"attackService"`
	ProfileService ServiceConfig  `json:"profileService"`
	DNS            DNSConfig      `json:"dns"`
	Sync           SyncConfig     `json:"sync"`
	Database       DatabaseConfig `json:"database"`
	Logging        LoggingConfig  `json:"logging"`

	loadedFromPath string
}

func (ac *AppConfig) GetLoadedFromPath() string { return ac.loadedFromPath }

func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:   "8080",
			APIKey: DefaultAPIKeyPlaceholder,
		},
		AttackService: ServiceConfig{
			BaseURL:        "http://localhost:9010",
			APIKey:         DefaultAPIKeyPlaceholder,
			TimeoutSeconds: 30,
		},
		ProfileService: ServiceConfig{
			BaseURL:        "http://localhost:9020",
			APIKey:         DefaultAPIKeyPlaceholder,
			TimeoutSeconds: 15,
		},
		DNS: DNSConfig{
			Resolvers:           []string{"1.1.1.1:53", "8.8.8.8:53"},
			QueryTimeoutSeconds: 5,
			RateLimitQPS:        10,
		},
		Sync:    SyncConfig{IntervalSeconds: 60},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the config file at path, falling back to defaults when the
// file is missing, then applies environment overrides. A missing file
// is saved back with defaults so operators have a template to edit.
func Load(path string) (*AppConfig, error) {
	if path == "" {
		path = "config.json"
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if saveErr := Save(cfg, path); saveErr != nil {
			return nil, fmt.Errorf("write default config %s: %w", path, saveErr)
		}
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.loadedFromPath = path
	applyEnvOverrides(cfg)

	if cfg.Sync.IntervalSeconds <= 0 {
		cfg.Sync.IntervalSeconds = 60
	}
	if cfg.DNS.QueryTimeoutSeconds <= 0 {
		cfg.DNS.QueryTimeoutSeconds = 5
	}
	return cfg, nil
}

// Save writes cfg as indented JSON.
func Save(cfg *AppConfig, path string) error {
	if path == "" {
		return fmt.Errorf("cannot save config, file path is empty")
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *AppConfig) {
	setString := func(target *string, key string) {
		if value := os.Getenv(key); value != "" {
			*target = value
		}
	}
	setString(&cfg.Server.Port, "PHISHFLOW_PORT")
	setString(&cfg.Server.APIKey, "PHISHFLOW_API_KEY")
	setString(&cfg.AttackService.BaseURL, "PHISHFLOW_ATTACK_SERVICE_URL")
	setString(&cfg.AttackService.APIKey, "PHISHFLOW_ATTACK_SERVICE_KEY")
	setString(&cfg.ProfileService.BaseURL, "PHISHFLOW_PROFILE_SERVICE_URL")
	setString(&cfg.ProfileService.APIKey, "PHISHFLOW_PROFILE_SERVICE_KEY")
	setString(&cfg.Database.DSN, "PHISHFLOW_DATABASE_DSN")
	setString(&cfg.Logging.Level, "PHISHFLOW_LOG_LEVEL")

	if value := os.Getenv("PHISHFLOW_SYNC_INTERVAL_SECONDS"); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
			cfg.Sync.IntervalSeconds = seconds
		}
	}
}
