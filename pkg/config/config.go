// Package config loads and validates the server's runtime configuration:
// HTTP/WS transport, Postgres connection, the location index, the daily
// like quota, push-provider settings, and the admin fan-out debounce
// window. It follows the teacher's load-then-merge-then-validate shape
// (as in a typical config/loader.go) but the schema is this system's own.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the fully resolved, validated runtime configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Location LocationConfig `yaml:"location"`
	Limits   LimitsConfig   `yaml:"limits"`
	Session  SessionConfig  `yaml:"session"`
	Push     PushConfig     `yaml:"push"`
	Admin    AdminConfig    `yaml:"admin"`
	Reaper   ReaperConfig   `yaml:"reaper"`
}

// HTTPConfig holds REST + WebSocket transport settings.
type HTTPConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	Debug        bool          `yaml:"debug"`
}

// DatabaseConfig holds the Postgres connection (see pkg/database.Config
// for pool tuning, loaded separately from the environment).
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// LocationConfig parameterizes the location index of spec.md §4.D.
type LocationConfig struct {
	CellSideKm   float64 `yaml:"cell_side_km"`
	MinLatitude  float64 `yaml:"min_latitude"`
	MaxLatitude  float64 `yaml:"max_latitude"`
	MinLongitude float64 `yaml:"min_longitude"`
	MaxLongitude float64 `yaml:"max_longitude"`
}

// LimitsConfig parameterizes the interaction/limits engine of spec.md §4.G.
type LimitsConfig struct {
	DailyLikeQuota int16 `yaml:"daily_like_quota"`
	ResetHourUTC   int   `yaml:"reset_hour_utc"`
	ResetMinuteUTC int   `yaml:"reset_minute_utc"`
}

// ReaperConfig parameterizes the pending-deletion reaper of spec.md §3
// ("any -> PendingDeletion (reversible before reaper runs)").
type ReaperConfig struct {
	GraceDelay time.Duration `yaml:"grace_delay"`
	Interval   time.Duration `yaml:"interval"`
}

// SessionConfig parameterizes the WebSocket session/event bus of
// spec.md §4.I.
type SessionConfig struct {
	EventQueueDepth  int           `yaml:"event_queue_depth"`
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout"`
	ProfilePageSize  int           `yaml:"profile_page_size"`
}

// PushConfig parameterizes the push-notification pipeline of spec.md §4.J.
type PushConfig struct {
	Enabled           bool          `yaml:"enabled"`
	ProviderURL       string        `yaml:"provider_url"`
	ProviderTimeout   time.Duration `yaml:"provider_timeout"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	VAPIDKeyHash      string        `yaml:"vapid_key_hash"`
}

// AdminConfig parameterizes the admin notification fan-out of spec.md §4.K.
type AdminConfig struct {
	DebounceWindow time.Duration `yaml:"debounce_window"`
	SlackChannel   string        `yaml:"slack_channel"`
}

// Load reads defaults, overlays an optional YAML file, applies
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate configuration: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			Debug:        true,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "datingcore",
			Database: "datingcore",
			SSLMode:  "disable",
		},
		Location: LocationConfig{
			CellSideKm:   1.0,
			MinLatitude:  -90,
			MaxLatitude:  90,
			MinLongitude: -180,
			MaxLongitude: 180,
		},
		Limits: LimitsConfig{
			DailyLikeQuota: 20,
			ResetHourUTC:   2,
			ResetMinuteUTC: 0,
		},
		Session: SessionConfig{
			EventQueueDepth:  10,
			HeartbeatTimeout: 6 * time.Minute,
			ProfilePageSize:  25,
		},
		Push: PushConfig{
			Enabled:           false,
			ProviderTimeout:   10 * time.Second,
			ReconcileInterval: time.Hour,
		},
		Admin: AdminConfig{
			DebounceWindow: time.Second,
		},
		Reaper: ReaperConfig{
			GraceDelay: 30 * 24 * time.Hour,
			Interval:   time.Hour,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_PORT"); v != "" {
		cfg.HTTP.Port = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("APP_DEBUG"); v == "false" {
		cfg.HTTP.Debug = false
	}
	if v := os.Getenv("PUSH_PROVIDER_URL"); v != "" {
		cfg.Push.ProviderURL = v
		cfg.Push.Enabled = true
	}
	if v := os.Getenv("VAPID_KEY_HASH"); v != "" {
		cfg.Push.VAPIDKeyHash = v
	}
	if v := os.Getenv("ADMIN_SLACK_CHANNEL"); v != "" {
		cfg.Admin.SlackChannel = v
	}
}
