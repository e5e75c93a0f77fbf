package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate10 = validator.New()

// validate checks structural constraints not expressible as zero-value
// defaults (ranges, required-together fields).
func validate(cfg *Config) error {
	if err := validate10.Struct(cfg); err != nil {
		return err
	}

	if cfg.Location.CellSideKm <= 0 {
		return fmt.Errorf("location.cell_side_km must be positive")
	}
	if cfg.Location.MinLatitude >= cfg.Location.MaxLatitude {
		return fmt.Errorf("location.min_latitude must be less than max_latitude")
	}
	if cfg.Location.MinLongitude >= cfg.Location.MaxLongitude {
		return fmt.Errorf("location.min_longitude must be less than max_longitude")
	}
	if cfg.Limits.DailyLikeQuota <= 0 {
		return fmt.Errorf("limits.daily_like_quota must be positive")
	}
	if cfg.Limits.ResetHourUTC < 0 || cfg.Limits.ResetHourUTC > 23 {
		return fmt.Errorf("limits.reset_hour_utc must be in [0,23]")
	}
	if cfg.Session.EventQueueDepth <= 0 {
		return fmt.Errorf("session.event_queue_depth must be positive")
	}
	if cfg.Push.Enabled && cfg.Push.ProviderURL == "" {
		return fmt.Errorf("push.provider_url is required when push.enabled is true")
	}

	return nil
}
