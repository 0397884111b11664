package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate performs business-rule validation on the loaded configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535 (got %d)", c.Server.Port)
	}

	switch strings.ToLower(c.Storage.Driver) {
	case DriverSQLite, DriverPostgres:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("storage.dsn is required for driver %q", c.Storage.Driver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("storage.driver must be one of sqlite, postgres, memory (got %q)", c.Storage.Driver)
	}
	if c.Storage.RetryMax < 0 {
		return fmt.Errorf("storage.retry_max must be >= 0 (got %d)", c.Storage.RetryMax)
	}

	if _, err := c.Calendar.Location(); err != nil {
		return fmt.Errorf("calendar.timezone: %w", err)
	}
	if c.Calendar.MaxEventsPerDay < 1 {
		return fmt.Errorf("calendar.max_events_per_day must be >= 1 (got %d)", c.Calendar.MaxEventsPerDay)
	}

	if c.Reminder.Enabled {
		if _, err := cron.ParseStandard(c.Reminder.Schedule); err != nil {
			return fmt.Errorf("reminder.schedule: %w", err)
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error (got %q)", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text (got %q)", c.Log.Format)
	}

	if strings.TrimSpace(c.App.StorageSecret) == "" {
		return fmt.Errorf("app.storage_secret is required")
	}

	return nil
}
