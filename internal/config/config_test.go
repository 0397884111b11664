package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validYAML = `
server:
  host: "127.0.0.1"
  port: 8181
  read_timeout: "5s"

storage:
  driver: "postgres"
  dsn: "postgres://u:p@localhost:5432/followup"
  retry_max: 5

calendar:
  timezone: "UTC"
  max_events_per_day: 3
  calendar_accurate: true

reminder:
  enabled: true
  schedule: "*/5 * * * *"

log:
  level: "debug"
  format: "text"

app:
  storage_secret: "from-yaml"
`

func TestLoadDefaultsFromEnvironment(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("FOLLOWUP_STORAGE_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "file:followup.db", cfg.Storage.DSN)
	assert.Equal(t, 5, cfg.Calendar.MaxEventsPerDay)
	assert.False(t, cfg.Calendar.CalendarAccurate)
	assert.True(t, cfg.Reminder.Enabled)
	assert.Equal(t, "* * * * *", cfg.Reminder.Schedule)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "s3cret", cfg.App.StorageSecret)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
}

func TestLoadFromYAML(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeYAML(t, validYAML))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8181", cfg.Server.Addr())
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 5, cfg.Storage.RetryMax)
	assert.Equal(t, 3, cfg.Calendar.MaxEventsPerDay)
	assert.True(t, cfg.Calendar.CalendarAccurate)
	assert.Equal(t, "*/5 * * * *", cfg.Reminder.Schedule)
	assert.Equal(t, "from-yaml", cfg.App.StorageSecret)

	loc, err := cfg.Calendar.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadEnvironmentOverridesYAML(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeYAML(t, validYAML))
	t.Setenv("FOLLOWUP_SERVER_PORT", "7070")
	t.Setenv("FOLLOWUP_STORAGE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRequiresStorageSecret(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("FOLLOWUP_STORAGE_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:   ServerConfig{Port: 9090},
			Storage:  StorageConfig{Driver: DriverSQLite, DSN: "file:test.db"},
			Calendar: CalendarConfig{Timezone: "UTC", MaxEventsPerDay: 5},
			Reminder: ReminderConfig{Enabled: true, Schedule: "* * * * *"},
			Log:      LogConfig{Level: "info", Format: "json"},
			App:      AppConfig{StorageSecret: "secret"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "mongo" }, wantErr: "storage.driver"},
		{name: "missing dsn", mutate: func(c *Config) { c.Storage.DSN = "" }, wantErr: "storage.dsn"},
		{name: "memory needs no dsn", mutate: func(c *Config) { c.Storage.Driver = DriverMemory; c.Storage.DSN = "" }},
		{name: "bad timezone", mutate: func(c *Config) { c.Calendar.Timezone = "Mars/Olympus" }, wantErr: "calendar.timezone"},
		{name: "zero per day", mutate: func(c *Config) { c.Calendar.MaxEventsPerDay = 0 }, wantErr: "max_events_per_day"},
		{name: "bad cron", mutate: func(c *Config) { c.Reminder.Schedule = "often" }, wantErr: "reminder.schedule"},
		{name: "bad cron ignored when disabled", mutate: func(c *Config) { c.Reminder.Enabled = false; c.Reminder.Schedule = "often" }},
		{name: "bad level", mutate: func(c *Config) { c.Log.Level = "verbose" }, wantErr: "log.level"},
		{name: "bad format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
		{name: "blank secret", mutate: func(c *Config) { c.App.StorageSecret = "  " }, wantErr: "storage_secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
