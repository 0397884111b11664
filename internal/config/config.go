package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Calendar CalendarConfig `yaml:"calendar"`
	Reminder ReminderConfig `yaml:"reminder"`
	Log      LogConfig      `yaml:"log"`
	App      AppConfig      `yaml:"app"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"FOLLOWUP_SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"FOLLOWUP_SERVER_PORT"             env-default:"9090"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"FOLLOWUP_SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"FOLLOWUP_SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"FOLLOWUP_SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"FOLLOWUP_SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// StorageConfig selects and tunes the event store.
type StorageConfig struct {
	Driver            string        `yaml:"driver"              env:"FOLLOWUP_STORAGE_DRIVER"              env-default:"sqlite"`
	DSN               string        `yaml:"dsn"                 env:"FOLLOWUP_STORAGE_DSN"                 env-default:"file:followup.db"`
	MaxOpenConns      int           `yaml:"max_open_conns"      env:"FOLLOWUP_STORAGE_MAX_OPEN_CONNS"      env-default:"0"`
	RetryMax          int           `yaml:"retry_max"           env:"FOLLOWUP_STORAGE_RETRY_MAX"           env-default:"3"`
	RetryInitialDelay time.Duration `yaml:"retry_initial_delay" env:"FOLLOWUP_STORAGE_RETRY_INITIAL_DELAY" env-default:"100ms"`
	RetryMaxDelay     time.Duration `yaml:"retry_max_delay"     env:"FOLLOWUP_STORAGE_RETRY_MAX_DELAY"     env-default:"5s"`
}

// CalendarConfig holds calendar view and recurrence settings.
type CalendarConfig struct {
	Timezone         string `yaml:"timezone"           env:"FOLLOWUP_CALENDAR_TIMEZONE"           env-default:"Local"`
	MaxEventsPerDay  int    `yaml:"max_events_per_day" env:"FOLLOWUP_CALENDAR_MAX_EVENTS_PER_DAY" env-default:"5"`
	CalendarAccurate bool   `yaml:"calendar_accurate"  env:"FOLLOWUP_CALENDAR_ACCURATE"           env-default:"false"`
}

// Location resolves Timezone.
func (c CalendarConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// ReminderConfig controls the reminder dispatcher.
type ReminderConfig struct {
	Enabled  bool          `yaml:"enabled"  env:"FOLLOWUP_REMINDER_ENABLED"  env-default:"true"`
	Schedule string        `yaml:"schedule" env:"FOLLOWUP_REMINDER_SCHEDULE" env-default:"* * * * *"`
	Lookback time.Duration `yaml:"lookback" env:"FOLLOWUP_REMINDER_LOOKBACK" env-default:"1m"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"FOLLOWUP_LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"FOLLOWUP_LOG_FORMAT" env-default:"json"`
}

// AppConfig holds application-wide settings.
type AppConfig struct {
	StorageSecret string `yaml:"storage_secret" env:"FOLLOWUP_STORAGE_SECRET" env-required:"true"`
	ProductID     string `yaml:"product_id"     env:"FOLLOWUP_PRODUCT_ID"     env-default:"-//followup//Calendar Export//EN"`
}
