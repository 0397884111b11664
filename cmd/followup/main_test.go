package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/followup/internal/config"
)

func testConfig(driver, dsn string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 9090, ShutdownTimeout: time.Second},
		Storage: config.StorageConfig{
			Driver:            driver,
			DSN:               dsn,
			RetryMax:          1,
			RetryInitialDelay: time.Millisecond,
			RetryMaxDelay:     10 * time.Millisecond,
		},
		Calendar: config.CalendarConfig{Timezone: "UTC", MaxEventsPerDay: 5},
		Reminder: config.ReminderConfig{Enabled: true, Schedule: "* * * * *", Lookback: time.Minute},
		Log:      config.LogConfig{Level: "error", Format: "text"},
		App:      config.AppConfig{StorageSecret: "secret", ProductID: "-//followup//test//EN"},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewAppServesEvents(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(config.DriverMemory, ""), discardLogger())
	require.NoError(t, err)
	t.Cleanup(a.close)
	require.NotNil(t, a.dispatcher)

	server := httptest.NewServer(a.handler)
	t.Cleanup(server.Close)

	body := `{"name":"Dentist","start":"2030-05-02T09:00:00Z","end":"2030-05-02T09:30:00Z","reminders":[15]}`
	resp, err := http.Post(server.URL+"/events", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Get(server.URL + "/calendar/month?month=2030-05")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var month struct {
		Days []struct {
			Date        string            `json:"date"`
			Occurrences []json.RawMessage `json:"occurrences"`
		} `json:"days"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&month))
	require.Len(t, month.Days, 42)

	found := false
	for _, day := range month.Days {
		if day.Date == "2030-05-02" {
			found = len(day.Occurrences) == 1
		}
	}
	assert.True(t, found)

	resp, err = http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewAppWithSQLite(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "followup.db")
	cfg := testConfig(config.DriverSQLite, dsn)
	cfg.Reminder.Enabled = false
	cfg.Calendar.CalendarAccurate = true

	a, err := newApp(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(a.close)
	assert.Nil(t, a.dispatcher)

	var stderr bytes.Buffer
	require.NoError(t, runSeed(context.Background(), a, nil, &stderr))

	events, err := a.events.ListEvents(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 5)

	// a second run only skips
	require.NoError(t, runSeed(context.Background(), a, nil, &stderr))
	events, err = a.events.ListEvents(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestNewAppRejectsUnknownDriver(t *testing.T) {
	_, err := newApp(context.Background(), testConfig("mongo", "x"), discardLogger())
	assert.Error(t, err)
}

func TestRunSeedRejectsMissingFile(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(config.DriverMemory, ""), discardLogger())
	require.NoError(t, err)
	t.Cleanup(a.close)

	var stderr bytes.Buffer
	err = runSeed(context.Background(), a, []string{"-file", filepath.Join(t.TempDir(), "missing.yaml")}, &stderr)
	assert.Error(t, err)
}

func TestRunCommands(t *testing.T) {
	var stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"help"}, &stderr))
	assert.Contains(t, stderr.String(), "usage: followup")

	stderr.Reset()
	err := run(context.Background(), []string{"frobnicate"}, &stderr)
	assert.ErrorContains(t, err, "unknown command")
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg := testConfig(config.DriverMemory, "")
	cfg.Server.Port = 0
	cfg.Reminder.Enabled = true

	a, err := newApp(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(a.close)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, a) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
