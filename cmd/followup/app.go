package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/followup/internal/application"
	"github.com/example/followup/internal/calendar"
	"github.com/example/followup/internal/config"
	httptransport "github.com/example/followup/internal/http"
	"github.com/example/followup/internal/ics"
	"github.com/example/followup/internal/persistence"
	"github.com/example/followup/internal/persistence/memory"
	"github.com/example/followup/internal/persistence/sqlstore"
	"github.com/example/followup/internal/recurrence"
	"github.com/example/followup/internal/reminder"
)

type eventStore interface {
	persistence.EventRepository
	Ping(ctx context.Context) error
	Close() error
}

// app holds the wired services of one process.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	location   *time.Location
	store      eventStore
	events     *application.EventService
	calendar   *application.CalendarService
	dispatcher *reminder.Dispatcher
	handler    http.Handler
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	loc, err := cfg.Calendar.Location()
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	var stepper recurrence.Stepper = recurrence.FixedStepper{}
	if cfg.Calendar.CalendarAccurate {
		stepper = recurrence.CalendarStepper{Location: loc}
	}
	expander := recurrence.NewEngine(stepper, logger)

	now := time.Now
	rows := application.NewEventStore(store)
	engine := calendar.NewEngine(rows, expander, logger)

	events := application.NewEventServiceWithLogger(rows, engine, expander, uuid.NewString, now, logger)
	cal := application.NewCalendarService(engine, rows,
		ics.NewEncoder(cfg.App.ProductID, expander, now),
		ics.NewSigner(cfg.App.StorageSecret),
		application.CalendarOptions{
			Location:        loc,
			MaxEventsPerDay: cfg.Calendar.MaxEventsPerDay,
			Now:             now,
			Logger:          logger,
		},
	)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Events:   httptransport.NewEventHandler(events, loc, logger),
		Calendar: httptransport.NewCalendarHandler(cal, loc, now, logger),
		Health:   httptransport.NewHealthHandler(store, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.Recoverer(logger),
			httptransport.RequestLogger(logger),
		},
	})

	a := &app{
		cfg:      cfg,
		logger:   logger,
		location: loc,
		store:    store,
		events:   events,
		calendar: cal,
		handler:  router,
	}

	if cfg.Reminder.Enabled {
		a.dispatcher = reminder.NewDispatcher(engine, reminder.NewLogNotifier(logger), reminder.Config{
			Schedule:  cfg.Reminder.Schedule,
			Location:  loc,
			Lookback:  cfg.Reminder.Lookback,
			MaxOffset: reminder.MaxPreset * time.Minute,
		}, now, logger)
	}

	return a, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close storage", "error", err)
	}
}

func openStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (eventStore, error) {
	if strings.EqualFold(cfg.Driver, config.DriverMemory) {
		logger.Warn("using in-memory storage; events are lost on exit")
		return memory.Open(), nil
	}

	dialect, err := sqlstore.ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	store, err := sqlstore.Open(ctx, sqlstore.Config{
		Dialect:      dialect,
		DSN:          cfg.DSN,
		MaxOpenConns: cfg.MaxOpenConns,
		Retry: sqlstore.RetryConfig{
			MaxRetries:    cfg.RetryMax,
			InitialDelay:  cfg.RetryInitialDelay,
			MaxDelay:      cfg.RetryMaxDelay,
			BackoffFactor: 2,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", dialect, err)
	}
	return store, nil
}
