package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/followup/internal/application"
	"github.com/example/followup/internal/calendar"
	"github.com/example/followup/internal/ics"
	"github.com/example/followup/internal/persistence"
	"github.com/example/followup/internal/persistence/memory"
	"github.com/example/followup/internal/recurrence"
)

// ServiceFactory builds application services with deterministic clocks and IDs.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Location    *time.Location
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory returns a factory running in UTC at ReferenceTime.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("evt"),
		Location:    time.UTC,
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("evt")
	}
	if factory.Location == nil {
		factory.Location = time.UTC
	}
	return factory
}

// WithClock overrides the clock.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.Clock = clock }
}

// WithIDGenerator overrides the identifier generator.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.IDGenerator = generator }
}

// WithLocation overrides the calendar time zone.
func WithLocation(loc *time.Location) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.Location = loc }
}

// WithLogger overrides the service logger.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.Logger = logger }
}

// Stack is a fully wired set of services over one store.
type Stack struct {
	Rows     persistence.EventRepository
	Store    *application.EventStore
	Engine   *calendar.Engine
	Events   *application.EventService
	Calendar *application.CalendarService
}

// NewStack wires services over rows. A nil rows uses a fresh memory store.
func (f *ServiceFactory) NewStack(rows persistence.EventRepository) *Stack {
	if rows == nil {
		rows = memory.Open()
	}
	store := application.NewEventStore(rows)
	expander := recurrence.NewEngine(nil, f.Logger)
	engine := calendar.NewEngine(store, expander, f.Logger)

	events := application.NewEventServiceWithLogger(store, engine, expander, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), f.Logger)
	cal := application.NewCalendarService(engine, store,
		ics.NewEncoder(ics.DefaultProductID, expander, f.Clock.NowFunc()),
		ics.NewSigner("test-secret"),
		application.CalendarOptions{
			Location: f.Location,
			Now:      f.Clock.NowFunc(),
			Logger:   f.Logger,
		},
	)

	return &Stack{Rows: rows, Store: store, Engine: engine, Events: events, Calendar: cal}
}
