package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/followup/internal/testfixtures"
)

type testServer struct {
	handler http.Handler
	factory *testfixtures.ServiceFactory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := testfixtures.NewServiceFactory(testfixtures.WithLogger(logger))
	stack := factory.NewStack(nil)

	router := NewRouter(RouterConfig{
		Events:     NewEventHandler(stack.Events, time.UTC, logger),
		Calendar:   NewCalendarHandler(stack.Calendar, time.UTC, factory.Clock.NowFunc(), logger),
		Health:     NewHealthHandler(nil, logger),
		Middleware: []func(http.Handler) http.Handler{Recoverer(logger), RequestLogger(logger)},
	})
	return &testServer{handler: router, factory: factory}
}

func (s *testServer) do(t *testing.T, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestEventEndpoints(t *testing.T) {
	srv := newTestServer(t)

	create := srv.do(t, http.MethodPost, "/events", map[string]any{
		"name":      "Dentist",
		"start":     "2024-03-05T14:00:00Z",
		"end":       "2024-03-05T15:00:00Z",
		"reminders": []int{30},
	})
	require.Equal(t, http.StatusCreated, create.Code, create.Body.String())
	created := decode[eventResponse](t, create)
	assert.Equal(t, "evt-1", created.Event.ID)
	assert.Equal(t, "2024-03-05T14:00:00Z", created.Event.Start)
	assert.True(t, created.Event.IsAlerting)
	assert.Empty(t, created.Warnings)

	dup := srv.do(t, http.MethodPost, "/events", map[string]any{
		"name":  "Same slot",
		"start": "2024-03-05T14:00:00Z",
		"end":   "2024-03-05T15:00:00Z",
	})
	assert.Equal(t, http.StatusConflict, dup.Code)

	overlap := srv.do(t, http.MethodPost, "/events", map[string]any{
		"name":  "Call",
		"start": "2024-03-05 14:30",
		"end":   "2024-03-05 03:30 PM",
	})
	require.Equal(t, http.StatusCreated, overlap.Code, overlap.Body.String())
	warned := decode[eventResponse](t, overlap)
	require.Len(t, warned.Warnings, 1)
	assert.Equal(t, "evt-1", warned.Warnings[0].EventID)

	get := srv.do(t, http.MethodGet, "/events/evt-1", nil)
	require.Equal(t, http.StatusOK, get.Code)
	assert.Equal(t, "Dentist", decode[eventResponse](t, get).Event.Name)

	list := srv.do(t, http.MethodGet, "/events", nil)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Len(t, decode[listEventsResponse](t, list).Events, 2)

	update := srv.do(t, http.MethodPut, "/events/evt-1", map[string]any{
		"name":  "Dentist",
		"start": "2024-03-06T14:00:00Z",
		"end":   "2024-03-06T15:00:00Z",
		"recurrence": map[string]any{
			"frequency": "monthly",
			"end_mode":  "count",
			"count":     2,
		},
	})
	require.Equal(t, http.StatusOK, update.Code, update.Body.String())
	updated := decode[eventResponse](t, update).Event
	require.NotNil(t, updated.Recurrence)
	assert.Equal(t, "monthly", updated.Recurrence.Frequency)
	assert.Equal(t, "Monthly for 2 times", updated.Recurrence.Text)

	del := srv.do(t, http.MethodDelete, "/events/evt-1", nil)
	assert.Equal(t, http.StatusNoContent, del.Code)

	missing := srv.do(t, http.MethodGet, "/events/evt-1", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestEventEndpointsRejectMalformedInput(t *testing.T) {
	srv := newTestServer(t)

	badTime := srv.do(t, http.MethodPost, "/events", map[string]any{
		"name":  "x",
		"start": "next tuesday",
		"end":   "2024-03-05T15:00:00Z",
	})
	require.Equal(t, http.StatusUnprocessableEntity, badTime.Code)
	assert.Contains(t, decode[errorResponse](t, badTime).Errors, "start")

	missing := srv.do(t, http.MethodPost, "/events", map[string]any{"name": ""})
	require.Equal(t, http.StatusUnprocessableEntity, missing.Code)
	fields := decode[errorResponse](t, missing).Errors
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "start")

	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	notAllowed := srv.do(t, http.MethodPatch, "/events", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, notAllowed.Code)
	assert.Equal(t, "GET, POST", notAllowed.Header().Get("Allow"))
}

func TestEventEndpointsByKey(t *testing.T) {
	srv := newTestServer(t)

	create := srv.do(t, http.MethodPost, "/events", map[string]any{
		"name":  "Standup",
		"start": "2024-03-04T09:00:00Z",
		"end":   "2024-03-04T09:15:00Z",
	})
	require.Equal(t, http.StatusCreated, create.Code)

	key := url.Values{"start": {"2024-03-04T09:00:00Z"}, "end": {"2024-03-04T09:15:00Z"}}
	update := srv.do(t, http.MethodPut, "/events/by-key?"+key.Encode(), map[string]any{
		"name":  "Standup (moved)",
		"start": "2024-03-04T10:00:00Z",
		"end":   "2024-03-04T10:15:00Z",
	})
	require.Equal(t, http.StatusOK, update.Code, update.Body.String())
	assert.Equal(t, "evt-1", decode[eventResponse](t, update).Event.ID)

	stale := srv.do(t, http.MethodDelete, "/events/by-key?"+key.Encode(), nil)
	assert.Equal(t, http.StatusNotFound, stale.Code)

	newKey := url.Values{"start": {"2024-03-04 10:00"}, "end": {"2024-03-04 10:15"}}
	del := srv.do(t, http.MethodDelete, "/events/by-key?"+newKey.Encode(), nil)
	assert.Equal(t, http.StatusNoContent, del.Code)

	noKey := srv.do(t, http.MethodDelete, "/events/by-key", nil)
	require.Equal(t, http.StatusUnprocessableEntity, noKey.Code)
	assert.Contains(t, decode[errorResponse](t, noKey).Errors, "start")
}

func TestCalendarEndpoints(t *testing.T) {
	srv := newTestServer(t)

	create := srv.do(t, http.MethodPost, "/events", map[string]any{
		"name":       "Gym",
		"start":      "2024-03-02T07:00:00Z",
		"end":        "2024-03-02T08:00:00Z",
		"recurrence": map[string]any{"text": "every 7 days"},
	})
	require.Equal(t, http.StatusCreated, create.Code, create.Body.String())

	month := srv.do(t, http.MethodGet, "/calendar/month?month=2024-03", nil)
	require.Equal(t, http.StatusOK, month.Code)
	grid := decode[monthResponse](t, month)
	require.Len(t, grid.Days, 42)
	assert.Equal(t, "2024-02-25", grid.Days[0].Date)
	assert.Len(t, grid.Days[6].Occurrences, 1, "March 2")
	assert.Len(t, grid.Days[13].Occurrences, 1, "March 9")

	important := srv.do(t, http.MethodGet, "/calendar/important-dates?month=2024-03", nil)
	require.Equal(t, http.StatusOK, important.Code)
	dates := decode[importantDatesResponse](t, important)
	var days []string
	for _, d := range dates.Days {
		days = append(days, d.Date)
	}
	assert.Equal(t, []string{"2024-03-02", "2024-03-09", "2024-03-16", "2024-03-23", "2024-03-30"}, days)

	current := srv.do(t, http.MethodGet, "/calendar/important-dates", nil)
	require.Equal(t, http.StatusOK, current.Code)
	assert.Equal(t, 3, decode[importantDatesResponse](t, current).Month)

	rng := srv.do(t, http.MethodGet, "/calendar/range?from=2024-03-09T00:00:00Z&to=2024-03-16T07:00:00Z", nil)
	require.Equal(t, http.StatusOK, rng.Code)
	view := decode[rangeResponse](t, rng)
	assert.Equal(t, 8, view.DayCount)
	require.Len(t, view.Days, 2)
	assert.Equal(t, 7, view.Days[1].Offset)

	badRange := srv.do(t, http.MethodGet, "/calendar/range?from=2024-03-09T00:00:00Z", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, badRange.Code)

	badMonth := srv.do(t, http.MethodGet, "/calendar/month?month=March", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, badMonth.Code)

	upcoming := srv.do(t, http.MethodGet, "/calendar/upcoming", nil)
	require.Equal(t, http.StatusOK, upcoming.Code)
	assert.Len(t, decode[upcomingResponse](t, upcoming).Occurrences, 5)
}

func TestCalendarExport(t *testing.T) {
	srv := newTestServer(t)

	empty := srv.do(t, http.MethodGet, "/calendar.ics", nil)
	require.Equal(t, http.StatusOK, empty.Code)
	assert.Contains(t, empty.Body.String(), "BEGIN:VCALENDAR")

	create := srv.do(t, http.MethodPost, "/events", map[string]any{
		"name":  "Dentist",
		"start": "2024-03-05T14:00:00Z",
		"end":   "2024-03-05T15:00:00Z",
	})
	require.Equal(t, http.StatusCreated, create.Code)

	export := srv.do(t, http.MethodGet, "/calendar.ics", nil)
	require.Equal(t, http.StatusOK, export.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", export.Header().Get("Content-Type"))
	assert.Contains(t, export.Body.String(), "SUMMARY:Dentist")
	etag := export.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.NotEqual(t, empty.Header().Get("ETag"), etag)

	cached := srv.do(t, http.MethodGet, "/calendar.ics", nil, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, cached.Code)
	assert.Empty(t, cached.Body.Bytes())

	stale := srv.do(t, http.MethodGet, "/calendar.ics", nil, "If-None-Match", `"other"`)
	assert.Equal(t, http.StatusOK, stale.Code)
}

type pingerStub struct{ err error }

func (p pingerStub) Ping(context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	router := NewRouter(RouterConfig{Health: NewHealthHandler(pingerStub{}, nil)})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	router = NewRouter(RouterConfig{Health: NewHealthHandler(pingerStub{err: errors.New("down")}, nil)})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestParseTimestamp(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)

	tests := []struct {
		in   string
		want time.Time
	}{
		{in: "2024-03-05T14:00:00Z", want: time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)},
		{in: "2024-03-05T14:00:00+09:00", want: time.Date(2024, 3, 5, 5, 0, 0, 0, time.UTC)},
		{in: "2024-03-05 14:00", want: time.Date(2024, 3, 5, 14, 0, 0, 0, tokyo)},
		{in: "2024-03-05 02:00 PM", want: time.Date(2024, 3, 5, 14, 0, 0, 0, tokyo)},
	}
	for _, tc := range tests {
		got, err := parseTimestamp(tc.in, tokyo)
		require.NoError(t, err, tc.in)
		assert.True(t, tc.want.Equal(got), "%s: got %v", tc.in, got)
	}

	_, err := parseTimestamp("yesterday", tokyo)
	assert.Error(t, err)

	zero, err := parseTimestamp("  ", tokyo)
	assert.NoError(t, err)
	assert.True(t, zero.IsZero())
}

func TestEtagMatches(t *testing.T) {
	assert.True(t, etagMatches(`"abc"`, `"abc"`))
	assert.True(t, etagMatches(`"x", W/"abc"`, `"abc"`))
	assert.True(t, etagMatches(`*`, `"abc"`))
	assert.False(t, etagMatches(`"abd"`, `"abc"`))
	assert.False(t, etagMatches("", `"abc"`))
}
