package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/followup/internal/application"
	"github.com/example/followup/internal/calendar"
	"github.com/example/followup/internal/recurrence"
)

type calendarService interface {
	MonthGrid(ctx context.Context, year int, month time.Month) (application.MonthGrid, error)
	ImportantDates(ctx context.Context, year int, month time.Month) (application.ImportantDates, error)
	Range(ctx context.Context, from, to time.Time) (application.RangeView, error)
	Upcoming(ctx context.Context) ([]recurrence.Occurrence, error)
	Export(ctx context.Context) (application.Export, error)
}

// CalendarHandler serves the calendar views and the iCalendar export.
type CalendarHandler struct {
	service   calendarService
	location  *time.Location
	now       func() time.Time
	responder responder
	logger    *slog.Logger
}

// NewCalendarHandler builds the handler. A missing month parameter selects
// the current month according to now.
func NewCalendarHandler(service calendarService, loc *time.Location, now func() time.Time, logger *slog.Logger) *CalendarHandler {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &CalendarHandler{service: service, location: loc, now: now, responder: newResponder(logger), logger: defaultLogger(logger)}
}

func (h *CalendarHandler) Month(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	year, month, ok := h.monthFromQuery(w, r)
	if !ok {
		return
	}

	grid, err := h.service.MonthGrid(r.Context(), year, month)
	if err != nil {
		h.handleError(r.Context(), w, err)
		return
	}

	days := make([]dayDTO, 0, grid.Days)
	for offset := 0; offset < grid.Days; offset++ {
		days = append(days, dayDTO{
			Offset:      offset,
			Date:        formatDate(grid.Start.AddDate(0, 0, offset), h.location),
			Occurrences: toOccurrenceDTOs(grid.Buckets[offset], h.location),
		})
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, monthResponse{
		Year:  grid.Year,
		Month: int(grid.Month),
		Start: formatTime(grid.Start, h.location),
		Days:  days,
	})
}

func (h *CalendarHandler) ImportantDates(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	year, month, ok := h.monthFromQuery(w, r)
	if !ok {
		return
	}

	view, err := h.service.ImportantDates(r.Context(), year, month)
	if err != nil {
		h.handleError(r.Context(), w, err)
		return
	}

	days := make([]dayDTO, 0, len(view.Days))
	for _, day := range view.Days {
		days = append(days, dayDTO{
			Offset:      day.Offset,
			Date:        formatDate(day.Date, h.location),
			Occurrences: toOccurrenceDTOs(day.Occurrences, h.location),
			More:        day.More,
		})
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, importantDatesResponse{
		Year:  view.Year,
		Month: int(view.Month),
		Start: formatTime(view.Start, h.location),
		End:   formatTime(view.End, h.location),
		Days:  days,
	})
}

func (h *CalendarHandler) Range(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	vErr := &application.ValidationError{}
	from := readTimestamp(vErr, "from", query.Get("from"), h.location, true)
	to := readTimestamp(vErr, "to", query.Get("to"), h.location, true)
	if vErr.HasErrors() {
		h.responder.writeValidation(r.Context(), w, vErr)
		return
	}

	view, err := h.service.Range(r.Context(), from, to)
	if err != nil {
		h.handleError(r.Context(), w, err)
		return
	}

	days := make([]dayDTO, 0, len(view.Buckets))
	for _, offset := range view.Buckets.Offsets() {
		days = append(days, dayDTO{
			Offset:      offset,
			Date:        formatDate(view.Start.Add(time.Duration(offset)*calendar.BucketDuration), h.location),
			Occurrences: toOccurrenceDTOs(view.Buckets[offset], h.location),
		})
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, rangeResponse{
		Start:    formatTime(view.Start, h.location),
		End:      formatTime(view.End, h.location),
		DayCount: view.Days,
		Days:     days,
	})
}

func (h *CalendarHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	occurrences, err := h.service.Upcoming(r.Context())
	if err != nil {
		h.handleError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, upcomingResponse{Occurrences: toOccurrenceDTOs(occurrences, h.location)})
}

// Export writes the iCalendar document. A matching If-None-Match answers 304.
func (h *CalendarHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	export, err := h.service.Export(r.Context())
	if err != nil {
		h.handleError(r.Context(), w, err)
		return
	}

	w.Header().Set("ETag", export.ETag)
	w.Header().Set("Cache-Control", "no-cache")
	if etagMatches(r.Header.Get("If-None-Match"), export.ETag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="followup.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(export.Body); err != nil {
		handlerLogger(r.Context(), h.logger, "CalendarHandler", "Export").ErrorContext(r.Context(), "failed to write export", "error", err)
	}
}

func (h *CalendarHandler) monthFromQuery(w http.ResponseWriter, r *http.Request) (int, time.Month, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("month"))
	if raw == "" {
		now := h.now().In(h.location)
		return now.Year(), now.Month(), true
	}
	year, month, err := parseMonth(raw)
	if err != nil {
		h.responder.writeValidation(r.Context(), w, application.NewValidationError("month", err.Error()))
		return 0, 0, false
	}
	return year, month, true
}

func (h *CalendarHandler) handleError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, calendar.ErrInvalidQuery) {
		h.responder.writeValidation(ctx, w, application.NewValidationError("query", err.Error()))
		return
	}
	h.responder.handleServiceError(ctx, w, err)
}

func etagMatches(header, etag string) bool {
	if header == "" || etag == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

type dayDTO struct {
	Offset      int             `json:"offset"`
	Date        string          `json:"date"`
	Occurrences []occurrenceDTO `json:"occurrences"`
	More        int             `json:"more,omitempty"`
}

type monthResponse struct {
	Year  int      `json:"year"`
	Month int      `json:"month"`
	Start string   `json:"start"`
	Days  []dayDTO `json:"days"`
}

type importantDatesResponse struct {
	Year  int      `json:"year"`
	Month int      `json:"month"`
	Start string   `json:"start"`
	End   string   `json:"end"`
	Days  []dayDTO `json:"days"`
}

type rangeResponse struct {
	Start    string   `json:"start"`
	End      string   `json:"end"`
	DayCount int      `json:"day_count"`
	Days     []dayDTO `json:"days"`
}

type upcomingResponse struct {
	Occurrences []occurrenceDTO `json:"occurrences"`
}
