package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/followup/internal/application"
	"github.com/example/followup/internal/recurrence"
)

type eventService interface {
	CreateEvent(ctx context.Context, input application.EventInput) (application.Event, []application.OverlapWarning, error)
	GetEvent(ctx context.Context, id string) (application.Event, error)
	ListEvents(ctx context.Context) ([]application.Event, error)
	UpdateEvent(ctx context.Context, id string, input application.EventInput) (application.Event, []application.OverlapWarning, error)
	UpdateEventByKey(ctx context.Context, start, end time.Time, input application.EventInput) (application.Event, []application.OverlapWarning, error)
	DeleteEvent(ctx context.Context, id string) error
	DeleteEventByKey(ctx context.Context, start, end time.Time) error
}

// EventHandler serves the /events endpoints.
type EventHandler struct {
	service   eventService
	location  *time.Location
	responder responder
	logger    *slog.Logger
}

// NewEventHandler builds the handler. loc is used to read wall-clock
// timestamps and to render responses.
func NewEventHandler(service eventService, loc *time.Location, logger *slog.Logger) *EventHandler {
	if loc == nil {
		loc = time.Local
	}
	return &EventHandler{service: service, location: loc, responder: newResponder(logger), logger: defaultLogger(logger)}
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	input, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	event, warnings, err := h.service.CreateEvent(r.Context(), input)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderEvent(r.Context(), w, event, warnings, http.StatusCreated)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	event, err := h.service.GetEvent(r.Context(), eventID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: toEventDTO(event, h.location)})
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	events, err := h.service.ListEvents(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]eventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, toEventDTO(event, h.location))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEventsResponse{Events: out})
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	input, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	event, warnings, err := h.service.UpdateEvent(r.Context(), eventID, input)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderEvent(r.Context(), w, event, warnings, http.StatusOK)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	if err := h.service.DeleteEvent(r.Context(), eventID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "EventHandler", "Delete").DebugContext(r.Context(), "event removed")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *EventHandler) UpdateByKey(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	start, end, ok := h.keyFromQuery(w, r)
	if !ok {
		return
	}

	input, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	event, warnings, err := h.service.UpdateEventByKey(r.Context(), start, end, input)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderEvent(r.Context(), w, event, warnings, http.StatusOK)
}

func (h *EventHandler) DeleteByKey(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	start, end, ok := h.keyFromQuery(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteEventByKey(r.Context(), start, end); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *EventHandler) decodeInput(w http.ResponseWriter, r *http.Request) (application.EventInput, bool) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return application.EventInput{}, false
	}

	input, vErr := req.toInput(h.location)
	if vErr.HasErrors() {
		h.responder.writeValidation(r.Context(), w, vErr)
		return application.EventInput{}, false
	}
	return input, true
}

func (h *EventHandler) keyFromQuery(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	query := r.URL.Query()
	vErr := &application.ValidationError{}
	start := readTimestamp(vErr, "start", query.Get("start"), h.location, true)
	end := readTimestamp(vErr, "end", query.Get("end"), h.location, true)
	if vErr.HasErrors() {
		h.responder.writeValidation(r.Context(), w, vErr)
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func (h *EventHandler) renderEvent(ctx context.Context, w http.ResponseWriter, event application.Event, warnings []application.OverlapWarning, status int) {
	h.responder.writeJSON(ctx, w, status, eventResponse{
		Event:    toEventDTO(event, h.location),
		Warnings: toWarningDTOs(warnings, h.location),
	})
}

// readTimestamp parses value into the validation error under field.
func readTimestamp(vErr *application.ValidationError, field, value string, loc *time.Location, required bool) time.Time {
	if strings.TrimSpace(value) == "" {
		if required {
			vErr.Add(field, field+" is required")
		}
		return time.Time{}
	}
	ts, err := parseTimestamp(value, loc)
	if err != nil {
		vErr.Add(field, err.Error())
		return time.Time{}
	}
	return ts
}

type eventRequest struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Start       string             `json:"start"`
	End         string             `json:"end"`
	Recurrence  *recurrenceRequest `json:"recurrence,omitempty"`
	Reminders   []int              `json:"reminders"`
}

type recurrenceRequest struct {
	Frequency string `json:"frequency"`
	Interval  int    `json:"interval"`
	EndMode   string `json:"end_mode"`
	Until     string `json:"until"`
	Count     int    `json:"count"`
	Text      string `json:"text"`
}

// toInput only rejects unparseable timestamps; missing fields are left to the
// service so that all field errors come from one place.
func (r eventRequest) toInput(loc *time.Location) (application.EventInput, *application.ValidationError) {
	vErr := &application.ValidationError{}
	input := application.EventInput{
		Name:        r.Name,
		Description: r.Description,
		Start:       readTimestamp(vErr, "start", r.Start, loc, false),
		End:         readTimestamp(vErr, "end", r.End, loc, false),
		Reminders:   append([]int(nil), r.Reminders...),
	}
	if r.Recurrence != nil {
		input.Recurrence = &application.RecurrenceInput{
			Frequency: r.Recurrence.Frequency,
			Interval:  r.Recurrence.Interval,
			EndMode:   r.Recurrence.EndMode,
			Until:     readTimestamp(vErr, "recurrence.until", r.Recurrence.Until, loc, false),
			Count:     r.Recurrence.Count,
			Text:      r.Recurrence.Text,
		}
	}
	return input, vErr
}

type eventResponse struct {
	Event    eventDTO     `json:"event"`
	Warnings []warningDTO `json:"warnings,omitempty"`
}

type listEventsResponse struct {
	Events []eventDTO `json:"events"`
}

type eventDTO struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Start       string         `json:"start"`
	End         string         `json:"end"`
	IsRecurring bool           `json:"is_recurring"`
	IsAlerting  bool           `json:"is_alerting"`
	Recurrence  *recurrenceDTO `json:"recurrence,omitempty"`
	Reminders   []int          `json:"reminders"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

type recurrenceDTO struct {
	Frequency string `json:"frequency"`
	Interval  int    `json:"interval"`
	EndMode   string `json:"end_mode"`
	Until     string `json:"until,omitempty"`
	Count     int    `json:"count,omitempty"`
	Text      string `json:"text"`
}

func toEventDTO(event application.Event, loc *time.Location) eventDTO {
	reminders := event.Reminders
	if reminders == nil {
		reminders = []int{}
	}
	dto := eventDTO{
		ID:          event.ID,
		Name:        event.Name,
		Description: event.Description,
		Start:       formatTime(event.Start, loc),
		End:         formatTime(event.End, loc),
		IsRecurring: event.IsRecurring,
		IsAlerting:  event.IsAlerting(),
		Reminders:   reminders,
		CreatedAt:   formatTime(event.CreatedAt, time.UTC),
		UpdatedAt:   formatTime(event.UpdatedAt, time.UTC),
	}
	if event.IsRecurring {
		rule := event.Rule
		rec := &recurrenceDTO{
			Frequency: strings.ToLower(rule.Frequency.String()),
			Interval:  rule.Interval,
			EndMode:   rule.End.Kind().String(),
			Text:      rule.Describe(loc),
		}
		if until, ok := rule.End.Until().Get(); ok {
			rec.Until = formatTime(until, loc)
		}
		if count, ok := rule.End.Count().Get(); ok {
			rec.Count = count
		}
		dto.Recurrence = rec
	}
	return dto
}

type warningDTO struct {
	OccurrenceStart string `json:"occurrence_start"`
	EventID         string `json:"event_id"`
	EventName       string `json:"event_name"`
	Start           string `json:"start"`
	End             string `json:"end"`
}

func toWarningDTOs(warnings []application.OverlapWarning, loc *time.Location) []warningDTO {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]warningDTO, 0, len(warnings))
	for _, warning := range warnings {
		out = append(out, warningDTO{
			OccurrenceStart: formatTime(warning.OccurrenceStart, loc),
			EventID:         warning.EventID,
			EventName:       warning.EventName,
			Start:           formatTime(warning.Start, loc),
			End:             formatTime(warning.End, loc),
		})
	}
	return out
}

type occurrenceDTO struct {
	EventID   string `json:"event_id"`
	Name      string `json:"name"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Recurring bool   `json:"recurring"`
	Frequency string `json:"frequency,omitempty"`
	Interval  int    `json:"interval,omitempty"`
	Sequence  int    `json:"sequence"`
	Reminders []int  `json:"reminders,omitempty"`
}

func toOccurrenceDTOs(occurrences []recurrence.Occurrence, loc *time.Location) []occurrenceDTO {
	out := make([]occurrenceDTO, 0, len(occurrences))
	for _, occ := range occurrences {
		dto := occurrenceDTO{
			EventID:   occ.RecordID,
			Name:      occ.Name,
			Start:     formatTime(occ.Start, loc),
			End:       formatTime(occ.End, loc),
			Recurring: occ.Recurring,
			Sequence:  occ.Sequence,
			Reminders: occ.Reminders,
		}
		if occ.Recurring {
			dto.Frequency = strings.ToLower(occ.Frequency.String())
			dto.Interval = occ.Interval
		}
		out = append(out, dto)
	}
	return out
}
