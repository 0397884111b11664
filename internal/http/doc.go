// Package http provides the JSON API for events and calendar views.
//
// The router exposes the following endpoints:
//   - GET /events, POST /events: list every event or create one. Creation
//     answers 201 with the stored event and any overlap warnings, or 409 when
//     another event already has the same start and end.
//   - GET /events/{id}, PUT /events/{id}, DELETE /events/{id}: single event
//     access by ID. PUT answers with overlap warnings like POST.
//   - PUT /events/by-key?start=&end=, DELETE /events/by-key?start=&end=: access
//     by the (start, end) pair that uniquely identifies an event.
//   - GET /calendar/month?month=YYYY-MM: the 42-day grid for a month.
//   - GET /calendar/important-dates?month=YYYY-MM: populated days of a month,
//     capped per day.
//   - GET /calendar/range?from=&to=: occurrences bucketed by day over a window.
//   - GET /calendar/upcoming: occurrences from now to the end of the month.
//   - GET /calendar.ics: iCalendar export with an ETag; If-None-Match yields 304.
//   - GET /healthz: store reachability.
//
// Timestamps accept RFC 3339 and the wall-clock forms "2006-01-02 15:04" and
// "2006-01-02 03:04 PM", read in the configured time zone. Request and
// response DTOs live next to their handlers.
package http
