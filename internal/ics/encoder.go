// Package ics renders stored events as an RFC 5545 calendar.
package ics

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"github.com/example/followup/internal/recurrence"
)

// DefaultProductID identifies exports when no product ID is configured.
const DefaultProductID = "-//followup//Calendar Export//EN"

// RuleSource converts a recurring record into an rrule option.
type RuleSource interface {
	ROption(record recurrence.EventRecord) (rrule.ROption, bool)
}

// Entry is one exported record with its last modification time.
type Entry struct {
	Record   recurrence.EventRecord
	Modified time.Time
}

// Encoder writes VCALENDAR documents.
type Encoder struct {
	productID string
	rules     RuleSource
	now       func() time.Time
}

// NewEncoder builds an encoder. rules may be nil, in which case recurring
// records are exported without an RRULE.
func NewEncoder(productID string, rules RuleSource, now func() time.Time) *Encoder {
	if productID == "" {
		productID = DefaultProductID
	}
	if now == nil {
		now = time.Now
	}
	return &Encoder{productID: productID, rules: rules, now: now}
}

// Marshal renders entries into a calendar document.
func (e *Encoder) Marshal(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Encode(&buf, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes entries as a calendar document to w.
func (e *Encoder) Encode(w io.Writer, entries []Entry) error {
	if len(entries) == 0 {
		// the ical encoder refuses calendars without components
		_, err := fmt.Fprintf(w, "BEGIN:VCALENDAR\r\nPRODID:%s\r\nVERSION:2.0\r\nEND:VCALENDAR\r\n", e.productID)
		return err
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, e.productID)
	cal.Props.SetText(ical.PropVersion, "2.0")

	for _, entry := range entries {
		cal.Children = append(cal.Children, e.event(entry).Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

func (e *Encoder) event(entry Entry) *ical.Event {
	record := entry.Record
	stamp := entry.Modified
	if stamp.IsZero() {
		stamp = e.now()
	}

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, record.ID)
	event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	event.Props.SetDateTime(ical.PropLastModified, stamp.UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, record.Start.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, record.End.UTC())
	event.Props.SetText(ical.PropSummary, record.Name)
	if record.Description != "" {
		event.Props.SetText(ical.PropDescription, record.Description)
	}

	if record.IsRecurring && e.rules != nil {
		if opt, ok := e.rules.ROption(record); ok {
			prop := ical.NewProp(ical.PropRecurrenceRule)
			prop.Value = opt.RRuleString()
			event.Props.Set(prop)
		}
	}

	for _, minutes := range record.Reminders {
		event.Children = append(event.Children, alarm(record.Name, minutes))
	}

	return event
}

func alarm(summary string, minutes int) *ical.Component {
	comp := ical.NewComponent(ical.CompAlarm)
	comp.Props.SetText(ical.PropAction, "DISPLAY")
	comp.Props.SetText(ical.PropDescription, summary)

	trigger := ical.NewProp(ical.PropTrigger)
	trigger.Value = triggerValue(minutes)
	comp.Props.Set(trigger)
	return comp
}

func triggerValue(minutes int) string {
	if minutes <= 0 {
		return "PT0M"
	}
	return "-PT" + strconv.Itoa(minutes) + "M"
}
