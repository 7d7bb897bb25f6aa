package event

import (
	"time"

	"calstatus/internal/ics"
	"calstatus/internal/model"
)

// allDayAnchorHour is the UTC hour a date-only DTSTART/DTEND is pinned to,
// which lands all-day events on a late-morning start across US timezones.
const allDayAnchorHour = 14

// AnchorTime converts a decoded DTSTART/DTEND into an instant. Datetime
// values pass through; date-only values become 14:00 UTC on that date.
func AnchorTime(t time.Time, dateOnly bool) time.Time {
	if !dateOnly {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), allDayAnchorHour, 0, 0, 0, time.UTC)
}

type normalizeOptions struct {
	window    bool
	start     time.Time
	end       time.Time
	recurring bool
}

// NormalizeOption adjusts how Normalize builds a CalendarEvent.
type NormalizeOption func(*normalizeOptions)

// WithWindow overrides the event's own DTSTART/DTEND, used when the
// recurrence expander has already computed an occurrence.
func WithWindow(start, end time.Time) NormalizeOption {
	return func(o *normalizeOptions) {
		o.window = true
		o.start = start
		o.end = end
	}
}

// AsRecurringOccurrence marks the result as synthesized from an RRULE.
func AsRecurringOccurrence() NormalizeOption {
	return func(o *normalizeOptions) {
		o.recurring = true
	}
}

// Normalize turns a SourceEvent into a CalendarEvent. The busy-status
// property is required; its absence yields a *MalformedEventError.
func Normalize(src model.SourceEvent, opts ...NormalizeOption) (model.CalendarEvent, error) {
	var o normalizeOptions
	for _, opt := range opts {
		opt(&o)
	}

	busy, ok := src.BusyStatus.Get()
	if !ok {
		return model.CalendarEvent{}, &MalformedEventError{UID: src.UID, Field: string(ics.PropertyBusyStatus)}
	}

	start, end := o.start, o.end
	if !o.window {
		var err error
		start, end, err = sourceWindow(src)
		if err != nil {
			return model.CalendarEvent{}, err
		}
	}

	emoji, summary := ExtractEmoji(src.Summary)

	return model.CalendarEvent{
		UID:                   src.UID,
		Summary:               summary,
		Emoji:                 emoji,
		Start:                 start,
		End:                   end,
		Location:              src.Location,
		BusyStatus:            busy,
		IsRecurringOccurrence: o.recurring,
	}, nil
}

// sourceWindow reads [start, end) from the event itself. A missing DTEND
// follows RFC 5545: one day for date-only starts, zero length otherwise.
func sourceWindow(src model.SourceEvent) (time.Time, time.Time, error) {
	if !src.HasStart {
		return time.Time{}, time.Time{}, &MalformedEventError{UID: src.UID, Field: "DTSTART"}
	}
	start := AnchorTime(src.Start, src.StartDateOnly)
	if !src.HasEnd {
		if src.StartDateOnly {
			return start, start.Add(24 * time.Hour), nil
		}
		return start, start, nil
	}
	return start, AnchorTime(src.End, src.EndDateOnly), nil
}
