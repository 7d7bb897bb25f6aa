package model

import (
	"time"

	"github.com/samber/mo"
)

// SourceEvent is a VEVENT as read from a calendar feed, before
// normalization or recurrence expansion.
type SourceEvent struct {
	UID      string
	Summary  string
	Location string

	// BusyStatus carries X-MICROSOFT-CDO-BUSYSTATUS when the feed has it.
	BusyStatus mo.Option[string]

	// Start / End as decoded from DTSTART / DTEND. For date-only values
	// the time is midnight UTC on that date and the DateOnly flag is set.
	Start         time.Time
	End           time.Time
	HasStart      bool
	HasEnd        bool
	StartDateOnly bool
	EndDateOnly   bool

	// RRule is the raw RRULE value; empty for one-off events.
	RRule string
	// ExDates are the EXDATE exclusions, decoded like Start.
	ExDates []time.Time
}

// IsRecurring reports whether the event carries a recurrence rule.
func (e SourceEvent) IsRecurring() bool {
	return e.RRule != ""
}

// CalendarEvent is the normalized record the status resolver operates on.
// It is built fresh on every run and never mutated afterwards.
type CalendarEvent struct {
	UID     string
	Summary string // emoji token removed
	Emoji   mo.Option[string]

	// [Start, End) is the active window. End may precede Start when the
	// feed is malformed; such an event never matches.
	Start time.Time
	End   time.Time

	Location   string
	BusyStatus string

	IsRecurringOccurrence bool
}

// Active reports whether now falls inside [Start, End).
func (e CalendarEvent) Active(now time.Time) bool {
	return !now.Before(e.Start) && now.Before(e.End)
}

// StatusPayload is what the presence service receives. Both fields empty
// means "clear status".
type StatusPayload struct {
	StatusText  string `json:"status_text"`
	StatusEmoji string `json:"status_emoji"`
}

// IsClear reports whether the payload clears the remote status.
func (p StatusPayload) IsClear() bool {
	return p.StatusText == "" && p.StatusEmoji == ""
}
