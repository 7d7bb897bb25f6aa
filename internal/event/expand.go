package event

import (
	"time"

	"github.com/samber/mo"
	"github.com/teambition/rrule-go"

	"calstatus/internal/model"
)

// lookback is how far before now the expander starts searching, so an
// occurrence anywhere in the current UTC day is found regardless of the
// time of day now falls on.
const lookback = 24 * time.Hour

// ExpandToday asks src's RRULE whether it has an occurrence today (UTC)
// and, if so, returns that occurrence normalized with the original event's
// duration. Occurrences listed in ExDates are skipped. No occurrence today
// is not an error.
func ExpandToday(src model.SourceEvent, now time.Time) (mo.Option[model.CalendarEvent], error) {
	none := mo.None[model.CalendarEvent]()
	if !src.IsRecurring() {
		return none, nil
	}

	origStart, origEnd, err := sourceWindow(src)
	if err != nil {
		return none, err
	}

	rule, err := rrule.StrToRRule(src.RRule)
	if err != nil {
		return none, &RecurrenceComputationError{UID: src.UID, Rule: src.RRule, Err: err}
	}
	// The rule engine needs a time-bearing anchor; origStart is already
	// pinned to 14:00 UTC for date-only events.
	rule.DTStart(origStart)

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range src.ExDates {
		if src.StartDateOnly {
			set.ExDate(AnchorTime(ex, true))
			continue
		}
		set.ExDate(ex.In(origStart.Location()))
	}

	occ := set.After(now.Add(-lookback), false)
	if occ.IsZero() {
		return none, nil
	}
	if !sameDate(occ.UTC(), now.UTC()) {
		return none, nil
	}

	// Kept as start minus end: some feeds store the fields reversed, and
	// subtracting the negative duration below restores the original length.
	duration := origStart.Sub(origEnd)
	end := occ.Add(-duration)

	ev, err := Normalize(src, WithWindow(occ, end), AsRecurringOccurrence())
	if err != nil {
		return none, err
	}
	return mo.Some(ev), nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
