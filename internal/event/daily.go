package event

import (
	"time"

	appLog "calstatus/internal/log"
	"calstatus/internal/model"
)

// Builder produces the candidate events for the current day from one feed.
type Builder struct {
	loc    *time.Location
	logger *appLog.Logger
}

// NewBuilder creates a Builder. loc decides what "today" means for
// one-off events; recurring events are matched against the UTC date.
func NewBuilder(loc *time.Location, logger *appLog.Logger) *Builder {
	if loc == nil {
		loc = time.UTC
	}
	return &Builder{loc: loc, logger: logger.With("component", "daily-builder")}
}

// ForIdentity returns a copy of b whose skip logs carry the identity.
func (b *Builder) ForIdentity(identity string) *Builder {
	return &Builder{loc: b.loc, logger: b.logger.With("identity", identity)}
}

// Location is the timezone that decides what "today" means.
func (b *Builder) Location() *time.Location {
	return b.loc
}

// Today returns recurrence occurrences for today followed by one-off
// events starting today, each group in feed order. A recurrence occurrence
// is dropped when a one-off event has the same UID. Events that fail to
// normalize or expand are logged and skipped.
func (b *Builder) Today(events []model.SourceEvent, now time.Time) []model.CalendarEvent {
	var recurring, literal []model.CalendarEvent

	for _, src := range events {
		if src.IsRecurring() {
			occ, err := ExpandToday(src, now)
			if err != nil {
				b.logger.Error("recurring event skipped", err, "uid", src.UID)
				continue
			}
			if ev, ok := occ.Get(); ok {
				recurring = append(recurring, ev)
			}
			continue
		}

		// Without DTSTART there is no date to filter on; Normalize reports it.
		if src.HasStart && !b.startsToday(src, now) {
			continue
		}
		ev, err := Normalize(src)
		if err != nil {
			b.logger.Error("event skipped", err, "uid", src.UID)
			continue
		}
		literal = append(literal, ev)
	}

	return dedupe(recurring, literal)
}

func (b *Builder) startsToday(src model.SourceEvent, now time.Time) bool {
	today := now.In(b.loc)
	if src.StartDateOnly {
		return sameDate(src.Start, today)
	}
	return sameDate(src.Start.In(b.loc), today)
}

// dedupe drops recurrence occurrences shadowed by a literal event with the
// same UID. Events without a UID are never considered duplicates.
func dedupe(recurring, literal []model.CalendarEvent) []model.CalendarEvent {
	seen := make(map[string]struct{}, len(literal))
	for _, ev := range literal {
		if ev.UID != "" {
			seen[ev.UID] = struct{}{}
		}
	}

	out := make([]model.CalendarEvent, 0, len(recurring)+len(literal))
	for _, ev := range recurring {
		if _, dup := seen[ev.UID]; dup && ev.UID != "" {
			continue
		}
		out = append(out, ev)
	}
	return append(out, literal...)
}
