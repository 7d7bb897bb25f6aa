package status

import (
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"calstatus/internal/model"
)

// MaxTextLength is the presence service's hard limit on status text.
const MaxTextLength = 100

// maxLocationPhrase caps "in <location>" so a long location cannot starve
// the summary of room.
const maxLocationPhrase = 60

const busyStatusOutOfOffice = "OOF"

// DefaultPalette is used when the matched event carries no emoji.
var DefaultPalette = []string{":calendar:", ":spiral_calendar_pad:", ":date:"}

// WorkingDefault is shown inside business hours when no event matches.
var WorkingDefault = model.StatusPayload{
	StatusText:  "probably working",
	StatusEmoji: ":computer:",
}

// EmojiPicker returns the emoji for an event that has none of its own.
type EmojiPicker func() string

// RandomPicker picks uniformly from palette on every call.
func RandomPicker(palette []string) EmojiPicker {
	return func() string {
		if len(palette) == 0 {
			return ""
		}
		return palette[rand.IntN(len(palette))]
	}
}

// FixedPicker always returns emoji.
func FixedPicker(emoji string) EmojiPicker {
	return func() string { return emoji }
}

// Config holds the resolver's policy knobs.
type Config struct {
	// Location is the organization's base timezone for the business window.
	Location *time.Location
	// WorkStart / WorkEnd are offsets from local midnight, e.g. 9h and 17h.
	WorkStart time.Duration
	WorkEnd   time.Duration
	PickEmoji EmojiPicker
}

// Resolver turns today's candidate events and a clock reading into a
// StatusPayload. It keeps no state between calls.
type Resolver struct {
	cfg Config
}

func NewResolver(cfg Config) *Resolver {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.WorkStart == 0 && cfg.WorkEnd == 0 {
		cfg.WorkStart = 9 * time.Hour
		cfg.WorkEnd = 17 * time.Hour
	}
	if cfg.PickEmoji == nil {
		cfg.PickEmoji = RandomPicker(DefaultPalette)
	}
	return &Resolver{cfg: cfg}
}

// Resolve renders the first event active at now. Overlapping events are
// not merged: the earliest in the sequence wins. With no match, the
// business-hours fallback applies.
func (r *Resolver) Resolve(events []model.CalendarEvent, now time.Time) model.StatusPayload {
	for _, ev := range events {
		if ev.Active(now) {
			return r.Render(ev)
		}
	}

	start, end := r.WorkingWindow(now)
	if !now.Before(start) && now.Before(end) {
		return WorkingDefault
	}
	return model.StatusPayload{}
}

// Render builds the payload for one matched event. The text never exceeds
// MaxTextLength characters.
func (r *Resolver) Render(ev model.CalendarEvent) model.StatusPayload {
	phrase := Shorten(locationPhrase(ev), maxLocationPhrase)
	maxLen := MaxTextLength - 1 - utf8.RuneCountInString(phrase)

	text := phrase
	if summary := Shorten(ev.Summary, maxLen); summary != "" {
		text = summary + " " + phrase
	}

	emoji := ev.Emoji.OrElse("")
	if emoji == "" {
		emoji = r.cfg.PickEmoji()
	}
	return model.StatusPayload{StatusText: text, StatusEmoji: emoji}
}

// WorkingWindow returns today's business window in the base timezone.
func (r *Resolver) WorkingWindow(now time.Time) (time.Time, time.Time) {
	local := now.In(r.cfg.Location)
	return r.atOffset(local, r.cfg.WorkStart), r.atOffset(local, r.cfg.WorkEnd)
}

// atOffset builds wall-clock time on day's date, so DST transitions shift
// the instant rather than the local hour.
func (r *Resolver) atOffset(day time.Time, offset time.Duration) time.Time {
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, r.cfg.Location)
}

func locationPhrase(ev model.CalendarEvent) string {
	if strings.TrimSpace(ev.Location) != "" {
		return "in " + ev.Location
	}
	if ev.BusyStatus == busyStatusOutOfOffice {
		return "out of office"
	}
	return "likely at my desk"
}
