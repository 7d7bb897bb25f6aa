package ics

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/samber/mo"

	appLog "calstatus/internal/log"
	"calstatus/internal/model"
)

// PropertyBusyStatus is the Outlook extended property that classifies an
// event as FREE, TENTATIVE, BUSY, OOF or WORKINGELSEWHERE.
const PropertyBusyStatus ical.ComponentProperty = "X-MICROSOFT-CDO-BUSYSTATUS"

const (
	icsDateLayout  = "20060102"
	icsUTCLayout   = "20060102T150405Z"
	icsLocalLayout = "20060102T150405"
)

// Parse decodes a calendar feed into SourceEvents, in feed order.
//
//   - A TZID is resolved as an IANA name first, then as a Windows zone
//     name. Values with an unresolvable TZID, and floating values with no
//     TZID at all, are read as wall time in base.
//   - Date-only DTSTART/DTEND values are decoded as midnight UTC with the
//     DateOnly flag set; anchoring them to a time of day is the
//     normalizer's job.
//   - RRULE is recorded verbatim and not expanded here. EXDATE values are
//     collected into ExDates.
//
// A VEVENT whose dates cannot be decoded is logged and skipped.
func Parse(body []byte, base *time.Location, logger *appLog.Logger) ([]model.SourceEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty calendar body")
	}
	if base == nil {
		base = time.UTC
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	d := &decoder{base: base, logger: logger}
	events := make([]model.SourceEvent, 0)
	for _, ve := range cal.Events() {
		ev, perr := d.parseVEvent(ve)
		if perr != nil {
			logger.Error("vevent parse failed; skipping", perr, "uid", ev.UID)
			continue
		}
		events = append(events, ev)
	}

	if len(d.unknownTZIDs) > 0 {
		logger.Info("unknown TZID; times read in base timezone",
			"tzids", d.unknownTZIDs,
			"base", base.String(),
		)
	}
	logger.Debug("calendar parse completed", "event_count", len(events))
	return events, nil
}

type decoder struct {
	base         *time.Location
	logger       *appLog.Logger
	unknownTZIDs []string
}

func (d *decoder) parseVEvent(ve *ical.VEvent) (model.SourceEvent, error) {
	var out model.SourceEvent

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}
	if p := ve.GetProperty(PropertyBusyStatus); p != nil {
		out.BusyStatus = mo.Some(strings.TrimSpace(p.Value))
	}
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RRule = strings.TrimSpace(p.Value)
	}

	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		out.HasStart = true
		t, dateOnly, err := d.decodeTime(p.Value, p.ICalParameters)
		if err != nil {
			return out, fmt.Errorf("DTSTART %q: %w", p.Value, err)
		}
		out.Start, out.StartDateOnly = t, dateOnly
	}

	if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
		out.HasEnd = true
		t, dateOnly, err := d.decodeTime(p.Value, p.ICalParameters)
		if err != nil {
			return out, fmt.Errorf("DTEND %q: %w", p.Value, err)
		}
		out.End, out.EndDateOnly = t, dateOnly
	}

	// EXDATE may repeat and each may hold a comma-separated list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			t, _, err := d.decodeTime(part, p.ICalParameters)
			if err != nil {
				d.logger.Debug("EXDATE value ignored", "uid", out.UID, "value", part, "error", err.Error())
				continue
			}
			out.ExDates = append(out.ExDates, t)
		}
	}

	return out, nil
}

// decodeTime reads a DATE or DATE-TIME value. UTC values ("Z") ignore
// TZID; local values use TZID when it resolves and d.base otherwise.
func (d *decoder) decodeTime(value string, params map[string][]string) (time.Time, bool, error) {
	value = strings.TrimSpace(value)
	if isDateOnly(value, params) {
		t, err := time.Parse(icsDateLayout, value)
		return t, true, err
	}
	if strings.HasSuffix(value, "Z") {
		t, err := time.Parse(icsUTCLayout, value)
		return t, false, err
	}

	loc := d.base
	if vs := params[string(ical.ParameterTzid)]; len(vs) > 0 && vs[0] != "" {
		if z, ok := zoneFor(vs[0]); ok {
			loc = z
		} else if !slices.Contains(d.unknownTZIDs, vs[0]) {
			d.unknownTZIDs = append(d.unknownTZIDs, vs[0])
		}
	}
	t, err := time.ParseInLocation(icsLocalLayout, value, loc)
	return t, false, err
}

// isDateOnly detects VALUE=DATE or a bare YYYYMMDD value.
func isDateOnly(value string, params map[string][]string) bool {
	if vs, ok := params[string(ical.ParameterValue)]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(value, "T")
}
