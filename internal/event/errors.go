package event

import "fmt"

// MalformedEventError reports a source event that lacks a field the
// normalizer requires.
type MalformedEventError struct {
	UID   string
	Field string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("event %q: missing required field %s", e.UID, e.Field)
}

// RecurrenceComputationError reports an RRULE that could not be parsed or
// evaluated.
type RecurrenceComputationError struct {
	UID  string
	Rule string
	Err  error
}

func (e *RecurrenceComputationError) Error() string {
	return fmt.Sprintf("event %q: recurrence rule %q: %v", e.UID, e.Rule, e.Err)
}

func (e *RecurrenceComputationError) Unwrap() error {
	return e.Err
}
