package dispatch

import (
	"fmt"
	"time"

	"github.com/jwalitptl/botops-api/internal/model"
)

// NextOccurrence computes when a recurring series fires next, starting from
// the occurrence that just completed (not from wall clock, so a late run never
// skews the series). occurrences is the number of deliveries made so far,
// including the one that just happened. The second return value is false when
// the series is finished: end date reached or max occurrences exhausted.
func NextOccurrence(spec model.RecurrenceSpec, current time.Time, occurrences int) (time.Time, bool, error) {
	interval := spec.Interval
	if interval <= 0 {
		interval = 1
	}

	if spec.MaxOccurrences != nil && occurrences >= *spec.MaxOccurrences {
		return time.Time{}, false, nil
	}

	var next time.Time
	switch spec.Pattern {
	case model.RecurrenceDaily:
		next = current.AddDate(0, 0, interval)
	case model.RecurrenceWeekly:
		next = current.AddDate(0, 0, 7*interval)
		if len(spec.DaysOfWeek) > 0 {
			next = nextAllowedWeekday(next, spec.DaysOfWeek)
		}
	case model.RecurrenceMonthly:
		next = current.AddDate(0, interval, 0)
		if spec.DayOfMonth != nil {
			next = withDayOfMonth(next, *spec.DayOfMonth)
		}
	default:
		return time.Time{}, false, fmt.Errorf("unknown recurrence pattern %q", spec.Pattern)
	}

	if spec.EndDate != nil && !spec.EndDate.After(next) {
		return time.Time{}, false, nil
	}
	return next, true, nil
}

// ValidateRecurrence rejects specs the dispatcher would refuse at send time,
// so bad input fails at creation instead.
func ValidateRecurrence(spec *model.RecurrenceSpec) error {
	if spec == nil {
		return fmt.Errorf("recurrence spec is required for recurring messages")
	}
	switch spec.Pattern {
	case model.RecurrenceDaily, model.RecurrenceWeekly, model.RecurrenceMonthly:
	default:
		return fmt.Errorf("unknown recurrence pattern %q", spec.Pattern)
	}
	if spec.Interval < 0 {
		return fmt.Errorf("recurrence interval cannot be negative")
	}
	if spec.DayOfMonth != nil && (*spec.DayOfMonth < 1 || *spec.DayOfMonth > 31) {
		return fmt.Errorf("day of month must be between 1 and 31")
	}
	for _, d := range spec.DaysOfWeek {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("invalid day of week %d", d)
		}
	}
	return nil
}

func nextAllowedWeekday(t time.Time, allowed []time.Weekday) time.Time {
	for i := 0; i < 7; i++ {
		for _, d := range allowed {
			if t.Weekday() == d {
				return t
			}
		}
		t = t.AddDate(0, 0, 1)
	}
	return t
}

func withDayOfMonth(t time.Time, day int) time.Time {
	firstOfMonth := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := firstOfMonth.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(t.Year(), t.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
