package cronutil

import (
	"strings"
	"time"

	robcron "github.com/robfig/cron/v3"
)

// Expressions are stored in the 5-field crontab form users write, but parsed
// in the 6-field (seconds-first) form. Normalize bridges the two.

// lookbackHorizon bounds the search for the most recent firing. Anything that
// fires less often than roughly once a year is treated as never having fired.
const lookbackHorizon = 400 * 24 * time.Hour

func parser() robcron.Parser {
	return robcron.NewParser(robcron.Second | robcron.Minute | robcron.Hour | robcron.Dom | robcron.Month | robcron.Dow)
}

// Normalize prepends a "0" seconds field to a 5-field expression. A 6-field
// expression passes through unchanged, as does anything else (the caller's
// parser rejects those).
func Normalize(schedule string) string {
	fields := strings.Fields(schedule)
	if len(fields) == 5 {
		return "0 " + strings.Join(fields, " ")
	}
	return strings.Join(fields, " ")
}

// IsValid reports whether schedule is a parsable 5- or 6-field cron
// expression.
func IsValid(schedule string) bool {
	n := len(strings.Fields(schedule))
	if n != 5 && n != 6 {
		return false
	}
	_, err := parser().Parse(Normalize(schedule))
	return err == nil
}

// MostRecentFiring returns the latest scheduled instant at or before now,
// or false if the expression is unparsable or nothing fired within the
// lookback horizon.
func MostRecentFiring(schedule string, now time.Time) (time.Time, bool) {
	sched, err := parser().Parse(Normalize(schedule))
	if err != nil {
		return time.Time{}, false
	}

	// The cron grammar only exposes Next, so bracket the previous firing by
	// doubling a lookback window until a firing lands at or before now, then
	// walk Next forward to the last such instant. Next reports the zero time
	// when nothing fires within its search bound.
	lookback := time.Minute
	for {
		probe := sched.Next(now.Add(-lookback))
		if probe.IsZero() {
			return time.Time{}, false
		}
		if !probe.After(now) {
			break
		}
		lookback *= 2
		if lookback > lookbackHorizon {
			return time.Time{}, false
		}
	}
	t := now.Add(-lookback)
	for {
		next := sched.Next(t)
		if next.IsZero() || next.After(now) {
			return t, true
		}
		t = next
	}
}
