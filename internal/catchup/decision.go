package catchup

import (
	"strings"
	"time"

	"jazz/internal/cronutil"
	"jazz/internal/groove"
)

// Reason is the closed set of outcomes a catch-up decision can carry.
type Reason string

const (
	ReasonMissingSchedule Reason = "missing-schedule"
	ReasonCatchUpDisabled Reason = "catch-up-disabled"
	ReasonInvalidSchedule Reason = "invalid-schedule"
	ReasonAlreadyRan      Reason = "already-ran"
	ReasonMissedWindow    Reason = "missed-window"
	ReasonMissedRun       Reason = "missed-run"
)

type Decision struct {
	ShouldRun   bool
	Reason      Reason
	ScheduledAt *time.Time
}

// DefaultMaxCatchUpAge bounds how far past a missed firing a catch-up run is
// still worth doing when the groove does not set its own window.
const DefaultMaxCatchUpAge = 24 * time.Hour

// Decide is pure: identical inputs always yield identical output. Checks run
// cheapest and most decisive first.
func Decide(g groove.Metadata, lastRunAt *time.Time, now time.Time) Decision {
	if strings.TrimSpace(g.Schedule) == "" {
		return Decision{Reason: ReasonMissingSchedule}
	}
	if !g.CatchUpOnStartup {
		return Decision{Reason: ReasonCatchUpDisabled}
	}
	scheduledAt, ok := cronutil.MostRecentFiring(g.Schedule, now)
	if !ok {
		return Decision{Reason: ReasonInvalidSchedule}
	}
	// A run exactly at the firing instant satisfies it.
	if lastRunAt != nil && !lastRunAt.Before(scheduledAt) {
		return Decision{Reason: ReasonAlreadyRan}
	}
	maxAge := DefaultMaxCatchUpAge
	if g.MaxCatchUpAge > 0 {
		maxAge = time.Duration(g.MaxCatchUpAge) * time.Second
	}
	age := now.Sub(scheduledAt).Truncate(time.Second)
	if age > maxAge {
		return Decision{Reason: ReasonMissedWindow, ScheduledAt: &scheduledAt}
	}
	return Decision{ShouldRun: true, Reason: ReasonMissedRun, ScheduledAt: &scheduledAt}
}
