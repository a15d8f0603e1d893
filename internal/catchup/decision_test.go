package catchup

import (
	"testing"
	"time"

	"jazz/internal/groove"
)

var feb3at8 = time.Date(2026, 2, 3, 8, 0, 0, 0, time.UTC)

func TestDecide_MissingScheduleWinsOverEverything(t *testing.T) {
	g := groove.Metadata{Name: "a", CatchUpOnStartup: true, MaxCatchUpAge: 1}
	d := Decide(g, nil, feb3at8)
	if d.ShouldRun || d.Reason != ReasonMissingSchedule {
		t.Fatalf("expected missing-schedule, got %+v", d)
	}
}

func TestDecide_CatchUpIsOptIn(t *testing.T) {
	g := groove.Metadata{Name: "a", Schedule: "0 6 * * *"}
	d := Decide(g, nil, feb3at8)
	if d.ShouldRun || d.Reason != ReasonCatchUpDisabled {
		t.Fatalf("expected catch-up-disabled for absent flag, got %+v", d)
	}
}

func TestDecide_InvalidSchedule(t *testing.T) {
	g := groove.Metadata{Name: "a", Schedule: "every sunrise", CatchUpOnStartup: true}
	d := Decide(g, nil, feb3at8)
	if d.ShouldRun || d.Reason != ReasonInvalidSchedule {
		t.Fatalf("expected invalid-schedule, got %+v", d)
	}
}

func TestDecide_MissedRun(t *testing.T) {
	g := groove.Metadata{Name: "a", Schedule: "0 6 * * *", CatchUpOnStartup: true}
	d := Decide(g, nil, feb3at8)
	if !d.ShouldRun || d.Reason != ReasonMissedRun {
		t.Fatalf("expected missed-run, got %+v", d)
	}
	want := time.Date(2026, 2, 3, 6, 0, 0, 0, time.UTC)
	if d.ScheduledAt == nil || !d.ScheduledAt.Equal(want) {
		t.Fatalf("expected scheduledAt %v, got %v", want, d.ScheduledAt)
	}
}

func TestDecide_AlreadyRanAfterFiring(t *testing.T) {
	g := groove.Metadata{Name: "a", Schedule: "0 6 * * *", CatchUpOnStartup: true}
	last := time.Date(2026, 2, 3, 7, 0, 0, 0, time.UTC)
	d := Decide(g, &last, feb3at8)
	if d.ShouldRun || d.Reason != ReasonAlreadyRan {
		t.Fatalf("expected already-ran, got %+v", d)
	}
}

func TestDecide_AlreadyRanBoundaryIsInclusive(t *testing.T) {
	g := groove.Metadata{Name: "a", Schedule: "0 6 * * *", CatchUpOnStartup: true}
	last := time.Date(2026, 2, 3, 6, 0, 0, 0, time.UTC)
	d := Decide(g, &last, feb3at8)
	if d.ShouldRun || d.Reason != ReasonAlreadyRan {
		t.Fatalf("run exactly at the firing instant must satisfy it, got %+v", d)
	}
}

func TestDecide_RunBeforeFiringDoesNotCount(t *testing.T) {
	g := groove.Metadata{Name: "a", Schedule: "0 6 * * *", CatchUpOnStartup: true}
	last := time.Date(2026, 2, 3, 5, 59, 0, 0, time.UTC)
	d := Decide(g, &last, feb3at8)
	if !d.ShouldRun || d.Reason != ReasonMissedRun {
		t.Fatalf("expected missed-run, got %+v", d)
	}
}

func TestDecide_MissedWindow(t *testing.T) {
	g := groove.Metadata{Name: "a", Schedule: "0 6 * * *", CatchUpOnStartup: true, MaxCatchUpAge: 3600}
	now := time.Date(2026, 2, 4, 8, 0, 0, 0, time.UTC)
	d := Decide(g, nil, now)
	if d.ShouldRun || d.Reason != ReasonMissedWindow {
		t.Fatalf("expected missed-window, got %+v", d)
	}
}

func TestDecide_DefaultWindowApplies(t *testing.T) {
	g := groove.Metadata{Name: "a", Schedule: "0 6 * * 1", CatchUpOnStartup: true}
	// Monday firing, checked on Thursday: well past the default window.
	now := time.Date(2026, 2, 5, 8, 0, 0, 0, time.UTC)
	d := Decide(g, nil, now)
	if d.ShouldRun || d.Reason != ReasonMissedWindow {
		t.Fatalf("expected missed-window under the default window, got %+v", d)
	}
}

func TestDecide_IsIdempotent(t *testing.T) {
	g := groove.Metadata{Name: "a", Schedule: "0 6 * * *", CatchUpOnStartup: true}
	last := time.Date(2026, 2, 3, 5, 0, 0, 0, time.UTC)
	first := Decide(g, &last, feb3at8)
	for i := 0; i < 5; i++ {
		again := Decide(g, &last, feb3at8)
		if again.ShouldRun != first.ShouldRun || again.Reason != first.Reason {
			t.Fatalf("decision drifted on call %d: %+v vs %+v", i, again, first)
		}
	}
}

func TestMissedPhrase(t *testing.T) {
	now := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	sameDay := time.Date(2026, 2, 3, 6, 0, 0, 0, time.UTC)
	if got := missedPhrase(sameDay, now); got != "missed 06:00 today" {
		t.Fatalf("got %q", got)
	}
	yesterday := time.Date(2026, 2, 2, 18, 30, 0, 0, time.UTC)
	if got := missedPhrase(yesterday, now); got != "missed 18:30 yesterday" {
		t.Fatalf("got %q", got)
	}
	older := time.Date(2026, 1, 28, 7, 0, 0, 0, time.UTC)
	if got := missedPhrase(older, now); got != "missed 07:00 on Jan 28" {
		t.Fatalf("got %q", got)
	}
}
