package schedule

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"jazz/internal/groove"
)

func TestTranslateCronField(t *testing.T) {
	if v, err := translateCronField("minute", "*"); err != nil || v != nil {
		t.Fatalf("wildcard must omit the field, got %v %v", v, err)
	}
	v, err := translateCronField("hour", "6")
	if err != nil || v == nil || *v != 6 {
		t.Fatalf("expected literal 6, got %v %v", v, err)
	}
	if _, err := translateCronField("minute", "abc"); err == nil {
		t.Fatalf("expected error for non-integer field")
	}
}

func TestTranslateCronToCalendar_RejectsUnsupportedSyntax(t *testing.T) {
	cases := []struct {
		expr  string
		field string
		kind  string
	}{
		{"*/15 * * * *", "minute", "step"},
		{"0 * 1-5 * *", "day-of-month", "range"},
		{"0 * * * 1,2,3", "weekday", "list"},
	}
	for _, tc := range cases {
		_, err := translateCronToCalendar(tc.expr)
		if err == nil {
			t.Fatalf("expected %s rejected", tc.expr)
		}
		if !strings.Contains(err.Error(), tc.field) {
			t.Fatalf("error for %s must name the %s field, got: %v", tc.expr, tc.field, err)
		}
		if !strings.Contains(err.Error(), tc.kind) {
			t.Fatalf("error for %s must name %s syntax, got: %v", tc.expr, tc.kind, err)
		}
	}
}

func TestTranslateCronToCalendar_DailySchedule(t *testing.T) {
	interval, err := translateCronToCalendar("30 6 * * 1")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if interval.Minute == nil || *interval.Minute != 30 {
		t.Fatalf("expected minute 30, got %v", interval.Minute)
	}
	if interval.Hour == nil || *interval.Hour != 6 {
		t.Fatalf("expected hour 6, got %v", interval.Hour)
	}
	if interval.Day != nil || interval.Month != nil {
		t.Fatalf("wildcard fields must be omitted")
	}
	if interval.Weekday == nil || *interval.Weekday != 1 {
		t.Fatalf("expected weekday 1, got %v", interval.Weekday)
	}
}

func TestBuildPlist(t *testing.T) {
	minute, hour := 0, 6
	plist := buildPlist("com.jazz.groove.daily", "/usr/local/bin/jazz", "daily", "researcher",
		"/tmp/daily.log", calendarInterval{Minute: &minute, Hour: &hour})
	for _, want := range []string{
		"<string>com.jazz.groove.daily</string>",
		"<string>--agent</string>",
		"<string>researcher</string>",
		"<string>--auto-approve</string>",
		"<key>Minute</key>",
		"<key>Hour</key>",
		"<key>RunAtLoad</key>\n\t<false/>",
		"<string>/tmp/daily.log</string>",
	} {
		if !strings.Contains(plist, want) {
			t.Fatalf("plist missing %q:\n%s", want, plist)
		}
	}
	if strings.Contains(plist, "<key>Day</key>") || strings.Contains(plist, "<key>Weekday</key>") {
		t.Fatalf("wildcard calendar keys must be omitted:\n%s", plist)
	}
}

func TestShellEscape(t *testing.T) {
	if got := shellEscape("plain"); got != "'plain'" {
		t.Fatalf("got %q", got)
	}
	if got := shellEscape("it's"); got != `'it'\''s'` {
		t.Fatalf("got %q", got)
	}
}

func TestBuildCronBlock(t *testing.T) {
	block := buildCronBlock("tidy up", "0 7 * * *", "helper", "/usr/bin/jazz", "/logs/tidy up.log")
	lines := strings.Split(block, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected a two-line block, got %d lines", len(lines))
	}
	if lines[0] != "# Jazz groove: tidy up" {
		t.Fatalf("unexpected marker line %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "0 7 * * * '/usr/bin/jazz' run 'tidy up' --agent 'helper' --auto-approve") {
		t.Fatalf("unexpected schedule line %q", lines[1])
	}
	if !strings.HasSuffix(lines[1], ">> '/logs/tidy up.log' 2>&1") {
		t.Fatalf("expected log redirection, got %q", lines[1])
	}
}

func TestStripGrooveBlock(t *testing.T) {
	crontab := "MAILTO=\"\"\n# Jazz groove: a\n0 6 * * * '/bin/jazz' run 'a'\n# Jazz groove: b\n0 7 * * * '/bin/jazz' run 'b'"
	got := stripGrooveBlock(crontab, "a")
	if strings.Contains(got, "groove: a") || strings.Contains(got, "run 'a'") {
		t.Fatalf("block for a must be removed:\n%s", got)
	}
	if !strings.Contains(got, "groove: b") || !strings.Contains(got, "MAILTO") {
		t.Fatalf("unrelated lines must survive:\n%s", got)
	}
}

func TestStripThenAppendReplacesBlock(t *testing.T) {
	first := appendBlock("", buildCronBlock("a", "0 6 * * *", "x", "/bin/jazz", "/l/a.log"))
	second := appendBlock(stripGrooveBlock(first, "a"), buildCronBlock("a", "0 9 * * *", "x", "/bin/jazz", "/l/a.log"))
	if strings.Count(second, "# Jazz groove: a") != 1 {
		t.Fatalf("expected exactly one block after reschedule:\n%s", second)
	}
	if !strings.Contains(second, "0 9 * * *") || strings.Contains(second, "0 6 * * *") {
		t.Fatalf("expected the new schedule only:\n%s", second)
	}
}

func TestEntryStore_ListSkipsMalformed(t *testing.T) {
	dir := t.TempDir()
	store := entryStore{Dir: dir}
	if err := store.write(Entry{Groove: "good", Schedule: "0 6 * * *", Agent: "a", Enabled: true}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "incomplete.json"), []byte(`{"groove":"x"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	entries, err := store.list()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].Groove != "good" {
		t.Fatalf("expected only the well-formed entry, got %+v", entries)
	}

	ok, err := store.isScheduled("good")
	if err != nil || !ok {
		t.Fatalf("expected good scheduled, got %v %v", ok, err)
	}
	ok, err = store.isScheduled("incomplete")
	if err != nil || ok {
		t.Fatalf("incomplete metadata must not count as scheduled")
	}
}

func TestEntryStore_RemoveMissingIsNoError(t *testing.T) {
	store := entryStore{Dir: t.TempDir()}
	if err := store.remove("never-scheduled"); err != nil {
		t.Fatalf("remove: %v", err)
	}
}

func TestUnsupportedScheduler(t *testing.T) {
	s, err := newForOS("windows", Options{SchedulesDir: t.TempDir(), Log: zerolog.Nop()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Type() != "unsupported" {
		t.Fatalf("expected unsupported variant, got %s", s.Type())
	}
	err = s.Schedule(groove.Metadata{Name: "a", Schedule: "0 6 * * *"}, "agent")
	if err == nil || !strings.Contains(err.Error(), "macOS") || !strings.Contains(err.Error(), "Linux") {
		t.Fatalf("error must name supported platforms, got: %v", err)
	}
	if entries, err := s.List(); err != nil || len(entries) != 0 {
		t.Fatalf("unsupported list must be empty, got %v %v", entries, err)
	}
	if ok, err := s.IsScheduled("a"); err != nil || ok {
		t.Fatalf("unsupported isScheduled must be false")
	}
}

func TestValidateSchedule(t *testing.T) {
	if err := validateSchedule(groove.Metadata{Name: "a"}); err == nil {
		t.Fatalf("expected error for missing schedule")
	}
	if err := validateSchedule(groove.Metadata{Name: "a", Schedule: "not cron"}); err == nil {
		t.Fatalf("expected error for invalid schedule")
	}
	if err := validateSchedule(groove.Metadata{Name: "a", Schedule: "0 6 * * *"}); err != nil {
		t.Fatalf("valid schedule rejected: %v", err)
	}
}
