package schedule

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"jazz/internal/groove"
)

const launchdLabelPrefix = "com.jazz.groove."

// launchdScheduler registers grooves as per-user LaunchAgents on macOS.
type launchdScheduler struct {
	entries   entryStore
	agentsDir string
	logsDir   string
	execPath  string
	log       zerolog.Logger
}

func (l *launchdScheduler) Type() string { return "launchd" }

func (l *launchdScheduler) List() ([]Entry, error) { return l.entries.list() }

func (l *launchdScheduler) IsScheduled(name string) (bool, error) {
	return l.entries.isScheduled(name)
}

func (l *launchdScheduler) Schedule(meta groove.Metadata, agentID string) error {
	if err := validateSchedule(meta); err != nil {
		return err
	}
	interval, err := translateCronToCalendar(meta.Schedule)
	if err != nil {
		return fmt.Errorf("groove %s: %w", meta.Name, err)
	}

	label := launchdLabelPrefix + meta.Name
	plistPath := filepath.Join(l.agentsDir, label+".plist")
	logPath := filepath.Join(l.logsDir, meta.Name+".log")
	plist := buildPlist(label, l.execPath, meta.Name, agentID, logPath, interval)

	// A prior registration with the same label must go first; absence is fine.
	if out, err := exec.Command("launchctl", "unload", plistPath).CombinedOutput(); err != nil {
		l.log.Debug().Str("groove", meta.Name).Str("output", strings.TrimSpace(string(out))).Msg("launchctl unload before reload")
	}

	if err := os.MkdirAll(l.agentsDir, 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(l.logsDir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(plistPath, []byte(plist), 0o644); err != nil {
		return fmt.Errorf("write launch agent for %s: %w", meta.Name, err)
	}
	if err := l.entries.write(Entry{Groove: meta.Name, Schedule: meta.Schedule, Agent: agentID, Enabled: true}); err != nil {
		return err
	}
	if out, err := exec.Command("launchctl", "load", plistPath).CombinedOutput(); err != nil {
		return fmt.Errorf("launchctl load %s: %v: %s", plistPath, err, strings.TrimSpace(string(out)))
	}
	l.log.Info().Str("groove", meta.Name).Str("plist", plistPath).Msg("registered launchd schedule")
	return nil
}

// Unschedule unloads, deletes the job file, and deletes metadata. Each step
// is best-effort so the operation is idempotent.
func (l *launchdScheduler) Unschedule(name string) error {
	label := launchdLabelPrefix + strings.TrimSpace(name)
	plistPath := filepath.Join(l.agentsDir, label+".plist")
	if out, err := exec.Command("launchctl", "unload", plistPath).CombinedOutput(); err != nil {
		l.log.Debug().Str("groove", name).Str("output", strings.TrimSpace(string(out))).Msg("launchctl unload")
	}
	if err := os.Remove(plistPath); err != nil && !os.IsNotExist(err) {
		l.log.Warn().Err(err).Str("groove", name).Msg("removing launch agent file")
	}
	return l.entries.remove(name)
}

// calendarInterval is a launchd StartCalendarInterval: nil means the field is
// a wildcard and the key is omitted.
type calendarInterval struct {
	Minute  *int
	Hour    *int
	Day     *int
	Month   *int
	Weekday *int
}

var calendarFieldNames = [5]string{"minute", "hour", "day-of-month", "month", "weekday"}

// translateCronToCalendar maps the five cron fields onto launchd calendar
// keys. launchd has no equivalent for step, range, or list syntax, so those
// are rejected with the offending field named.
func translateCronToCalendar(schedule string) (calendarInterval, error) {
	fields := strings.Fields(schedule)
	if len(fields) != 5 {
		return calendarInterval{}, fmt.Errorf("expected a 5-field cron expression, got %d fields", len(fields))
	}
	var values [5]*int
	for i, field := range fields {
		v, err := translateCronField(calendarFieldNames[i], field)
		if err != nil {
			return calendarInterval{}, err
		}
		values[i] = v
	}
	return calendarInterval{
		Minute:  values[0],
		Hour:    values[1],
		Day:     values[2],
		Month:   values[3],
		Weekday: values[4],
	}, nil
}

func translateCronField(name, value string) (*int, error) {
	if value == "*" {
		return nil, nil
	}
	for _, bad := range []struct{ sep, kind string }{
		{"/", "step"},
		{"-", "range"},
		{",", "list"},
	} {
		if strings.Contains(value, bad.sep) {
			return nil, fmt.Errorf("launchd cannot express %s syntax: %s field %q", bad.kind, name, value)
		}
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("launchd requires a literal integer or *: %s field %q", name, value)
	}
	return &n, nil
}

func buildPlist(label, execPath, grooveName, agentID, logPath string, interval calendarInterval) string {
	var cal strings.Builder
	writeKey := func(key string, v *int) {
		if v == nil {
			return
		}
		fmt.Fprintf(&cal, "\t\t<key>%s</key>\n\t\t<integer>%d</integer>\n", key, *v)
	}
	writeKey("Minute", interval.Minute)
	writeKey("Hour", interval.Hour)
	writeKey("Day", interval.Day)
	writeKey("Month", interval.Month)
	writeKey("Weekday", interval.Weekday)

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>%s</string>
	<key>ProgramArguments</key>
	<array>
		<string>%s</string>
		<string>run</string>
		<string>%s</string>
		<string>--agent</string>
		<string>%s</string>
		<string>--auto-approve</string>
	</array>
	<key>StartCalendarInterval</key>
	<dict>
%s	</dict>
	<key>RunAtLoad</key>
	<false/>
	<key>StandardOutPath</key>
	<string>%s</string>
	<key>StandardErrorPath</key>
	<string>%s</string>
</dict>
</plist>
`, xmlEscape(label), xmlEscape(execPath), xmlEscape(grooveName), xmlEscape(agentID),
		cal.String(), xmlEscape(logPath), xmlEscape(logPath))
}

func xmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
