package schedule

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/rs/zerolog"

	"jazz/internal/cronutil"
	"jazz/internal/groove"
	"jazz/internal/paths"
)

// Scheduler registers grooves with the native OS scheduler and mirrors each
// registration as a metadata file.
type Scheduler interface {
	Schedule(meta groove.Metadata, agentID string) error
	Unschedule(name string) error
	List() ([]Entry, error)
	IsScheduled(name string) (bool, error)
	Type() string
}

// Options carries the filesystem locations and the binary the OS scheduler
// should invoke.
type Options struct {
	SchedulesDir string
	LogsDir      string
	ExecPath     string
	Log          zerolog.Logger
}

// New picks the scheduler variant for the current platform.
func New(opts Options) (Scheduler, error) {
	return newForOS(runtime.GOOS, opts)
}

func newForOS(goos string, opts Options) (Scheduler, error) {
	store := entryStore{Dir: opts.SchedulesDir}
	switch goos {
	case "darwin":
		agentsDir, err := paths.LaunchAgentsDir()
		if err != nil {
			return nil, err
		}
		return &launchdScheduler{
			entries:   store,
			agentsDir: agentsDir,
			logsDir:   opts.LogsDir,
			execPath:  opts.ExecPath,
			log:       opts.Log,
		}, nil
	case "linux":
		return &crontabScheduler{
			entries:  store,
			logsDir:  opts.LogsDir,
			execPath: opts.ExecPath,
			log:      opts.Log,
		}, nil
	default:
		return &unsupportedScheduler{goos: goos, entries: store}, nil
	}
}

// validateSchedule rejects a missing or unparsable cron string before any OS
// registration happens.
func validateSchedule(meta groove.Metadata) error {
	expr := strings.TrimSpace(meta.Schedule)
	if expr == "" {
		return fmt.Errorf("groove %s has no schedule", meta.Name)
	}
	if !cronutil.IsValid(expr) {
		return fmt.Errorf("groove %s has an invalid cron schedule: %q", meta.Name, expr)
	}
	return nil
}

type unsupportedScheduler struct {
	goos    string
	entries entryStore
}

func (u *unsupportedScheduler) Type() string { return "unsupported" }

func (u *unsupportedScheduler) Schedule(meta groove.Metadata, agentID string) error {
	return u.err()
}

func (u *unsupportedScheduler) Unschedule(name string) error { return u.err() }

func (u *unsupportedScheduler) List() ([]Entry, error) { return nil, nil }

func (u *unsupportedScheduler) IsScheduled(name string) (bool, error) { return false, nil }

func (u *unsupportedScheduler) err() error {
	return fmt.Errorf("scheduling is not supported on %s; supported platforms are macOS (launchd) and Linux (cron)", u.goos)
}
