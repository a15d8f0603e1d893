package schedule

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"jazz/internal/groove"
)

const crontabMarkerPrefix = "# Jazz groove: "

// crontabScheduler registers grooves as two-line blocks in the user crontab:
// a marker comment followed by the schedule line.
type crontabScheduler struct {
	entries  entryStore
	logsDir  string
	execPath string
	log      zerolog.Logger
}

func (c *crontabScheduler) Type() string { return "cron" }

func (c *crontabScheduler) List() ([]Entry, error) { return c.entries.list() }

func (c *crontabScheduler) IsScheduled(name string) (bool, error) {
	return c.entries.isScheduled(name)
}

func (c *crontabScheduler) Schedule(meta groove.Metadata, agentID string) error {
	if err := validateSchedule(meta); err != nil {
		return err
	}
	current, err := readCrontab()
	if err != nil {
		return err
	}
	logPath := filepath.Join(c.logsDir, meta.Name+".log")
	if err := os.MkdirAll(c.logsDir, 0o755); err != nil {
		return err
	}
	updated := stripGrooveBlock(current, meta.Name)
	updated = appendBlock(updated, buildCronBlock(meta.Name, meta.Schedule, agentID, c.execPath, logPath))
	if err := writeCrontab(updated); err != nil {
		return err
	}
	if err := c.entries.write(Entry{Groove: meta.Name, Schedule: meta.Schedule, Agent: agentID, Enabled: true}); err != nil {
		return err
	}
	c.log.Info().Str("groove", meta.Name).Msg("registered crontab schedule")
	return nil
}

func (c *crontabScheduler) Unschedule(name string) error {
	current, err := readCrontab()
	if err != nil {
		return err
	}
	updated := stripGrooveBlock(current, name)
	if updated != current {
		if err := writeCrontab(updated); err != nil {
			return err
		}
	}
	return c.entries.remove(name)
}

// buildCronBlock renders the marker comment and the schedule line. Every
// token placed on the command line is shell-escaped so groove and agent
// identifiers cannot inject into the generated command.
func buildCronBlock(name, schedule, agentID, execPath, logPath string) string {
	cmd := fmt.Sprintf("%s run %s --agent %s --auto-approve",
		shellEscape(execPath), shellEscape(name), shellEscape(agentID))
	return crontabMarkerPrefix + name + "\n" +
		strings.TrimSpace(schedule) + " " + cmd + " >> " + shellEscape(logPath) + " 2>&1"
}

// stripGrooveBlock removes the marker line for name and the schedule line
// right after it.
func stripGrooveBlock(crontab, name string) string {
	lines := strings.Split(crontab, "\n")
	var kept []string
	for i := 0; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == crontabMarkerPrefix+strings.TrimSpace(name) {
			i++ // skip the schedule line too
			continue
		}
		kept = append(kept, lines[i])
	}
	out := strings.Join(kept, "\n")
	return strings.TrimRight(out, "\n")
}

func appendBlock(crontab, block string) string {
	out := strings.TrimRight(crontab, "\n")
	if out != "" {
		out += "\n"
	}
	return out + block + "\n"
}

// shellEscape wraps s in single quotes, with embedded single quotes closed,
// backslash-escaped, and reopened.
func shellEscape(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func readCrontab() (string, error) {
	out, err := exec.Command("crontab", "-l").CombinedOutput()
	if err != nil {
		// A user without a crontab is not an error.
		if strings.Contains(strings.ToLower(string(out)), "no crontab") {
			return "", nil
		}
		return "", fmt.Errorf("crontab -l: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

func writeCrontab(content string) error {
	cmd := exec.Command("crontab", "-")
	cmd.Stdin = strings.NewReader(content)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("crontab -: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
