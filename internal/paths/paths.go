package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// Jazz keeps all of its state under a single data directory.
// Precedence: JAZZ_DATA_DIR env var > ~/.jazz
func DataDir() (string, error) {
	if env := strings.TrimSpace(os.Getenv("JAZZ_DATA_DIR")); env != "" {
		return filepath.Abs(env)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".jazz"), nil
}

func HistoryPath(dataDir string) string {
	return filepath.Join(dataDir, "run-history.json")
}

func HistoryLockPath(dataDir string) string {
	return filepath.Join(dataDir, "run-history.lock")
}

func SchedulesDir(dataDir string) string {
	return filepath.Join(dataDir, "schedules")
}

func GroovesDir(dataDir string) string {
	return filepath.Join(dataDir, "grooves")
}

func LogsDir(dataDir string) string {
	return filepath.Join(dataDir, "logs")
}

func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config.yaml")
}

// LaunchAgentsDir returns the per-user launchd agents directory on macOS.
func LaunchAgentsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "LaunchAgents"), nil
}
