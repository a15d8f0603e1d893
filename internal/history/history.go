package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jazz/internal/util"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// RunRecord is one execution attempt of a groove, start through completion
// or failure. The latest running record per groove is the only one ever
// mutated; everything else is append-only.
type RunRecord struct {
	Groove      string     `json:"groove"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	TriggeredBy string     `json:"triggered_by"`
}

// Update carries the fields merged into a running record on completion.
type Update struct {
	CompletedAt *time.Time
	Status      string
	Error       string
}

const (
	// RetentionCap bounds the history file; the oldest records are dropped
	// first once the cap is exceeded.
	RetentionCap = 100

	lockStaleAfter = 10 * time.Second
	lockRetryDelay = 100 * time.Millisecond
	lockAttempts   = 50
)

var ErrLockTimeout = errors.New("history lock: timed out waiting for holder")

// Store persists run records as a JSON array at Path, guarded cross-process
// by a lock directory at LockPath.
type Store struct {
	Path     string
	LockPath string
}

func NewStore(path, lockPath string) *Store {
	return &Store{Path: strings.TrimSpace(path), LockPath: strings.TrimSpace(lockPath)}
}

// Load reads the full history. A missing file is an empty history, and so is
// structurally bad content; only other read errors propagate.
func (s *Store) Load() ([]RunRecord, error) {
	if strings.TrimSpace(s.Path) == "" {
		return nil, errors.New("history path is empty")
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var records []RunRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, nil
	}
	return records, nil
}

// Append records a new run attempt, trimming the oldest entries past the
// retention cap.
func (s *Store) Append(rec RunRecord) error {
	return s.withLock(func() error {
		records, err := s.Load()
		if err != nil {
			return err
		}
		records = append(records, rec)
		if len(records) > RetentionCap {
			records = records[len(records)-RetentionCap:]
		}
		return util.WriteJSONAtomic(s.Path, records)
	})
}

// PatchLatestRunning merges update into the most recent running record for
// the named groove. No matching record is a silent no-op; a record is never
// fabricated.
func (s *Store) PatchLatestRunning(groove string, update Update) error {
	want := strings.TrimSpace(groove)
	if want == "" {
		return errors.New("groove name is required")
	}
	return s.withLock(func() error {
		records, err := s.Load()
		if err != nil {
			return err
		}
		for i := len(records) - 1; i >= 0; i-- {
			if records[i].Groove != want || records[i].Status != StatusRunning {
				continue
			}
			if update.CompletedAt != nil {
				records[i].CompletedAt = update.CompletedAt
			}
			if update.Status != "" {
				records[i].Status = update.Status
			}
			if update.Error != "" {
				records[i].Error = update.Error
			}
			return util.WriteJSONAtomic(s.Path, records)
		}
		return nil
	})
}

// Query returns every record for the named groove, oldest first.
func (s *Store) Query(groove string) ([]RunRecord, error) {
	records, err := s.Load()
	if err != nil {
		return nil, err
	}
	want := strings.TrimSpace(groove)
	var out []RunRecord
	for _, rec := range records {
		if rec.Groove == want {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Recent returns up to limit of the newest records, newest last.
func (s *Store) Recent(limit int) ([]RunRecord, error) {
	records, err := s.Load()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

// withLock brackets fn in acquire/release of the lock directory. Presence of
// the directory means held; a directory older than the staleness timeout is
// presumed abandoned and reclaimed.
func (s *Store) withLock(fn func() error) error {
	if strings.TrimSpace(s.LockPath) == "" {
		return errors.New("history lock path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(s.LockPath), 0o755); err != nil {
		return err
	}
	acquired := false
	for attempt := 0; attempt < lockAttempts; attempt++ {
		err := os.Mkdir(s.LockPath, 0o755)
		if err == nil {
			acquired = true
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return err
		}
		if info, statErr := os.Stat(s.LockPath); statErr == nil {
			if time.Since(info.ModTime()) > lockStaleAfter {
				_ = os.Remove(s.LockPath)
				continue
			}
		}
		time.Sleep(lockRetryDelay)
	}
	if !acquired {
		return fmt.Errorf("%w: %s", ErrLockTimeout, s.LockPath)
	}
	defer os.Remove(s.LockPath)
	return fn()
}
