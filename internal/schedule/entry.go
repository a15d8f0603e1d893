package schedule

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"jazz/internal/util"
)

// Entry mirrors an OS-level schedule registration. The file under the
// schedules directory exists and matches the OS registration only after the
// launchctl/crontab call has succeeded.
type Entry struct {
	Groove   string `json:"groove"`
	Schedule string `json:"schedule"`
	Agent    string `json:"agent"`
	Enabled  bool   `json:"enabled"`
}

// entryStore keeps one JSON file per groove name under Dir and is the source
// of truth for List/IsScheduled on every platform.
type entryStore struct {
	Dir string
}

func (s entryStore) path(name string) string {
	return filepath.Join(s.Dir, strings.TrimSpace(name)+".json")
}

func (s entryStore) write(e Entry) error {
	if strings.TrimSpace(e.Groove) == "" {
		return errors.New("entry groove name is empty")
	}
	return util.WriteJSONAtomic(s.path(e.Groove), e)
}

func (s entryStore) remove(name string) error {
	err := os.Remove(s.path(name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// list returns every well-formed entry; malformed or incomplete files are
// skipped silently.
func (s entryStore) list() ([]Entry, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []Entry
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.Dir, ent.Name()))
		if err != nil {
			continue
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		if strings.TrimSpace(e.Groove) == "" || strings.TrimSpace(e.Schedule) == "" {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s entryStore) isScheduled(name string) (bool, error) {
	entries, err := s.list()
	if err != nil {
		return false, err
	}
	want := strings.TrimSpace(name)
	for _, e := range entries {
		if e.Groove == want {
			return true, nil
		}
	}
	return false, nil
}
