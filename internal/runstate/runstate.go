package runstate

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	successMarker = "last_successful_run.txt"
	failureMarker = "last_failed_run.txt"
)

// Manager persists run markers between monitor invocations so a restart
// resumes from where the previous run left off instead of re-reading a
// fixed window.
type Manager struct {
	dir string
}

func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

func (m *Manager) LastSuccessfulRun() (*time.Time, error) {
	return m.readMarker(successMarker)
}

func (m *Manager) LastFailedRun() (*time.Time, error) {
	return m.readMarker(failureMarker)
}

func (m *Manager) MarkSuccess(t time.Time) error {
	return m.writeMarker(successMarker, t)
}

func (m *Manager) MarkFailure(t time.Time) error {
	return m.writeMarker(failureMarker, t)
}

// LookbackSince decides how far back to fetch mailbox messages. First
// run uses the default window; afterwards the window starts at the last
// successful run, capped so an outage cannot trigger an unbounded
// backfill.
func (m *Manager) LookbackSince(now time.Time, defaultDays, maxDays int) (time.Time, error) {
	last, err := m.LastSuccessfulRun()
	if err != nil {
		return time.Time{}, err
	}
	if last == nil {
		return now.AddDate(0, 0, -defaultDays), nil
	}
	floor := now.AddDate(0, 0, -maxDays)
	if last.Before(floor) {
		return floor, nil
	}
	return *last, nil
}

func (m *Manager) readMarker(name string) (*time.Time, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
	if err != nil {
		// A corrupt marker is treated as absent rather than wedging
		// every subsequent run.
		return nil, nil
	}
	return &t, nil
}

func (m *Manager) writeMarker(name string, t time.Time) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return errors.Wrapf(err, "create state dir %s", m.dir)
	}
	path := filepath.Join(m.dir, name)
	if err := os.WriteFile(path, []byte(t.UTC().Format(time.RFC3339)+"\n"), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", name)
	}
	return nil
}
