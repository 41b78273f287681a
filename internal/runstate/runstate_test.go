package runstate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMarkersRoundTrip(t *testing.T) {
	m := NewManager(t.TempDir())

	none, err := m.LastSuccessfulRun()
	require.NoError(t, err)
	require.Nil(t, none)

	at := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)
	require.NoError(t, m.MarkSuccess(at))

	got, err := m.LastSuccessfulRun()
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.Equal(at))

	require.NoError(t, m.MarkFailure(at.Add(time.Hour)))
	failed, err := m.LastFailedRun()
	require.NoError(t, err)
	require.True(t, failed.Equal(at.Add(time.Hour)))
}

func TestLookbackSinceFirstRunUsesDefault(t *testing.T) {
	m := NewManager(t.TempDir())
	now := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)

	since, err := m.LookbackSince(now, 7, 30)
	require.NoError(t, err)
	require.Equal(t, now.AddDate(0, 0, -7), since)
}

func TestLookbackSinceResumesFromLastRun(t *testing.T) {
	m := NewManager(t.TempDir())
	now := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)
	require.NoError(t, m.MarkSuccess(now.AddDate(0, 0, -2)))

	since, err := m.LookbackSince(now, 7, 30)
	require.NoError(t, err)
	require.True(t, since.Equal(now.AddDate(0, 0, -2)))
}

func TestLookbackSinceCappedAtMax(t *testing.T) {
	m := NewManager(t.TempDir())
	now := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)
	require.NoError(t, m.MarkSuccess(now.AddDate(0, 0, -90)))

	since, err := m.LookbackSince(now, 7, 30)
	require.NoError(t, err)
	require.True(t, since.Equal(now.AddDate(0, 0, -30)))
}

func TestCorruptMarkerTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "last_successful_run.txt"), []byte("not a timestamp"), 0o644))

	got, err := m.LastSuccessfulRun()
	require.NoError(t, err)
	require.Nil(t, got)
}
