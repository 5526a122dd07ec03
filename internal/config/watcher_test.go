package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileWatcherReloadsOnWrite(t *testing.T) {
	path := writeProfiles(t, sampleProfiles)
	var calls atomic.Int32
	w, err := NewProfileWatcher(path, 20*time.Millisecond, func() {
		calls.Add(1)
	})
	require.NoError(t, err)
	w.Start()
	t.Cleanup(w.Stop)

	require.NoError(t, os.WriteFile(path, []byte(sampleProfiles+"\n"), 0o600))
	assert.Eventually(t, func() bool { return calls.Load() >= 1 },
		5*time.Second, 10*time.Millisecond)
}

func TestProfileWatcherIgnoresOtherFiles(t *testing.T) {
	path := writeProfiles(t, sampleProfiles)
	w, err := NewProfileWatcher(path, time.Hour, func() {})
	require.NoError(t, err)
	t.Cleanup(func() { w.watcher.Close() })

	w.handleEvent(fsnotify.Event{
		Name: filepath.Join(filepath.Dir(path), "other.toml"),
		Op:   fsnotify.Write,
	})
	assert.True(t, w.pending.IsZero())

	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Chmod})
	assert.True(t, w.pending.IsZero())

	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Rename})
	assert.False(t, w.pending.IsZero())
}

func TestProfileWatcherDebounces(t *testing.T) {
	path := writeProfiles(t, sampleProfiles)
	calls := 0
	w, err := NewProfileWatcher(path, time.Second, func() { calls++ })
	require.NoError(t, err)
	t.Cleanup(func() { w.watcher.Close() })

	now := time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }
	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Write})

	w.flush()
	assert.Equal(t, 0, calls, "flush before debounce elapses")

	now = now.Add(2 * time.Second)
	w.flush()
	w.flush()
	assert.Equal(t, 1, calls)
}

func TestProfileWatcherRejectsNilCallback(t *testing.T) {
	_, err := NewProfileWatcher("connections.toml", time.Second, nil)
	assert.ErrorIs(t, err, os.ErrInvalid)
}
