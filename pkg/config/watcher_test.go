package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatcher(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	t.Run("Should invoke callbacks when the file is written", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "taskref.yaml")
		require.NoError(t, os.WriteFile(path, []byte("a: 1"), 0o644))
		watcher, err := NewWatcher(t.Context())
		require.NoError(t, err)
		defer watcher.Close()

		var first, second atomic.Int32
		require.NoError(t, watcher.Add(path, func() { first.Add(1) }))
		require.NoError(t, watcher.Add(path, func() { second.Add(1) }))

		require.NoError(t, os.WriteFile(path, []byte("a: 2"), 0o644))
		assert.Eventually(t, func() bool {
			return first.Load() > 0 && second.Load() > 0
		}, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("Should notify when an editor replaces the file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "taskref.yaml")
		require.NoError(t, os.WriteFile(path, []byte("a: 1"), 0o644))
		watcher, err := NewWatcher(t.Context())
		require.NoError(t, err)
		defer watcher.Close()

		var calls atomic.Int32
		require.NoError(t, watcher.Add(path, func() { calls.Add(1) }))
		tmp := filepath.Join(dir, "taskref.yaml.swp")
		require.NoError(t, os.WriteFile(tmp, []byte("a: 2"), 0o644))
		require.NoError(t, os.Rename(tmp, path))
		assert.Eventually(t, func() bool { return calls.Load() > 0 }, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("Should ignore other files in the directory", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "taskref.yaml")
		require.NoError(t, os.WriteFile(path, []byte("a: 1"), 0o644))
		watcher, err := NewWatcher(t.Context())
		require.NoError(t, err)
		defer watcher.Close()

		var calls atomic.Int32
		require.NoError(t, watcher.Add(path, func() { calls.Add(1) }))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("b: 1"), 0o644))
		time.Sleep(100 * time.Millisecond)
		assert.Zero(t, calls.Load())
	})

	t.Run("Should stop notifying after Remove", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "taskref.yaml")
		require.NoError(t, os.WriteFile(path, []byte("a: 1"), 0o644))
		watcher, err := NewWatcher(t.Context())
		require.NoError(t, err)
		defer watcher.Close()

		var calls atomic.Int32
		require.NoError(t, watcher.Add(path, func() { calls.Add(1) }))
		watcher.Remove(path)
		require.NoError(t, os.WriteFile(path, []byte("a: 2"), 0o644))
		time.Sleep(100 * time.Millisecond)
		assert.Zero(t, calls.Load())
	})

	t.Run("Should fail for a missing directory", func(t *testing.T) {
		watcher, err := NewWatcher(t.Context())
		require.NoError(t, err)
		defer watcher.Close()
		err = watcher.Add(filepath.Join(t.TempDir(), "missing", "taskref.yaml"), func() {})
		assert.Error(t, err)
	})

	t.Run("Should close idempotently", func(t *testing.T) {
		watcher, err := NewWatcher(t.Context())
		require.NoError(t, err)
		require.NoError(t, watcher.Close())
		require.NoError(t, watcher.Close())
	})
}
