package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchCmd(t *testing.T) {
	t.Run("Should recheck with the new limits when the config file changes", func(t *testing.T) {
		dir := writePipeline(t, map[string]string{"main.json": `{"Rep": {"next": ["A*3"]}, "A": {}}`})
		configPath := filepath.Join(t.TempDir(), "taskref.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("resolver:\n  max_expansion: 100\n"), 0o644))

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()
		out := &syncBuffer{}
		cmd := RootCmd()
		cmd.SetOut(out)
		cmd.SetErr(io.Discard)
		cmd.SetArgs([]string{
			"watch",
			"--root", dir,
			"--config", configPath,
			"--env-file", filepath.Join(dir, "missing.env"),
			"--log-level", "disabled",
			"--no-color",
			"--debounce", "10ms",
		})
		done := make(chan error, 1)
		go func() { done <- cmd.ExecuteContext(ctx) }()

		assert.Eventually(t, func() bool {
			return strings.Contains(out.String(), "0 with problems")
		}, 5*time.Second, 10*time.Millisecond)

		require.NoError(t, os.WriteFile(configPath, []byte("resolver:\n  max_expansion: 2\n"), 0o644))
		assert.Eventually(t, func() bool {
			return strings.Contains(out.String(), "1 with problems")
		}, 5*time.Second, 10*time.Millisecond)
		assert.Contains(t, out.String(), "exceeds the limit of 2")

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("watch did not stop after cancel")
		}
	})
}
