package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `{
  "Start": {"next": ["A", "B#next"], "maxTimes": 1},
  "A": {"next": ["Stop"]},
  "B": {"next": ["C", "A"]},
  "C": {},
  "Stop": {},
  "Fight@A": {"maxTimes": 3}
}`

func writePipeline(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func execute(t *testing.T, dir string, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := RootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args,
		"--root", dir,
		"--config", filepath.Join(dir, "missing.yaml"),
		"--env-file", filepath.Join(dir, "missing.env"),
		"--log-level", "disabled",
		"--no-color",
	))
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestExpandCmd(t *testing.T) {
	dir := writePipeline(t, map[string]string{"main.json": fixture})

	t.Run("Should print one task per line in text mode", func(t *testing.T) {
		out, err := execute(t, dir, "", "expand", "A+B+A", "--format", "text")
		require.NoError(t, err)
		assert.Equal(t, "A\nB\n", out)
	})

	t.Run("Should keep duplicates on request", func(t *testing.T) {
		out, err := execute(t, dir, "", "expand", "(A+B)*2", "--keep-duplicates", "--format", "text")
		require.NoError(t, err)
		assert.Equal(t, "A\nB\nA\nB\n", out)
	})

	t.Run("Should dereference virtual properties", func(t *testing.T) {
		out, err := execute(t, dir, "", "expand", "B#next", "--format", "json")
		require.NoError(t, err)
		assert.Equal(t, "[\"C\",\"A\"]\n", out)
	})

	t.Run("Should fail on syntax errors", func(t *testing.T) {
		_, err := execute(t, dir, "", "expand", "A+")
		assert.Error(t, err)
	})
}

func TestResolveCmd(t *testing.T) {
	dir := writePipeline(t, map[string]string{"main.json": fixture})

	t.Run("Should select fields of the merged task", func(t *testing.T) {
		out, err := execute(t, dir, "", "resolve", "Fight@A", "--format", "json", "--field", "task.maxTimes")
		require.NoError(t, err)
		assert.Equal(t, "3\n", out)

		out, err = execute(t, dir, "", "resolve", "Fight@A", "--format", "json", "--field", "task.next")
		require.NoError(t, err)
		assert.Equal(t, "[\"Fight@Stop\"]\n", out)
	})

	t.Run("Should print provenance", func(t *testing.T) {
		out, err := execute(t, dir, "", "resolve", "Start", "--trace", "--format", "text")
		require.NoError(t, err)
		assert.Contains(t, out, "maxTimes")
		assert.Contains(t, out, "main.json:")
		assert.Contains(t, out, "(Start)")
	})

	t.Run("Should fail for unknown tasks", func(t *testing.T) {
		_, err := execute(t, dir, "", "resolve", "Nope")
		assert.Error(t, err)
	})

	t.Run("Should reject unknown fields", func(t *testing.T) {
		_, err := execute(t, dir, "", "resolve", "A", "--field", "task.nothing")
		assert.ErrorContains(t, err, "not found")
	})
}

func TestParseCmd(t *testing.T) {
	t.Run("Should print the canonical form and tree", func(t *testing.T) {
		out, err := execute(t, t.TempDir(), "", "parse", "A+B*2", "--format", "json")
		require.NoError(t, err)
		assert.Contains(t, out, `"canonical":`)
		assert.Contains(t, out, `"tree":`)
	})
}

func TestListCmd(t *testing.T) {
	dir := writePipeline(t, map[string]string{"main.json": fixture, "extra/more.json": `{"Z": {}}`})

	t.Run("Should list task names", func(t *testing.T) {
		out, err := execute(t, dir, "", "list", "--format", "text")
		require.NoError(t, err)
		assert.Equal(t, "A\nB\nC\nFight@A\nStart\nStop\nZ\n", out)
	})

	t.Run("Should list files", func(t *testing.T) {
		out, err := execute(t, dir, "", "list", "--files", "--format", "text")
		require.NoError(t, err)
		assert.Equal(t, "extra/more.json\nmain.json\n", out)
	})
}

func TestCheckCmd(t *testing.T) {
	t.Run("Should pass a consistent pipeline", func(t *testing.T) {
		dir := writePipeline(t, map[string]string{"main.json": fixture})
		out, err := execute(t, dir, "", "check", "--format", "text")
		require.NoError(t, err)
		assert.Contains(t, out, "6 tasks in 1 files, 0 with problems")
	})

	t.Run("Should report broken references and fail", func(t *testing.T) {
		dir := writePipeline(t, map[string]string{
			"main.json": `{"Broken": {"next": ["Missing#next"]}, "Child": {"baseTask": "Ghost"}, "Ok": {}}`,
		})
		out, err := execute(t, dir, "", "check", "--format", "text", "--workers", "2")
		require.ErrorIs(t, err, ErrCheckFailed)
		assert.Contains(t, out, "Broken")
		assert.Contains(t, out, "[task_not_found]")
		assert.Contains(t, out, "warning [base_task_not_found]")
		assert.NotContains(t, out, "\nChild\n")
	})

	t.Run("Should emit a JSON report", func(t *testing.T) {
		dir := writePipeline(t, map[string]string{"main.json": `{"Loop": {"next": ["Loop#next"]}}`})
		out, err := execute(t, dir, "", "check", "--format", "json")
		require.ErrorIs(t, err, ErrCheckFailed)
		assert.Contains(t, out, `"task":"Loop"`)
		assert.Contains(t, out, `"kind":"expr_cycle"`)
	})

	t.Run("Should count unreadable files as failures", func(t *testing.T) {
		dir := writePipeline(t, map[string]string{"main.json": fixture, "bad.json": `{`})
		out, err := execute(t, dir, "", "check", "--format", "text")
		require.ErrorIs(t, err, ErrCheckFailed)
		assert.Contains(t, out, "bad.json")
	})
}

func TestReplCmd(t *testing.T) {
	dir := writePipeline(t, map[string]string{"main.json": fixture})

	t.Run("Should evaluate lines and commands", func(t *testing.T) {
		script := "A+B\n:self B\n#self\n:task C\n:clear\n:bogus\n:quit\nA\n"
		out, err := execute(t, dir, script, "repl", "--format", "text")
		require.NoError(t, err)
		assert.Contains(t, out, "taskref> A\nB\n")
		assert.Contains(t, out, `self = "B"`)
		assert.Contains(t, out, "taskref> B\n")
		assert.Contains(t, out, `"name": "C"`)
		assert.Contains(t, out, "cache cleared")
		assert.Contains(t, out, "unknown command :bogus")
		assert.True(t, strings.HasSuffix(out, "taskref> "))
	})
}

func TestConfigCmd(t *testing.T) {
	t.Run("Should show values with their sources", func(t *testing.T) {
		dir := t.TempDir()
		out, err := execute(t, dir, "", "config", "--format", "text", "--workers", "7")
		require.NoError(t, err)
		assert.Contains(t, out, "autoload.root")
		assert.Regexp(t, `cli\.workers\s+7\s+cli\s+TASKREF_CLI_WORKERS`, out)
		assert.Regexp(t, `resolver\.max_expansion\s+100000\s+default`, out)
	})

	t.Run("Should read the config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "taskref.yaml")
		require.NoError(t, os.WriteFile(path, []byte("resolver:\n  max_expansion: 5\n"), 0o644))
		cmd := RootCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"config", "--config", path, "--format", "text", "--log-level", "disabled"})
		require.NoError(t, cmd.ExecuteContext(t.Context()))
		assert.Regexp(t, `resolver\.max_expansion\s+5\s+yaml`, out.String())
	})
}
