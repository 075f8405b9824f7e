package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, "", args...)
}

func executeWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetIn(strings.NewReader(input))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), err
}

// testConfig writes a config with fast demo delays and a temp journal and
// returns the config and journal paths.
func testConfig(t *testing.T) (cfgPath, dbPath string) {
	t.Helper()
	t.Setenv("ASYNCACTION_LOG_LEVEL", "")
	t.Setenv("ASYNCACTION_DB", "")
	t.Setenv("ASYNCACTION_MAX_STEPS", "")

	dir := t.TempDir()
	dbPath = filepath.Join(dir, "journal.db")
	cfgPath = filepath.Join(dir, "asyncaction.yaml")

	content := `logging:
  level: error
journal:
  enabled: true
  path: ` + dbPath + `
demo:
  data: X
  delay: 1ms
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))
	return cfgPath, dbPath
}
