package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/buildparity/internal/config"
	"github.com/roach88/buildparity/internal/testutil"
)

// workspace is a fixtures tree plus a configuration file pointing the
// harness at the fake engine.
type workspace struct {
	dir         string
	fixtures    string
	results     string
	historyPath string
	config      string
	engine      *testutil.FakeEngine
}

func newWorkspace(t *testing.T, fixtures map[string]map[string]string) *workspace {
	t.Helper()
	t.Setenv(config.EnvReference, "")
	t.Setenv(config.EnvCandidate, "")

	dir := t.TempDir()
	ws := &workspace{
		dir:         dir,
		fixtures:    filepath.Join(dir, "tests"),
		results:     filepath.Join(dir, "results"),
		historyPath: filepath.Join(dir, "history.db"),
		config:      filepath.Join(dir, "buildparity.yaml"),
		engine:      testutil.NewFakeEngine(),
	}
	require.NoError(t, os.MkdirAll(ws.fixtures, 0755))
	for name, files := range fixtures {
		for file, content := range files {
			path := filepath.Join(ws.fixtures, name, file)
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		}
	}
	ws.writeConfig(t, "")
	return ws
}

// writeConfig rewrites the configuration file, appending extra YAML.
func (ws *workspace) writeConfig(t *testing.T, extra string) {
	t.Helper()
	cfg := fmt.Sprintf(`reference: %s
candidate: %s
fixtures: tests
results: results
history: history.db
%s`, testutil.ReferenceBinary, testutil.CandidateBinary, extra)
	require.NoError(t, os.WriteFile(ws.config, []byte(cfg), 0644))
}

func (ws *workspace) rootOptions(format string) *RootOptions {
	return &RootOptions{Format: format, Config: ws.config}
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func (ws *workspace) run(format string, args ...string) (string, error) {
	cmd := newRunCommand(&RunOptions{RootOptions: ws.rootOptions(format), Runner: ws.engine})
	return execute(cmd, args...)
}

func single(content string) map[string]string {
	return map[string]string{"Dockerfile": content}
}

func chain(steps ...string) map[string]string {
	files := make(map[string]string, len(steps))
	for i, s := range steps {
		files[fmt.Sprintf("Dockerfile.%d", i+1)] = s
	}
	return files
}
