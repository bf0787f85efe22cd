package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "buildparity.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func noEnv(string) (string, bool) { return "", false }

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/usr/bin/docker", cfg.Reference)
	assert.Equal(t, "-f", cfg.CandidateFileFlag)
	assert.True(t, cfg.ExtractResults)
	assert.Zero(t, cfg.BuildTimeout)
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv(EnvReference, "")
	t.Setenv(EnvCandidate, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	t.Setenv(EnvReference, "")
	t.Setenv(EnvCandidate, "")
	path := writeConfig(t, `
reference: /opt/docker
candidate: ./bin/docker-compile.pl
candidate_file_flag: --file
fixtures: cases
results: /var/tmp/results
parallel_backends: true
extract_results: false
build_timeout: 90s
history: history.db
chain_base: alpine:3.20
`)
	dir := filepath.Dir(path)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/docker", cfg.Reference)
	assert.Equal(t, filepath.Join(dir, "bin", "docker-compile.pl"), cfg.Candidate)
	assert.Equal(t, "--file", cfg.CandidateFileFlag)
	assert.Equal(t, filepath.Join(dir, "cases"), cfg.Fixtures)
	assert.Equal(t, "/var/tmp/results", cfg.Results)
	assert.True(t, cfg.ParallelBackends)
	assert.False(t, cfg.ExtractResults)
	assert.Equal(t, 90*time.Second, cfg.BuildTimeout)
	assert.Equal(t, filepath.Join(dir, "history.db"), cfg.History)
	assert.Equal(t, "alpine:3.20", cfg.ChainBase)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	t.Setenv(EnvReference, "")
	t.Setenv(EnvCandidate, "")
	path := writeConfig(t, "candidate: docker-compile2\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "docker-compile2", cfg.Candidate)
	assert.Equal(t, "/usr/bin/docker", cfg.Reference)
	assert.True(t, cfg.ExtractResults)
}

func TestLoad_EmptyFile(t *testing.T) {
	t.Setenv(EnvReference, "")
	t.Setenv(EnvCandidate, "")
	path := writeConfig(t, "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "docker-compile", cfg.Candidate)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "reference: /opt/docker\n")
	t.Setenv(EnvReference, "/usr/local/bin/podman")
	t.Setenv(EnvCandidate, "/usr/local/bin/compile")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/podman", cfg.Reference)
	assert.Equal(t, "/usr/local/bin/compile", cfg.Candidate)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv(EnvReference, "")
	t.Setenv(EnvCandidate, "")

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := Load(writeConfig(t, "refrence: /usr/bin/docker\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse YAML")
	})

	t.Run("bad duration", func(t *testing.T) {
		_, err := Load(writeConfig(t, "build_timeout: soon\n"))
		require.Error(t, err)
	})

	t.Run("empty reference", func(t *testing.T) {
		_, err := Load(writeConfig(t, "reference: \"\"\n"))
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
	})

	t.Run("file flag without dash", func(t *testing.T) {
		_, err := Load(writeConfig(t, "candidate_file_flag: f\n"))
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
	})

	t.Run("negative timeout", func(t *testing.T) {
		_, err := Load(writeConfig(t, "build_timeout: -1s\n"))
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
	})
}

func TestWithEnv(t *testing.T) {
	cfg := Default().WithEnv(func(key string) (string, bool) {
		if key == EnvCandidate {
			return "/tmp/compile", true
		}
		return "", false
	})
	assert.Equal(t, "/tmp/compile", cfg.Candidate)
	assert.Equal(t, "/usr/bin/docker", cfg.Reference)

	assert.Equal(t, Default(), Default().WithEnv(noEnv))
}

func TestDriverAndHarness(t *testing.T) {
	cfg := Default()
	cfg.TempDir = "/tmp/defs"
	cfg.BuildTimeout = time.Minute
	cfg.ParallelBackends = true
	cfg.ChainBase = "busybox"

	d := cfg.Driver()
	assert.Equal(t, cfg.Reference, d.Reference)
	assert.Equal(t, cfg.Candidate, d.Candidate)
	assert.Equal(t, "-f", d.CandidateFileFlag)
	assert.Equal(t, "/tmp/defs", d.TempDir)
	assert.Equal(t, time.Minute, d.BuildTimeout)

	h := cfg.Harness()
	assert.Equal(t, "results", h.ResultsRoot)
	assert.True(t, h.ExtractResults)
	assert.True(t, h.ParallelBackends)
	assert.Equal(t, "busybox", h.ChainBase)
}
