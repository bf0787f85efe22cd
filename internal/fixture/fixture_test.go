package fixture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"simple", "simple"},
		{"with-dash", "with_dash"},
		{"a/b.c", "a_b_c"},
		{"keep_underscore", "keep_underscore"},
		{"MixedCase09", "MixedCase09"},
		{"spaces and+plus", "spaces_and_plus"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeIdentifier(tt.path))
		})
	}
}

func TestSanitizeIdentifier_PreservesDistinctSurvivingCharacters(t *testing.T) {
	assert.NotEqual(t, SanitizeIdentifier("a/bc"), SanitizeIdentifier("a/bd"))
	assert.Equal(t, SanitizeIdentifier("a/b-c"), SanitizeIdentifier("a/b_c"), "lossy mapping is a known ambiguity")
}

func TestArtifactName(t *testing.T) {
	f := Fixture{ID: "Chained"}

	assert.Equal(t, "chained_docker", f.ArtifactName(0, "docker"))
	assert.Equal(t, "chained_2_compile", f.ArtifactName(2, "compile"))
}

func TestDiscover_SingleStep(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "simple", "Dockerfile"), "FROM busybox\n")

	fixtures, err := Discover(root)
	require.NoError(t, err)
	require.Len(t, fixtures, 1)

	f := fixtures[0]
	assert.Equal(t, "simple", f.ID)
	assert.Equal(t, "simple", f.RelPath)
	assert.True(t, f.Single)
	assert.Equal(t, []Step{{Index: 0, File: "Dockerfile"}}, f.Steps)
	assert.Equal(t, filepath.Join(f.Path, "Dockerfile"), f.DefinitionPath(f.LastStep()))
}

func TestDiscover_ChainSortedCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "chained")
	writeFile(t, filepath.Join(dir, "Dockerfile.2"), "FROM base\n")
	writeFile(t, filepath.Join(dir, "Dockerfile.1"), "FROM busybox\n")
	writeFile(t, filepath.Join(dir, "dockerfile.3"), "FROM base\n")
	writeFile(t, filepath.Join(dir, "README"), "not a definition\n")

	fixtures, err := Discover(root)
	require.NoError(t, err)
	require.Len(t, fixtures, 1)

	f := fixtures[0]
	assert.False(t, f.Single)
	assert.Equal(t, []Step{
		{Index: 1, File: "Dockerfile.1"},
		{Index: 2, File: "Dockerfile.2"},
		{Index: 3, File: "dockerfile.3"},
	}, f.Steps)
}

func TestDiscover_SymlinkedDockerfileIsNotSingleStep(t *testing.T) {
	root := t.TempDir()
	shared := filepath.Join(root, "shared.txt")
	writeFile(t, shared, "FROM busybox\n")

	dir := filepath.Join(root, "linked")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.Symlink(shared, filepath.Join(dir, "Dockerfile")))

	fixtures, err := Discover(root)
	require.NoError(t, err)
	require.Len(t, fixtures, 1)

	f := fixtures[0]
	assert.False(t, f.Single)
	assert.Equal(t, []Step{{Index: 1, File: "Dockerfile"}}, f.Steps)
}

func TestDiscover_IgnoresFilesAndIsNonRecursive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "top-level-file"), "x")
	writeFile(t, filepath.Join(root, "outer", "Dockerfile"), "FROM busybox\n")
	writeFile(t, filepath.Join(root, "outer", "inner", "Dockerfile"), "FROM busybox\n")

	fixtures, err := Discover(root)
	require.NoError(t, err)
	require.Len(t, fixtures, 1)
	assert.Equal(t, "outer", fixtures[0].ID)
}

func TestDiscover_StableOrder(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		writeFile(t, filepath.Join(root, name, "Dockerfile"), "FROM busybox\n")
	}

	fixtures, err := Discover(root)
	require.NoError(t, err)
	require.Len(t, fixtures, 3)
	assert.Equal(t, "alpha", fixtures[0].ID)
	assert.Equal(t, "mid", fixtures[1].ID)
	assert.Equal(t, "zeta", fixtures[2].ID)
}

func TestDiscover_Errors(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		_, err := Discover(filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
		assert.True(t, IsDiscoveryError(err))

		var de *DiscoveryError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, ErrCodeRootNotFound, de.Code)
	})

	t.Run("root is a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file")
		writeFile(t, path, "x")

		_, err := Discover(path)
		var de *DiscoveryError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, ErrCodeRootNotDirectory, de.Code)
	})

	t.Run("duplicate identifier", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "a-b", "Dockerfile"), "FROM busybox\n")
		writeFile(t, filepath.Join(root, "a_b", "Dockerfile"), "FROM busybox\n")

		_, err := Discover(root)
		var de *DiscoveryError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, ErrCodeDuplicateIdentifier, de.Code)
	})

	t.Run("identifiers differing only in case", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "Simple", "Dockerfile"), "FROM busybox\n")
		writeFile(t, filepath.Join(root, "simple", "Dockerfile"), "FROM busybox\n")

		entries, err := os.ReadDir(root)
		require.NoError(t, err)
		if len(entries) < 2 {
			t.Skip("case-insensitive filesystem")
		}

		_, err = Discover(root)
		var de *DiscoveryError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, ErrCodeDuplicateIdentifier, de.Code)
	})

	t.Run("chain step artifact matches another fixture", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "a", "Dockerfile.1"), "FROM busybox\n")
		writeFile(t, filepath.Join(root, "a", "Dockerfile.2"), "FROM busybox\n")
		writeFile(t, filepath.Join(root, "a-1", "Dockerfile"), "FROM busybox\n")

		_, err := Discover(root)
		var de *DiscoveryError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, ErrCodeDuplicateArtifact, de.Code)
		assert.Contains(t, de.Message, "a_1_*")
	})

	t.Run("distinct artifact names", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "a", "Dockerfile.1"), "FROM busybox\n")
		writeFile(t, filepath.Join(root, "a_2", "Dockerfile"), "FROM busybox\n")

		fixtures, err := Discover(root)
		require.NoError(t, err)
		assert.Len(t, fixtures, 2)
	})

	t.Run("no definitions", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "empty", "notes.txt"), "x")

		_, err := Discover(root)
		var de *DiscoveryError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, ErrCodeNoDefinitions, de.Code)
	})
}

func TestFilter(t *testing.T) {
	fixtures := []Fixture{
		{ID: "cart_add", RelPath: "cart-add"},
		{ID: "cart_remove", RelPath: "cart-remove"},
		{ID: "env", RelPath: "env"},
	}

	kept, err := Filter(fixtures, "cart-*")
	require.NoError(t, err)
	assert.Len(t, kept, 2)

	kept, err = Filter(fixtures, "env")
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "env", kept[0].ID)

	kept, err = Filter(fixtures, "cart_{add,checkout}")
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "cart_add", kept[0].ID)

	kept, err = Filter(fixtures, "")
	require.NoError(t, err)
	assert.Len(t, kept, 3)

	_, err = Filter(fixtures, "[")
	assert.Error(t, err)
}
