package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/buildparity/internal/backend"
	"github.com/roach88/buildparity/internal/fixture"
)

func built(names map[backend.Backend]string) map[backend.Backend]*backend.Artifact {
	arts := make(map[backend.Backend]*backend.Artifact)
	for b, n := range names {
		arts[b] = &backend.Artifact{Name: n, Backend: b}
	}
	return arts
}

func TestChain_SingleStep(t *testing.T) {
	f := fixture.Fixture{Path: "/fx/simple", ID: "simple", Single: true, Steps: []fixture.Step{{Index: 0, File: "Dockerfile"}}}
	c := NewChain(f, "ignored")

	assert.Equal(t, StatePending, c.State())
	require.NoError(t, c.Start())
	assert.Equal(t, StateRunning, c.State())

	ref := c.Request(backend.Reference)
	assert.Equal(t, backend.BuildRequest{Backend: backend.Reference, Dir: "/fx/simple", Artifact: "simple_docker"}, ref)
	cand := c.Request(backend.Candidate)
	assert.Equal(t, "simple_compile", cand.Artifact)
	assert.Empty(t, cand.Base)
	assert.Empty(t, cand.Definition)

	more, err := c.Advance(built(map[backend.Backend]string{
		backend.Reference: "simple_docker",
		backend.Candidate: "simple_compile",
	}))
	require.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, StateCompleted, c.State())
}

func TestChain_BasesNeverCrossBackends(t *testing.T) {
	f := fixture.Fixture{
		Path: "/fx/chained",
		ID:   "chained",
		Steps: []fixture.Step{
			{Index: 1, File: "Dockerfile.1"},
			{Index: 2, File: "Dockerfile.2"},
			{Index: 3, File: "Dockerfile.3"},
		},
	}
	c := NewChain(f, "")
	require.NoError(t, c.Start())

	var prev map[backend.Backend]string
	for i := 0; ; i++ {
		step := c.Step()
		for _, b := range backend.All {
			req := c.Request(b)
			assert.Equal(t, f.ArtifactName(step.Index, b.Tag()), req.Artifact)
			assert.Equal(t, "/fx/chained/"+step.File, req.Definition)
			if i == 0 {
				assert.Empty(t, req.Base)
			} else {
				assert.Equal(t, prev[b], req.Base)
			}
		}

		prev = map[backend.Backend]string{
			backend.Reference: c.Request(backend.Reference).Artifact,
			backend.Candidate: c.Request(backend.Candidate).Artifact,
		}
		more, err := c.Advance(built(prev))
		require.NoError(t, err)
		if !more {
			break
		}
	}

	assert.Equal(t, StateCompleted, c.State())
	assert.Equal(t, "chained_3_docker", prev[backend.Reference])
}

func TestChain_InvalidTransitions(t *testing.T) {
	f := fixture.Fixture{ID: "x", Single: true, Steps: []fixture.Step{{Index: 0, File: "Dockerfile"}}}

	c := NewChain(f, "")
	_, err := c.Advance(nil)
	assert.Error(t, err, "advance before start")

	require.NoError(t, c.Start())
	assert.Error(t, c.Start(), "double start")

	_, err = c.Advance(map[backend.Backend]*backend.Artifact{
		backend.Reference: {Name: "x_docker", ExitCode: 1},
		backend.Candidate: {Name: "x_compile"},
	})
	assert.Error(t, err, "failed artifact cannot advance")

	c.Fail()
	assert.Equal(t, StateFailed, c.State())

	empty := NewChain(fixture.Fixture{ID: "empty"}, "")
	assert.Error(t, empty.Start())
}
