package harness

import (
	"fmt"

	"github.com/roach88/buildparity/internal/backend"
	"github.com/roach88/buildparity/internal/fixture"
)

// Chain is the per-fixture build state machine.
//
// It hands out one BuildRequest per backend for the current step. For chain
// fixtures the request's base is the artifact the same backend produced on
// the previous step; the first step uses no base, or the externally supplied
// initial base when one is set.
type Chain struct {
	fixture fixture.Fixture
	state   State
	current int

	// previous holds each backend's last completed artifact name. It stays
	// nil for single-step fixtures.
	previous map[backend.Backend]string
}

// NewChain creates a chain in the pending state. initialBase, when not
// empty, overrides the base image of the first step of a multi-step fixture;
// single-step fixtures never receive an override.
func NewChain(f fixture.Fixture, initialBase string) *Chain {
	c := &Chain{fixture: f, state: StatePending}
	if !f.Single {
		c.previous = make(map[backend.Backend]string, len(backend.All))
		if initialBase != "" {
			for _, b := range backend.All {
				c.previous[b] = initialBase
			}
		}
	}
	return c
}

// State returns the current state.
func (c *Chain) State() State {
	return c.state
}

// Start moves the chain from pending to running at the first step.
func (c *Chain) Start() error {
	if c.state != StatePending {
		return fmt.Errorf("chain for %s: cannot start from state %s", c.fixture.ID, c.state)
	}
	if len(c.fixture.Steps) == 0 {
		return fmt.Errorf("chain for %s: fixture has no steps", c.fixture.ID)
	}
	c.state = StateRunning
	c.current = 0
	return nil
}

// Step returns the step being executed.
func (c *Chain) Step() fixture.Step {
	return c.fixture.Steps[c.current]
}

// Request returns the build request for backend b at the current step.
func (c *Chain) Request(b backend.Backend) backend.BuildRequest {
	step := c.Step()
	req := backend.BuildRequest{
		Backend:  b,
		Dir:      c.fixture.Path,
		Artifact: c.fixture.ArtifactName(step.Index, b.Tag()),
	}
	if c.fixture.Single {
		return req
	}
	req.Definition = c.fixture.DefinitionPath(step)
	req.Base = c.previous[b]
	return req
}

// Advance records the artifacts built by each backend for the current step
// and moves to the next step. It returns false once the last step has
// completed, leaving the chain in the completed state.
func (c *Chain) Advance(built map[backend.Backend]*backend.Artifact) (bool, error) {
	if c.state != StateRunning {
		return false, fmt.Errorf("chain for %s: cannot advance from state %s", c.fixture.ID, c.state)
	}
	for _, b := range backend.All {
		art := built[b]
		if !art.Succeeded() {
			return false, fmt.Errorf("chain for %s: step %d has no successful %s artifact", c.fixture.ID, c.Step().Index, b)
		}
		if c.previous != nil {
			c.previous[b] = art.Name
		}
	}

	if c.current == len(c.fixture.Steps)-1 {
		c.state = StateCompleted
		return false, nil
	}
	c.current++
	return true, nil
}

// Fail moves the chain to the failed state.
func (c *Chain) Fail() {
	c.state = StateFailed
}
