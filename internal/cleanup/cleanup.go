// Package cleanup tracks the artifacts created while a fixture runs and
// removes them afterwards.
//
// Cleanup is best-effort: a failed removal becomes a Warning that is logged
// and returned, never an error, so it cannot mask the fixture's own verdict.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Remover deletes one artifact from the backend's store.
type Remover interface {
	Remove(ctx context.Context, artifact string) error
}

// Warning records an artifact that could not be removed.
type Warning struct {
	Artifact string `json:"artifact"`
	Err      error  `json:"-"`
	Message  string `json:"message"`
}

// Error implements the error interface so warnings can be logged and
// inspected like other failure kinds.
func (w Warning) Error() string {
	return fmt.Sprintf("cleanup of %s failed: %s", w.Artifact, w.Message)
}

func (w Warning) Unwrap() error {
	return w.Err
}

// Registry records artifact names for one fixture run.
//
// Thread-safety: Register may be called from concurrent backend builds.
type Registry struct {
	remover Remover
	logger  *slog.Logger

	mu      sync.Mutex
	names   []string
	seen    map[string]bool
	removed map[string]bool
}

// NewRegistry creates an empty registry. A nil logger falls back to
// slog.Default.
func NewRegistry(remover Remover, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		remover: remover,
		logger:  logger,
		seen:    make(map[string]bool),
		removed: make(map[string]bool),
	}
}

// Register records an artifact for removal. Duplicate names are ignored.
func (r *Registry) Register(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[name] {
		return
	}
	r.seen[name] = true
	r.names = append(r.names, name)
}

// Names returns the registered artifact names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

// CleanupAll removes every registered artifact that has not been removed yet.
// Failures are logged and returned as warnings; removal continues past them.
// Calling it again only retries the artifacts that failed.
func (r *Registry) CleanupAll(ctx context.Context) []Warning {
	r.mu.Lock()
	pending := make([]string, 0, len(r.names))
	for _, name := range r.names {
		if !r.removed[name] {
			pending = append(pending, name)
		}
	}
	r.mu.Unlock()

	var warnings []Warning
	for _, name := range pending {
		if err := r.remover.Remove(ctx, name); err != nil {
			w := Warning{Artifact: name, Err: err, Message: err.Error()}
			r.logger.Warn("cleanup failed", "artifact", name, "error", err)
			warnings = append(warnings, w)
			continue
		}

		r.mu.Lock()
		r.removed[name] = true
		r.mu.Unlock()
		r.logger.Debug("artifact removed", "artifact", name)
	}
	return warnings
}
