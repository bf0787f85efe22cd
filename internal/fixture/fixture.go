package fixture

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefinitionName is the build definition file name that marks a single-step
// fixture.
const DefinitionName = "Dockerfile"

// identifierCleaner matches every character that is not safe in a test or
// artifact name.
var identifierCleaner = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// Step is one build definition within a fixture.
type Step struct {
	// Index is 0 for the implicit step of a single-step fixture and 1..n for
	// chain steps.
	Index int `json:"index"`

	// File is the definition file name, relative to the fixture directory.
	File string `json:"file"`
}

// Fixture is one test case directory. It is immutable after discovery.
type Fixture struct {
	// Path is the absolute fixture directory.
	Path string `json:"path"`

	// RelPath is the fixture directory relative to the discovery root.
	RelPath string `json:"rel_path"`

	// ID is RelPath with non-alphanumeric characters replaced by "_".
	ID string `json:"id"`

	// Steps lists the build definitions in execution order.
	Steps []Step `json:"steps"`

	// Single is true when the fixture has one regular Dockerfile and runs
	// without chain bookkeeping.
	Single bool `json:"single"`
}

// SanitizeIdentifier replaces every character outside [A-Za-z0-9_] with "_".
func SanitizeIdentifier(path string) string {
	return identifierCleaner.ReplaceAllString(filepath.ToSlash(path), "_")
}

// ArtifactName returns the deterministic artifact name for the given step
// index and backend tag: <id>[_<index>]_<tag>. Single-step fixtures (index 0)
// carry no index. Names are lower-cased because the reference engine rejects
// uppercase repository names.
func (f Fixture) ArtifactName(index int, tag string) string {
	return f.artifactStem(index) + "_" + strings.ToLower(tag)
}

// artifactStem is the artifact name without the backend tag.
func (f Fixture) artifactStem(index int) string {
	if index == 0 {
		return strings.ToLower(f.ID)
	}
	return strings.ToLower(fmt.Sprintf("%s_%d", f.ID, index))
}

// DefinitionPath returns the absolute path of a step's definition file.
func (f Fixture) DefinitionPath(step Step) string {
	return filepath.Join(f.Path, step.File)
}

// LastStep returns the final step of the fixture.
func (f Fixture) LastStep() Step {
	return f.Steps[len(f.Steps)-1]
}

// Filter keeps fixtures whose ID or relative path matches the glob pattern.
// Patterns support ** and {a,b} alternatives. An empty pattern keeps
// everything.
func Filter(fixtures []Fixture, pattern string) ([]Fixture, error) {
	if pattern == "" {
		return fixtures, nil
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid filter pattern %q", pattern)
	}

	var kept []Fixture
	for _, f := range fixtures {
		idMatch, _ := doublestar.Match(pattern, f.ID)
		pathMatch, _ := doublestar.Match(pattern, f.RelPath)
		if idMatch || pathMatch {
			kept = append(kept, f)
		}
	}
	return kept, nil
}
