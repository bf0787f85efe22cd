package fixture

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// Discover returns one Fixture per immediate subdirectory of root.
//
// The scan is read-only and non-recursive. Fixtures are returned sorted by
// relative path so listings are stable; each fixture is independent, so the
// order never affects a verdict.
func Discover(root string) ([]Fixture, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, &DiscoveryError{Code: ErrCodeScanFailed, Path: root, Message: "cannot resolve root", Err: err}
	}

	info, err := os.Stat(absRoot)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &DiscoveryError{Code: ErrCodeRootNotFound, Path: root, Message: "discovery root not found"}
	}
	if err != nil {
		return nil, &DiscoveryError{Code: ErrCodeScanFailed, Path: root, Message: "cannot stat discovery root", Err: err}
	}
	if !info.IsDir() {
		return nil, &DiscoveryError{Code: ErrCodeRootNotDirectory, Path: root, Message: "discovery root is not a directory"}
	}

	entries, err := os.ReadDir(absRoot)
	if err != nil {
		return nil, &DiscoveryError{Code: ErrCodeScanFailed, Path: root, Message: "cannot read discovery root", Err: err}
	}

	fold := cases.Fold()
	seen := make(map[string]string)
	var fixtures []Fixture

	for _, entry := range entries {
		path := filepath.Join(absRoot, entry.Name())

		// Stat follows symlinks so linked fixture directories are included.
		st, err := os.Stat(path)
		if err != nil || !st.IsDir() {
			continue
		}

		f := Fixture{
			Path:    path,
			RelPath: entry.Name(),
			ID:      SanitizeIdentifier(entry.Name()),
		}

		key := fold.String(f.ID)
		if prev, dup := seen[key]; dup {
			return nil, &DiscoveryError{
				Code:    ErrCodeDuplicateIdentifier,
				Path:    path,
				Message: "fixture identifier " + f.ID + " collides with " + prev,
			}
		}
		seen[key] = f.RelPath

		if err := plan(&f); err != nil {
			return nil, err
		}
		fixtures = append(fixtures, f)
	}

	sort.Slice(fixtures, func(i, j int) bool {
		return fixtures[i].RelPath < fixtures[j].RelPath
	})
	if err := checkArtifactNames(fixtures); err != nil {
		return nil, err
	}
	return fixtures, nil
}

// checkArtifactNames rejects fixtures that would build artifacts of the same
// name, such as step 1 of chain "a" and single-step fixture "a_1". Backend
// tags are shared by every fixture, so comparing stems is enough.
func checkArtifactNames(fixtures []Fixture) error {
	owner := make(map[string]string)
	for _, f := range fixtures {
		for _, step := range f.Steps {
			stem := f.artifactStem(step.Index)
			if prev, dup := owner[stem]; dup && prev != f.RelPath {
				return &DiscoveryError{
					Code:    ErrCodeDuplicateArtifact,
					Path:    f.Path,
					Message: "artifact names " + stem + "_* of " + f.RelPath + " collide with " + prev,
				}
			}
			owner[stem] = f.RelPath
		}
	}
	return nil
}

// plan fills in the fixture's build steps.
func plan(f *Fixture) error {
	single, err := os.Lstat(filepath.Join(f.Path, DefinitionName))
	if err == nil && single.Mode().IsRegular() {
		f.Single = true
		f.Steps = []Step{{Index: 0, File: DefinitionName}}
		return nil
	}

	entries, err := os.ReadDir(f.Path)
	if err != nil {
		return &DiscoveryError{Code: ErrCodeScanFailed, Path: f.Path, Message: "cannot read fixture directory", Err: err}
	}

	prefix := cases.Fold().String(DefinitionName)
	var names []string
	for _, entry := range entries {
		if !isChainDefinition(entry.Name(), prefix) {
			continue
		}
		st, err := os.Stat(filepath.Join(f.Path, entry.Name()))
		if err != nil || st.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}

	if len(names) == 0 {
		return &DiscoveryError{Code: ErrCodeNoDefinitions, Path: f.Path, Message: "fixture has no build definition files"}
	}

	sort.Strings(names)
	for i, name := range names {
		f.Steps = append(f.Steps, Step{Index: i + 1, File: name})
	}
	return nil
}

// isChainDefinition reports whether name starts with the folded prefix.
func isChainDefinition(name, foldedPrefix string) bool {
	return strings.HasPrefix(cases.Fold().String(name), foldedPrefix)
}
