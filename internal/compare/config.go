package compare

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Compared configuration field names, in report order.
const (
	FieldCmd          = "Cmd"
	FieldEntrypoint   = "Entrypoint"
	FieldEnv          = "Env"
	FieldExposedPorts = "ExposedPorts"
	FieldWorkingDir   = "WorkingDir"
)

// Fields lists the configuration fields that are compared.
var Fields = []string{FieldCmd, FieldEntrypoint, FieldEnv, FieldExposedPorts, FieldWorkingDir}

// FieldDiff describes one mismatched configuration field.
type FieldDiff struct {
	Field     string `json:"field"`
	Reference any    `json:"reference"`
	Candidate any    `json:"candidate"`

	// Missing and Extra list Env entries present only on the reference or
	// only on the candidate side.
	Missing []string `json:"missing,omitempty"`
	Extra   []string `json:"extra,omitempty"`

	// Diff is a human-readable rendering (-reference +candidate).
	Diff string `json:"diff"`
}

// String renders the diff on one line.
func (d FieldDiff) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: reference=%v candidate=%v", d.Field, d.Reference, d.Candidate)
	if len(d.Missing) > 0 {
		fmt.Fprintf(&b, " missing=%v", d.Missing)
	}
	if len(d.Extra) > 0 {
		fmt.Fprintf(&b, " extra=%v", d.Extra)
	}
	return b.String()
}

// Config compares the runtime-relevant configuration fields of two images.
// A nil config is treated as one with every field unset; unset and empty
// values differ.
func Config(ref, cand *ocispec.ImageConfig) []FieldDiff {
	if ref == nil {
		ref = &ocispec.ImageConfig{}
	}
	if cand == nil {
		cand = &ocispec.ImageConfig{}
	}

	refEnv, candEnv := sortedCopy(ref.Env), sortedCopy(cand.Env)

	pairs := []struct {
		field     string
		reference any
		candidate any
	}{
		{FieldCmd, ref.Cmd, cand.Cmd},
		{FieldEntrypoint, ref.Entrypoint, cand.Entrypoint},
		{FieldEnv, refEnv, candEnv},
		{FieldExposedPorts, ref.ExposedPorts, cand.ExposedPorts},
		{FieldWorkingDir, ref.WorkingDir, cand.WorkingDir},
	}

	var diffs []FieldDiff
	for _, p := range pairs {
		if cmp.Equal(p.reference, p.candidate) {
			continue
		}
		d := FieldDiff{
			Field:     p.field,
			Reference: p.reference,
			Candidate: p.candidate,
			Diff:      cmp.Diff(p.reference, p.candidate),
		}
		if p.field == FieldEnv {
			d.Missing, d.Extra = setDifference(refEnv, candEnv)
		}
		diffs = append(diffs, d)
	}
	return diffs
}

func sortedCopy(values []string) []string {
	if values == nil {
		return nil
	}
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}

// setDifference returns entries only in a and entries only in b. Both inputs
// must be sorted; duplicates are matched one for one.
func setDifference(a, b []string) (onlyA, onlyB []string) {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			i++
			j++
		case a[i] < b[j]:
			onlyA = append(onlyA, a[i])
			i++
		default:
			onlyB = append(onlyB, b[j])
			j++
		}
	}
	onlyA = append(onlyA, a[i:]...)
	onlyB = append(onlyB, b[j:]...)
	return onlyA, onlyB
}
