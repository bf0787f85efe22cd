package backend

// Backend identifies one of the two build systems under comparison.
type Backend int

const (
	// Reference is the reference container build engine.
	Reference Backend = iota
	// Candidate is the alternative build tool under test.
	Candidate
)

// All lists both backends in a fixed order.
var All = []Backend{Reference, Candidate}

// Tag returns the suffix used in artifact names.
func (b Backend) Tag() string {
	switch b {
	case Reference:
		return "docker"
	case Candidate:
		return "compile"
	default:
		return "unknown"
	}
}

// String returns the backend's role name.
func (b Backend) String() string {
	switch b {
	case Reference:
		return "reference"
	case Candidate:
		return "candidate"
	default:
		return "unknown"
	}
}

// Artifact is the named output of one build step for one backend.
type Artifact struct {
	Name     string  `json:"name"`
	Backend  Backend `json:"-"`
	Base     string  `json:"base,omitempty"`
	Log      string  `json:"-"`
	ExitCode int     `json:"exit_code"`
}

// Succeeded reports whether the build exited zero.
func (a *Artifact) Succeeded() bool {
	return a != nil && a.ExitCode == 0
}
