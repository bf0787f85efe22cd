package backend

import (
	"errors"
	"fmt"
	"strings"
)

// BuildFailure is returned when a backend build exits non-zero.
type BuildFailure struct {
	Backend  Backend
	Artifact string
	ExitCode int
	TimedOut bool
	Log      string
}

// Error implements the error interface.
func (e *BuildFailure) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("%s build of %s timed out", e.Backend, e.Artifact)
	}
	return fmt.Sprintf("%s build of %s exited with status %d", e.Backend, e.Artifact, e.ExitCode)
}

// InspectionError is returned when artifact metadata is missing or malformed.
type InspectionError struct {
	Artifact string
	Message  string
	Log      string
	Err      error
}

// Error implements the error interface.
func (e *InspectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("inspect %s: %s: %v", e.Artifact, e.Message, e.Err)
	}
	return fmt.Sprintf("inspect %s: %s", e.Artifact, e.Message)
}

func (e *InspectionError) Unwrap() error {
	return e.Err
}

// ExtractionError is returned when copying the results directory out of an
// artifact fails.
type ExtractionError struct {
	Artifact string
	ExitCode int
	Log      string
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract results from %s: exited with status %d", e.Artifact, e.ExitCode)
}

// EnvironmentError is returned when an external command cannot be started.
type EnvironmentError struct {
	Command []string
	Err     error
}

// Error implements the error interface.
func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("cannot run %q: %v", strings.Join(e.Command, " "), e.Err)
}

func (e *EnvironmentError) Unwrap() error {
	return e.Err
}

// IsEnvironmentError reports whether err is, or wraps, an EnvironmentError.
func IsEnvironmentError(err error) bool {
	var ee *EnvironmentError
	return errors.As(err, &ee)
}

// IsBuildFailure reports whether err is, or wraps, a BuildFailure.
func IsBuildFailure(err error) bool {
	var bf *BuildFailure
	return errors.As(err, &bf)
}
