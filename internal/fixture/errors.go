package fixture

import (
	"errors"
	"fmt"
)

// DiscoveryErrorCode categorizes discovery failures.
type DiscoveryErrorCode string

const (
	// ErrCodeRootNotFound indicates the discovery root does not exist.
	ErrCodeRootNotFound DiscoveryErrorCode = "ROOT_NOT_FOUND"

	// ErrCodeRootNotDirectory indicates the discovery root is not a directory.
	ErrCodeRootNotDirectory DiscoveryErrorCode = "ROOT_NOT_DIRECTORY"

	// ErrCodeScanFailed indicates a directory could not be read.
	ErrCodeScanFailed DiscoveryErrorCode = "SCAN_FAILED"

	// ErrCodeDuplicateIdentifier indicates two fixture paths sanitize to the
	// same identifier.
	ErrCodeDuplicateIdentifier DiscoveryErrorCode = "DUPLICATE_IDENTIFIER"

	// ErrCodeDuplicateArtifact indicates two fixtures plan the same artifact
	// name.
	ErrCodeDuplicateArtifact DiscoveryErrorCode = "DUPLICATE_ARTIFACT"

	// ErrCodeNoDefinitions indicates a fixture directory has no build
	// definition files.
	ErrCodeNoDefinitions DiscoveryErrorCode = "NO_DEFINITIONS"
)

// DiscoveryError is returned when a discovery root cannot be turned into a
// set of fixtures.
type DiscoveryError struct {
	Code    DiscoveryErrorCode
	Path    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%s): %v", e.Code, e.Message, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Path)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// IsDiscoveryError reports whether err is, or wraps, a DiscoveryError.
func IsDiscoveryError(err error) bool {
	var de *DiscoveryError
	return errors.As(err, &de)
}
