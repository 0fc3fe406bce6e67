package rank

import "errors"

var (
	// ErrPersonNotFound is returned when the requester is not part of the
	// current artifact.
	ErrPersonNotFound = errors.New("person not found")
	// ErrArtifactMissing is returned when no artifact has been published.
	ErrArtifactMissing = errors.New("graph artifact missing")
	// ErrInvalidConfiguration is returned for invalid request parameters or
	// weights. It is raised before any computation.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)
