package epd

import "errors"

// Error taxonomy of the pipeline. Components wrap these with fmt.Errorf("%w")
// so callers can branch with errors.Is.
var (
	// ErrAuth means no bearer token could be obtained or upstream rejected it.
	// Fatal for the current phase.
	ErrAuth = errors.New("authentication failed")

	// ErrUpstream means the catalog API could not be queried.
	ErrUpstream = errors.New("upstream request failed")

	// ErrResolution means a single detail document could not be resolved.
	ErrResolution = errors.New("detail resolution failed")

	// ErrStoreUnavailable means the destination store could not answer an
	// existence check or accept a write. It is never read as "not a duplicate".
	ErrStoreUnavailable = errors.New("destination store unavailable")

	// ErrNotFound means a batch handle or object key does not exist.
	ErrNotFound = errors.New("not found")
)
