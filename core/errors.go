package core

import "errors"

// Error taxonomy for the engine. Components wrap these sentinels with
// fmt.Errorf("...: %w", ...) so callers can branch with errors.Is while the
// message carries the operation detail.
var (
	// ErrPermissionDenied is returned when a role attempts a layer operation
	// the arbiter does not permit. Always surfaced to the caller, never
	// silently downgraded.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrDepthExceeded is returned when a dispatch would push the tree past
	// MaxDispatchDepth. Surfaced as a declined-to-delegate result, not a
	// crash.
	ErrDepthExceeded = errors.New("dispatch depth exceeded")

	// ErrUnknownTask is returned for operations against a task that was
	// never opened.
	ErrUnknownTask = errors.New("unknown task")

	// ErrSessionClosed is returned for mutation or dispatch against a task
	// session that has been closed and archived.
	ErrSessionClosed = errors.New("task session closed")

	// ErrStorageFailure wraps transient storage errors. Buffer and task
	// memory appends may simply be retried; Canon writes must re-run their
	// conflict check because the stored version may have moved.
	ErrStorageFailure = errors.New("storage failure")

	// ErrVersionConflict is returned by a Canon compare-and-swap when the
	// stored version differs from the expected one. Exactly one of two
	// concurrent promotions for a key proceeds; the loser re-checks.
	ErrVersionConflict = errors.New("canon version conflict")

	// ErrInferenceFailure is returned when the inference collaborator errors
	// or produces an unparseable tool request. Terminal for that dispatch
	// only; siblings and the parent continue.
	ErrInferenceFailure = errors.New("inference failure")

	// ErrNotFound is returned when a referenced record (buffer entry,
	// dispute, canon key) does not exist.
	ErrNotFound = errors.New("not found")
)
