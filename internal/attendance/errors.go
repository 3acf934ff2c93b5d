package attendance

import "errors"

// Failure kinds surfaced by the marking flow. Handlers map these to HTTP
// statuses with errors.Is; raw transport errors from collaborators are
// wrapped into one of them before they leave this package.
var (
	// ErrValidation covers malformed or missing request input.
	ErrValidation = errors.New("invalid attendance input")

	// ErrGeofence means the submitted point is outside the campus boundary.
	ErrGeofence = errors.New("outside campus boundary")

	// ErrMatchingService means the face search itself failed; the request
	// can be retried.
	ErrMatchingService = errors.New("face matching service failure")

	// ErrNoFaceMatch means no enrolled identity was recognized. Not logged
	// as a failure.
	ErrNoFaceMatch = errors.New("no enrolled face matched")

	// ErrDuplicateWindow means the sole recognized identity was already
	// marked within the cooldown window.
	ErrDuplicateWindow = errors.New("already marked within cooldown window")

	// ErrPersistence wraps ledger read/write failures.
	ErrPersistence = errors.New("attendance store failure")
)
