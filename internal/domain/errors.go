package domain

import "errors"

// Sentinel errors used throughout the application.
// Callers wrap them with context and test with errors.Is; the drain worker
// classifies executor failures via IsPermanent.
var (
	ErrNotFound        = errors.New("not found")
	ErrStorage         = errors.New("storage error")
	ErrTransientRemote = errors.New("transient remote error")
	ErrPermanentRemote = errors.New("permanent remote error")
	ErrInvalidPayload  = errors.New("invalid payload")
	ErrUnknownKind     = errors.New("unknown mutation kind")
	ErrDrainInProgress = errors.New("a drain cycle is already running, try again later")
)

// IsPermanent reports whether err means retrying the same record can never
// succeed. Validation failures count as permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanentRemote) ||
		errors.Is(err, ErrInvalidPayload) ||
		errors.Is(err, ErrUnknownKind)
}
