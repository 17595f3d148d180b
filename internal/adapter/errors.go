package adapter

import (
	"errors"
	"fmt"
)

// Error taxonomy. Operations return these wrapped in a *PlacementError;
// match them with errors.Is.
var (
	ErrUnsupportedFormat   = errors.New("unsupported ad format")
	ErrLoadInProgress      = errors.New("a load is already in progress for this placement")
	ErrInvalidBannerSize   = errors.New("no supported banner size fits the requested size")
	ErrNoAdReady           = errors.New("no ad is ready to show")
	ErrAdTypeMismatch      = errors.New("ad instance is not of the expected partner type")
	ErrNoAdToInvalidate    = errors.New("no ad to invalidate")
	ErrShowFailure         = errors.New("partner failed to show the ad")
	ErrLoadFailure         = errors.New("partner failed to load the ad")
	ErrDelegateUnavailable = errors.New("no delegate registered to receive the event")
)

// errShowAbandoned is the cause reported to a pending show when the ad is invalidated first
var errShowAbandoned = errors.New("ad invalidated before the show completed")

// Operation names used in errors and logs
const (
	OpSetUp      = "setup"
	OpLoad       = "load"
	OpShow       = "show"
	OpInvalidate = "invalidate"
	OpEvent      = "event"
)

// PlacementError describes a failed operation on a placement
type PlacementError struct {
	Op        string
	Placement string
	Err       error // one of the sentinel errors above
	Cause     error // partner-reported error, if any
}

func (e *PlacementError) Error() string {
	msg := fmt.Sprintf("%s %q: %v", e.Op, e.Placement, e.Err)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the taxonomy error and the partner cause
func (e *PlacementError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func newError(op, placement string, err, cause error) *PlacementError {
	return &PlacementError{Op: op, Placement: placement, Err: err, Cause: cause}
}
