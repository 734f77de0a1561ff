package device

import "errors"

// Domain errors for the device package.
//
// Validation failures always wrap ErrValidation so callers can map them to
// a client error without knowing which field was wrong:
//
//	if device.IsValidation(err) {
//	    // reply 400
//	}
var (
	// ErrValidation is wrapped by every input validation failure.
	ErrValidation = errors.New("device: validation failed")

	// ErrInvalidIdentity is returned when an identity is not well-formed.
	ErrInvalidIdentity = errors.New("device: invalid identity")

	// ErrSubscriptionClosed is returned by Subscriber.Next once the
	// subscription has been closed.
	ErrSubscriptionClosed = errors.New("device: subscription closed")
)

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
