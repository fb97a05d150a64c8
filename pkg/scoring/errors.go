package scoring

import (
	"errors"
	"fmt"
)

// Common scoring client errors.
var (
	// ErrMissingConfig indicates a required endpoint or credential is
	// absent from the configuration.
	ErrMissingConfig = errors.New("required endpoint or credential is not configured")

	// ErrInvalidInput indicates an empty required input or a batch that
	// exceeds the transport's group size.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyResult indicates the remote call succeeded but returned
	// zero usable vectors. An empty vector at any batch position fails
	// the whole call; there are no partial results.
	ErrEmptyResult = errors.New("remote service returned no usable vectors")
)

// TransportError reports a connection or send failure against a remote
// capability. It is never retried here; retry policy belongs to callers.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support for TransportError.
func (e *TransportError) Is(target error) bool {
	_, ok := target.(*TransportError)
	return ok
}

// ShapeError reports a response the client could parse as bytes but not as
// the expected payload, for example an encoding the pipeline does not
// support or a score index outside the request range.
type ShapeError struct {
	Op     string
	Detail string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: unexpected response shape: %s", e.Op, e.Detail)
}

// Is implements errors.Is support for ShapeError.
func (e *ShapeError) Is(target error) bool {
	_, ok := target.(*ShapeError)
	return ok
}
