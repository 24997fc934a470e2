package modelhost

import "errors"

var (
	ErrStartupFailure    = errors.New("startup failure")
	ErrInvalidInput      = errors.New("invalid input")
	ErrGenerationFailure = errors.New("generation failure")
)

// hostError tags an underlying error with one of the sentinels above.
type hostError struct {
	kind error
	err  error
}

func (e hostError) Error() string {
	return e.kind.Error() + ": " + e.err.Error()
}

func (e hostError) Unwrap() []error {
	return []error{e.kind, e.err}
}

func wrap(kind, err error) error {
	return hostError{kind: kind, err: err}
}

// Kind names the failure class of err for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrGenerationFailure):
		return "generation"
	case errors.Is(err, ErrStartupFailure):
		return "startup"
	default:
		return "cancelled"
	}
}
