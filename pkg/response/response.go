package response

import (
	"errors"
)

// Error is an error with the HTTP status it should be answered with. Kind is
// the stable machine-readable code clients switch on.
type Error struct {
	Code int
	Kind string
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	ok := errors.As(target, &t)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Err.Error() == t.Err.Error()
}

func NewError(code int, err string) error {
	return &Error{Code: code, Err: errors.New(err)}
}

// NewKindError is NewError with a machine-readable kind.
func NewKindError(code int, kind, err string) error {
	return &Error{Code: code, Kind: kind, Err: errors.New(err)}
}
