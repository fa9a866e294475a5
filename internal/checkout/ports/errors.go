package ports

import "errors"

// ErrInvalidInput matches every error caused by a malformed request.
var ErrInvalidInput = errors.New("invalid input")

type invalidInputError struct {
	err error
}

func (e *invalidInputError) Error() string { return e.err.Error() }

func (e *invalidInputError) Unwrap() []error { return []error{e.err, ErrInvalidInput} }

// InvalidInput marks err as a caller error while keeping its message.
func InvalidInput(err error) error {
	if err == nil {
		return nil
	}
	return &invalidInputError{err: err}
}
