package core

import "errors"

// BadRequestError covers malformed keys, unknown tables, unresolved
// links and bad JSON shapes. The HTTP layer renders it as a 400.
type BadRequestError struct {
	Msg string
}

func (e *BadRequestError) Error() string { return e.Msg }

// SQLError wraps a driver failure together with the statement that
// produced it. The HTTP layer renders it as a 500 carrying the
// driver's message.
type SQLError struct {
	Query string
	Err   error
}

func (e *SQLError) Error() string { return e.Err.Error() }
func (e *SQLError) Unwrap() error { return e.Err }

// IsBadRequest reports whether err was caused by the client.
func IsBadRequest(err error) bool {
	var br *BadRequestError
	return errors.As(err, &br)
}
