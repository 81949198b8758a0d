package hdb

import "errors"

var (
	ErrSchemaViolation    = errors.New("hdb: state violates schema")
	ErrTransitionRejected = errors.New("hdb: transition rejected")
	ErrClosed             = errors.New("hdb: database closed")
)

// TransitionError reports which transition in a proposal failed.
type TransitionError struct {
	Type string
	Err  error
}

func (e *TransitionError) Error() string {
	return "transition " + e.Type + ": " + e.Err.Error()
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}
