package chat

import (
	"errors"
	"fmt"
)

// ErrBusy is returned by Manager.Acquire while another request holds the session.
var ErrBusy = errors.New("session is busy")

// ValidationError reports malformed caller input, rejected before any
// provider call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error [%s]: %s", e.Field, e.Reason)
}

// ConnectionError reports a failure to construct a provider session.
type ConnectionError struct {
	Provider string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error [%s]: %v", e.Provider, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// StreamError reports a failure while a response was streaming.
type StreamError struct {
	Provider string
	Model    string
	Err      error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream error [%s/%s]: %v", e.Provider, e.Model, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}
