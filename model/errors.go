package model

import (
	"errors"
	"fmt"
)

// Op identifies a remote operation
type Op string

// Remote operations
const (
	OpUpload  Op = "upload"
	OpAnalyze Op = "analyze"
	OpStatus  Op = "status"
	OpResult  Op = "result"
	OpReport  Op = "report"
	OpSuggest Op = "suggest"
)

var (
	// ErrNoDocument is returned when an operation needs a live document id
	ErrNoDocument = errors.New("no document in session")
	// ErrBusy is returned when the session is uploading or analyzing and
	// cannot take the requested action
	ErrBusy = errors.New("session is busy")
	// ErrExportInFlight is returned for a duplicate export trigger
	ErrExportInFlight = errors.New("export already in progress")
	// ErrNothingToRetry is returned when the session is not in the error phase
	ErrNothingToRetry = errors.New("nothing to retry")
	// ErrClosed is returned after the consumer has detached
	ErrClosed = errors.New("session closed")
)

// ValidationError is a local input rejection. It never reaches the network
// and never moves the session into the error phase.
type ValidationError struct {
	Field   string
	Reason  string
	Message string // localized, shown to the user
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransportError is the single failure signal for one remote call
type TransportError struct {
	Op         Op
	DocumentID string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Op)
	if e.DocumentID != "" {
		msg += fmt.Sprintf(" for document %s", e.DocumentID)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// FailedOp returns the operation of a wrapped TransportError, or "" if err
// is not one.
func FailedOp(err error) Op {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Op
	}
	return ""
}

// TransitionError reports a transition that is not an edge of the phase machine
type TransitionError struct {
	From   Phase
	To     Phase
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("phase transition [%s->%s]: %s", e.From, e.To, e.Reason)
}
