package core

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyContent is returned when there is nothing to analyze
	ErrEmptyContent = errors.New("please enter a URL or email content to analyze")
	// ErrUnknownKind is returned for an analysis kind outside URL and EMAIL
	ErrUnknownKind = errors.New("unknown analysis kind")
	// ErrSuperseded is returned when a newer submission replaced this one
	ErrSuperseded = errors.New("analysis superseded by a newer request")
	// ErrEmptyMessage is returned for a blank chat message
	ErrEmptyMessage = errors.New("chat message is empty")
	// ErrChatBusy is returned when a chat turn is already in flight
	ErrChatBusy = errors.New("a chat message is already being answered")
	// ErrHistoryEntryNotFound is returned when no history entry has the given id
	ErrHistoryEntryNotFound = errors.New("history entry not found")
)

// TransportError wraps failures raised by the model call itself
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("model call failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// InvalidResponseShapeError reports a reply that does not match the result schema
type InvalidResponseShapeError struct {
	Reason string
	Err    error
}

func (e *InvalidResponseShapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid response structure from model: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid response structure from model: %s", e.Reason)
}

func (e *InvalidResponseShapeError) Unwrap() error {
	return e.Err
}

// AnalysisFailedError is the user-facing failure of one analysis.
// Error returns a sentence safe to show; Unwrap exposes the cause.
type AnalysisFailedError struct {
	Message string
	Cause   error
}

func (e *AnalysisFailedError) Error() string {
	return e.Message
}

func (e *AnalysisFailedError) Unwrap() error {
	return e.Cause
}

func newAnalysisFailed(cause error) *AnalysisFailedError {
	var shapeErr *InvalidResponseShapeError
	if errors.As(cause, &shapeErr) {
		return &AnalysisFailedError{
			Message: "Failed to get analysis from AI. The response was malformed.",
			Cause:   cause,
		}
	}
	return &AnalysisFailedError{
		Message: "Failed to get analysis from AI. The API might be overloaded or unreachable.",
		Cause:   cause,
	}
}

// PersistenceCorruptionError describes an unreadable persisted history.
// It is logged by HistoryStore and never returned to callers.
type PersistenceCorruptionError struct {
	Key string
	Err error
}

func (e *PersistenceCorruptionError) Error() string {
	return fmt.Sprintf("corrupt persisted history under %q: %v", e.Key, e.Err)
}

func (e *PersistenceCorruptionError) Unwrap() error {
	return e.Err
}
