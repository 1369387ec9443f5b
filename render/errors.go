// Package render provides the concurrent frame-rendering pipeline for FilmStrip-Go.
package render

import "errors"

// ErrAborted indicates that a render job was cancelled cooperatively, either
// through the progress reporter's abort flag or through context cancellation.
// Aborts are expected and are never reported as failures.
var ErrAborted = errors.New("render aborted")

// ErrTransitionMismatch is returned when the two path slices of a transition
// window differ in length. It is always wrapped in a StructuralError.
var ErrTransitionMismatch = errors.New("transition path lengths differ")

// ErrResultAlreadySet is the panic value raised when a cache entry receives a
// second result.
var ErrResultAlreadySet = errors.New("cache entry result already set")

// ErrFrontierDrained is returned by Frontier.Dequeue once the frontier has
// been closed and every queued work item has been handed out.
var ErrFrontierDrained = errors.New("frontier drained")

// RenderError represents an error from Engine or Job operations.
type RenderError struct {
	Message string
	Code    string
	Cause   error
}

func (e *RenderError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is / errors.As support.
func (e *RenderError) Unwrap() error {
	return e.Cause
}

// StructuralError marks an internal invariant violation. It is fatal: the job
// stops at the point of detection and the error is never retried.
type StructuralError struct {
	Op    string
	Cause error
}

func (e *StructuralError) Error() string {
	return "structural error in " + e.Op + ": " + e.Cause.Error()
}

// Unwrap returns the violated invariant.
func (e *StructuralError) Unwrap() error {
	return e.Cause
}

// IsFatal reports whether err must stop the whole job. Structural errors,
// sink failures and cache misses are fatal; everything else only affects the
// unit that produced it.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var se *StructuralError
	if errors.As(err, &se) {
		return true
	}
	var re *RenderError
	if errors.As(err, &re) {
		switch re.Code {
		case "SINK_ERROR", "CACHE_MISS", "PREPARE_FAILED":
			return true
		}
	}
	return false
}
