package rag

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind says which stage of the pipeline failed.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalid
	KindLoad
	KindEmbed
	KindStore
	KindComplete
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindLoad:
		return "load"
	case KindEmbed:
		return "embed"
	case KindStore:
		return "store"
	case KindComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Error is a pipeline error carrying its kind and cause.
// Transient is set when a retry of the same call may succeed (rate limits, 5xx, timeouts).
type Error struct {
	Kind      ErrorKind
	Op        string
	Err       error
	Transient bool
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an *Error of the given kind.
func Errorf(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a kind to err unless err already carries one.
func Wrap(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{
		Kind:      kind,
		Op:        op,
		Err:       err,
		Transient: errors.Is(err, context.DeadlineExceeded),
	}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Transient
	}
	return false
}

// ChunkOutcome is the result of ingesting one chunk.
type ChunkOutcome struct {
	Index    int
	ChunkID  string
	Inserted bool
	Err      error
}

// IngestReport summarizes an ingest run.
type IngestReport struct {
	Document string
	Chunks   int
	Inserted int
	Failed   int
	Outcomes []ChunkOutcome
	// Cause is the first failure that was not a cancellation, in the order
	// chunks finished. With fail-fast the other chunks only fail because of it.
	Cause error
}

// Failures returns the outcomes that did not insert.
func (r *IngestReport) Failures() []ChunkOutcome {
	var out []ChunkOutcome
	for _, o := range r.Outcomes {
		if !o.Inserted {
			out = append(out, o)
		}
	}
	return out
}

// IngestError is returned when at least one chunk failed. Rows of the
// other chunks may already be committed.
type IngestError struct {
	Report *IngestReport
}

func (e *IngestError) Error() string {
	msg := fmt.Sprintf("ingest %s: %d of %d chunks failed", e.Report.Document, e.Report.Failed, e.Report.Chunks)
	if cause := e.Unwrap(); cause != nil {
		return msg + ": " + cause.Error()
	}
	return msg
}

// Unwrap exposes the cause, or else the first chunk error, so errors.As
// finds its *Error.
func (e *IngestError) Unwrap() error {
	if e.Report.Cause != nil {
		return e.Report.Cause
	}
	for _, o := range e.Report.Outcomes {
		if o.Err != nil {
			return o.Err
		}
	}
	return nil
}
