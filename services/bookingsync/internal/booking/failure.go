package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type FailureKind string

const (
	KindValidation FailureKind = "validation"
	KindTransport  FailureKind = "transport"
	KindCancelled  FailureKind = "cancelled"
	KindConflict   FailureKind = "conflict"
)

var (
	ErrValidation = errors.New("validation failure")
	ErrTransport  = errors.New("transport failure")
	ErrCancelled  = errors.New("request cancelled")
	ErrConflict   = errors.New("conflict with authority")
)

// Failure is the single error type surfaced by the engine.
type Failure struct {
	Kind       FailureKind
	Op         string
	BookingID  string
	Reason     string
	RawMessage string
	Err        error
}

func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString(string(f.Kind))
	if f.Op != "" {
		b.WriteString(" ")
		b.WriteString(f.Op)
	}
	if f.BookingID != "" {
		fmt.Fprintf(&b, " booking %s", f.BookingID)
	}
	if f.Reason != "" {
		b.WriteString(": ")
		b.WriteString(f.Reason)
	}
	return b.String()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func (f *Failure) Is(target error) bool {
	switch target {
	case ErrValidation:
		return f.Kind == KindValidation
	case ErrTransport:
		return f.Kind == KindTransport
	case ErrCancelled:
		return f.Kind == KindCancelled
	case ErrConflict:
		return f.Kind == KindConflict
	}
	return false
}

func NewValidationFailure(op, id, reason string) *Failure {
	return &Failure{Kind: KindValidation, Op: op, BookingID: id, Reason: reason}
}

func NewTransportFailure(op, id, reason string, err error) *Failure {
	f := &Failure{Kind: KindTransport, Op: op, BookingID: id, Reason: reason, Err: err}
	if err != nil {
		f.RawMessage = err.Error()
	}
	return f
}

func NewConflictFailure(op, id string, err error) *Failure {
	f := &Failure{Kind: KindConflict, Op: op, BookingID: id, Reason: "booking changed on the server, refresh required", Err: err}
	if err != nil {
		f.RawMessage = err.Error()
	}
	return f
}

func NewCancelledFailure(op string) *Failure {
	return &Failure{Kind: KindCancelled, Op: op, Reason: "superseded by a newer request", Err: context.Canceled}
}

// AsFailure returns err as a *Failure, wrapping foreign errors as transport failures.
func AsFailure(op, id string, err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return NewTransportFailure(op, id, "request failed", err)
}

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsCancelled(err error) bool  { return errors.Is(err, ErrCancelled) }
func IsConflict(err error) bool   { return errors.Is(err, ErrConflict) }
func IsTransport(err error) bool  { return errors.Is(err, ErrTransport) }

// NeedsRefresh reports whether the caller should reload the list to recover
// from stale local state.
func NeedsRefresh(err error) bool {
	return IsConflict(err)
}
