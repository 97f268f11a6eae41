// Package fault defines the error kinds shared by the narration pipeline.
//
// Every typed error matches its sentinel through errors.Is and exposes the
// underlying cause through Unwrap, so callers can branch on the kind without
// losing the original error.
package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrInput marks invalid caller input: bad text, non-positive budget,
	// unsupported language or output format.
	ErrInput = errors.New("invalid input")
	// ErrBackend marks a failure of an OCR, LLM or TTS collaborator.
	ErrBackend = errors.New("backend failure")
	// ErrMalformedResponse marks a structured backend reply missing expected fields.
	ErrMalformedResponse = errors.New("malformed backend response")
	// ErrNoAudioProduced is returned when every synthesized chunk was empty.
	ErrNoAudioProduced = errors.New("no audio produced")
)

// InputError reports a rejected argument. Raised before any backend call.
type InputError struct {
	Field  string
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InputError) Is(target error) bool { return target == ErrInput }

func (e *InputError) Unwrap() error { return e.Err }

// Input builds an InputError.
func Input(field, reason string) error {
	return &InputError{Field: field, Reason: reason}
}

// BackendError wraps a collaborator failure with the backend and operation
// that produced it.
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Is(target error) bool { return target == ErrBackend }

func (e *BackendError) Unwrap() error { return e.Err }

// Backend wraps err as a BackendError. A nil err returns nil, and an error
// that already carries a BackendError or MalformedResponseError is returned
// unchanged.
func Backend(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	var me *MalformedResponseError
	if errors.As(err, &me) {
		return err
	}
	return &BackendError{Backend: backend, Op: op, Err: err}
}

// MalformedResponseError carries the raw payload of a structured reply that
// did not satisfy its contract.
type MalformedResponseError struct {
	Field string
	Raw   string
	Err   error
}

func (e *MalformedResponseError) Error() string {
	msg := fmt.Sprintf("malformed response: field %q", e.Field)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg + " (raw: " + Truncate(e.Raw, 200) + ")"
}

func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// Truncate shortens s to at most n bytes for log and error output.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
