package coyoteapi

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds (stable for errors.Is).
var (
	ErrConfig            = errors.New("invalid config")
	ErrInvalidInput      = errors.New("invalid input")
	ErrMissingCredential = errors.New("missing credential")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrRequestFailed     = errors.New("request failed")
	ErrTransport         = errors.New("transport failure")
	ErrMalformedResponse = errors.New("malformed response")
	ErrSubjectNotFound   = errors.New("subject not found")

	ErrResolveSubjectFailed = errors.New("could not resolve student by control number")
	ErrSubmitDropoutFailed  = errors.New("could not register dropout")
)

// Error is the single failure shape of the client.
//
// Kind is one of the sentinel kinds above. Message is the text meant for people:
// the backend's message when the response carried one, otherwise a fallback.
// Err is the underlying cause, if any.
type Error struct {
	Op      string
	Kind    error
	Status  int
	Message string
	Err     error

	// enveloped is set when Message came from a backend {"message": ...} body.
	enveloped bool
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	if e.Message != "" {
		b.WriteString(e.Message)
	} else if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil && e.Message == "" {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// DropoutPhase names the step of RegisterDropout that failed.
type DropoutPhase string

const (
	PhaseResolveSubject DropoutPhase = "resolve_subject"
	PhaseSubmitDropout  DropoutPhase = "submit_dropout"
)

// DropoutError reports which phase of the lookup-then-submit workflow failed.
// A resolve_subject failure guarantees the dropout endpoint was not called.
type DropoutError struct {
	Phase DropoutPhase
	Err   error
}

func (e *DropoutError) Error() string {
	return fmt.Sprintf("register dropout (%s): %v", e.Phase, e.Err)
}

func (e *DropoutError) Unwrap() []error {
	kind := ErrSubmitDropoutFailed
	if e.Phase == PhaseResolveSubject {
		kind = ErrResolveSubjectFailed
	}
	return []error{kind, e.Err}
}

// Message returns the human-readable text of err for display.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var de *DropoutError
	if errors.As(err, &de) && de.Phase == PhaseResolveSubject &&
		(errors.Is(de.Err, ErrSubjectNotFound) || errors.Is(de.Err, ErrMalformedResponse)) {
		return ErrResolveSubjectFailed.Error()
	}
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Message != "" {
			return ae.Message
		}
		if ae.Kind != nil {
			return ae.Kind.Error()
		}
	}
	return err.Error()
}

// IsUnauthorized reports whether err is an authorization failure.
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }

// IsMissingCredential reports whether err is a fail-fast missing token error.
func IsMissingCredential(err error) bool { return errors.Is(err, ErrMissingCredential) }

func newError(op string, kind error, msg string) *Error {
	return &Error{Op: op, Kind: kind, Message: msg}
}

func invalidInput(op, msg string) *Error {
	return &Error{Op: op, Kind: ErrInvalidInput, Message: msg}
}

func malformed(op string, status int, cause error) *Error {
	return &Error{Op: op, Kind: ErrMalformedResponse, Status: status, Message: "unexpected response from server", Err: cause}
}
