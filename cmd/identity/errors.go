package identity

import (
	"errors"
	"fmt"
)

// OpError is a typed operation error with a stable Op + Kind contract for callers/tests.
// Kind is one of the sentinel kinds; Msg is human-readable context.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

func invalidProfile(msg string) error {
	return OpError{Op: "identity.DecodeProfile", Kind: ErrInvalidProfile, Msg: msg}
}

// IsInvalidProfile reports whether err represents ErrInvalidProfile.
func IsInvalidProfile(err error) bool { return errors.Is(err, ErrInvalidProfile) }

// IsInvalidRole reports whether err represents ErrInvalidRole.
func IsInvalidRole(err error) bool { return errors.Is(err, ErrInvalidRole) }
