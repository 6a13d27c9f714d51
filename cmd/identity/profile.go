package identity

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Role is the closed set of roles the backend assigns.
type Role string

const (
	// RoleStudent is an enrolled student.
	RoleStudent Role = "student"
	// RoleAdmin is school staff with access to dropouts and user management.
	RoleAdmin Role = "admin"
)

// ParseRole maps a wire value onto the closed role set.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleStudent:
		return RoleStudent, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", OpError{Op: "identity.ParseRole", Kind: ErrInvalidRole, Msg: strconv.Quote(s)}
	}
}

// Profile is the client-side projection of a backend user.
// It is never persisted; it is re-derived from the session token.
type Profile struct {
	ID            int64  `json:"id"`
	ControlNumber string `json:"controlNumber"`
	FullName      string `json:"fullName"`
	Role          Role   `json:"role"`

	// Student attributes; admins usually carry none of these.
	Career   string `json:"career,omitempty"`
	Semester *int   `json:"semester,omitempty"`
	Age      *int   `json:"age,omitempty"`
}

// IsAdmin reports whether the profile holds the admin role.
func (p Profile) IsAdmin() bool { return p.Role == RoleAdmin }

// profileWire accepts both the camelCase fields of /users/me and the
// snake_case variants emitted by the admin listings.
type profileWire struct {
	ID json.RawMessage `json:"id"`

	ControlNumber      string `json:"controlNumber"`
	ControlNumberSnake string `json:"control_number"`
	FullName           string `json:"fullName"`
	FullNameSnake      string `json:"full_name"`

	Career   string `json:"career"`
	Semester *int   `json:"semester"`
	Age      *int   `json:"age"`
	Role     string `json:"role"`
}

// UnmarshalJSON decodes a profile strictly: the id must be a strictly positive
// integer literal and the role must belong to the closed set.
func (p *Profile) UnmarshalJSON(b []byte) error {
	out, err := decodeProfile(b, true)
	if err != nil {
		return err
	}
	*p = out
	return nil
}

// DecodeProfile decodes raw JSON into a Profile; null or empty input is rejected.
func DecodeProfile(raw []byte) (Profile, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Profile{}, invalidProfile("missing user object")
	}
	return decodeProfile(raw, true)
}

// DecodeSubject is DecodeProfile for lookup answers, which may omit the role.
// A role that is present must still belong to the closed set.
func DecodeSubject(raw []byte) (Profile, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Profile{}, invalidProfile("missing user object")
	}
	return decodeProfile(raw, false)
}

func decodeProfile(b []byte, requireRole bool) (Profile, error) {
	var w profileWire
	if err := json.Unmarshal(b, &w); err != nil {
		return Profile{}, invalidProfile(err.Error())
	}

	id, err := ParseID(w.ID)
	if err != nil {
		return Profile{}, err
	}

	var role Role
	if requireRole || strings.TrimSpace(w.Role) != "" {
		if role, err = ParseRole(w.Role); err != nil {
			return Profile{}, invalidProfile("role: " + err.Error())
		}
	}

	return Profile{
		ID:            id,
		ControlNumber: firstNonEmpty(w.ControlNumber, w.ControlNumberSnake),
		FullName:      NormalizeName(firstNonEmpty(w.FullName, w.FullNameSnake)),
		Role:          role,
		Career:        strings.TrimSpace(w.Career),
		Semester:      w.Semester,
		Age:           w.Age,
	}, nil
}

// ParseID accepts only a JSON integer literal greater than zero.
// Strings ("7"), fractions (7.5), exponents (7e0), zero and negatives are rejected.
func ParseID(raw json.RawMessage) (int64, error) {
	s := string(bytes.TrimSpace(raw))
	if s == "" || s == "null" {
		return 0, invalidProfile("missing id")
	}
	if strings.HasPrefix(s, `"`) {
		return 0, invalidProfile("id is not a number")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, invalidProfile("id is not an integer: " + s)
	}
	if id <= 0 {
		return 0, invalidProfile("id must be positive")
	}
	return id, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
