package coyoteapi

import (
	"encoding/json"
	"strings"

	"coyote/cmd/identity"
)

// RegisterInput holds the sign-up form as entered. Age and Semester are kept
// as text and must parse as positive integers.
type RegisterInput struct {
	ControlNumber string
	FullName      string
	Career        string
	Age           string
	Semester      string
	Password      string
}

type registerRequest struct {
	ControlNumber string `json:"controlNumber"`
	FullName      string `json:"fullName"`
	Career        string `json:"career"`
	Age           int    `json:"age"`
	Semester      int    `json:"semester"`
	Password      string `json:"password"`
}

type loginRequest struct {
	ControlNumber string `json:"controlNumber"`
	Password      string `json:"password"`
}

type tokenResponse struct {
	Token *string `json:"token"`
}

// LookupStatus is the outcome of a control-number lookup.
type LookupStatus int

const (
	LookupNotFound LookupStatus = iota
	LookupFound
	LookupMalformed
)

func (s LookupStatus) String() string {
	switch s {
	case LookupFound:
		return "found"
	case LookupNotFound:
		return "not_found"
	case LookupMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// MarshalText renders the status name in JSON output.
func (s LookupStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// LookupResult is the decoded answer of FindUserByControlNumber.
// Profile is set only when Status is LookupFound.
type LookupResult struct {
	Status  LookupStatus      `json:"status"`
	Profile *identity.Profile `json:"user,omitempty"`
	Message string            `json:"message,omitempty"`
}

type lookupResponse struct {
	User    json.RawMessage `json:"user"`
	Message *string         `json:"message"`
}

// DropoutInput is the dropout form. DropoutDate is a YYYY-MM-DD calendar day.
type DropoutInput struct {
	ControlNumber string
	DropoutType   string
	DropoutPeriod string
	AbsencePeriod string
	DropoutDate   string
	Reason        string
}

type dropoutRequest struct {
	UserID        int64  `json:"user_id"`
	DropoutType   string `json:"dropout_type"`
	DropoutPeriod string `json:"dropout_period"`
	AbsencePeriod string `json:"absence_period"`
	DropoutDate   string `json:"dropout_date"`
	Reason        string `json:"reason"`
}

// Dropout is a registered dropout record.
type Dropout struct {
	ID            int64  `json:"id"`
	UserID        int64  `json:"user_id,omitempty"`
	ControlNumber string `json:"control_number,omitempty"`
	FullName      string `json:"full_name,omitempty"`
	DropoutType   string `json:"dropout_type"`
	DropoutPeriod string `json:"dropout_period"`
	AbsencePeriod string `json:"absence_period"`
	DropoutDate   string `json:"dropout_date"`
	Reason        string `json:"reason"`
}

type dropoutWire struct {
	ID                 json.RawMessage `json:"id"`
	UserID             json.RawMessage `json:"user_id"`
	ControlNumber      string          `json:"control_number"`
	ControlNumberCamel string          `json:"controlNumber"`
	FullName           string          `json:"full_name"`
	FullNameCamel      string          `json:"fullName"`
	DropoutType        string          `json:"dropout_type"`
	DropoutPeriod      string          `json:"dropout_period"`
	AbsencePeriod      string          `json:"absence_period"`
	DropoutDate        string          `json:"dropout_date"`
	Reason             string          `json:"reason"`
}

// UnmarshalJSON requires a positive integer id. Dates that come back as
// timestamps are cut to the calendar day.
func (d *Dropout) UnmarshalJSON(b []byte) error {
	var w dropoutWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	id, err := identity.ParseID(w.ID)
	if err != nil {
		return err
	}
	var userID int64
	if len(w.UserID) > 0 && string(w.UserID) != "null" {
		if userID, err = identity.ParseID(w.UserID); err != nil {
			return err
		}
	}
	*d = Dropout{
		ID:            id,
		UserID:        userID,
		ControlNumber: firstNonEmpty(w.ControlNumber, w.ControlNumberCamel),
		FullName:      identity.NormalizeName(firstNonEmpty(w.FullName, w.FullNameCamel)),
		DropoutType:   w.DropoutType,
		DropoutPeriod: w.DropoutPeriod,
		AbsencePeriod: w.AbsencePeriod,
		DropoutDate:   calendarDay(w.DropoutDate),
		Reason:        w.Reason,
	}
	return nil
}

type dropoutsResponse struct {
	Dropouts *[]Dropout `json:"dropouts"`
}

// DropoutRegistration is the backend's answer to a dropout submission.
type DropoutRegistration struct {
	Message string   `json:"message,omitempty"`
	Dropout *Dropout `json:"dropout,omitempty"`
}

// FileRef points at a local file to upload.
type FileRef struct {
	Path        string
	Name        string
	ContentType string
}

type uploadResponse struct {
	FileURL *string `json:"fileUrl"`
}

// PostInput is the create-post form.
type PostInput struct {
	Title     string
	Prompt    string
	Thumbnail FileRef
	Video     FileRef
	// UserID is the author; zero lets the backend derive it from the token.
	UserID int64
}

type postRequest struct {
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail"`
	Video     string `json:"video"`
	Prompt    string `json:"prompt"`
	UserID    int64  `json:"userId,omitempty"`
}

// Post is a video post of the legacy feed.
type Post struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail"`
	Video     string `json:"video"`
	Prompt    string `json:"prompt"`
	UserID    int64  `json:"userId,omitempty"`
	Creator   string `json:"creator,omitempty"`
}

type postWire struct {
	ID          json.RawMessage `json:"id"`
	Title       string          `json:"title"`
	Thumbnail   string          `json:"thumbnail"`
	Video       string          `json:"video"`
	Prompt      string          `json:"prompt"`
	UserID      json.RawMessage `json:"userId"`
	UserIDSnake json.RawMessage `json:"user_id"`
	Creator     json.RawMessage `json:"creator"`
}

// UnmarshalJSON requires a positive integer id. The creator may be a name or
// an embedded user object.
func (p *Post) UnmarshalJSON(b []byte) error {
	var w postWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	id, err := identity.ParseID(w.ID)
	if err != nil {
		return err
	}
	out := Post{
		ID:        id,
		Title:     w.Title,
		Thumbnail: w.Thumbnail,
		Video:     w.Video,
		Prompt:    w.Prompt,
		Creator:   creatorName(w.Creator),
	}
	for _, raw := range []json.RawMessage{w.UserID, w.UserIDSnake} {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		if out.UserID, err = identity.ParseID(raw); err != nil {
			return err
		}
		break
	}
	*p = out
	return nil
}

func creatorName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		FullName      string `json:"fullName"`
		FullNameSnake string `json:"full_name"`
		Username      string `json:"username"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return firstNonEmpty(obj.FullName, obj.FullNameSnake, obj.Username)
	}
	return ""
}

// MessageResponse is a bare confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func calendarDay(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, 'T'); i == len(dateLayout) {
		return s[:i]
	}
	return s
}
