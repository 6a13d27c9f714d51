package coyoteapi

import (
	"os"
	"strconv"
	"strings"
	"time"

	"coyote/cmd/identity"
)

const dateLayout = "2006-01-02"

func (in RegisterInput) validate(op string) (registerRequest, error) {
	req := registerRequest{
		ControlNumber: identity.NormalizeControlNumber(in.ControlNumber),
		FullName:      identity.NormalizeName(in.FullName),
		Career:        strings.TrimSpace(in.Career),
		Password:      in.Password,
	}
	if req.ControlNumber == "" || req.FullName == "" || req.Career == "" ||
		strings.TrimSpace(in.Age) == "" || strings.TrimSpace(in.Semester) == "" || in.Password == "" {
		return registerRequest{}, invalidInput(op, "all fields are required")
	}

	var ok bool
	if req.Age, ok = positiveInt(in.Age); !ok {
		return registerRequest{}, invalidInput(op, "age must be a positive whole number")
	}
	if req.Semester, ok = positiveInt(in.Semester); !ok {
		return registerRequest{}, invalidInput(op, "semester must be a positive whole number")
	}
	return req, nil
}

func (in DropoutInput) validate(op string) (DropoutInput, error) {
	out := DropoutInput{
		ControlNumber: identity.NormalizeControlNumber(in.ControlNumber),
		DropoutType:   strings.TrimSpace(in.DropoutType),
		DropoutPeriod: strings.TrimSpace(in.DropoutPeriod),
		AbsencePeriod: strings.TrimSpace(in.AbsencePeriod),
		DropoutDate:   strings.TrimSpace(in.DropoutDate),
		Reason:        strings.TrimSpace(in.Reason),
	}
	if out.ControlNumber == "" || out.DropoutType == "" || out.DropoutPeriod == "" ||
		out.AbsencePeriod == "" || out.DropoutDate == "" || out.Reason == "" {
		return DropoutInput{}, invalidInput(op, "all fields are required")
	}
	if !isCalendarDay(out.DropoutDate) {
		return DropoutInput{}, invalidInput(op, "dropout date must be a valid YYYY-MM-DD day")
	}
	return out, nil
}

func (f FileRef) validate(op string) (FileRef, error) {
	f.Path = strings.TrimSpace(f.Path)
	if f.Path == "" {
		return FileRef{}, invalidInput(op, "file path is required")
	}
	info, err := os.Stat(f.Path)
	if err != nil {
		return FileRef{}, &Error{Op: op, Kind: ErrInvalidInput, Message: "file is not readable", Err: err}
	}
	if info.IsDir() {
		return FileRef{}, invalidInput(op, "file path is a directory")
	}
	return f, nil
}

func (in PostInput) validate(op string) (PostInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Prompt = strings.TrimSpace(in.Prompt)
	if in.Title == "" || in.Prompt == "" ||
		strings.TrimSpace(in.Thumbnail.Path) == "" || strings.TrimSpace(in.Video.Path) == "" {
		return PostInput{}, invalidInput(op, "title, prompt, thumbnail and video are required")
	}
	if in.UserID < 0 {
		return PostInput{}, invalidInput(op, "user id must be positive")
	}
	return in, nil
}

// positiveInt parses s as a base-10 integer greater than zero.
func positiveInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// isCalendarDay reports whether s is exactly YYYY-MM-DD and names a real day.
func isCalendarDay(s string) bool {
	if len(s) != len(dateLayout) {
		return false
	}
	t, err := time.Parse(dateLayout, s)
	return err == nil && t.Format(dateLayout) == s
}
