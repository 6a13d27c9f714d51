package coyoteapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var errBodyTooLarge = errors.New("response body exceeds limit")

// readBody reads at most maxBytes from r and fails if there is more.
func readBody(r io.Reader, maxBytes int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > maxBytes {
		return nil, errBodyTooLarge
	}
	return b, nil
}

// decodeJSON decodes exactly one JSON value from b into dst.
func decodeJSON(b []byte, dst any) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return errors.New("empty body")
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// Ensure there is no extra data after the first JSON value.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON value")
	}
	return nil
}

// envelope is the backend's error body. Only a string "message" counts.
type envelope struct {
	Message *string `json:"message"`
}

// failureMessage extracts the backend message from a non-2xx body, or the
// generic fallback when the body is not a strict envelope.
func failureMessage(status int, body []byte) (string, bool) {
	var env envelope
	if err := decodeJSON(body, &env); err == nil && env.Message != nil {
		if msg := strings.TrimSpace(*env.Message); msg != "" {
			return msg, true
		}
	}
	return fmt.Sprintf("request failed with status %d", status), false
}
