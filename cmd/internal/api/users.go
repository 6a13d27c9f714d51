package coyoteapi

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"coyote/cmd/identity"
)

// FindUserByControlNumber looks a student up by control number.
//
// The route is public; a stored token is sent when present. A missing or null
// "user" (or a 404 carrying a backend message) yields LookupNotFound. A user
// whose id is not a strictly positive integer yields LookupMalformed.
func (c *Client) FindUserByControlNumber(ctx context.Context, controlNumber string) (LookupResult, error) {
	const op = "users.lookup"

	controlNumber = identity.NormalizeControlNumber(controlNumber)
	if controlNumber == "" {
		return LookupResult{}, invalidInput(op, "control number is required")
	}

	var resp lookupResponse
	err := c.doJSON(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   "/auth/check-control-number/" + url.PathEscape(controlNumber),
		auth:   authOptional,
	}, &resp)

	var ae *Error
	if errors.As(err, &ae) && ae.Status == http.StatusNotFound && ae.enveloped {
		return LookupResult{Status: LookupNotFound, Message: ae.Message}, nil
	}
	if err != nil {
		return LookupResult{}, err
	}

	msg := ""
	if resp.Message != nil {
		msg = strings.TrimSpace(*resp.Message)
	}

	raw := bytes.TrimSpace(resp.User)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		if msg == "" {
			msg = "no user with that control number"
		}
		return LookupResult{Status: LookupNotFound, Message: msg}, nil
	}

	p, err := identity.DecodeSubject(raw)
	if err != nil {
		c.log.Warn("users.lookup.malformed", "control_number", controlNumber, "err", err)
		return LookupResult{Status: LookupMalformed, Message: msg}, nil
	}
	return LookupResult{Status: LookupFound, Profile: &p, Message: msg}, nil
}

// DeleteUser removes a user account. The backend requires an admin token.
func (c *Client) DeleteUser(ctx context.Context, id int64) (MessageResponse, error) {
	const op = "admin.users.delete"

	if id <= 0 {
		return MessageResponse{}, invalidInput(op, "user id must be a positive integer")
	}

	body, err := c.do(ctx, request{
		op:     op,
		method: http.MethodDelete,
		path:   "/admin/users/delete/" + strconv.FormatInt(id, 10),
		auth:   authRequired,
	})
	if err != nil {
		return MessageResponse{}, err
	}

	var out MessageResponse
	if err := decodeJSON(body, &out); err != nil {
		return MessageResponse{}, malformed(op, http.StatusOK, err)
	}
	if out.Message == "" {
		out.Message = "user deleted"
	}
	c.log.Info("admin.users.delete.success", "user_id", id)
	return out, nil
}
