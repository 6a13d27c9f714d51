package coyoteapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"coyote/cmd/identity"
)

// RegisterDropout records a dropout for the student behind in.ControlNumber.
//
// It is a client-side two-step workflow with no backend atomicity:
//  1. resolve the control number to a user id (FindUserByControlNumber);
//  2. submit the dropout with that id.
//
// If step 1 does not yield a strictly positive id the dropout endpoint is never
// called. A failure in step 2 leaves nothing behind, so the call is safe to retry.
// Failures are *DropoutError values naming the phase.
func (c *Client) RegisterDropout(ctx context.Context, in DropoutInput) (DropoutRegistration, error) {
	const op = "admin.dropouts.register"

	in, err := in.validate(op)
	if err != nil {
		return DropoutRegistration{}, err
	}
	if _, err := c.bearer(ctx, request{op: op, auth: authRequired}); err != nil {
		return DropoutRegistration{}, err
	}

	userID, err := c.resolveSubject(ctx, in.ControlNumber)
	if err != nil {
		c.log.Warn("admin.dropouts.register.resolve.fail", "control_number", in.ControlNumber, "err", err)
		return DropoutRegistration{}, &DropoutError{Phase: PhaseResolveSubject, Err: err}
	}

	body, err := c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "/admin/dropouts/register",
		auth:   authRequired,
		json: dropoutRequest{
			UserID:        userID,
			DropoutType:   in.DropoutType,
			DropoutPeriod: in.DropoutPeriod,
			AbsencePeriod: in.AbsencePeriod,
			DropoutDate:   in.DropoutDate,
			Reason:        in.Reason,
		},
	})
	if err != nil {
		c.log.Warn("admin.dropouts.register.submit.fail", "user_id", userID, "err", err)
		return DropoutRegistration{}, &DropoutError{Phase: PhaseSubmitDropout, Err: err}
	}

	out, err := decodeRegistration(body)
	if err != nil {
		return DropoutRegistration{}, &DropoutError{Phase: PhaseSubmitDropout, Err: malformed(op, http.StatusOK, err)}
	}
	c.log.Info("admin.dropouts.register.success", "user_id", userID)
	return out, nil
}

func (c *Client) resolveSubject(ctx context.Context, controlNumber string) (int64, error) {
	const op = "admin.dropouts.resolve"

	res, err := c.FindUserByControlNumber(ctx, controlNumber)
	if err != nil {
		return 0, err
	}
	switch res.Status {
	case LookupFound:
		if res.Profile == nil || res.Profile.ID <= 0 {
			return 0, newError(op, ErrMalformedResponse, "lookup returned no usable id")
		}
		return res.Profile.ID, nil
	case LookupMalformed:
		return 0, &Error{Op: op, Kind: ErrMalformedResponse, Message: ErrResolveSubjectFailed.Error(), Err: identity.ErrInvalidProfile}
	default:
		msg := res.Message
		if msg == "" {
			msg = ErrResolveSubjectFailed.Error()
		}
		return 0, &Error{Op: op, Kind: ErrSubjectNotFound, Message: msg}
	}
}

// decodeRegistration reads {"message": ..., "dropout": {...}}; both are optional
// but the body must be a JSON object.
func decodeRegistration(body []byte) (DropoutRegistration, error) {
	var w struct {
		Message string          `json:"message"`
		Dropout json.RawMessage `json:"dropout"`
	}
	if err := decodeJSON(body, &w); err != nil {
		return DropoutRegistration{}, err
	}
	out := DropoutRegistration{Message: strings.TrimSpace(w.Message)}
	if raw := strings.TrimSpace(string(w.Dropout)); raw != "" && raw != "null" {
		var d Dropout
		if err := json.Unmarshal(w.Dropout, &d); err != nil {
			return DropoutRegistration{}, err
		}
		out.Dropout = &d
	}
	if out.Message == "" {
		out.Message = "dropout registered"
	}
	return out, nil
}

// ListDropouts returns every registered dropout.
func (c *Client) ListDropouts(ctx context.Context) ([]Dropout, error) {
	return c.listDropouts(ctx, "admin.dropouts.list", "/admin/dropouts")
}

// SearchDropouts returns the dropouts of one control number.
// An empty query behaves as ListDropouts.
func (c *Client) SearchDropouts(ctx context.Context, controlNumber string) ([]Dropout, error) {
	controlNumber = identity.NormalizeControlNumber(controlNumber)
	if controlNumber == "" {
		return c.ListDropouts(ctx)
	}
	return c.listDropouts(ctx, "admin.dropouts.search", "/admin/dropouts/"+url.PathEscape(controlNumber))
}

func (c *Client) listDropouts(ctx context.Context, op, path string) ([]Dropout, error) {
	var resp dropoutsResponse
	if err := c.doJSON(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   path,
		auth:   authRequired,
	}, &resp); err != nil {
		return nil, err
	}
	if resp.Dropouts == nil {
		return nil, malformed(op, http.StatusOK, errors.New(`missing "dropouts"`))
	}
	return *resp.Dropouts, nil
}
