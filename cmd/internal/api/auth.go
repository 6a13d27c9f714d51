package coyoteapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"coyote/cmd/identity"
	"coyote/cmd/security/token"
)

// Register creates an account, stores the returned token and then signs in
// with the same credentials, so the caller ends up with a fresh session.
func (c *Client) Register(ctx context.Context, in RegisterInput) (identity.Profile, error) {
	const op = "auth.register"

	body, err := in.validate(op)
	if err != nil {
		return identity.Profile{}, err
	}

	var resp tokenResponse
	if err := c.doJSON(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "/auth/register",
		auth:   authNone,
		json:   body,
	}, &resp); err != nil {
		return identity.Profile{}, err
	}

	if resp.Token != nil {
		if tok, err := token.Normalize(*resp.Token); err == nil {
			if err := c.tokens.Save(ctx, tok); err != nil {
				return identity.Profile{}, &Error{Op: op, Kind: ErrRequestFailed, Message: "could not store the session token", Err: err}
			}
		}
	}

	return c.SignIn(ctx, body.ControlNumber, body.Password)
}

// SignIn exchanges credentials for a token, persists it and resolves the profile.
// On any failure the persisted token is deleted.
func (c *Client) SignIn(ctx context.Context, controlNumber, password string) (p identity.Profile, err error) {
	const op = "auth.login"

	controlNumber = identity.NormalizeControlNumber(controlNumber)
	if controlNumber == "" || password == "" {
		return identity.Profile{}, invalidInput(op, "control number and password are required")
	}

	var saved string
	defer func() {
		if err == nil || errors.Is(err, ErrUnauthorized) {
			return
		}
		c.invalidate(ctx, InvalidationSignInFailed, saved)
	}()

	var resp tokenResponse
	if err := c.doJSON(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "/auth/login",
		auth:   authNone,
		json:   loginRequest{ControlNumber: controlNumber, Password: password},
	}, &resp); err != nil {
		return identity.Profile{}, err
	}
	if resp.Token == nil {
		return identity.Profile{}, malformed(op, http.StatusOK, errors.New("missing token"))
	}
	tok, err := token.Normalize(*resp.Token)
	if err != nil {
		return identity.Profile{}, malformed(op, http.StatusOK, err)
	}
	if err := c.tokens.Save(ctx, tok); err != nil {
		return identity.Profile{}, &Error{Op: op, Kind: ErrRequestFailed, Message: "could not store the session token", Err: err}
	}
	saved = tok

	p, ok, err := c.CurrentUser(ctx)
	if err != nil {
		return identity.Profile{}, err
	}
	if !ok {
		return identity.Profile{}, newError(op, ErrMalformedResponse, "signed in but no profile was returned")
	}
	c.log.Info("auth.login.success", "user_id", p.ID, "role", string(p.Role), "token_fp", token.Fingerprint(tok))
	return p, nil
}

// CurrentUser resolves the stored token into a profile.
// Without a stored token it returns ok=false and makes no request.
func (c *Client) CurrentUser(ctx context.Context) (identity.Profile, bool, error) {
	const op = "users.me"

	if _, ok, err := c.tokens.Load(ctx); err != nil {
		return identity.Profile{}, false, &Error{Op: op, Kind: ErrMissingCredential, Message: "could not read the session token", Err: err}
	} else if !ok {
		return identity.Profile{}, false, nil
	}

	body, err := c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   "/users/me",
		auth:   authRequired,
	})
	if err != nil {
		return identity.Profile{}, false, err
	}

	p, err := decodeMe(body)
	if err != nil {
		return identity.Profile{}, false, malformed(op, http.StatusOK, err)
	}
	return p, true, nil
}

// decodeMe accepts the profile object itself or one wrapped as {"user": {...}}.
func decodeMe(body []byte) (identity.Profile, error) {
	var wrapped struct {
		User json.RawMessage `json:"user"`
	}
	if err := decodeJSON(body, &wrapped); err != nil {
		return identity.Profile{}, err
	}
	if raw := bytes.TrimSpace(wrapped.User); len(raw) > 0 && raw[0] == '{' {
		return identity.DecodeProfile(raw)
	}
	return identity.DecodeProfile(body)
}

// SignOut deletes the stored token. Signing out twice is not an error.
func (c *Client) SignOut(ctx context.Context) error {
	tok, _, _ := c.tokens.Load(ctx)
	if err := c.tokens.Delete(context.WithoutCancel(ctx)); err != nil {
		return &Error{Op: "auth.logout", Kind: ErrRequestFailed, Message: "could not remove the session token", Err: err}
	}
	if strings.TrimSpace(tok) != "" {
		c.metrics.tokenInvalidated(InvalidationSignOut)
		c.log.Info("auth.logout", "token_fp", token.Fingerprint(tok))
	}
	return nil
}
