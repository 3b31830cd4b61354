package driftbox

import (
	"context"
	"net/http"
)

// Signup registers a new account and stores the returned session token
// on the client. Email is optional; accounts with one must verify it
// before uploads are accepted under the account identity.
func (c *Client) Signup(ctx context.Context, username, password, email string) (*AuthResult, error) {
	if username == "" {
		return nil, &ValidationError{Field: "username", Message: "is required"}
	}
	if password == "" {
		return nil, &ValidationError{Field: "password", Message: "is required"}
	}

	resp, err := c.requestJSON(ctx, http.MethodPost, "/api/auth/signup", map[string]string{
		"username": username,
		"password": password,
		"email":    email,
	})
	if err != nil {
		return nil, err
	}

	var result AuthResult
	if err := decode(resp, &result); err != nil {
		return nil, err
	}
	c.token = result.Token
	return &result, nil
}

// Signin authenticates with a username or email and stores the returned
// session token on the client.
func (c *Client) Signin(ctx context.Context, identifier, password string) (*AuthResult, error) {
	if identifier == "" || password == "" {
		return nil, &ValidationError{Message: "username and password are required"}
	}

	resp, err := c.requestJSON(ctx, http.MethodPost, "/api/auth/signin", map[string]string{
		"username": identifier,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	var result AuthResult
	if err := decode(resp, &result); err != nil {
		return nil, err
	}
	c.token = result.Token
	return &result, nil
}

// Signout invalidates the current session and clears the stored token.
func (c *Client) Signout(ctx context.Context) error {
	resp, err := c.requestJSON(ctx, http.MethodPost, "/api/auth/signout", nil)
	if err != nil {
		return err
	}
	if err := decode(resp, nil); err != nil {
		return err
	}
	c.token = ""
	return nil
}

// Me returns the account behind the current session token.
func (c *Client) Me(ctx context.Context) (*User, error) {
	resp, err := c.requestJSON(ctx, http.MethodGet, "/api/auth/me", nil)
	if err != nil {
		return nil, err
	}

	var wire struct {
		User User `json:"user"`
	}
	if err := decode(resp, &wire); err != nil {
		return nil, err
	}
	return &wire.User, nil
}

// VerifyEmail confirms the account email with the mailed code.
func (c *Client) VerifyEmail(ctx context.Context, code string) error {
	if code == "" {
		return &ValidationError{Field: "code", Message: "is required"}
	}

	resp, err := c.requestJSON(ctx, http.MethodPost, "/api/auth/verify", map[string]string{
		"code": code,
	})
	if err != nil {
		return err
	}
	return decode(resp, nil)
}
