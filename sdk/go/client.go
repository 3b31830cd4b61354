package driftbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var fileIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]{8}$`)

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL is the root URL of the driftbox server.
	BaseURL string
	// Token is an optional session token from Signin or Signup.
	Token string
	// Timeout is the per-request timeout. Defaults to 5 minutes to
	// leave room for large payload transfers.
	Timeout time.Duration
	// HTTPClient overrides the default client when set. Timeout is
	// ignored in that case.
	HTTPClient *http.Client
}

// Client talks to a driftbox server.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, &ValidationError{Field: "BaseURL", Message: "is required"}
	}
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, &ValidationError{Field: "BaseURL", Message: "must be a valid URL"}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, &ValidationError{Field: "BaseURL", Message: "must use http or https"}
	}
	if parsed.Host == "" {
		return nil, &ValidationError{Field: "BaseURL", Message: "must include a host"}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 5 * time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
	}, nil
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetToken replaces the session token used for authenticated calls.
func (c *Client) SetToken(token string) {
	c.token = token
}

// String returns a representation with the session token redacted.
func (c *Client) String() string {
	token := "none"
	if c.token != "" {
		token = "***redacted***"
	}
	return fmt.Sprintf("driftbox.Client(baseURL=%q, token=%s)", c.baseURL, token)
}

func validateFileID(id string) error {
	if !fileIDPattern.MatchString(id) {
		return &ValidationError{Field: "fileID", Message: "must be 8 alphanumeric characters"}
	}
	return nil
}

// request performs an HTTP request against an API path and returns the
// raw response. Non-2xx responses are returned as-is; use decode or
// apiError to interpret them.
func (c *Client) request(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// requestJSON marshals body (when non-nil) and performs the request.
func (c *Client) requestJSON(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	contentType := ""
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
		contentType = "application/json"
	}
	return c.request(ctx, method, path, reader, contentType)
}

// decode consumes the response. Success bodies are unmarshalled into
// out (when non-nil); error bodies become an *APIError.
func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// apiError reads an error response body into an *APIError. The body is
// assumed to be consumed by the caller's defer when this is skipped.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var wire struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(body, &wire); err != nil || wire.Error == "" {
		wire.Error = strings.TrimSpace(string(body))
		if wire.Error == "" {
			wire.Error = http.StatusText(resp.StatusCode)
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       wire.Code,
		Message:    wire.Error,
		Err:        sentinelFor(wire.Code),
	}
}
