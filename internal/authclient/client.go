package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/authkit/session-auth/internal/api/dto"
	"github.com/authkit/session-auth/internal/domain"
	apperrors "github.com/authkit/session-auth/pkg/util"
)

// Messages surfaced to users when the server gives nothing better.
const (
	MsgRequestFailed = "Request failed"
	MsgNetworkError  = "Network error. Please check your connection."
)

// APIError is a non-2xx response carrying the normalized error body.
type APIError struct {
	Status int
	Errors []apperrors.Issue
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message())
}

// Message returns the first error message, the one a form displays.
func (e *APIError) Message() string {
	if len(e.Errors) == 0 || e.Errors[0].Message == "" {
		return MsgRequestFailed
	}
	return e.Errors[0].Message
}

// FieldErrors maps field names to messages for inline form errors.
func (e *APIError) FieldErrors() map[string]string {
	out := make(map[string]string, len(e.Errors))
	for _, issue := range e.Errors {
		if name := issue.FieldName(); name != "" {
			if _, exists := out[name]; !exists {
				out[name] = issue.Message
			}
		}
	}
	return out
}

// NetworkError wraps a request that never produced a response.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return MsgNetworkError }

func (e *NetworkError) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Client calls the auth endpoints, carrying the session cookie in a jar.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for baseURL. A nil httpClient gets a cookie jar and a
// ten second timeout; a custom one must bring its own jar.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		httpClient = &http.Client{Jar: jar, Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}, nil
}

// Register creates an account and stores the session cookie.
func (c *Client) Register(ctx context.Context, req dto.RegisterRequest) (*domain.PublicUser, error) {
	var resp dto.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Login authenticates and stores the session cookie.
func (c *Client) Login(ctx context.Context, req dto.LoginRequest) (*domain.PublicUser, error) {
	var resp dto.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Verify returns the user behind the current session.
func (c *Client) Verify(ctx context.Context) (*domain.PublicUser, error) {
	var resp dto.UserResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/verify", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Logout ends the session.
func (c *Client) Logout(ctx context.Context) error {
	var resp dto.MessageResponse
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, &resp)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var errBody apperrors.Response
		if json.NewDecoder(resp.Body).Decode(&errBody) == nil {
			apiErr.Errors = errBody.Errors
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
