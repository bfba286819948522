package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/weddingphotos/server/internal/models"
)

// DefaultSessionCookie is the cookie the server stores the web session in
const DefaultSessionCookie = "session_token"

// APIError is an error answer from the wedding photos server
type APIError struct {
	StatusCode int
	Message    string
	Details    []string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	return msg
}

// APIClient calls the server's upload and sign-in endpoints
type APIClient struct {
	baseURL      string
	httpClient   *http.Client
	cookieName   string
	sessionToken string
}

// NewAPIClient creates a client for the server at baseURL authenticated with
// sessionToken, which may be empty for sign-in calls.
func NewAPIClient(baseURL, sessionToken string, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		cookieName:   DefaultSessionCookie,
		sessionToken: sessionToken,
	}
}

// RequestMagicLink asks the server to email a sign-in link and code
func (c *APIClient) RequestMagicLink(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/magic-link", models.MagicLinkRequest{Email: email}, nil)
}

// VerifyCode redeems an emailed code and returns the new session token
func (c *APIClient) VerifyCode(ctx context.Context, email, code string) (string, error) {
	resp, err := c.send(ctx, http.MethodPost, "/api/auth/verify-code", models.VerifyCodeRequest{Email: email, Code: code})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	for _, cookie := range resp.Cookies() {
		if cookie.Name == c.cookieName && cookie.Value != "" {
			c.sessionToken = cookie.Value
			return cookie.Value, nil
		}
	}
	return "", fmt.Errorf("server did not set the %s cookie", c.cookieName)
}

// Negotiate opens an upload batch for files
func (c *APIClient) Negotiate(ctx context.Context, files []models.FileDescriptor) (*models.NegotiateResult, error) {
	var out models.NegotiateResult
	if err := c.do(ctx, http.MethodPost, "/api/uploads/negotiate", models.NegotiateRequest{Files: files}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Finalize materializes uploaded tokens into media items
func (c *APIClient) Finalize(ctx context.Context, req models.FinalizeRequest) (*models.FinalizeResult, error) {
	var out models.FinalizeResult
	if err := c.do(ctx, http.MethodPost, "/api/uploads/finalize", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// send performs a JSON request and turns non-2xx answers into *APIError.
// The caller closes the body of a successful response.
func (c *APIClient) send(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: c.sessionToken})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var errResp models.ErrorResponse
	if data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20)); json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
		apiErr.Message = errResp.Error
		apiErr.Details = errResp.Details
	}
	return nil, apiErr
}
