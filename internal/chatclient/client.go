package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ecosense/internal/identity"
	"ecosense/internal/models"
)

// historyAttempts is how many times History tries before giving up.
const historyAttempts = 3

// Client talks to the EcoSense backend over HTTP. Token is sent as a
// Bearer header, SessionID as the session cookie; the server prefers the
// header when both are present.
type Client struct {
	BaseURL    string
	Token      string
	SessionID  string
	HTTPClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// APIError is a non-2xx response, carrying the message from the server's
// error body.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// History fetches the conversation. Transient failures are retried up to
// three attempts with a short backoff; a 401 is returned immediately since
// retrying cannot fix a missing session.
func (c *Client) History(ctx context.Context) ([]models.ChatMessage, error) {
	var lastErr error
	for attempt := 1; attempt <= historyAttempts; attempt++ {
		var out models.ChatHistoryResponse
		err := c.do(ctx, http.MethodGet, "/api/chat/history", nil, &out)
		if err == nil {
			return out.Messages, nil
		}
		if IsUnauthorized(err) {
			return nil, err
		}
		lastErr = err

		if attempt < historyAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
	}
	return nil, lastErr
}

// Send submits a message and returns the assistant's reply.
func (c *Client) Send(ctx context.Context, message string) (models.ChatMessage, error) {
	var reply models.ChatMessage
	err := c.do(ctx, http.MethodPost, "/api/chat/message", models.SendMessageRequest{Message: message}, &reply)
	return reply, err
}

// ClearHistory deletes the conversation.
func (c *Client) ClearHistory(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/chat/history", nil, nil)
}

// Login exchanges a username and password for a session credential.
func (c *Client) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	var out models.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", models.LoginRequest{Username: username, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the user the server resolves the client's credentials to.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if c.SessionID != "" {
		req.AddCookie(&http.Cookie{Name: identity.SessionCookieName, Value: c.SessionID})
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp models.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Message == "" {
			errResp.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: errResp.Message}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
