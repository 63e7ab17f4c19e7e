package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	sessionTokenHeader = "X-Session-Token"
	alreadyExistsCode  = "ALREADY_EXISTS"
)

// Client talks to the remote system of record. A session is established once
// per client lifetime via Login; the token is attached to every request.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

// NewClient constructs a remote client.
func NewClient(baseURL, username, password string) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("REMOTE_BASE_URL is required")
	}
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("REMOTE_USERNAME and REMOTE_PASSWORD are required")
	}
	timeout := 60 * time.Second
	if raw := strings.TrimSpace(os.Getenv("REMOTE_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type sessionRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string `json:"token"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Login establishes a session and stores its token for subsequent requests.
func (c *Client) Login(ctx context.Context) error {
	payload, err := json.Marshal(sessionRequest{Username: c.username, Password: c.password})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/session", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("login: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("login: http status %d: %s", resp.StatusCode, apiErrorMessage(body))
	}

	var session sessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return fmt.Errorf("login: parse response: %w", err)
	}
	if strings.TrimSpace(session.Token) == "" {
		return fmt.Errorf("login: empty session token")
	}

	c.mu.Lock()
	c.token = session.Token
	c.mu.Unlock()
	return nil
}

// Create attempts to create a record. An "already exists" rejection is
// reported as OutcomeExists with a nil error; all other failures return
// OutcomeFailed and the error.
func (c *Client) Create(ctx context.Context, rec Record) (CreateOutcome, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return OutcomeFailed, err
	}
	resp, body, err := c.do(ctx, http.MethodPost, "/records", payload)
	if err != nil {
		return OutcomeFailed, err
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return OutcomeCreated, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return OutcomeFailed, fmt.Errorf("create %s: %w", rec.ExternalKey, ErrSessionExpired)
	case resp.StatusCode == http.StatusBadRequest:
		var apiErr apiError
		if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil && apiErr.Code == alreadyExistsCode {
			return OutcomeExists, nil
		}
		return OutcomeFailed, fmt.Errorf("create %s: http status %d: %s", rec.ExternalKey, resp.StatusCode, apiErrorMessage(body))
	default:
		return OutcomeFailed, fmt.Errorf("create %s: http status %d: %s", rec.ExternalKey, resp.StatusCode, apiErrorMessage(body))
	}
}

// FetchExisting returns the remote's current field values for a key.
func (c *Client) FetchExisting(ctx context.Context, key string) (Record, error) {
	resp, body, err := c.do(ctx, http.MethodGet, "/records/"+url.PathEscape(key), nil)
	if err != nil {
		return Record{}, err
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		var rec Record
		if err := json.Unmarshal(body, &rec); err != nil {
			return Record{}, fmt.Errorf("fetch %s: parse response: %w", key, err)
		}
		return rec, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return Record{}, fmt.Errorf("fetch %s: %w", key, ErrSessionExpired)
	case resp.StatusCode == http.StatusNotFound:
		return Record{}, fmt.Errorf("fetch %s: %w", key, ErrNotFound)
	default:
		return Record{}, fmt.Errorf("fetch %s: http status %d: %s", key, resp.StatusCode, apiErrorMessage(body))
	}
}

type patchRequest struct {
	PurchasePrice float64 `json:"purchasePrice"`
	SalesPrice    float64 `json:"salesPrice"`
}

// Patch updates only the price fields of an existing record.
func (c *Client) Patch(ctx context.Context, key string, purchasePrice, salesPrice float64) error {
	payload, err := json.Marshal(patchRequest{PurchasePrice: purchasePrice, SalesPrice: salesPrice})
	if err != nil {
		return err
	}
	resp, body, err := c.do(ctx, http.MethodPatch, "/records/"+url.PathEscape(key), payload)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("patch %s: %w", key, ErrSessionExpired)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("patch %s: %w", key, ErrNotFound)
	default:
		return fmt.Errorf("patch %s: http status %d: %s", key, resp.StatusCode, apiErrorMessage(body))
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) (*http.Response, []byte, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token == "" {
		return nil, nil, ErrNotLoggedIn
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set(sessionTokenHeader, token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	return resp, body, nil
}

func apiErrorMessage(body []byte) string {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}
	msg := strings.TrimSpace(string(body))
	const maxLen = 200
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
