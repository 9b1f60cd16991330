// Package client is a Go SDK for the Campus Connect API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrNotAuthenticated is returned when a call needs a token and none is set.
var ErrNotAuthenticated = errors.New("campus client: not authenticated")

// Client talks to one Campus Connect server. It is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

// New returns a client for cfg. An APIKey, when set, becomes the initial
// access token.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ProfileTimeout == 0 {
		cfg.ProfileTimeout = DefaultProfileTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{cfg: cfg, http: hc, accessToken: cfg.APIKey}
}

// BaseURL is the server the client talks to.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// Token returns the current access token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// ExpiresAt is when the current access token expires, if known.
func (c *Client) ExpiresAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.expiresAt
}

// RefreshToken returns the current refresh token.
func (c *Client) RefreshToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshToken
}

// SetTokens replaces the stored token pair, e.g. when restoring a saved session.
func (c *Client) SetTokens(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken, c.refreshToken = access, refresh
}

func (c *Client) storeTokens(res *AuthResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = res.AccessToken
	c.refreshToken = res.RefreshToken
	c.expiresAt = res.ExpiresAt
}

// Login exchanges credentials for a token pair and keeps it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var res AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, body, false, &res); err != nil {
		return nil, err
	}
	c.storeTokens(&res)
	return &res, nil
}

// Refresh rotates the refresh token. The old refresh token stops working.
func (c *Client) Refresh(ctx context.Context) (*AuthResult, error) {
	refresh := c.RefreshToken()
	if refresh == "" {
		return nil, ErrNotAuthenticated
	}
	var res AuthResult
	body := map[string]string{"refresh_token": refresh}
	if err := c.do(ctx, http.MethodPost, "/api/auth/refresh", nil, body, false, &res); err != nil {
		return nil, err
	}
	c.storeTokens(&res)
	return &res, nil
}

// Logout revokes both tokens server side and forgets them locally.
func (c *Client) Logout(ctx context.Context) error {
	body := map[string]string{"refresh_token": c.RefreshToken()}
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, body, c.Token() != "", nil)
	c.SetTokens("", "")
	return err
}

// Bootstrap runs the server-side session check for the current token.
func (c *Client) Bootstrap(ctx context.Context) (*SessionState, error) {
	var state SessionState
	if err := c.do(ctx, http.MethodGet, "/api/auth/session", nil, nil, true, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// NoticeQuery filters Notices.
type NoticeQuery struct {
	Category       string
	Search         string
	IncludeExpired bool
	Limit, Offset  int
}

// Notices lists the notices visible to the caller.
func (c *Client) Notices(ctx context.Context, q NoticeQuery) (*Page[Notice], error) {
	v := url.Values{}
	setIf(v, "category", q.Category)
	setIf(v, "q", q.Search)
	if q.IncludeExpired {
		v.Set("include_expired", "true")
	}
	paginate(v, q.Limit, q.Offset)

	var page Page[Notice]
	if err := c.do(ctx, http.MethodGet, "/api/notices", v, nil, true, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// EventQuery filters Events. Scope is upcoming, past or all.
type EventQuery struct {
	Scope         string
	Category      string
	Search        string
	Mine          bool
	Limit, Offset int
}

// Events lists campus events.
func (c *Client) Events(ctx context.Context, q EventQuery) (*Page[Event], error) {
	v := url.Values{}
	setIf(v, "scope", q.Scope)
	setIf(v, "category", q.Category)
	setIf(v, "q", q.Search)
	if q.Mine {
		v.Set("mine", "true")
	}
	paginate(v, q.Limit, q.Offset)

	var page Page[Event]
	if err := c.do(ctx, http.MethodGet, "/api/events", v, nil, true, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// RegisterForEvent signs the caller up for an event.
func (c *Client) RegisterForEvent(ctx context.Context, eventID uint) error {
	path := fmt.Sprintf("/api/events/%d/register", eventID)
	return c.do(ctx, http.MethodPost, path, nil, nil, true, nil)
}

// Dashboard returns the caller's dashboard.
func (c *Client) Dashboard(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	if err := c.do(ctx, http.MethodGet, "/api/dashboard", nil, nil, true, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// WSTicket issues a single-use websocket ticket.
func (c *Client) WSTicket(ctx context.Context) (string, error) {
	var res struct {
		Ticket string `json:"ticket"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/ws/ticket", nil, nil, true, &res); err != nil {
		return "", err
	}
	return res.Ticket, nil
}

// WebsocketURL is the realtime endpoint authenticated by ticket.
func (c *Client) WebsocketURL(ticket string) string {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return ""
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/ws"
	u.RawQuery = url.Values{"ticket": {ticket}}.Encode()
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, authed bool, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	target := c.cfg.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token := c.Token()
		if token == "" {
			return ErrNotAuthenticated
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

func paginate(v url.Values, limit, offset int) {
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		v.Set("offset", strconv.Itoa(offset))
	}
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
