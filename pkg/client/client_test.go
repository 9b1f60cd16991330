package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// fakeCampus is a minimal stand-in for the API server.
type fakeCampus struct {
	t *testing.T

	mu        sync.Mutex
	access    string
	refresh   string
	refreshes atomic.Int32

	sessionDelay time.Duration
	sessionCode  int
}

func newFakeCampus(t *testing.T) (*fakeCampus, *httptest.Server) {
	f := &fakeCampus{t: t, access: "access-0", refresh: "refresh-0"}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", f.login)
	mux.HandleFunc("POST /api/auth/refresh", f.rotate)
	mux.HandleFunc("GET /api/auth/session", f.session)
	mux.HandleFunc("GET /api/notices", f.notices)
	mux.HandleFunc("GET /api/dashboard", f.dashboard)
	mux.HandleFunc("POST /api/ws/ticket", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"ticket": "tkt"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeCampus) authorized(w http.ResponseWriter, r *http.Request) bool {
	f.mu.Lock()
	want := "Bearer " + f.access
	f.mu.Unlock()
	if r.Header.Get("Authorization") != want {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token", "code": "UNAUTHORIZED"})
		return false
	}
	return true
}

func (f *fakeCampus) result() AuthResult {
	return AuthResult{
		AccessToken:     f.access,
		RefreshToken:    f.refresh,
		TokenType:       "Bearer",
		ExpiresIn:       900,
		RefreshInterval: 600,
		Profile:         &Profile{ID: 7, Email: "ada@campus.edu", FullName: "Ada Lovelace", Role: "faculty"},
	}
}

func (f *fakeCampus) login(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
	if body["password"] != "right" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials", "code": "UNAUTHORIZED"})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, f.result())
}

func (f *fakeCampus) rotate(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
	f.mu.Lock()
	defer f.mu.Unlock()
	if body["refresh_token"] != f.refresh {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Refresh token reuse detected", "code": "UNAUTHORIZED"})
		return
	}
	n := f.refreshes.Add(1)
	f.access = "access-" + strconv.Itoa(int(n))
	f.refresh = "refresh-" + strconv.Itoa(int(n))
	writeJSON(w, http.StatusOK, f.result())
}

func (f *fakeCampus) session(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	if f.sessionDelay > 0 {
		select {
		case <-time.After(f.sessionDelay):
		case <-r.Context().Done():
			return
		}
	}
	if f.sessionCode != 0 {
		writeJSON(w, f.sessionCode, map[string]string{"error": "boom"})
		return
	}
	writeJSON(w, http.StatusOK, SessionState{
		Profile:         &Profile{ID: 7, Email: "ada@campus.edu", FullName: "Ada Lovelace", Role: "faculty"},
		Permissions:     []string{"notices:read", "notices:manage"},
		ServerTime:      time.Now(),
		RefreshInterval: 600,
	})
}

func (f *fakeCampus) notices(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	assert.Equal(f.t, "exam", r.URL.Query().Get("category"))
	assert.Equal(f.t, "5", r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, Page[Notice]{
		Items: []Notice{{ID: 1, Title: "Finals timetable", Category: "exam"}},
		Total: 1, Limit: 5,
	})
}

func (f *fakeCampus) dashboard(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	students := int64(120)
	writeJSON(w, http.StatusOK, Dashboard{ActiveNotices: 3, UpcomingEvents: 2, Students: &students})
}

func TestClient_LoginAndAuthorizedCalls(t *testing.T) {
	_, srv := newFakeCampus(t)
	c := New(Config{BaseURL: srv.URL + "/"})
	t.Cleanup(c.CloseIdleConnections)
	ctx := context.Background()

	_, err := c.Notices(ctx, NoticeQuery{})
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = c.Login(ctx, "ada@campus.edu", "wrong")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "UNAUTHORIZED", apiErr.Code)

	res, err := c.Login(ctx, "ada@campus.edu", "right")
	require.NoError(t, err)
	assert.Equal(t, "access-0", c.Token())
	assert.Equal(t, "refresh-0", c.RefreshToken())
	assert.Equal(t, "faculty", res.Profile.Role)

	page, err := c.Notices(ctx, NoticeQuery{Category: "exam", Limit: 5})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Finals timetable", page.Items[0].Title)

	d, err := c.Dashboard(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, d.ActiveNotices)
	require.NotNil(t, d.Students)
	assert.EqualValues(t, 120, *d.Students)

	ticket, err := c.WSTicket(ctx)
	require.NoError(t, err)
	wsURL := c.WebsocketURL(ticket)
	assert.True(t, strings.HasPrefix(wsURL, "ws://"))
	assert.True(t, strings.HasSuffix(wsURL, "/api/ws?ticket=tkt"))
}

func TestClient_RefreshRotates(t *testing.T) {
	_, srv := newFakeCampus(t)
	c := New(Config{BaseURL: srv.URL})
	t.Cleanup(c.CloseIdleConnections)
	ctx := context.Background()

	_, err := c.Refresh(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = c.Login(ctx, "ada@campus.edu", "right")
	require.NoError(t, err)
	old := c.RefreshToken()

	_, err = c.Refresh(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, old, c.RefreshToken())
	assert.Equal(t, "access-1", c.Token())

	// Reusing a rotated refresh token is rejected.
	c.SetTokens(c.Token(), old)
	_, err = c.Refresh(ctx)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
}

func TestClient_WebsocketURLUsesWSS(t *testing.T) {
	c := New(Config{BaseURL: "https://campus.example.edu/base"})
	assert.Equal(t, "wss://campus.example.edu/base/api/ws?ticket=abc", c.WebsocketURL("abc"))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("CAMPUS_API_URL", "https://campus.example.edu")
	t.Setenv("CAMPUS_API_KEY", "service-token")
	t.Setenv("CAMPUS_REFRESH_INTERVAL", "90s")
	t.Setenv("CAMPUS_PROFILE_TIMEOUT", "750ms")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://campus.example.edu", cfg.BaseURL)
	assert.Equal(t, "service-token", cfg.APIKey)
	assert.Equal(t, 90*time.Second, cfg.RefreshInterval)
	assert.Equal(t, 750*time.Millisecond, cfg.ProfileTimeout)

	assert.Equal(t, "service-token", New(cfg).Token())
}

func TestLoadConfig_RejectsBadURL(t *testing.T) {
	t.Setenv("CAMPUS_API_URL", "campus.example.edu")
	_, err := LoadConfig()
	assert.Error(t, err)
}
