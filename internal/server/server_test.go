package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"campusconnect/internal/auth"
	"campusconnect/internal/config"
	"campusconnect/internal/models"
	"campusconnect/internal/storage"
	"campusconnect/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "Campus-Passw0rd!"

type testServer struct {
	*Server
	app   *fiber.App
	mr    *miniredis.Miniredis
	store *storage.Memory
}

func testConfig() *config.Config {
	return &config.Config{
		Env:                   "test",
		Port:                  "8080",
		JWTSecret:             "campus-connect-test-secret-0123456789",
		AccessTokenTTLMinutes: 15,
		RefreshTokenTTLHours:  24,
		AllowedOrigins:        "*",
		FeatureFlags:          "forum=on,messaging=on,search=on",
		ProfileFetchTimeoutMS: 2000,
		UploadMaxMB:           2,
	}
}

// newTestServer builds a fully wired server over SQLite and miniredis.
func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	db := testutil.NewDB(t)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := storage.NewMemory()
	s, err := NewServerWithDeps(cfg, db, rdb, WithStorage(store))
	require.NoError(t, err)

	return &testServer{Server: s, app: s.App(), mr: mr, store: store}
}

// createProfile inserts a profile that can log in with testPassword.
func (ts *testServer) createProfile(t *testing.T, email string, role models.Role) *models.Profile {
	t.Helper()
	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)
	p := &models.Profile{
		Email:    email,
		Password: hash,
		FullName: strings.Split(email, "@")[0],
		Role:     role,
	}
	require.NoError(t, ts.db.Create(p).Error)
	return p
}

func (ts *testServer) tokenFor(t *testing.T, p *models.Profile) string {
	t.Helper()
	token, _, err := ts.tokens.IssueAccessToken(p)
	require.NoError(t, err)
	return token
}

// do sends a JSON request and returns the response. body may be nil.
func (ts *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestNewServerWithDeps_RequiresDatabase(t *testing.T) {
	_, err := NewServerWithDeps(testConfig(), nil, nil)
	assert.Error(t, err)
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	checks, ok := body["checks"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "healthy", checks["database"])
	assert.Equal(t, "healthy", checks["redis"])
	assert.Equal(t, "database", checks["search"])
}

func TestReadiness_RedisDown(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.redis.Close())

	resp := ts.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
