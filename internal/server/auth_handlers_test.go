package server

import (
	"net/http"
	"testing"

	"campusconnect/internal/config"
	"campusconnect/internal/models"
	"campusconnect/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signupBody(email string) map[string]any {
	return map[string]any{
		"email":          email,
		"password":       testPassword,
		"full_name":      "Grace Hopper",
		"department":     "Computer Science",
		"student_number": "s1234567",
		"year_of_study":  2,
	}
}

func TestSignup(t *testing.T) {
	tests := []struct {
		name           string
		body           map[string]any
		expectedStatus int
	}{
		{"valid signup", signupBody("grace@campus.edu"), http.StatusCreated},
		{"weak password", map[string]any{"email": "weak@campus.edu", "password": "short", "full_name": "W"}, http.StatusBadRequest},
		{"bad email", map[string]any{"email": "nope", "password": testPassword, "full_name": "N"}, http.StatusBadRequest},
		{"missing name", map[string]any{"email": "anon@campus.edu", "password": testPassword}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			resp := ts.do(t, http.MethodPost, "/api/auth/signup", "", tt.body)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestSignup_CreatesStudentSession(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/auth/signup", "", signupBody("Grace@Campus.edu"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	result := decode[service.AuthResult](t, resp)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, "Bearer", result.TokenType)
	assert.Equal(t, models.RoleStudent, result.Profile.Role)
	assert.Equal(t, "grace@campus.edu", result.Profile.Email)
	assert.Less(t, result.RefreshInterval, result.ExpiresIn)

	resp = ts.do(t, http.MethodPost, "/api/auth/signup", "", signupBody("grace@campus.edu"))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSignup_BootstrapAdmin(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.DevBootstrapAdmin = true
		c.DevAdminEmail = "dean@campus.edu"
	})

	resp := ts.do(t, http.MethodPost, "/api/auth/signup", "", signupBody("dean@campus.edu"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, models.RoleAdmin, decode[service.AuthResult](t, resp).Profile.Role)
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	ts.createProfile(t, "alan@campus.edu", models.RoleFaculty)

	resp := ts.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "alan@campus.edu", Password: "Wrong-passw0rd!"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "nobody@campus.edu", Password: testPassword})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "alan@campus.edu", Password: testPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[service.AuthResult](t, resp)
	assert.Equal(t, models.RoleFaculty, result.Profile.Role)

	claims, err := ts.tokens.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleFaculty, claims.Role)
}

func TestGetSession(t *testing.T) {
	ts := newTestServer(t)
	p := ts.createProfile(t, "session@campus.edu", models.RoleStudent)

	resp := ts.do(t, http.MethodGet, "/api/auth/session", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/auth/session", ts.tokenFor(t, p), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	state := decode[service.SessionState](t, resp)
	assert.False(t, state.Fallback)
	assert.Equal(t, p.ID, state.Profile.ID)
	assert.NotEmpty(t, state.Permissions)
	assert.False(t, state.AccessTokenExpiresAt.IsZero())
	assert.Positive(t, state.RefreshInterval)
}

func TestGetSession_MissingProfileFallsBack(t *testing.T) {
	ts := newTestServer(t)
	p := ts.createProfile(t, "ghost@campus.edu", models.RoleStudent)
	token := ts.tokenFor(t, p)
	require.NoError(t, ts.db.Unscoped().Delete(p).Error)

	resp := ts.do(t, http.MethodGet, "/api/auth/session", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	state := decode[service.SessionState](t, resp)
	assert.True(t, state.Fallback)
	assert.Equal(t, "profile_missing", state.FallbackReason)
	assert.Equal(t, "ghost@campus.edu", state.Profile.Email)
	assert.Equal(t, models.RoleStudent, state.Profile.Role)
}

func TestRefresh_RotatesAndDetectsReuse(t *testing.T) {
	ts := newTestServer(t)
	ts.createProfile(t, "rotate@campus.edu", models.RoleStudent)

	resp := ts.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "rotate@campus.edu", Password: testPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode[service.AuthResult](t, resp)

	resp = ts.do(t, http.MethodPost, "/api/auth/refresh", "", refreshRequest{RefreshToken: first.RefreshToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decode[service.AuthResult](t, resp)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	resp = ts.do(t, http.MethodPost, "/api/auth/refresh", "", refreshRequest{RefreshToken: first.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/auth/refresh", "", refreshRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogout_RevokesTokens(t *testing.T) {
	ts := newTestServer(t)
	ts.createProfile(t, "bye@campus.edu", models.RoleStudent)

	resp := ts.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "bye@campus.edu", Password: testPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := decode[service.AuthResult](t, resp)

	resp = ts.do(t, http.MethodPost, "/api/auth/logout", session.AccessToken, refreshRequest{RefreshToken: session.RefreshToken})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/auth/session", session.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/auth/refresh", "", refreshRequest{RefreshToken: session.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Logging out twice is harmless.
	resp = ts.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
