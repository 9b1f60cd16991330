package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{`{"id":4,"title":"Library closed"}`, "#4 Library closed"},
		{`{"id":9,"content":"see you at 5"}`, "see you at 5"},
		{`{"post_id":3,"upvotes":0}`, "post #3 now at 0 votes"},
		{`{"id":12}`, "#12"},
		{`"plain"`, `"plain"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, summarize(json.RawMessage(tt.payload)))
	}
}

// expiringCampus rejects the first access token and accepts the refreshed one.
func expiringCampus(t *testing.T) (*httptest.Server, *atomic.Int32) {
	var refreshes atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","refresh_token":"r2","token_type":"Bearer"}`))
	})
	mux.HandleFunc("GET /api/dashboard", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid or expired token","code":"UNAUTHORIZED"}`))
			return
		}
		_, _ = w.Write([]byte(`{"active_notices":2,"upcoming_events":1,"my_registrations":0,"forum_posts_this_week":1234,"latest_notices":[],"next_events":[]}`))
	})
	mux.HandleFunc("GET /api/auth/session", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid or expired token","code":"UNAUTHORIZED"}`))
			return
		}
		_, _ = w.Write([]byte(`{"profile":{"id":7,"email":"ada@campus.edu","full_name":"Ada Lovelace","role":"faculty"},"permissions":["notices:read","notices:manage"],"refresh_interval":600}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &refreshes
}

func TestDashboard_RefreshesExpiredToken(t *testing.T) {
	srv, refreshes := expiringCampus(t)
	state := filepath.Join(t.TempDir(), "session.json")
	t.Setenv("CAMPUS_API_URL", srv.URL)

	a := &app{stateFile: state}
	require.NoError(t, a.save(savedSession{BaseURL: srv.URL, Email: "ada@campus.edu", AccessToken: "stale", RefreshToken: "r1"}))

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--state", state, "dashboard"})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "Active notices:     2")
	assert.Contains(t, out.String(), "Forum posts (week): 1,234")
	assert.EqualValues(t, 1, refreshes.Load())

	saved, err := a.load()
	require.NoError(t, err)
	assert.Equal(t, "fresh", saved.AccessToken)
	assert.Equal(t, "r2", saved.RefreshToken)
	assert.Equal(t, "ada@campus.edu", saved.Email)
}

func TestWhoami_RefreshesExpiredToken(t *testing.T) {
	srv, refreshes := expiringCampus(t)
	state := filepath.Join(t.TempDir(), "session.json")
	t.Setenv("CAMPUS_API_URL", srv.URL)

	a := &app{stateFile: state}
	require.NoError(t, a.save(savedSession{BaseURL: srv.URL, Email: "ada@campus.edu", AccessToken: "stale", RefreshToken: "r1"}))

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--state", state, "whoami"})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "Ada Lovelace")
	assert.Contains(t, out.String(), "faculty")
	assert.NotContains(t, out.String(), "minimal")
	assert.EqualValues(t, 1, refreshes.Load())

	saved, err := a.load()
	require.NoError(t, err)
	assert.Equal(t, "fresh", saved.AccessToken)
	assert.Equal(t, "r2", saved.RefreshToken)
	assert.Equal(t, "ada@campus.edu", saved.Email)
}

func TestLoad_MissingStateIsNotAnError(t *testing.T) {
	a := &app{stateFile: filepath.Join(t.TempDir(), "nope.json")}
	saved, err := a.load()
	require.NoError(t, err)
	assert.Nil(t, saved)
}

func TestWhoami_RequiresLogin(t *testing.T) {
	t.Setenv("CAMPUS_API_KEY", "")
	root := newRootCmd()
	root.SetArgs([]string{"--state", filepath.Join(t.TempDir(), "none.json"), "whoami"})
	root.SetOut(&bytes.Buffer{})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}
