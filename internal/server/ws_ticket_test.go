package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campusconnect/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueWSTicket(t *testing.T) {
	ts := newTestServer(t)
	p := ts.createProfile(t, "ws@campus.edu", models.RoleStudent)

	resp := ts.do(t, http.MethodPost, "/api/ws/ticket", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/ws/ticket", ts.tokenFor(t, p), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	ticket, _ := body["ticket"].(string)
	require.NotEmpty(t, ticket)
	assert.Equal(t, float64(60), body["expires_in"])

	stored, err := ts.mr.Get(wsTicketPrefix + ticket)
	require.NoError(t, err)
	assert.Equal(t, formatID(p.ID)+":student", stored)
	assert.Equal(t, wsTicketTTL, ts.mr.TTL(wsTicketPrefix+ticket))
}

func TestAuthRequired_WSTicket(t *testing.T) {
	ts := newTestServer(t)

	// A bare app keeps the WebSocket upgrade out of the picture.
	app := fiber.New()
	app.Get("/api/ws", ts.AuthRequired(), ts.AuthRequired(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"userID": userID(c)})
	})
	app.Get("/api/other", ts.AuthRequired(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	ctx := context.Background()
	require.NoError(t, ts.redis.Set(ctx, wsTicketPrefix+"good", "42", time.Minute).Err())
	require.NoError(t, ts.redis.Set(ctx, wsTicketPrefix+"other", "42", time.Minute).Err())
	require.NoError(t, ts.redis.Set(ctx, wsTicketPrefix+"bad-id", "zero", time.Minute).Err())

	send := func(t *testing.T, path string) *http.Response {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	t.Run("ticket authenticates once across stacked middleware", func(t *testing.T) {
		resp := send(t, "/api/ws?ticket=good")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[map[string]float64](t, resp)
		assert.Equal(t, float64(42), body["userID"])
		assert.False(t, ts.mr.Exists(wsTicketPrefix+"good"))
	})

	t.Run("reuse is rejected", func(t *testing.T) {
		resp := send(t, "/api/ws?ticket=good")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("malformed user id", func(t *testing.T) {
		resp := send(t, "/api/ws?ticket=bad-id")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("tickets only work on the websocket route", func(t *testing.T) {
		resp := send(t, "/api/other?ticket=other")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.True(t, ts.mr.Exists(wsTicketPrefix+"other"))
	})

	t.Run("expired ticket", func(t *testing.T) {
		ts.mr.FastForward(2 * time.Minute)
		resp := send(t, "/api/ws?ticket=other")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestServer_ConsumeWSTicket(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, ts.redis.Set(ctx, wsTicketPrefix+"t1", "7", time.Minute).Err())

	require.NoError(t, ts.redis.Set(ctx, wsTicketPrefix+"t2", "8:faculty", time.Minute).Err())
	require.NoError(t, ts.redis.Set(ctx, wsTicketPrefix+"t3", "9:root", time.Minute).Err())

	id, role, ok := ts.consumeWSTicket(ctx, "t1")
	assert.True(t, ok)
	assert.Equal(t, uint(7), id)
	assert.Equal(t, models.RoleStudent, role)

	_, _, ok = ts.consumeWSTicket(ctx, "t1")
	assert.False(t, ok)

	id, role, ok = ts.consumeWSTicket(ctx, "t2")
	assert.True(t, ok)
	assert.Equal(t, uint(8), id)
	assert.Equal(t, models.RoleFaculty, role)

	_, role, ok = ts.consumeWSTicket(ctx, "t3")
	assert.True(t, ok)
	assert.Equal(t, models.RoleStudent, role, "unknown roles connect with the least access")

	_, _, ok = (&Server{}).consumeWSTicket(ctx, "t1")
	assert.False(t, ok, "no redis means no tickets")
}

func TestWebsocketRoute_RequiresUpgrade(t *testing.T) {
	ts := newTestServer(t)
	p := ts.createProfile(t, "plain@campus.edu", models.RoleStudent)

	resp := ts.do(t, http.MethodGet, "/api/ws", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/ws", ts.tokenFor(t, p), nil)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}
