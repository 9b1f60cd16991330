package server

import (
	"errors"

	"campusconnect/internal/middleware"
	"campusconnect/internal/models"
	"campusconnect/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketHandler handles GET /api/ws, the realtime change feed.
// Clients authenticate with a ticket from POST /api/ws/ticket.
func (s *Server) WebsocketHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals("userID").(uint)
		if !ok || userID == 0 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		role, _ := conn.Locals("role").(models.Role)
		if !role.Valid() {
			role = models.RoleStudent
		}
		client, err := s.hub.Register(userID, role, conn)
		if err != nil {
			middleware.Logger.Warn("websocket registration rejected", "user_id", userID, "error", err)
			code := "server_busy"
			if errors.Is(err, notifications.ErrUserConnLimit) {
				code = "too_many_connections"
			}
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+code+`"}`))
			_ = conn.Close()
			return
		}

		middleware.Logger.Debug("websocket connected", "user_id", userID)
		go client.WritePump()
		// Blocks until the connection closes; unregisters on exit.
		client.ReadPump()
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return upgrade(c)
	}
}
