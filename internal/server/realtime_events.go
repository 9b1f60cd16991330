package server

import (
	"context"
	"log/slog"

	"campusconnect/internal/middleware"
	"campusconnect/internal/models"
	"campusconnect/internal/notifications"
)

// publishBroadcastEvent announces a change to every connected member. With
// Redis the message goes through pub/sub so every instance delivers it;
// without Redis only this instance's connections receive it.
func (s *Server) publishBroadcastEvent(ctx context.Context, eventType string, payload any) {
	if s.redis == nil {
		msg, err := notifications.Encode(eventType, payload)
		if err != nil {
			middleware.Logger.ErrorContext(ctx, "failed to encode event", slog.String("event", eventType), slog.Any("error", err))
			return
		}
		s.hub.SendToAll(msg)
		return
	}
	// Detached from the request so a client disconnect does not drop the event.
	if err := s.notifier.Broadcast(context.WithoutCancel(ctx), eventType, payload); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to publish broadcast event",
			slog.String("event", eventType), slog.Any("error", err))
	}
}

// publishRoleEvent delivers a change only to members holding one of roles.
// A nil roles list is a broadcast.
func (s *Server) publishRoleEvent(ctx context.Context, roles []models.Role, eventType string, payload any) {
	if len(roles) == 0 {
		s.publishBroadcastEvent(ctx, eventType, payload)
		return
	}
	if s.redis == nil {
		msg, err := notifications.Encode(eventType, payload)
		if err != nil {
			middleware.Logger.ErrorContext(ctx, "failed to encode event", slog.String("event", eventType), slog.Any("error", err))
			return
		}
		s.hub.SendToRoles(roles, msg)
		return
	}
	if err := s.notifier.BroadcastToRoles(context.WithoutCancel(ctx), roles, eventType, payload); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to publish role event",
			slog.String("event", eventType), slog.Any("error", err))
	}
}

// publishUserEvent delivers a change to the listed members only.
func (s *Server) publishUserEvent(ctx context.Context, userIDs []uint, eventType string, payload any) {
	if len(userIDs) == 0 {
		return
	}
	if s.redis == nil {
		msg, err := notifications.Encode(eventType, payload)
		if err != nil {
			middleware.Logger.ErrorContext(ctx, "failed to encode event", slog.String("event", eventType), slog.Any("error", err))
			return
		}
		for _, id := range userIDs {
			s.hub.SendToUser(id, msg)
		}
		return
	}
	if err := s.notifier.NotifyUsers(context.WithoutCancel(ctx), userIDs, eventType, payload); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to publish user event",
			slog.String("event", eventType), slog.Any("error", err))
	}
}

func (s *Server) publishPresence(userID uint, eventType string) {
	s.publishBroadcastEvent(context.Background(), eventType, map[string]any{"user_id": userID})
}

// deletedPayload is the body of every *_deleted event.
func deletedPayload(id uint) map[string]any {
	return map[string]any{"id": id}
}
