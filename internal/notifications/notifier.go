// Package notifications fans domain changes out to websocket clients via Redis pub/sub.
package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"

	"campusconnect/internal/middleware"
	"campusconnect/internal/models"
	"campusconnect/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	// BroadcastChannel carries changes every connected member should see.
	BroadcastChannel  = "changes:broadcast"
	userChannelPrefix = "notifications:user:"
	roleChannelPrefix = "changes:role:"
)

// Notifier publishes change events into Redis channels.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a Notifier. A nil client turns every publish into a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

// ParseUserChannel extracts the user id from a per-user channel name.
func ParseUserChannel(channel string) (uint, bool) {
	raw, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// RoleChannel is the channel for changes only members of role may see.
func RoleChannel(role models.Role) string {
	return roleChannelPrefix + string(role)
}

// ParseRoleChannel extracts the role from a role channel name.
func ParseRoleChannel(channel string) (models.Role, bool) {
	raw, ok := strings.CutPrefix(channel, roleChannelPrefix)
	if !ok {
		return "", false
	}
	role := models.Role(raw)
	return role, role.Valid()
}

// PublishUser sends a payload to a single member's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishBroadcast sends a payload to every connected member.
func (n *Notifier) PublishBroadcast(ctx context.Context, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, BroadcastChannel, payload).Err()
}

// Broadcast encodes and broadcasts a change event.
func (n *Notifier) Broadcast(ctx context.Context, eventType string, payload any) error {
	msg, err := Encode(eventType, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	observability.RealtimeEvents.WithLabelValues(eventType).Inc()
	return n.PublishBroadcast(ctx, msg)
}

// BroadcastToRoles encodes a change event and publishes it on each role's
// channel. An empty roles list means everyone and falls back to Broadcast.
func (n *Notifier) BroadcastToRoles(ctx context.Context, roles []models.Role, eventType string, payload any) error {
	if len(roles) == 0 {
		return n.Broadcast(ctx, eventType, payload)
	}
	msg, err := Encode(eventType, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	observability.RealtimeEvents.WithLabelValues(eventType).Inc()
	if n.rdb == nil {
		return nil
	}
	for _, role := range roles {
		if err := n.rdb.Publish(ctx, RoleChannel(role), msg).Err(); err != nil {
			return err
		}
	}
	return nil
}

// NotifyUsers encodes a change event and sends it to each listed member.
func (n *Notifier) NotifyUsers(ctx context.Context, userIDs []uint, eventType string, payload any) error {
	msg, err := Encode(eventType, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	observability.RealtimeEvents.WithLabelValues(eventType).Inc()
	for _, id := range userIDs {
		if err := n.PublishUser(ctx, id, msg); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe listens on the broadcast, role and per-user channels and
// calls onMessage for each payload until ctx is cancelled.
func (n *Notifier) Subscribe(ctx context.Context, onMessage func(channel, payload string)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*", roleChannelPrefix+"*", BroadcastChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in realtime subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
