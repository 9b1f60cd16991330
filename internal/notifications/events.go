package notifications

import "encoding/json"

// Change event types carried on the broadcast and per-user channels.
const (
	NoticeCreated = "notice_created"
	NoticeUpdated = "notice_updated"
	NoticeDeleted = "notice_deleted"

	EventCreated      = "event_created"
	EventUpdated      = "event_updated"
	EventDeleted      = "event_deleted"
	EventRegistration = "event_registration"

	ForumPostCreated = "forum_post_created"
	ForumPostUpdated = "forum_post_updated"
	ForumPostDeleted = "forum_post_deleted"
	ForumUpvote      = "forum_upvote"
	ForumComment     = "forum_comment"

	MessageCreated = "message_created"
	UserOnline     = "user_online"
	UserOffline    = "user_offline"
	Pong           = "pong"
)

// Envelope is the wire format of every realtime message.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Encode renders an envelope of eventType around payload.
func Encode(eventType string, payload any) (string, error) {
	raw, err := json.Marshal(Envelope{Type: eventType, Payload: payload})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
