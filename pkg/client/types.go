package client

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Profile is a campus member as returned by the API.
type Profile struct {
	ID            uint       `json:"id"`
	Email         string     `json:"email"`
	FullName      string     `json:"full_name"`
	Role          string     `json:"role"`
	Department    string     `json:"department,omitempty"`
	StudentNumber *string    `json:"student_number,omitempty"`
	YearOfStudy   int        `json:"year_of_study,omitempty"`
	Bio           string     `json:"bio,omitempty"`
	AvatarURL     string     `json:"avatar_url,omitempty"`
	LastSeenAt    *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// DefaultProfile is the minimal profile used when the stored one cannot be
// loaded: a student named after the email local part.
func DefaultProfile(email string) Profile {
	name := email
	if i := strings.IndexByte(email, '@'); i > 0 {
		name = email[:i]
	}
	return Profile{Email: email, FullName: name, Role: "student"}
}

// AuthResult is returned by login and refresh.
type AuthResult struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	ExpiresIn    int       `json:"expires_in"`
	// RefreshInterval is in seconds.
	RefreshInterval int      `json:"refresh_interval"`
	Profile         *Profile `json:"profile"`
}

// SessionState is the server's answer to the initial session check.
type SessionState struct {
	Profile              *Profile  `json:"profile"`
	Fallback             bool      `json:"fallback"`
	FallbackReason       string    `json:"fallback_reason,omitempty"`
	Permissions          []string  `json:"permissions"`
	ServerTime           time.Time `json:"server_time"`
	AccessTokenExpiresAt time.Time `json:"access_token_expires_at,omitempty"`
	RefreshInterval      int       `json:"refresh_interval"`
}

// Notice is a campus announcement.
type Notice struct {
	ID            uint       `json:"id"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Category      string     `json:"category"`
	Priority      string     `json:"priority"`
	Audience      string     `json:"audience"`
	AuthorID      uint       `json:"author_id"`
	Author        *Profile   `json:"author,omitempty"`
	AttachmentURL string     `json:"attachment_url,omitempty"`
	Pinned        bool       `json:"pinned"`
	PublishedAt   time.Time  `json:"published_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// Event is a scheduled campus event.
type Event struct {
	ID            uint      `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Location      string    `json:"location"`
	Category      string    `json:"category"`
	StartsAt      time.Time `json:"starts_at"`
	EndsAt        time.Time `json:"ends_at"`
	Capacity      int       `json:"capacity"`
	OrganizerID   uint      `json:"organizer_id"`
	AttendeeCount int       `json:"attendee_count"`
	Attending     bool      `json:"attending"`
}

// Dashboard aggregates campus activity for the caller.
type Dashboard struct {
	ActiveNotices      int64     `json:"active_notices"`
	UpcomingEvents     int64     `json:"upcoming_events"`
	MyRegistrations    int64     `json:"my_registrations"`
	ForumPostsThisWeek int64     `json:"forum_posts_this_week"`
	Students           *int64    `json:"students,omitempty"`
	LatestNotices      []Notice  `json:"latest_notices"`
	NextEvents         []Event   `json:"next_events"`
	GeneratedAt        time.Time `json:"generated_at"`
}

// Page is one page of a listing.
type Page[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// ChangeEvent is a realtime message pushed over the websocket.
type ChangeEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("campus api: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("campus api: %d: %s", e.Status, e.Message)
}
