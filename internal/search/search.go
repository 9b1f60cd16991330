// Package search provides campus-wide search over notices, events and forum posts.
package search

import (
	"context"
	"time"

	"campusconnect/internal/models"
)

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultNotice    ResultType = "notice"
	ResultEvent     ResultType = "event"
	ResultForumPost ResultType = "forum_post"
)

// ParseType maps a query parameter to a ResultType. Empty or unknown values mean all types.
func ParseType(s string) ResultType {
	switch ResultType(s) {
	case ResultNotice, ResultEvent, ResultForumPost:
		return ResultType(s)
	}
	return ""
}

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      uint       `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text string
	// Type restricts results to one entity kind; empty searches everything.
	Type ResultType
	// Role is the caller's role; notices outside its audience are never returned.
	Role   models.Role
	Now    time.Time
	Limit  int
	Offset int
}

func (q Query) includes(t ResultType) bool {
	return q.Type == "" || q.Type == t
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Backend string   `json:"backend"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// NoticeRecord is the indexed form of a notice.
type NoticeRecord struct {
	ID          uint     `json:"id"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Category    string   `json:"category"`
	Audience    []string `json:"audience"`
	PublishedAt int64    `json:"published_at"`
	// ExpiresAt is zero for notices that never expire.
	ExpiresAt int64 `json:"expires_at"`
}

// audienceEveryone marks notices without an audience restriction in the index.
const audienceEveryone = "all"

// NoticeRecordFrom converts n into its indexed form.
func NoticeRecordFrom(n *models.Notice) NoticeRecord {
	rec := NoticeRecord{
		ID:          n.ID,
		Title:       n.Title,
		Content:     n.Content,
		Category:    n.Category,
		PublishedAt: n.PublishedAt.Unix(),
	}
	for _, r := range n.AudienceRoles() {
		rec.Audience = append(rec.Audience, string(r))
	}
	if len(rec.Audience) == 0 {
		rec.Audience = []string{audienceEveryone}
	}
	if n.ExpiresAt != nil {
		rec.ExpiresAt = n.ExpiresAt.Unix()
	}
	return rec
}

// EventRecord is the indexed form of an event.
type EventRecord struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Category    string `json:"category"`
	StartsAt    int64  `json:"starts_at"`
}

// EventRecordFrom converts e into its indexed form.
func EventRecordFrom(e *models.Event) EventRecord {
	return EventRecord{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		Category:    e.Category,
		StartsAt:    e.StartsAt.Unix(),
	}
}

// PostRecord is the indexed form of a forum post.
type PostRecord struct {
	ID       uint   `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

// PostRecordFrom converts p into its indexed form.
func PostRecordFrom(p *models.ForumPost) PostRecord {
	return PostRecord{ID: p.ID, Title: p.Title, Content: p.Content, Category: p.Category}
}

// snippet shortens s to at most n runes.
func snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
