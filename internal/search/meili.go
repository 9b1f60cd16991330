package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"campusconnect/internal/middleware"
	"campusconnect/internal/models"
	"campusconnect/internal/observability"

	meili "github.com/meilisearch/meilisearch-go"
)

const (
	idxNotices = "campus_notices"
	idxEvents  = "campus_events"
	idxPosts   = "campus_forum_posts"
)

// Meili implements Searcher and indexing via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes. An unreachable
// server leaves the client unhealthy; a background loop keeps checking.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		middleware.Logger.Warn("meilisearch unavailable", "url", url, "error", err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxNotices,
			filterable: []string{"audience", "category", "published_at", "expires_at"},
			searchable: []string{"title", "content"},
		},
		{
			uid:        idxEvents,
			filterable: []string{"category", "starts_at"},
			searchable: []string{"title", "description", "location"},
		},
		{
			uid:        idxPosts,
			filterable: []string{"category"},
			searchable: []string{"title", "content"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: "id",
		}); err != nil {
			middleware.Logger.Debug("create search index (may already exist)", "index", idx.uid, "error", err)
		}

		index := m.client.Index(idx.uid)
		filterable := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterable[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			middleware.Logger.Warn("update filterable attributes", "index", idx.uid, "error", err)
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			middleware.Logger.Warn("update searchable attributes", "index", idx.uid, "error", err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				middleware.Logger.Info("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// noticeFilter restricts notice hits to what role may currently see.
func noticeFilter(role models.Role, now time.Time) []string {
	if role == models.RoleAdmin {
		return nil
	}
	ts := now.Unix()
	return []string{
		fmt.Sprintf("audience = %q OR audience = %q", audienceEveryone, string(role)),
		fmt.Sprintf("published_at <= %d", ts),
		fmt.Sprintf("expires_at = 0 OR expires_at > %d", ts),
	}
}

// Search queries the relevant indexes in one multi-search and merges results.
func (m *Meili) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}
	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}

	var queries []*meili.SearchRequest
	for _, t := range []struct {
		uid  string
		rtyp ResultType
	}{
		{idxNotices, ResultNotice},
		{idxEvents, ResultEvent},
		{idxPosts, ResultForumPost},
	} {
		if !q.includes(t.rtyp) {
			continue
		}
		sr := &meili.SearchRequest{
			IndexUID: t.uid,
			Query:    q.Text,
			Limit:    limit,
			Offset:   int64(q.Offset),
		}
		if t.rtyp == ResultNotice {
			if filters := noticeFilter(q.Role, now); len(filters) > 0 {
				sr.Filter = filters
			}
		}
		queries = append(queries, sr)
	}

	uids := make([]string, 0, len(queries))
	for _, sr := range queries {
		uids = append(uids, sr.IndexUID)
	}
	ctx, span := observability.StartSearchSpan(ctx, "multi_search", uids...)
	defer span.End()

	resp, err := m.client.MultiSearchWithContext(ctx, &meili.MultiSearchRequest{Queries: queries})
	if err != nil {
		span.RecordError(err)
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}
	return results, total, nil
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxNotices:
		return ResultNotice
	case idxEvents:
		return ResultEvent
	case idxPosts:
		return ResultForumPost
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp, Title: decodeString(hit, "title")}
	if raw, ok := hit["id"]; ok {
		var id uint
		if err := json.Unmarshal(raw, &id); err == nil {
			r.ID = id
		} else if s := decodeString(hit, "id"); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err == nil {
				r.ID = uint(n)
			}
		}
	}
	body := "content"
	if rtyp == ResultEvent {
		body = "description"
	}
	r.Snippet = snippet(strings.TrimSpace(decodeString(hit, body)), 160)
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// IndexNotice adds or replaces a notice in the index.
func (m *Meili) IndexNotice(rec NoticeRecord) error {
	_, err := m.client.Index(idxNotices).AddDocuments([]NoticeRecord{rec}, nil)
	return err
}

// IndexEvent adds or replaces an event in the index.
func (m *Meili) IndexEvent(rec EventRecord) error {
	_, err := m.client.Index(idxEvents).AddDocuments([]EventRecord{rec}, nil)
	return err
}

// IndexPost adds or replaces a forum post in the index.
func (m *Meili) IndexPost(rec PostRecord) error {
	_, err := m.client.Index(idxPosts).AddDocuments([]PostRecord{rec}, nil)
	return err
}

// Delete removes an entity of type t from its index.
func (m *Meili) Delete(t ResultType, id uint) error {
	uid := ""
	switch t {
	case ResultNotice:
		uid = idxNotices
	case ResultEvent:
		uid = idxEvents
	case ResultForumPost:
		uid = idxPosts
	default:
		return fmt.Errorf("unknown result type %q", t)
	}
	_, err := m.client.Index(uid).DeleteDocument(strconv.FormatUint(uint64(id), 10), nil)
	return err
}

// IndexAll bulk-indexes every record kind.
func (m *Meili) IndexAll(notices []NoticeRecord, events []EventRecord, posts []PostRecord) error {
	if len(notices) > 0 {
		if _, err := m.client.Index(idxNotices).AddDocuments(notices, nil); err != nil {
			return fmt.Errorf("reindex notices: %w", err)
		}
	}
	if len(events) > 0 {
		if _, err := m.client.Index(idxEvents).AddDocuments(events, nil); err != nil {
			return fmt.Errorf("reindex events: %w", err)
		}
	}
	if len(posts) > 0 {
		if _, err := m.client.Index(idxPosts).AddDocuments(posts, nil); err != nil {
			return fmt.Errorf("reindex forum posts: %w", err)
		}
	}
	return nil
}
