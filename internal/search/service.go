package search

import (
	"context"
	"strings"

	"campusconnect/internal/middleware"
	"campusconnect/internal/models"
	"campusconnect/internal/observability"
)

const (
	backendMeili    = "meilisearch"
	backendDatabase = "database"
)

// Service is the facade that tries Meilisearch first and falls back to the database.
type Service struct {
	meili    *Meili
	primary  Searcher
	fallback *Database
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, fallback *Database) *Service {
	s := &Service{meili: meili, fallback: fallback}
	if meili != nil {
		s.primary = meili
	}
	return s
}

// Search validates q and runs it against the healthiest backend.
func (s *Service) Search(ctx context.Context, q Query) (Response, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return Response{}, models.NewValidationError("Search query is required")
	}
	if len([]rune(q.Text)) > 200 {
		return Response{}, models.NewValidationError("Search query too long (max 200 characters)")
	}

	if s.primary != nil && s.primary.Healthy() {
		results, total, err := s.primary.Search(ctx, q)
		if err == nil {
			observability.SearchQueries.WithLabelValues(backendMeili).Inc()
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: backendMeili}, nil
		}
		middleware.Logger.WarnContext(ctx, "meilisearch error, falling back to database", "error", err)
	}

	observability.SearchQueries.WithLabelValues(backendDatabase).Inc()
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		return Response{}, err
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: backendDatabase}, nil
}

func (s *Service) indexing() bool {
	return s.meili != nil && s.meili.Healthy()
}

// IndexNotice indexes a notice in the background.
func (s *Service) IndexNotice(n *models.Notice) {
	if !s.indexing() {
		return
	}
	rec := NoticeRecordFrom(n)
	go func() {
		if err := s.meili.IndexNotice(rec); err != nil {
			middleware.Logger.Warn("index notice", "notice_id", rec.ID, "error", err)
		}
	}()
}

// IndexEvent indexes an event in the background.
func (s *Service) IndexEvent(e *models.Event) {
	if !s.indexing() {
		return
	}
	rec := EventRecordFrom(e)
	go func() {
		if err := s.meili.IndexEvent(rec); err != nil {
			middleware.Logger.Warn("index event", "event_id", rec.ID, "error", err)
		}
	}()
}

// IndexPost indexes a forum post in the background.
func (s *Service) IndexPost(p *models.ForumPost) {
	if !s.indexing() {
		return
	}
	rec := PostRecordFrom(p)
	go func() {
		if err := s.meili.IndexPost(rec); err != nil {
			middleware.Logger.Warn("index forum post", "post_id", rec.ID, "error", err)
		}
	}()
}

// Remove deletes an entity from the index in the background.
func (s *Service) Remove(t ResultType, id uint) {
	if !s.indexing() {
		return
	}
	go func() {
		if err := s.meili.Delete(t, id); err != nil {
			middleware.Logger.Warn("remove from search index", "type", t, "id", id, "error", err)
		}
	}()
}

// ReindexAll pushes every searchable row from the database into Meilisearch.
func (s *Service) ReindexAll(ctx context.Context) error {
	if !s.indexing() || s.fallback == nil {
		return nil
	}
	notices, events, posts, err := s.fallback.LoadAll(ctx)
	if err != nil {
		return err
	}
	if err := s.meili.IndexAll(notices, events, posts); err != nil {
		return err
	}
	middleware.Logger.Info("search index rebuilt", "notices", len(notices), "events", len(events), "posts", len(posts))
	return nil
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
