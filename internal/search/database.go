package search

import (
	"context"
	"time"

	"campusconnect/internal/models"
	"campusconnect/internal/repository"
)

// Database implements Searcher with LIKE queries through the repositories.
// It is the fallback whenever Meilisearch is missing or unhealthy.
type Database struct {
	notices repository.NoticeRepository
	events  repository.EventRepository
	forum   repository.ForumRepository
}

// NewDatabase returns a repository-backed searcher.
func NewDatabase(notices repository.NoticeRepository, events repository.EventRepository, forum repository.ForumRepository) *Database {
	return &Database{notices: notices, events: events, forum: forum}
}

// Healthy always returns true; without the database nothing works anyway.
func (d *Database) Healthy() bool {
	return true
}

func (d *Database) Search(ctx context.Context, q Query) ([]Result, int, error) {
	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}

	var results []Result
	total := 0

	if q.includes(ResultNotice) {
		notices, n, err := d.notices.List(ctx, repository.NoticeFilter{
			ViewerRole: q.Role,
			Query:      q.Text,
			Now:        now,
			Limit:      q.Limit,
			Offset:     q.Offset,
		})
		if err != nil {
			return nil, 0, err
		}
		total += int(n)
		for i := range notices {
			results = append(results, Result{Type: ResultNotice, ID: notices[i].ID, Title: notices[i].Title, Snippet: snippet(notices[i].Content, 160)})
		}
	}

	if q.includes(ResultEvent) {
		events, n, err := d.events.List(ctx, repository.EventFilter{
			Window: repository.EventWindowAll,
			Query:  q.Text,
			Now:    now,
			Limit:  q.Limit,
			Offset: q.Offset,
		}, 0)
		if err != nil {
			return nil, 0, err
		}
		total += int(n)
		for i := range events {
			results = append(results, Result{Type: ResultEvent, ID: events[i].ID, Title: events[i].Title, Snippet: snippet(events[i].Description, 160)})
		}
	}

	if q.includes(ResultForumPost) {
		posts, n, err := d.forum.ListPosts(ctx, repository.ForumFilter{
			Query:  q.Text,
			Sort:   repository.ForumSortTop,
			Limit:  q.Limit,
			Offset: q.Offset,
		}, 0)
		if err != nil {
			return nil, 0, err
		}
		total += int(n)
		for i := range posts {
			results = append(results, Result{Type: ResultForumPost, ID: posts[i].ID, Title: posts[i].Title, Snippet: snippet(posts[i].Content, 160)})
		}
	}

	return results, total, nil
}

// LoadAll pages through every notice, event and post for a full reindex.
func (d *Database) LoadAll(ctx context.Context) ([]NoticeRecord, []EventRecord, []PostRecord, error) {
	const page = 100
	var (
		notices []NoticeRecord
		events  []EventRecord
		posts   []PostRecord
	)

	for offset := 0; ; offset += page {
		batch, _, err := d.notices.List(ctx, repository.NoticeFilter{ViewerRole: models.RoleAdmin, IncludeExpired: true, Limit: page, Offset: offset})
		if err != nil {
			return nil, nil, nil, err
		}
		for i := range batch {
			notices = append(notices, NoticeRecordFrom(&batch[i]))
		}
		if len(batch) < page {
			break
		}
	}

	for offset := 0; ; offset += page {
		batch, _, err := d.events.List(ctx, repository.EventFilter{Window: repository.EventWindowAll, Limit: page, Offset: offset}, 0)
		if err != nil {
			return nil, nil, nil, err
		}
		for i := range batch {
			events = append(events, EventRecordFrom(&batch[i]))
		}
		if len(batch) < page {
			break
		}
	}

	for offset := 0; ; offset += page {
		batch, _, err := d.forum.ListPosts(ctx, repository.ForumFilter{Limit: page, Offset: offset}, 0)
		if err != nil {
			return nil, nil, nil, err
		}
		for i := range batch {
			posts = append(posts, PostRecordFrom(&batch[i]))
		}
		if len(batch) < page {
			break
		}
	}

	return notices, events, posts, nil
}
