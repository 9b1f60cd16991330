package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"campusconnect/internal/database"
	"campusconnect/internal/models"
	"campusconnect/internal/repository"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type failingSearcher struct {
	healthy bool
	calls   int
}

func (f *failingSearcher) Search(context.Context, Query) ([]Result, int, error) {
	f.calls++
	return nil, 0, errors.New("index offline")
}

func (f *failingSearcher) Healthy() bool { return f.healthy }

func openDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

func seed(t *testing.T, db *gorm.DB, now time.Time) {
	author := &models.Profile{Email: "dean@campus.edu", Password: "x", Role: models.RoleFaculty}
	require.NoError(t, db.Create(author).Error)
	require.NoError(t, db.Create(&models.Notice{Title: "Exam timetable", Content: "Final exam schedule", AuthorID: author.ID, PublishedAt: now.Add(-time.Hour)}).Error)
	require.NoError(t, db.Create(&models.Notice{Title: "Staff exam meeting", Content: "faculty only", Audience: "faculty", AuthorID: author.ID, PublishedAt: now.Add(-time.Hour)}).Error)
	require.NoError(t, db.Create(&models.Event{Title: "Exam prep workshop", StartsAt: now.Add(time.Hour), EndsAt: now.Add(2 * time.Hour), OrganizerID: author.ID}).Error)
	require.NoError(t, db.Create(&models.ForumPost{Title: "Past exam papers?", Content: "Where can I find them", AuthorID: author.ID}).Error)
}

func newDatabaseSearcher(db *gorm.DB) *Database {
	return NewDatabase(repository.NewNoticeRepository(db), repository.NewEventRepository(db), repository.NewForumRepository(db))
}

func TestService_FallsBackToDatabase(t *testing.T) {
	db := openDB(t)
	now := time.Now().UTC()
	seed(t, db, now)

	primary := &failingSearcher{healthy: true}
	svc := &Service{primary: primary, fallback: newDatabaseSearcher(db)}

	resp, err := svc.Search(context.Background(), Query{Text: "exam", Role: models.RoleStudent, Now: now})
	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, backendDatabase, resp.Backend)
	assert.Equal(t, 3, resp.Total)

	for _, r := range resp.Results {
		assert.NotEqual(t, "Staff exam meeting", r.Title, "students must not see faculty notices")
	}
}

func TestService_TypeFilterAndStaffVisibility(t *testing.T) {
	db := openDB(t)
	now := time.Now().UTC()
	seed(t, db, now)

	svc := NewService(nil, newDatabaseSearcher(db))
	resp, err := svc.Search(context.Background(), Query{Text: "exam", Type: ResultNotice, Role: models.RoleFaculty, Now: now})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	for _, r := range resp.Results {
		assert.Equal(t, ResultNotice, r.Type)
	}
}

func TestService_RejectsEmptyQuery(t *testing.T) {
	svc := NewService(nil, nil)
	_, err := svc.Search(context.Background(), Query{Text: "   "})
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeValidation, appErr.Code)
}

func TestNoticeFilter(t *testing.T) {
	now := time.Unix(1700000000, 0)
	assert.Nil(t, noticeFilter(models.RoleAdmin, now))

	filters := noticeFilter(models.RoleStudent, now)
	require.Len(t, filters, 3)
	assert.Equal(t, `audience = "all" OR audience = "student"`, filters[0])
	assert.Equal(t, "published_at <= 1700000000", filters[1])
}

func TestNoticeRecordFrom(t *testing.T) {
	expires := time.Unix(1800000000, 0)
	rec := NoticeRecordFrom(&models.Notice{ID: 4, Title: "t", Audience: "student,faculty", PublishedAt: time.Unix(1700000000, 0), ExpiresAt: &expires})
	assert.Equal(t, []string{"student", "faculty"}, rec.Audience)
	assert.EqualValues(t, 1800000000, rec.ExpiresAt)

	rec = NoticeRecordFrom(&models.Notice{ID: 5})
	assert.Equal(t, []string{audienceEveryone}, rec.Audience)
	assert.Zero(t, rec.ExpiresAt)
}

func TestHitToResult(t *testing.T) {
	hit := meili.Hit{
		"id":          json.RawMessage(`12`),
		"title":       json.RawMessage(`"Career fair"`),
		"description": json.RawMessage(`"Meet employers"`),
	}
	r := hitToResult(hit, ResultEvent)
	assert.Equal(t, uint(12), r.ID)
	assert.Equal(t, "Career fair", r.Title)
	assert.Equal(t, "Meet employers", r.Snippet)
	assert.Equal(t, ResultForumPost, ParseType("forum_post"))
	assert.Equal(t, ResultType(""), ParseType("bogus"))
}
