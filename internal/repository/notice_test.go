package repository

import (
	"context"
	"testing"
	"time"

	"campusconnect/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoticeRepository_ListVisibility(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewNoticeRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	author := createProfile(t, db, "dean@campus.edu", models.RoleFaculty)
	notices := []*models.Notice{
		{Title: "Everyone", Content: "c", AuthorID: author.ID, PublishedAt: now.Add(-2 * time.Hour)},
		{Title: "Faculty only", Content: "c", Audience: "faculty", AuthorID: author.ID, PublishedAt: now.Add(-time.Hour)},
		{Title: "Expired", Content: "c", AuthorID: author.ID, PublishedAt: now.Add(-48 * time.Hour), ExpiresAt: ptrTime(now.Add(-time.Hour))},
		{Title: "Scheduled", Content: "c", AuthorID: author.ID, PublishedAt: now.Add(time.Hour)},
		{Title: "Pinned students", Content: "c", Audience: "faculty,student", Pinned: true, AuthorID: author.ID, PublishedAt: now.Add(-72 * time.Hour)},
	}
	for _, n := range notices {
		require.NoError(t, repo.Create(ctx, n))
	}

	titles := func(list []models.Notice) []string {
		out := make([]string, 0, len(list))
		for _, n := range list {
			out = append(out, n.Title)
		}
		return out
	}

	student, total, err := repo.List(ctx, NoticeFilter{ViewerRole: models.RoleStudent, Now: now})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, []string{"Pinned students", "Everyone"}, titles(student))

	faculty, _, err := repo.List(ctx, NoticeFilter{ViewerRole: models.RoleFaculty, Now: now})
	require.NoError(t, err)
	assert.Equal(t, []string{"Pinned students", "Faculty only", "Everyone"}, titles(faculty))

	admin, total, err := repo.List(ctx, NoticeFilter{ViewerRole: models.RoleAdmin, IncludeExpired: true, Now: now})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, admin, 5)

	count, err := repo.CountActive(ctx, models.RoleStudent, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestNoticeRepository_DeleteMissing(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewNoticeRepository(db)

	err := repo.Delete(context.Background(), 42)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeNotFound, appErr.Code)
}
