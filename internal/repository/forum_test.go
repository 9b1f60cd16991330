package repository

import (
	"context"
	"testing"

	"campusconnect/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upvoteRows(t *testing.T, repo *forumRepository, postID uint) int64 {
	var n int64
	require.NoError(t, repo.db.Model(&models.PostUpvote{}).Where("post_id = ?", postID).Count(&n).Error)
	return n
}

func TestForumRepository_ToggleUpvote(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewForumRepository(db).(*forumRepository)
	ctx := context.Background()

	author := createProfile(t, db, "author@campus.edu", models.RoleStudent)
	voter := createProfile(t, db, "voter@campus.edu", models.RoleStudent)
	other := createProfile(t, db, "other@campus.edu", models.RoleStudent)

	post := &models.ForumPost{Title: "Library hours", Content: "Open late?", AuthorID: author.ID}
	require.NoError(t, repo.CreatePost(ctx, post))

	res, err := repo.ToggleUpvote(ctx, post.ID, voter.ID)
	require.NoError(t, err)
	assert.True(t, res.Upvoted)
	assert.Equal(t, 1, res.Upvotes)

	res, err = repo.ToggleUpvote(ctx, post.ID, other.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Upvotes)
	assert.EqualValues(t, 2, upvoteRows(t, repo, post.ID))

	res, err = repo.ToggleUpvote(ctx, post.ID, voter.ID)
	require.NoError(t, err)
	assert.False(t, res.Upvoted)
	assert.Equal(t, 1, res.Upvotes)
	assert.EqualValues(t, 1, upvoteRows(t, repo, post.ID))

	got, err := repo.GetPost(ctx, post.ID, other.ID)
	require.NoError(t, err)
	assert.True(t, got.Upvoted)
	assert.Equal(t, 1, got.Upvotes)
}

func TestForumRepository_ToggleUpvoteNeverNegative(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewForumRepository(db).(*forumRepository)
	ctx := context.Background()

	author := createProfile(t, db, "author@campus.edu", models.RoleStudent)
	post := &models.ForumPost{Title: "t", Content: "c", AuthorID: author.ID}
	require.NoError(t, repo.CreatePost(ctx, post))

	// A vote row without a matching counter increment.
	require.NoError(t, db.Create(&models.PostUpvote{PostID: post.ID, UserID: author.ID}).Error)

	res, err := repo.ToggleUpvote(ctx, post.ID, author.ID)
	require.NoError(t, err)
	assert.False(t, res.Upvoted)
	assert.Equal(t, 0, res.Upvotes)
}

func TestForumRepository_ToggleUpvoteMissingPost(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewForumRepository(db)

	_, err := repo.ToggleUpvote(context.Background(), 999, 1)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeNotFound, appErr.Code)
}

func TestForumRepository_ListPostsSortAndComments(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewForumRepository(db)
	ctx := context.Background()

	author := createProfile(t, db, "author@campus.edu", models.RoleStudent)
	voter := createProfile(t, db, "voter@campus.edu", models.RoleStudent)

	older := &models.ForumPost{Title: "Older", Content: "popular", Category: "general", AuthorID: author.ID}
	newer := &models.ForumPost{Title: "Newer", Content: "quiet", Category: "general", AuthorID: author.ID}
	require.NoError(t, repo.CreatePost(ctx, older))
	require.NoError(t, repo.CreatePost(ctx, newer))
	_, err := repo.ToggleUpvote(ctx, older.ID, voter.ID)
	require.NoError(t, err)

	require.NoError(t, repo.CreateComment(ctx, &models.ForumComment{PostID: older.ID, AuthorID: voter.ID, Content: "agreed"}))

	top, total, err := repo.ListPosts(ctx, ForumFilter{Sort: ForumSortTop}, voter.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, top, 2)
	assert.Equal(t, older.ID, top[0].ID)
	assert.Equal(t, 1, top[0].CommentsCount)
	assert.True(t, top[0].Upvoted)
	assert.False(t, top[1].Upvoted)

	found, _, err := repo.ListPosts(ctx, ForumFilter{Query: "QUIET"}, 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, newer.ID, found[0].ID)

	err = repo.CreateComment(ctx, &models.ForumComment{PostID: 999, AuthorID: voter.ID, Content: "orphan"})
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeNotFound, appErr.Code)
}

func TestForumRepository_DeletePost(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewForumRepository(db)
	ctx := context.Background()

	author := createProfile(t, db, "author@campus.edu", models.RoleStudent)
	post := &models.ForumPost{Title: "t", Content: "c", AuthorID: author.ID}
	require.NoError(t, repo.CreatePost(ctx, post))

	require.NoError(t, repo.DeletePost(ctx, post.ID))
	_, err := repo.GetPost(ctx, post.ID, author.ID)
	assert.Error(t, err)

	err = repo.DeletePost(ctx, post.ID)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeNotFound, appErr.Code)
}
