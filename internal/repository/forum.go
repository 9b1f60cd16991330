package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"campusconnect/internal/cache"
	"campusconnect/internal/models"
	"campusconnect/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Forum sort orders.
const (
	ForumSortNew = "new"
	ForumSortTop = "top"
)

// ForumFilter narrows forum post listings.
type ForumFilter struct {
	Category string
	AuthorID uint
	Query    string
	Sort     string
	Since    time.Time
	Limit    int
	Offset   int
}

// ForumRepository defines persistence operations for forum posts, comments and upvotes.
type ForumRepository interface {
	CreatePost(ctx context.Context, post *models.ForumPost) error
	GetPost(ctx context.Context, id uint, currentUserID uint) (*models.ForumPost, error)
	ListPosts(ctx context.Context, filter ForumFilter, currentUserID uint) ([]models.ForumPost, int64, error)
	UpdatePost(ctx context.Context, post *models.ForumPost) error
	DeletePost(ctx context.Context, id uint) error
	ToggleUpvote(ctx context.Context, postID, userID uint) (*models.UpvoteResult, error)
	CountPostsSince(ctx context.Context, since time.Time) (int64, error)

	ListComments(ctx context.Context, postID uint, limit, offset int) ([]models.ForumComment, error)
	GetComment(ctx context.Context, id uint) (*models.ForumComment, error)
	CreateComment(ctx context.Context, comment *models.ForumComment) error
	DeleteComment(ctx context.Context, id uint) error
}

type forumRepository struct {
	db *gorm.DB
}

// NewForumRepository returns a new ForumRepository implementation.
func NewForumRepository(db *gorm.DB) ForumRepository {
	return &forumRepository{db: db}
}

func applyForumDetails(db *gorm.DB, currentUserID uint) *gorm.DB {
	selectQuery := "forum_posts.*, " +
		"(SELECT COUNT(*) FROM forum_comments fc WHERE fc.post_id = forum_posts.id AND fc.deleted_at IS NULL) AS comments_count"
	if currentUserID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM post_upvotes pu WHERE pu.post_id = forum_posts.id AND pu.user_id = ?) AS upvoted", currentUserID)
	}
	return db.Select(selectQuery + ", false AS upvoted")
}

func (r *forumRepository) CreatePost(ctx context.Context, post *models.ForumPost) error {
	defer observability.TrackQuery("create", "forum_posts")()
	post.Upvotes = 0
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *forumRepository) GetPost(ctx context.Context, id uint, currentUserID uint) (*models.ForumPost, error) {
	var post models.ForumPost
	load := func() error {
		ctx, span := observability.StartRepositorySpan(ctx, "GetPost", "forum_posts")
		defer span.End()
		err := applyForumDetails(readDB(r.db).WithContext(ctx), currentUserID).
			Preload("Author").
			First(&post, id).Error
		if err != nil {
			return notFoundOr(err, "Post", id)
		}
		return nil
	}

	var err error
	if currentUserID == 0 {
		err = cache.Aside(ctx, cache.ForumPostKey(id), &post, cache.ForumPostTTL, load)
	} else {
		err = load()
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *forumRepository) ListPosts(ctx context.Context, filter ForumFilter, currentUserID uint) ([]models.ForumPost, int64, error) {
	defer observability.TrackQuery("list", "forum_posts")()

	q := readDB(r.db).WithContext(ctx).Model(&models.ForumPost{})
	if filter.Category != "" {
		q = q.Where("forum_posts.category = ?", filter.Category)
	}
	if filter.AuthorID != 0 {
		q = q.Where("forum_posts.author_id = ?", filter.AuthorID)
	}
	if !filter.Since.IsZero() {
		q = q.Where("forum_posts.created_at >= ?", filter.Since)
	}
	if strings.TrimSpace(filter.Query) != "" {
		like := likePattern(filter.Query)
		q = q.Where("(LOWER(forum_posts.title) LIKE ? OR LOWER(forum_posts.content) LIKE ?)", like, like)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	order := "forum_posts.created_at DESC, forum_posts.id DESC"
	if filter.Sort == ForumSortTop {
		order = "forum_posts.upvotes DESC, " + order
	}

	var posts []models.ForumPost
	err := applyForumDetails(q, currentUserID).
		Preload("Author").
		Order(order).
		Limit(clampLimit(filter.Limit)).
		Offset(filter.Offset).
		Find(&posts).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return posts, total, nil
}

func (r *forumRepository) UpdatePost(ctx context.Context, post *models.ForumPost) error {
	// upvotes is owned by ToggleUpvote.
	err := r.db.WithContext(ctx).Model(&models.ForumPost{}).
		Where("id = ?", post.ID).
		Updates(map[string]any{
			"title":      post.Title,
			"content":    post.Content,
			"category":   post.Category,
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateForumPost(ctx, post.ID)
	return nil
}

func (r *forumRepository) DeletePost(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.ForumComment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.PostUpvote{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.ForumPost{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return notFoundOr(err, "Post", id)
	}
	cache.InvalidateForumPost(ctx, id)
	return nil
}

// ToggleUpvote flips userID's vote on postID. The vote row and the counter
// change in one transaction, so the counter always equals the number of
// vote rows and never goes negative.
func (r *forumRepository) ToggleUpvote(ctx context.Context, postID, userID uint) (*models.UpvoteResult, error) {
	ctx, span := observability.StartRepositorySpan(ctx, "ToggleUpvote", "post_upvotes")
	defer span.End()

	result := &models.UpvoteResult{PostID: postID}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.ForumPost
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&post, postID).Error; err != nil {
			return err
		}

		removed := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.PostUpvote{})
		if removed.Error != nil {
			return removed.Error
		}

		if removed.RowsAffected > 0 {
			if err := tx.Model(&models.ForumPost{}).
				Where("id = ? AND upvotes > 0", postID).
				UpdateColumn("upvotes", gorm.Expr("upvotes - ?", removed.RowsAffected)).Error; err != nil {
				return err
			}
		} else {
			added := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.PostUpvote{PostID: postID, UserID: userID})
			if added.Error != nil {
				return added.Error
			}
			if added.RowsAffected > 0 {
				if err := tx.Model(&models.ForumPost{}).
					Where("id = ?", postID).
					UpdateColumn("upvotes", gorm.Expr("upvotes + 1")).Error; err != nil {
					return err
				}
			}
			result.Upvoted = true
		}

		var upvotes int
		if err := tx.Model(&models.ForumPost{}).Where("id = ?", postID).Select("upvotes").Scan(&upvotes).Error; err != nil {
			return err
		}
		result.Upvotes = upvotes
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, notFoundOr(err, "Post", postID)
	}
	cache.InvalidateForumPost(ctx, postID)
	return result, nil
}

func (r *forumRepository) CountPostsSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	if err := readDB(r.db).WithContext(ctx).Model(&models.ForumPost{}).Where("created_at >= ?", since).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *forumRepository) ListComments(ctx context.Context, postID uint, limit, offset int) ([]models.ForumComment, error) {
	var comments []models.ForumComment
	err := readDB(r.db).WithContext(ctx).
		Preload("Author").
		Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Limit(clampLimit(limit)).
		Offset(offset).
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

func (r *forumRepository) GetComment(ctx context.Context, id uint) (*models.ForumComment, error) {
	var comment models.ForumComment
	if err := r.db.WithContext(ctx).Preload("Author").First(&comment, id).Error; err != nil {
		return nil, notFoundOr(err, "Comment", id)
	}
	return &comment, nil
}

func (r *forumRepository) CreateComment(ctx context.Context, comment *models.ForumComment) error {
	var exists int64
	if err := r.db.WithContext(ctx).Model(&models.ForumPost{}).Where("id = ?", comment.PostID).Count(&exists).Error; err != nil {
		return models.NewInternalError(err)
	}
	if exists == 0 {
		return models.NewNotFoundError("Post", comment.PostID)
	}
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateForumPost(ctx, comment.PostID)
	return nil
}

func (r *forumRepository) DeleteComment(ctx context.Context, id uint) error {
	var comment models.ForumComment
	if err := r.db.WithContext(ctx).Select("id", "post_id").First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Comment", id)
		}
		return models.NewInternalError(err)
	}
	if err := r.db.WithContext(ctx).Delete(&comment).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateForumPost(ctx, comment.PostID)
	return nil
}
