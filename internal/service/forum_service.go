package service

import (
	"context"
	"strings"

	"campusconnect/internal/auth"
	"campusconnect/internal/models"
	"campusconnect/internal/repository"
	"campusconnect/internal/validation"
)

const (
	maxPostTitleLen      = 300
	maxPostContentLen    = 20000
	maxCommentLen        = 5000
	defaultForumCategory = "general"
)

// ForumService manages forum posts, comments and upvotes.
type ForumService struct {
	repo repository.ForumRepository
}

// PostInput is the create/update payload for forum posts.
type PostInput struct {
	Title    string
	Content  string
	Category string
}

// ListPostsInput narrows a forum listing.
type ListPostsInput struct {
	Category string
	Query    string
	Sort     string
	AuthorID uint
	Limit    int
	Offset   int
}

func NewForumService(repo repository.ForumRepository) *ForumService {
	return &ForumService{repo: repo}
}

func (s *ForumService) CreatePost(ctx context.Context, actor Actor, in PostInput) (*models.ForumPost, error) {
	if !actor.Can(auth.ActionPostForum) {
		return nil, models.NewForbiddenError("You cannot post in the forum")
	}
	post := &models.ForumPost{
		Title:    strings.TrimSpace(in.Title),
		Content:  strings.TrimSpace(in.Content),
		Category: strings.ToLower(strings.TrimSpace(in.Category)),
		AuthorID: actor.ID,
	}
	if post.Category == "" {
		post.Category = defaultForumCategory
	}
	if err := validatePost(post); err != nil {
		return nil, err
	}
	if err := s.repo.CreatePost(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func validatePost(p *models.ForumPost) error {
	return invalid(firstErr(
		validation.RequiredMax("Title", p.Title, maxPostTitleLen),
		validation.RequiredMax("Content", p.Content, maxPostContentLen),
		validation.MaxLength("Category", p.Category, maxCategoryLen),
	))
}

func (s *ForumService) ListPosts(ctx context.Context, actor Actor, in ListPostsInput) ([]models.ForumPost, int64, error) {
	sort := in.Sort
	switch sort {
	case "":
		sort = repository.ForumSortNew
	case repository.ForumSortNew, repository.ForumSortTop:
	default:
		return nil, 0, models.NewValidationError("Sort must be one of: new, top")
	}
	return s.repo.ListPosts(ctx, repository.ForumFilter{
		Category: strings.ToLower(strings.TrimSpace(in.Category)),
		AuthorID: in.AuthorID,
		Query:    in.Query,
		Sort:     sort,
		Limit:    in.Limit,
		Offset:   in.Offset,
	}, actor.ID)
}

func (s *ForumService) GetPost(ctx context.Context, actor Actor, id uint) (*models.ForumPost, error) {
	return s.repo.GetPost(ctx, id, actor.ID)
}

func (s *ForumService) ownedPost(ctx context.Context, actor Actor, id uint) (*models.ForumPost, error) {
	post, err := s.repo.GetPost(ctx, id, actor.ID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != actor.ID && !actor.Can(auth.ActionModerateForum) {
		return nil, models.NewForbiddenError("Only the author or an administrator can change this post")
	}
	return post, nil
}

func (s *ForumService) UpdatePost(ctx context.Context, actor Actor, id uint, in PostInput) (*models.ForumPost, error) {
	post, err := s.ownedPost(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if in.Title != "" {
		post.Title = strings.TrimSpace(in.Title)
	}
	if in.Content != "" {
		post.Content = strings.TrimSpace(in.Content)
	}
	if in.Category != "" {
		post.Category = strings.ToLower(strings.TrimSpace(in.Category))
	}
	if err := validatePost(post); err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePost(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *ForumService) DeletePost(ctx context.Context, actor Actor, id uint) error {
	if _, err := s.ownedPost(ctx, actor, id); err != nil {
		return err
	}
	return s.repo.DeletePost(ctx, id)
}

// ToggleUpvote flips the actor's vote and returns the resulting state.
func (s *ForumService) ToggleUpvote(ctx context.Context, actor Actor, postID uint) (*models.UpvoteResult, error) {
	if !actor.Can(auth.ActionPostForum) {
		return nil, models.NewForbiddenError("You cannot vote in the forum")
	}
	return s.repo.ToggleUpvote(ctx, postID, actor.ID)
}

func (s *ForumService) ListComments(ctx context.Context, postID uint, limit, offset int) ([]models.ForumComment, error) {
	if _, err := s.repo.GetPost(ctx, postID, 0); err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, postID, limit, offset)
}

func (s *ForumService) CreateComment(ctx context.Context, actor Actor, postID uint, content string) (*models.ForumComment, error) {
	if !actor.Can(auth.ActionPostForum) {
		return nil, models.NewForbiddenError("You cannot comment in the forum")
	}
	content = strings.TrimSpace(content)
	if err := validation.RequiredMax("Content", content, maxCommentLen); err != nil {
		return nil, invalid(err)
	}
	if _, err := s.repo.GetPost(ctx, postID, 0); err != nil {
		return nil, err
	}
	comment := &models.ForumComment{PostID: postID, AuthorID: actor.ID, Content: content}
	if err := s.repo.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *ForumService) DeleteComment(ctx context.Context, actor Actor, postID, commentID uint) error {
	comment, err := s.repo.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.PostID != postID {
		return models.NewNotFoundError("Comment", commentID)
	}
	if comment.AuthorID != actor.ID && !actor.Can(auth.ActionModerateForum) {
		return models.NewForbiddenError("Only the author or an administrator can delete this comment")
	}
	return s.repo.DeleteComment(ctx, commentID)
}
