package server

import (
	"strings"

	"campusconnect/internal/models"
	"campusconnect/internal/notifications"
	"campusconnect/internal/search"
	"campusconnect/internal/service"

	"github.com/gofiber/fiber/v2"
)

type forumPostRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

type commentRequest struct {
	Content string `json:"content"`
}

// ListForumPosts handles GET /api/forum/posts
// @Summary List forum posts
// @Tags forum
// @Produce json
// @Security BearerAuth
// @Param sort query string false "new (default) or top"
// @Param category query string false "Category"
// @Param q query string false "Title or content contains"
// @Param author_id query int false "Author profile ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} object{items=[]models.ForumPost,total=int}
// @Failure 404 {object} models.ErrorResponse "forum disabled"
// @Router /forum/posts [get]
func (s *Server) ListForumPosts(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)

	posts, total, err := s.forumService.ListPosts(c.UserContext(), actorFrom(c), service.ListPostsInput{
		Category: c.Query("category"),
		Query:    strings.TrimSpace(c.Query("q")),
		Sort:     strings.ToLower(strings.TrimSpace(c.Query("sort"))),
		AuthorID: uint(max(c.QueryInt("author_id", 0), 0)),
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(newListResponse(posts, total, page))
}

// CreateForumPost handles POST /api/forum/posts
// @Summary Create a forum post
// @Tags forum
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body forumPostRequest true "Post"
// @Success 201 {object} models.ForumPost
// @Failure 400 {object} models.ErrorResponse
// @Router /forum/posts [post]
func (s *Server) CreateForumPost(c *fiber.Ctx) error {
	var req forumPostRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.forumService.CreatePost(c.UserContext(), actorFrom(c), service.PostInput(req))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.search.IndexPost(post)
	s.publishBroadcastEvent(c.UserContext(), notifications.ForumPostCreated, post)
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetForumPost handles GET /api/forum/posts/:id
// @Summary Get a forum post
// @Tags forum
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.ForumPost
// @Failure 404 {object} models.ErrorResponse
// @Router /forum/posts/{id} [get]
func (s *Server) GetForumPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.forumService.GetPost(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}

// UpdateForumPost handles PATCH /api/forum/posts/:id
// @Summary Update a forum post
// @Tags forum
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body forumPostRequest true "Fields to change"
// @Success 200 {object} models.ForumPost
// @Failure 403 {object} models.ErrorResponse
// @Router /forum/posts/{id} [patch]
func (s *Server) UpdateForumPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req forumPostRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.forumService.UpdatePost(c.UserContext(), actorFrom(c), id, service.PostInput(req))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.search.IndexPost(post)
	s.publishBroadcastEvent(c.UserContext(), notifications.ForumPostUpdated, post)
	return c.JSON(post)
}

// DeleteForumPost handles DELETE /api/forum/posts/:id
// @Summary Delete a forum post
// @Tags forum
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 204
// @Router /forum/posts/{id} [delete]
func (s *Server) DeleteForumPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.forumService.DeletePost(c.UserContext(), actorFrom(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.search.Remove(search.ResultForumPost, id)
	s.publishBroadcastEvent(c.UserContext(), notifications.ForumPostDeleted, deletedPayload(id))
	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleForumUpvote handles POST /api/forum/posts/:id/upvote
// @Summary Toggle my upvote
// @Description Adds the caller's vote, or removes it when already present.
// @Tags forum
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.UpvoteResult
// @Failure 404 {object} models.ErrorResponse
// @Router /forum/posts/{id}/upvote [post]
func (s *Server) ToggleForumUpvote(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	result, err := s.forumService.ToggleUpvote(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	// Only the count is shared; who voted stays private.
	s.publishBroadcastEvent(c.UserContext(), notifications.ForumUpvote, map[string]any{
		"post_id": result.PostID,
		"upvotes": result.Upvotes,
	})
	return c.JSON(result)
}

// ListForumComments handles GET /api/forum/posts/:id/comments
// @Summary List comments
// @Tags forum
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {array} models.ForumComment
// @Router /forum/posts/{id}/comments [get]
func (s *Server) ListForumComments(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 50)

	comments, err := s.forumService.ListComments(c.UserContext(), id, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	if comments == nil {
		comments = []models.ForumComment{}
	}
	return c.JSON(comments)
}

// CreateForumComment handles POST /api/forum/posts/:id/comments
// @Summary Comment on a post
// @Tags forum
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body commentRequest true "Comment"
// @Success 201 {object} models.ForumComment
// @Router /forum/posts/{id}/comments [post]
func (s *Server) CreateForumComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req commentRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	comment, err := s.forumService.CreateComment(c.UserContext(), actorFrom(c), id, req.Content)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.publishBroadcastEvent(c.UserContext(), notifications.ForumComment, comment)
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// DeleteForumComment handles DELETE /api/forum/posts/:id/comments/:commentId
// @Summary Delete a comment
// @Tags forum
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param commentId path int true "Comment ID"
// @Success 204
// @Router /forum/posts/{id}/comments/{commentId} [delete]
func (s *Server) DeleteForumComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	if err := s.forumService.DeleteComment(c.UserContext(), actorFrom(c), id, commentID); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
