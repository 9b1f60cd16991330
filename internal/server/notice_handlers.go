package server

import (
	"context"
	"slices"
	"strings"
	"time"

	"campusconnect/internal/models"
	"campusconnect/internal/notifications"
	"campusconnect/internal/search"
	"campusconnect/internal/service"

	"github.com/gofiber/fiber/v2"
)

type noticeRequest struct {
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Category    string     `json:"category"`
	Priority    string     `json:"priority"`
	Audience    []string   `json:"audience"`
	Pinned      *bool      `json:"pinned"`
	PublishedAt *time.Time `json:"published_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
	ClearExpiry bool       `json:"clear_expiry"`
}

func (r noticeRequest) input() service.NoticeInput {
	return service.NoticeInput{
		Title:       r.Title,
		Content:     r.Content,
		Category:    strings.ToLower(strings.TrimSpace(r.Category)),
		Priority:    strings.ToLower(strings.TrimSpace(r.Priority)),
		Audience:    r.Audience,
		Pinned:      r.Pinned,
		PublishedAt: r.PublishedAt,
		ExpiresAt:   r.ExpiresAt,
		ClearExpiry: r.ClearExpiry,
	}
}

// noticeSummary is the realtime payload for notice changes. Clients fetch
// the body on demand.
func noticeSummary(n *models.Notice) map[string]any {
	return map[string]any{
		"id":       n.ID,
		"title":    n.Title,
		"audience": n.Audience,
		"category": n.Category,
		"priority": n.Priority,
		"pinned":   n.Pinned,
	}
}

// noticeRecipients lists the roles that may see n, or nil when everyone can.
func noticeRecipients(n *models.Notice) []models.Role {
	roles := n.AudienceRoles()
	if len(roles) == 0 {
		return nil
	}
	if !slices.Contains(roles, models.RoleAdmin) {
		roles = append(roles, models.RoleAdmin)
	}
	return roles
}

func (s *Server) noticeChanged(ctx context.Context, eventType string, n *models.Notice) {
	s.search.IndexNotice(n)
	s.publishRoleEvent(ctx, noticeRecipients(n), eventType, noticeSummary(n))
}

// ListNotices handles GET /api/notices
// @Summary List notices
// @Description Notices visible to the caller's role, pinned first then newest.
// @Description Staff may pass include_expired=true.
// @Tags notices
// @Produce json
// @Security BearerAuth
// @Param category query string false "general, academic, exam, event or urgent"
// @Param q query string false "Title or content contains"
// @Param include_expired query bool false "Include expired notices (staff only)"
// @Param mine query bool false "Only notices I wrote"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} object{items=[]models.Notice,total=int}
// @Router /notices [get]
func (s *Server) ListNotices(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)

	notices, total, err := s.noticeService.List(c.UserContext(), actorFrom(c), service.ListNoticesInput{
		IncludeExpired: c.QueryBool("include_expired"),
		Category:       strings.ToLower(strings.TrimSpace(c.Query("category"))),
		Query:          strings.TrimSpace(c.Query("q")),
		Mine:           c.QueryBool("mine"),
		Limit:          page.Limit,
		Offset:         page.Offset,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(newListResponse(notices, total, page))
}

// CreateNotice handles POST /api/notices
// @Summary Post a notice
// @Tags notices
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body noticeRequest true "Notice"
// @Success 201 {object} models.Notice
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /notices [post]
func (s *Server) CreateNotice(c *fiber.Ctx) error {
	var req noticeRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	notice, err := s.noticeService.Create(c.UserContext(), actorFrom(c), req.input())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.noticeChanged(c.UserContext(), notifications.NoticeCreated, notice)
	return c.Status(fiber.StatusCreated).JSON(notice)
}

// GetNotice handles GET /api/notices/:id
// @Summary Get a notice
// @Description Notices outside the caller's audience are reported as not found.
// @Tags notices
// @Produce json
// @Security BearerAuth
// @Param id path int true "Notice ID"
// @Success 200 {object} models.Notice
// @Failure 404 {object} models.ErrorResponse
// @Router /notices/{id} [get]
func (s *Server) GetNotice(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	notice, err := s.noticeService.Get(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(notice)
}

// UpdateNotice handles PATCH /api/notices/:id
// @Summary Update a notice
// @Tags notices
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Notice ID"
// @Param request body noticeRequest true "Fields to change"
// @Success 200 {object} models.Notice
// @Failure 403 {object} models.ErrorResponse
// @Router /notices/{id} [patch]
func (s *Server) UpdateNotice(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req noticeRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	notice, err := s.noticeService.Update(c.UserContext(), actorFrom(c), id, req.input())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.noticeChanged(c.UserContext(), notifications.NoticeUpdated, notice)
	return c.JSON(notice)
}

// DeleteNotice handles DELETE /api/notices/:id
// @Summary Delete a notice
// @Tags notices
// @Security BearerAuth
// @Param id path int true "Notice ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Router /notices/{id} [delete]
func (s *Server) DeleteNotice(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	notice, err := s.noticeService.Delete(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.search.Remove(search.ResultNotice, id)
	s.publishRoleEvent(c.UserContext(), noticeRecipients(notice), notifications.NoticeDeleted, deletedPayload(id))
	return c.SendStatus(fiber.StatusNoContent)
}

// UploadNoticeAttachment handles POST /api/notices/:id/attachment
// @Summary Attach a file to a notice
// @Description Replaces any existing attachment. The response carries a presigned download URL.
// @Tags notices
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "Notice ID"
// @Param file formData file true "Attachment"
// @Success 200 {object} models.Notice
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /notices/{id}/attachment [post]
func (s *Server) UploadNoticeAttachment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	filename, content, err := readUpload(c, "file")
	if err != nil {
		return nil
	}

	notice, err := s.noticeService.UploadAttachment(c.UserContext(), actorFrom(c), id, filename, content)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.publishBroadcastEvent(c.UserContext(), notifications.NoticeUpdated, noticeSummary(notice))
	return c.JSON(notice)
}
