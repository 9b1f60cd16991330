package server

import (
	"time"

	"campusconnect/internal/models"
	"campusconnect/internal/search"

	"github.com/gofiber/fiber/v2"
)

// Search handles GET /api/search
// @Summary Search notices, events and forum posts
// @Description Uses Meilisearch when healthy and falls back to the database.
// @Description Notices outside the caller's audience are never returned.
// @Tags search
// @Produce json
// @Security BearerAuth
// @Param q query string true "Search text"
// @Param type query string false "notice, event or forum_post"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} search.Response
// @Failure 400 {object} models.ErrorResponse
// @Router /search [get]
func (s *Server) Search(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	actor := actorFrom(c)

	resp, err := s.search.Search(c.UserContext(), search.Query{
		Text:   c.Query("q"),
		Type:   search.ParseType(c.Query("type")),
		Role:   actor.Role,
		Now:    time.Now(),
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(resp)
}

// ReindexSearch handles POST /api/admin/search/reindex
// @Summary Rebuild the search indexes
// @Tags admin
// @Security BearerAuth
// @Success 202
// @Failure 503 {object} models.ErrorResponse
// @Router /admin/search/reindex [post]
func (s *Server) ReindexSearch(c *fiber.Ctx) error {
	if s.meili == nil {
		return models.RespondWithAppError(c,
			models.NewUnavailableError("Meilisearch is not configured", nil))
	}
	if err := s.search.ReindexAll(c.UserContext()); err != nil {
		return models.RespondWithAppError(c, models.NewUnavailableError("Reindex failed", err))
	}
	return c.SendStatus(fiber.StatusAccepted)
}
