package server

import (
	"campusconnect/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetDashboard handles GET /api/dashboard
// @Summary Landing page summary
// @Description Counts and previews gathered from every module for the caller.
// @Tags dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.Dashboard
// @Router /dashboard [get]
func (s *Server) GetDashboard(c *fiber.Ctx) error {
	dashboard, err := s.dashboardService.Get(c.UserContext(), actorFrom(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(dashboard)
}
