package server

import (
	"strings"

	"campusconnect/internal/models"
	"campusconnect/internal/repository"
	"campusconnect/internal/service"

	"github.com/gofiber/fiber/v2"
)

type updateProfileRequest struct {
	FullName   *string `json:"full_name"`
	Bio        *string `json:"bio"`
	Department *string `json:"department"`
}

type setRoleRequest struct {
	Role string `json:"role"`
}

// GetMyProfile handles GET /api/profiles/me
// @Summary Get my profile
// @Tags profiles
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Profile
// @Router /profiles/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	profile, err := s.profileService.GetProfile(c.UserContext(), userID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyProfile handles PATCH /api/profiles/me
// @Summary Update my profile
// @Tags profiles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body updateProfileRequest true "Fields to change"
// @Success 200 {object} models.Profile
// @Failure 400 {object} models.ErrorResponse
// @Router /profiles/me [patch]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req updateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	profile, err := s.profileService.UpdateMe(c.UserContext(), userID(c), service.UpdateProfileInput{
		FullName:   req.FullName,
		Bio:        req.Bio,
		Department: req.Department,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(profile)
}

// UploadAvatar handles POST /api/profiles/me/avatar
// @Summary Upload a profile picture
// @Description The image is cropped to a 256px square and stored as WebP.
// @Tags profiles
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param avatar formData file true "Image file"
// @Success 200 {object} models.Profile
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /profiles/me/avatar [post]
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	_, content, err := readUpload(c, "avatar")
	if err != nil {
		return nil
	}

	profile, err := s.avatarService.Upload(c.UserContext(), userID(c), content)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(profile)
}

// GetAvatar handles GET /api/profiles/:id/avatar by redirecting to a presigned URL.
func (s *Server) GetAvatar(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	url, err := s.avatarService.URL(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Redirect(url, fiber.StatusFound)
}

// ListProfiles handles GET /api/profiles
// @Summary List profiles
// @Tags profiles
// @Produce json
// @Security BearerAuth
// @Param role query string false "student, faculty or admin"
// @Param department query string false "Department"
// @Param q query string false "Name or email contains"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} object{items=[]models.Profile,total=int}
// @Router /profiles [get]
func (s *Server) ListProfiles(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)

	profiles, total, err := s.profileService.ListProfiles(c.UserContext(), repository.ProfileFilter{
		Role:       models.Role(strings.ToLower(strings.TrimSpace(c.Query("role")))),
		Department: strings.TrimSpace(c.Query("department")),
		Query:      strings.TrimSpace(c.Query("q")),
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(newListResponse(profiles, total, page))
}

// GetProfile handles GET /api/profiles/:id
// @Summary Get a profile
// @Tags profiles
// @Produce json
// @Security BearerAuth
// @Param id path int true "Profile ID"
// @Success 200 {object} models.Profile
// @Failure 404 {object} models.ErrorResponse
// @Router /profiles/{id} [get]
func (s *Server) GetProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	profile, err := s.profileService.GetProfile(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(profile)
}

// SetProfileRole handles PATCH /api/profiles/:id/role
// @Summary Change a member's role
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Profile ID"
// @Param request body setRoleRequest true "New role"
// @Success 200 {object} models.Profile
// @Failure 403 {object} models.ErrorResponse
// @Router /profiles/{id}/role [patch]
func (s *Server) SetProfileRole(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req setRoleRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	role := models.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	profile, err := s.profileService.SetRole(c.UserContext(), actorFrom(c), id, role)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(profile)
}
