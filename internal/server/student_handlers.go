package server

import (
	"strings"

	"campusconnect/internal/models"
	"campusconnect/internal/repository"
	"campusconnect/internal/service"

	"github.com/gofiber/fiber/v2"
)

type studentRequest struct {
	Email         string  `json:"email"`
	FullName      *string `json:"full_name"`
	Department    *string `json:"department"`
	StudentNumber *string `json:"student_number"`
	YearOfStudy   *int    `json:"year_of_study"`
}

func (r studentRequest) input() service.StudentInput {
	return service.StudentInput{
		Email:         r.Email,
		FullName:      r.FullName,
		Department:    r.Department,
		StudentNumber: r.StudentNumber,
		YearOfStudy:   r.YearOfStudy,
	}
}

// createdStudent carries the one-time temporary password back to staff.
type createdStudent struct {
	Profile           *models.Profile `json:"profile"`
	TemporaryPassword string          `json:"temporary_password"`
}

// ListStudents handles GET /api/students
// @Summary List students
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param department query string false "Department"
// @Param q query string false "Name, email or student number contains"
// @Success 200 {object} object{items=[]models.Profile,total=int}
// @Failure 403 {object} models.ErrorResponse
// @Router /students [get]
func (s *Server) ListStudents(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)

	students, total, err := s.profileService.ListStudents(c.UserContext(), actorFrom(c), repository.ProfileFilter{
		Department: strings.TrimSpace(c.Query("department")),
		Query:      strings.TrimSpace(c.Query("q")),
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(newListResponse(students, total, page))
}

// CreateStudent handles POST /api/students
// @Summary Register a student
// @Description Creates a student profile with a generated temporary password, returned once.
// @Tags students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body studentRequest true "Student"
// @Success 201 {object} createdStudent
// @Failure 409 {object} models.ErrorResponse
// @Router /students [post]
func (s *Server) CreateStudent(c *fiber.Ctx) error {
	var req studentRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	profile, temp, err := s.profileService.CreateStudent(c.UserContext(), actorFrom(c), req.input())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(createdStudent{Profile: profile, TemporaryPassword: temp})
}

// GetStudent handles GET /api/students/:id
func (s *Server) GetStudent(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	profile, err := s.profileService.GetStudent(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(profile)
}

// UpdateStudent handles PATCH /api/students/:id
// @Summary Update a student
// @Tags students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Param request body studentRequest true "Fields to change"
// @Success 200 {object} models.Profile
// @Router /students/{id} [patch]
func (s *Server) UpdateStudent(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req studentRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	profile, err := s.profileService.UpdateStudent(c.UserContext(), actorFrom(c), id, req.input())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(profile)
}

// DeleteStudent handles DELETE /api/students/:id
// @Summary Delete a student
// @Tags students
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Success 204
// @Router /students/{id} [delete]
func (s *Server) DeleteStudent(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.profileService.DeleteStudent(c.UserContext(), actorFrom(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
