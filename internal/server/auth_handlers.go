package server

import (
	"time"

	"campusconnect/internal/middleware"
	"campusconnect/internal/models"
	"campusconnect/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const wsTicketTTL = 60 * time.Second

type signupRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	FullName      string `json:"full_name"`
	Department    string `json:"department"`
	StudentNumber string `json:"student_number"`
	YearOfStudy   int    `json:"year_of_study"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Signup handles POST /api/auth/signup
// @Summary Create an account
// @Description Register a new student account and open a session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body signupRequest true "Signup request"
// @Success 201 {object} service.AuthResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	result, err := s.sessionService.Signup(c.UserContext(), service.SignupInput{
		Email:         req.Email,
		Password:      req.Password,
		FullName:      req.FullName,
		Department:    req.Department,
		StudentNumber: req.StudentNumber,
		YearOfStudy:   req.YearOfStudy,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// Login handles POST /api/auth/login
// @Summary Log in
// @Tags auth
// @Accept json
// @Produce json
// @Param request body loginRequest true "Credentials"
// @Success 200 {object} service.AuthResult
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	result, err := s.sessionService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}

// Refresh handles POST /api/auth/refresh
// @Summary Rotate a refresh token
// @Description Exchanges a refresh token for a new access and refresh token pair. Tokens are single-use.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body refreshRequest true "Refresh token"
// @Success 200 {object} service.AuthResult
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/refresh [post]
func (s *Server) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	result, err := s.sessionService.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}

// Logout handles POST /api/auth/logout
// @Summary Log out
// @Description Revokes the refresh token and, when a bearer token is sent, blacklists it.
// @Tags auth
// @Accept json
// @Param request body refreshRequest false "Refresh token"
// @Success 204
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	var req refreshRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}

	claims, err := s.tokens.ParseAccessToken(middleware.BearerToken(c))
	if err != nil {
		claims = nil
	}

	if err := s.sessionService.Logout(c.UserContext(), req.RefreshToken, claims); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetSession handles GET /api/auth/session
// @Summary Session bootstrap
// @Description Returns the caller's profile, permissions and refresh schedule.
// @Description When the profile cannot be loaded in time a default profile is returned with fallback=true.
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.SessionState
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/session [get]
func (s *Server) GetSession(c *fiber.Ctx) error {
	var email string
	claims, ok := middleware.ClaimsFrom(c)
	if ok {
		email = claims.Email
	}

	state, err := s.sessionService.Bootstrap(c.UserContext(), userID(c), email)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	if ok && claims.ExpiresAt != nil {
		state.AccessTokenExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return c.JSON(state)
}

// IssueWSTicket handles POST /api/ws/ticket
// @Summary Issue a WebSocket ticket
// @Description Returns a single-use ticket valid for 60 seconds to open /api/ws.
// @Tags realtime
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{ticket=string,expires_in=int}
// @Failure 503 {object} models.ErrorResponse
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return models.RespondWithAppError(c,
			models.NewUnavailableError("Realtime is unavailable", nil))
	}

	ticket := uuid.NewString()
	if err := s.redis.Set(c.UserContext(), wsTicketPrefix+ticket, ticketValue(actorFrom(c)), wsTicketTTL).Err(); err != nil {
		return models.RespondWithAppError(c,
			models.NewUnavailableError("Could not issue ticket", err))
	}

	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(wsTicketTTL.Seconds()),
	})
}
