package server

import (
	"context"
	"strings"
	"time"

	"campusconnect/internal/models"
	"campusconnect/internal/notifications"
	"campusconnect/internal/search"
	"campusconnect/internal/service"

	"github.com/gofiber/fiber/v2"
)

type eventRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	Category    *string    `json:"category"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	Capacity    *int       `json:"capacity"`
}

func (r eventRequest) input() service.EventInput {
	return service.EventInput{
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		Category:    r.Category,
		StartsAt:    r.StartsAt,
		EndsAt:      r.EndsAt,
		Capacity:    r.Capacity,
	}
}

// publishAttendance announces the new attendee count of an event.
func (s *Server) publishAttendance(ctx context.Context, actor service.Actor, eventID uint) {
	event, err := s.eventService.Get(ctx, actor, eventID)
	if err != nil {
		return
	}
	s.publishBroadcastEvent(ctx, notifications.EventRegistration, map[string]any{
		"event_id":       event.ID,
		"attendee_count": event.AttendeeCount,
		"capacity":       event.Capacity,
	})
}

// ListEvents handles GET /api/events
// @Summary List events
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param scope query string false "upcoming (default), past or all"
// @Param category query string false "Category"
// @Param q query string false "Title, description or location contains"
// @Param mine query bool false "Only events I organize"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} object{items=[]models.Event,total=int}
// @Router /events [get]
func (s *Server) ListEvents(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)

	events, total, err := s.eventService.List(c.UserContext(), actorFrom(c), service.ListEventsInput{
		Window:   strings.ToLower(strings.TrimSpace(c.Query("scope"))),
		Category: c.Query("category"),
		Query:    strings.TrimSpace(c.Query("q")),
		Mine:     c.QueryBool("mine"),
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(newListResponse(events, total, page))
}

// CreateEvent handles POST /api/events
// @Summary Create an event
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body eventRequest true "Event"
// @Success 201 {object} models.Event
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /events [post]
func (s *Server) CreateEvent(c *fiber.Ctx) error {
	var req eventRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	event, err := s.eventService.Create(c.UserContext(), actorFrom(c), req.input())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.search.IndexEvent(event)
	s.publishBroadcastEvent(c.UserContext(), notifications.EventCreated, event)
	return c.Status(fiber.StatusCreated).JSON(event)
}

// GetEvent handles GET /api/events/:id
// @Summary Get an event
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 200 {object} models.Event
// @Failure 404 {object} models.ErrorResponse
// @Router /events/{id} [get]
func (s *Server) GetEvent(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	event, err := s.eventService.Get(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(event)
}

// UpdateEvent handles PATCH /api/events/:id
// @Summary Update an event
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Param request body eventRequest true "Fields to change"
// @Success 200 {object} models.Event
// @Failure 409 {object} models.ErrorResponse
// @Router /events/{id} [patch]
func (s *Server) UpdateEvent(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req eventRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	event, err := s.eventService.Update(c.UserContext(), actorFrom(c), id, req.input())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.search.IndexEvent(event)
	s.publishBroadcastEvent(c.UserContext(), notifications.EventUpdated, event)
	return c.JSON(event)
}

// DeleteEvent handles DELETE /api/events/:id
// @Summary Delete an event
// @Tags events
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 204
// @Router /events/{id} [delete]
func (s *Server) DeleteEvent(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.eventService.Delete(c.UserContext(), actorFrom(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.search.Remove(search.ResultEvent, id)
	s.publishBroadcastEvent(c.UserContext(), notifications.EventDeleted, deletedPayload(id))
	return c.SendStatus(fiber.StatusNoContent)
}

// RegisterForEvent handles POST /api/events/:id/register
// @Summary Register for an event
// @Description Idempotent. Fails with 409 when the event is full or already over.
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 200 {object} models.EventAttendee
// @Failure 409 {object} models.ErrorResponse
// @Router /events/{id}/register [post]
func (s *Server) RegisterForEvent(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	actor := actorFrom(c)
	attendee, err := s.eventService.Register(c.UserContext(), actor, id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.publishAttendance(c.UserContext(), actor, id)
	return c.JSON(attendee)
}

// CancelEventRegistration handles DELETE /api/events/:id/register
// @Summary Cancel my registration
// @Tags events
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 204
// @Router /events/{id}/register [delete]
func (s *Server) CancelEventRegistration(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	actor := actorFrom(c)
	if err := s.eventService.CancelRegistration(c.UserContext(), actor, id); err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.publishAttendance(c.UserContext(), actor, id)
	return c.SendStatus(fiber.StatusNoContent)
}

// ListEventAttendees handles GET /api/events/:id/attendees
// @Summary List attendees
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Success 200 {array} models.EventAttendee
// @Failure 403 {object} models.ErrorResponse
// @Router /events/{id}/attendees [get]
func (s *Server) ListEventAttendees(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	attendees, err := s.eventService.ListAttendees(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	if attendees == nil {
		attendees = []models.EventAttendee{}
	}
	return c.JSON(attendees)
}

// MarkEventAttendance handles POST /api/events/:id/attendees/:userId/attendance
// @Summary Mark an attendee as present
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Param userId path int true "Attendee profile ID"
// @Success 200 {object} models.EventAttendee
// @Failure 404 {object} models.ErrorResponse
// @Router /events/{id}/attendees/{userId}/attendance [post]
func (s *Server) MarkEventAttendance(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	attendeeID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	attendee, err := s.eventService.MarkAttendance(c.UserContext(), actorFrom(c), id, attendeeID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(attendee)
}
