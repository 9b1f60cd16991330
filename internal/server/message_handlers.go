package server

import (
	"campusconnect/internal/models"
	"campusconnect/internal/notifications"

	"github.com/gofiber/fiber/v2"
)

type startConversationRequest struct {
	ParticipantID uint `json:"participant_id"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// StartConversation handles POST /api/conversations
// @Summary Open a direct conversation
// @Description Returns the existing conversation with the member or creates it.
// @Tags messaging
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body startConversationRequest true "Other member"
// @Success 200 {object} models.Conversation "existing"
// @Success 201 {object} models.Conversation "created"
// @Router /conversations [post]
func (s *Server) StartConversation(c *fiber.Ctx) error {
	var req startConversationRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	conv, created, err := s.messageService.StartConversation(c.UserContext(), actorFrom(c), req.ParticipantID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	if created {
		return c.Status(fiber.StatusCreated).JSON(conv)
	}
	return c.JSON(conv)
}

// ListConversations handles GET /api/conversations
// @Summary List my conversations
// @Tags messaging
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Conversation
// @Router /conversations [get]
func (s *Server) ListConversations(c *fiber.Ctx) error {
	convs, err := s.messageService.ListConversations(c.UserContext(), actorFrom(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	return c.JSON(convs)
}

// GetConversation handles GET /api/conversations/:id
// @Summary Get a conversation
// @Tags messaging
// @Produce json
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Success 200 {object} models.Conversation
// @Failure 404 {object} models.ErrorResponse
// @Router /conversations/{id} [get]
func (s *Server) GetConversation(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	conv, err := s.messageService.GetConversation(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(conv)
}

// ListMessages handles GET /api/conversations/:id/messages
// @Summary List messages
// @Description Newest first. Marks the conversation read for the caller.
// @Tags messaging
// @Produce json
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Message
// @Failure 404 {object} models.ErrorResponse
// @Router /conversations/{id}/messages [get]
func (s *Server) ListMessages(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 50)

	messages, err := s.messageService.ListMessages(c.UserContext(), actorFrom(c), id, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return c.JSON(messages)
}

// SendMessage handles POST /api/conversations/:id/messages
// @Summary Send a message
// @Description Stores the message and delivers it in realtime to every participant.
// @Tags messaging
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Param request body sendMessageRequest true "Message"
// @Success 201 {object} models.Message
// @Failure 404 {object} models.ErrorResponse
// @Router /conversations/{id}/messages [post]
func (s *Server) SendMessage(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req sendMessageRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	msg, participants, err := s.messageService.SendMessage(c.UserContext(), actorFrom(c), id, req.Content)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.publishUserEvent(c.UserContext(), participants, notifications.MessageCreated, msg)
	return c.Status(fiber.StatusCreated).JSON(msg)
}
