package service

import (
	"context"
	"strings"
	"time"

	"campusconnect/internal/auth"
	"campusconnect/internal/models"
	"campusconnect/internal/repository"
	"campusconnect/internal/validation"
)

const maxMessageLen = 2000

// MessageService manages direct conversations between members.
type MessageService struct {
	repo     repository.MessageRepository
	profiles repository.ProfileRepository
	now      func() time.Time
}

func NewMessageService(repo repository.MessageRepository, profiles repository.ProfileRepository) *MessageService {
	return &MessageService{repo: repo, profiles: profiles, now: time.Now}
}

// StartConversation returns the direct conversation with otherID, creating it if needed.
func (s *MessageService) StartConversation(ctx context.Context, actor Actor, otherID uint) (*models.Conversation, bool, error) {
	if !actor.Can(auth.ActionSendMessages) {
		return nil, false, models.NewForbiddenError("You cannot send messages")
	}
	if otherID == 0 || otherID == actor.ID {
		return nil, false, models.NewValidationError("Choose another member to message")
	}
	if _, err := s.profiles.GetByID(ctx, otherID); err != nil {
		return nil, false, err
	}
	return s.repo.GetOrCreateDirect(ctx, actor.ID, otherID)
}

// ListConversations returns the actor's conversations, most recent first.
func (s *MessageService) ListConversations(ctx context.Context, actor Actor) ([]models.Conversation, error) {
	return s.repo.ListForUser(ctx, actor.ID)
}

// member fails with NOT_FOUND when the actor does not take part in conversationID.
func (s *MessageService) member(ctx context.Context, actor Actor, conversationID uint) error {
	ok, err := s.repo.IsParticipant(ctx, conversationID, actor.ID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewNotFoundError("Conversation", conversationID)
	}
	return nil
}

// GetConversation is NOT_FOUND for non-participants.
func (s *MessageService) GetConversation(ctx context.Context, actor Actor, id uint) (*models.Conversation, error) {
	if err := s.member(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.repo.GetConversation(ctx, id)
}

// ListMessages pages through a conversation and marks it read for the actor.
func (s *MessageService) ListMessages(ctx context.Context, actor Actor, conversationID uint, limit, offset int) ([]models.Message, error) {
	if err := s.member(ctx, actor, conversationID); err != nil {
		return nil, err
	}
	messages, err := s.repo.ListMessages(ctx, conversationID, limit, offset)
	if err != nil {
		return nil, err
	}
	if err := s.repo.MarkRead(ctx, conversationID, actor.ID, s.now().UTC()); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage stores a message and returns it with the ids of every participant.
func (s *MessageService) SendMessage(ctx context.Context, actor Actor, conversationID uint, content string) (*models.Message, []uint, error) {
	if !actor.Can(auth.ActionSendMessages) {
		return nil, nil, models.NewForbiddenError("You cannot send messages")
	}
	content = strings.TrimSpace(content)
	if err := validation.RequiredMax("Message", content, maxMessageLen); err != nil {
		return nil, nil, invalid(err)
	}
	if err := s.member(ctx, actor, conversationID); err != nil {
		return nil, nil, err
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       actor.ID,
		Content:        content,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, nil, err
	}
	participants, err := s.repo.ParticipantIDs(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	return msg, participants, nil
}
