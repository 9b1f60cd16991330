package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campusconnect/internal/models"
	"campusconnect/internal/observability"

	"gorm.io/gorm"
)

// MessageRepository defines persistence operations for direct conversations.
type MessageRepository interface {
	GetOrCreateDirect(ctx context.Context, userA, userB uint) (*models.Conversation, bool, error)
	GetConversation(ctx context.Context, id uint) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID uint) ([]models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error)
	ParticipantIDs(ctx context.Context, conversationID uint) ([]uint, error)
	ListMessages(ctx context.Context, conversationID uint, limit, offset int) ([]models.Message, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	MarkRead(ctx context.Context, conversationID, userID uint, at time.Time) error
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository returns a new MessageRepository implementation.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// pairKey identifies the direct conversation between two profiles regardless of order.
func pairKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// GetOrCreateDirect returns the conversation between userA and userB,
// creating it when missing. The bool reports whether it was created.
func (r *messageRepository) GetOrCreateDirect(ctx context.Context, userA, userB uint) (*models.Conversation, bool, error) {
	key := pairKey(userA, userB)

	var conv models.Conversation
	err := r.db.WithContext(ctx).Where("pair_key = ?", key).First(&conv).Error
	if err == nil {
		full, err := r.GetConversation(ctx, conv.ID)
		return full, false, err
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, models.NewInternalError(err)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv = models.Conversation{PairKey: key}
		if err := tx.Create(&conv).Error; err != nil {
			return err
		}
		participants := []models.ConversationParticipant{
			{ConversationID: conv.ID, UserID: userA},
			{ConversationID: conv.ID, UserID: userB},
		}
		return tx.Create(&participants).Error
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			// Lost a creation race; the other request's row is authoritative.
			if err := r.db.WithContext(ctx).Where("pair_key = ?", key).First(&conv).Error; err != nil {
				return nil, false, models.NewInternalError(err)
			}
			full, err := r.GetConversation(ctx, conv.ID)
			return full, false, err
		}
		return nil, false, models.NewInternalError(err)
	}

	full, err := r.GetConversation(ctx, conv.ID)
	return full, true, err
}

func (r *messageRepository) GetConversation(ctx context.Context, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Preload("Participants.Profile").
		First(&conv, id).Error
	if err != nil {
		return nil, notFoundOr(err, "Conversation", id)
	}
	return &conv, nil
}

func (r *messageRepository) ListForUser(ctx context.Context, userID uint) ([]models.Conversation, error) {
	defer observability.TrackQuery("list", "conversations")()

	var convs []models.Conversation
	err := readDB(r.db).WithContext(ctx).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ?", userID).
		Preload("Participants").
		Preload("Participants.Profile").
		Order("COALESCE(conversations.last_message_at, conversations.created_at) DESC, conversations.id DESC").
		Find(&convs).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(convs) == 0 {
		return convs, nil
	}

	ids := make([]uint, len(convs))
	for i := range convs {
		ids[i] = convs[i].ID
	}

	var latest []models.Message
	err = readDB(r.db).WithContext(ctx).
		Where("id IN (?)", readDB(r.db).Model(&models.Message{}).
			Select("MAX(id)").
			Where("conversation_id IN ?", ids).
			Group("conversation_id")).
		Find(&latest).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	byConv := make(map[uint]*models.Message, len(latest))
	for i := range latest {
		byConv[latest[i].ConversationID] = &latest[i]
	}
	for i := range convs {
		convs[i].LastMessage = byConv[convs[i].ID]
	}
	return convs, nil
}

func (r *messageRepository) IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error) {
	var count int64
	err := readDB(r.db).WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *messageRepository) ParticipantIDs(ctx context.Context, conversationID uint) ([]uint, error) {
	var ids []uint
	err := readDB(r.db).WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ?", conversationID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

// ListMessages returns a page of messages oldest first, paging backwards from the newest.
func (r *messageRepository) ListMessages(ctx context.Context, conversationID uint, limit, offset int) ([]models.Message, error) {
	var messages []models.Message
	err := readDB(r.db).WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(clampLimit(limit)).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *messageRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	defer observability.TrackQuery("create", "messages")()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			if isCheckViolation(err) {
				return models.NewValidationError("Message must be between 1 and 2000 characters")
			}
			return models.NewInternalError(err)
		}
		if err := tx.Model(&models.Conversation{}).
			Where("id = ?", msg.ConversationID).
			UpdateColumn("last_message_at", msg.CreatedAt).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
}

func (r *messageRepository) MarkRead(ctx context.Context, conversationID, userID uint, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		UpdateColumn("last_read_at", at).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
