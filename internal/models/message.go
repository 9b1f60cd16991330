package models

import (
	"time"

	"gorm.io/gorm"
)

// Conversation is a direct message thread between two profiles.
type Conversation struct {
	ID            uint                      `gorm:"primaryKey" json:"id"`
	PairKey       string                    `gorm:"uniqueIndex;size:64;not null" json:"-"`
	Participants  []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
	LastMessage   *Message                  `gorm:"-" json:"last_message,omitempty"`
	LastMessageAt *time.Time                `gorm:"index" json:"last_message_at,omitempty"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

// ConversationParticipant links a profile to a conversation.
type ConversationParticipant struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ConversationID uint       `gorm:"not null;uniqueIndex:idx_conversation_participant" json:"conversation_id"`
	UserID         uint       `gorm:"not null;uniqueIndex:idx_conversation_participant;index" json:"user_id"`
	Profile        *Profile   `gorm:"foreignKey:UserID" json:"profile,omitempty"`
	LastReadAt     *time.Time `json:"last_read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Message is a single direct message.
type Message struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ConversationID uint           `gorm:"not null;index" json:"conversation_id"`
	SenderID       uint           `gorm:"not null;index" json:"sender_id"`
	Content        string         `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time      `json:"created_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}
