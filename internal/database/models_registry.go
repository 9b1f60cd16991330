package database

import "campusconnect/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Profile{},
		&models.Notice{},
		&models.Event{},
		&models.EventAttendee{},
		&models.ForumPost{},
		&models.ForumComment{},
		&models.PostUpvote{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.Message{},
	}
}
