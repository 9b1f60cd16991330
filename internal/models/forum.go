package models

import (
	"time"

	"gorm.io/gorm"
)

// ForumPost is a discussion thread.
type ForumPost struct {
	ID       uint     `gorm:"primaryKey" json:"id"`
	Title    string   `gorm:"size:300;not null" json:"title"`
	Content  string   `gorm:"type:text;not null" json:"content"`
	Category string   `gorm:"size:32;index" json:"category"`
	AuthorID uint     `gorm:"not null;index" json:"author_id"`
	Author   *Profile `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	// Upvotes is maintained in the same transaction as post_upvotes rows and never drops below zero.
	Upvotes int `gorm:"not null;default:0;check:chk_forum_posts_upvotes,upvotes >= 0" json:"upvotes"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int `gorm:"->" json:"comments_count"`
	// Upvoted indicates whether the requesting user upvoted this post (computed)
	Upvoted   bool           `gorm:"->" json:"upvoted"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// ForumComment is a reply on a forum post.
type ForumComment struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	PostID    uint           `gorm:"not null;index" json:"post_id"`
	AuthorID  uint           `gorm:"not null;index" json:"author_id"`
	Author    *Profile       `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// PostUpvote records a single member's vote on a post.
type PostUpvote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_post_upvote" json:"post_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_post_upvote;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// UpvoteResult is the state after toggling a vote.
type UpvoteResult struct {
	PostID  uint `json:"post_id"`
	Upvoted bool `json:"upvoted"`
	Upvotes int  `json:"upvotes"`
}
