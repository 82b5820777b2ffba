// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Post represents an entry in the global feed. UserID is the owner and is
// immutable after creation; only the owner may update or delete the post.
type Post struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Content  string `gorm:"type:text;not null" json:"content"`
	ImageURL string `json:"image,omitempty"`
	UserID   uint   `gorm:"not null;index" json:"user_id"`
	User     User   `gorm:"foreignKey:UserID" json:"user"`

	// Likes is the raw like set; LikeUserIDs is its materialized view used
	// by API responses (toggle semantics, each user at most once).
	Likes       []Like `gorm:"foreignKey:PostID" json:"-"`
	LikeUserIDs []uint `gorm:"-" json:"likes"`

	// Comments are append-only and served in insertion order.
	Comments []Comment `gorm:"foreignKey:PostID" json:"comments"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// MaterializeLikes fills LikeUserIDs from the preloaded like rows so the
// API exposes likes as a flat set of user IDs.
func (p *Post) MaterializeLikes() {
	p.LikeUserIDs = make([]uint, 0, len(p.Likes))
	for _, l := range p.Likes {
		p.LikeUserIDs = append(p.LikeUserIDs, l.UserID)
	}
}
