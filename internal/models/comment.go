// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Comment is a reply attached to a post. Comments are append-only: they are
// never edited or deleted, and insertion order is display order.
type Comment struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Content string `gorm:"not null" json:"content"`
	UserID  uint   `gorm:"not null;index" json:"user_id"`
	PostID  uint   `gorm:"not null;index" json:"post_id"`
	User    User   `gorm:"foreignKey:UserID" json:"user"`

	CreatedAt time.Time `json:"created_at"`
}
