package models

import "time"

// Bookmark is a user's saved pin. Pin is populated by listing queries only.
type Bookmark struct {
	ID        int64     `json:"id" db:"bookmark_id"`
	UserID    int64     `json:"-" db:"user_id"`
	PinID     int64     `json:"-" db:"pin_id"`
	Deleted   bool      `json:"-" db:"is_deleted"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	Pin       *Pin      `json:"pin,omitempty" db:"pin"`
}

// OwnerID returns the user who saved the bookmark.
func (b *Bookmark) OwnerID() int64 { return b.UserID }

// IsDeleted reports whether the bookmark is soft-deleted.
func (b *Bookmark) IsDeleted() bool { return b.Deleted }
