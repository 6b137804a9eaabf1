package models

import "time"

// Like records that a user liked a pin. Likes are hard-deleted.
type Like struct {
	ID        int64     `json:"id" db:"like_id"`
	UserID    int64     `json:"userId" db:"user_id"`
	PinID     int64     `json:"pinId" db:"pin_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
