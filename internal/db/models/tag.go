package models

import "time"

// Tag is a globally unique keyword.
type Tag struct {
	ID        int64     `json:"id" db:"tag_id"`
	Keyword   string    `json:"keyword" db:"keyword"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// PinTag links a tag to a pin. Keyword and PinOwnerID are joined from tags and pins.
type PinTag struct {
	ID         int64     `json:"id" db:"pin_tag_id"`
	PinID      int64     `json:"pinId" db:"pin_id"`
	TagID      int64     `json:"tagId" db:"tag_id"`
	Keyword    string    `json:"keyword" db:"keyword"`
	PinOwnerID int64     `json:"-" db:"pin_owner_id"`
	Deleted    bool      `json:"-" db:"is_deleted"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// OwnerID returns the owner of the tagged pin, who alone may remove or restore the link.
func (pt *PinTag) OwnerID() int64 { return pt.PinOwnerID }

// IsDeleted reports whether the link is soft-deleted.
func (pt *PinTag) IsDeleted() bool { return pt.Deleted }
