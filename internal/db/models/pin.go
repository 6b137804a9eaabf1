package models

import (
	"time"

	"github.com/lib/pq"
)

// Pin is a geotagged post. Latitude and longitude are projected from the geography column;
// PinTags holds the keywords of its active tag links.
type Pin struct {
	ID         int64          `json:"id" db:"pin_id"`
	Latitude   float64        `json:"latitude" db:"latitude"`
	Longitude  float64        `json:"longitude" db:"longitude"`
	Content    string         `json:"content" db:"content"`
	UserID     int64          `json:"userId" db:"user_id"`
	PinTags    pq.StringArray `json:"pinTags" db:"pin_tags"`
	LikeCount  int            `json:"likeCount" db:"like_count"`
	IsPublic   bool           `json:"isPublic" db:"is_public"`
	Deleted    bool           `json:"-" db:"is_deleted"`
	CreatedAt  time.Time      `json:"createdAt" db:"created_at"`
	ModifiedAt time.Time      `json:"modifiedAt" db:"modified_at"`
}

// OwnerID returns the author of the pin.
func (p *Pin) OwnerID() int64 { return p.UserID }

// IsDeleted reports whether the pin is soft-deleted.
func (p *Pin) IsDeleted() bool { return p.Deleted }

// Tags returns the keyword list, never nil.
func (p *Pin) Tags() []string {
	if p.PinTags == nil {
		return []string{}
	}
	return p.PinTags
}

// Point is a WGS84 coordinate.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Bounds is a latitude/longitude rectangle.
type Bounds struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}
