// Package services implements the business rules of the pin service. Each service coordinates
// one domain over the repository interfaces below, consults the policy package on every read and
// write, and reports failures as *apperr.Error values that the HTTP layer renders.
package services

import (
	"context"

	"github.com/pinco/pinco-backend/internal/db/models"
	"github.com/pinco/pinco-backend/internal/policy"
)

// UserStore is the user persistence used by services and the authentication gate.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByAPIKey(ctx context.Context, key string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UserNameTaken(ctx context.Context, name string, exceptID int64) (bool, error)
	APIKeyExists(ctx context.Context, key string) (bool, error)
	SetAPIKey(ctx context.Context, id int64, key string) error
	Update(ctx context.Context, user *models.User) error
	SoftDelete(ctx context.Context, id int64) error
}

// PinStore is the pin persistence. Every listing takes the actor and applies the visibility rule.
type PinStore interface {
	Create(ctx context.Context, pin *models.Pin) error
	Find(ctx context.Context, id int64, includeDeleted bool) (*models.Pin, error)
	GetVisible(ctx context.Context, id int64, actor policy.Actor) (*models.Pin, error)
	ListAll(ctx context.Context, actor policy.Actor) ([]models.Pin, error)
	ListWithinRadius(ctx context.Context, center models.Point, radiusMeters float64, actor policy.Actor) ([]models.Pin, error)
	ListWithinBounds(ctx context.Context, b models.Bounds, actor policy.Actor) ([]models.Pin, error)
	ListByAuthor(ctx context.Context, authorID int64, actor policy.Actor) ([]models.Pin, error)
	ListByAuthorMonth(ctx context.Context, authorID int64, year, month int, actor policy.Actor) ([]models.Pin, error)
	ListByIDs(ctx context.Context, ids []int64, actor policy.Actor) ([]models.Pin, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
	UpdateContent(ctx context.Context, id int64, content string) error
	SetPublic(ctx context.Context, id int64, isPublic bool) error
	SetDeleted(ctx context.Context, id int64, deleted bool) error
	SoftDeleteByUser(ctx context.Context, userID int64) error
	RefreshLikeCount(ctx context.Context, pinID int64) (int, error)
	RefreshLikeCounts(ctx context.Context, ids []int64) error
}

// LikeStore is the like persistence.
type LikeStore interface {
	Exists(ctx context.Context, userID, pinID int64) (bool, error)
	Create(ctx context.Context, userID, pinID int64) error
	Delete(ctx context.Context, userID, pinID int64) (bool, error)
	ListUsersByPin(ctx context.Context, pinID int64) ([]models.UserSummary, error)
	ListPinsLikedByUser(ctx context.Context, userID int64, actor policy.Actor) ([]models.Pin, error)
	PinIDsByUser(ctx context.Context, userID int64) ([]int64, error)
	DeleteByUser(ctx context.Context, userID int64) error
}

// BookmarkStore is the bookmark persistence.
type BookmarkStore interface {
	GetByID(ctx context.Context, id int64) (*models.Bookmark, error)
	GetByUserAndPin(ctx context.Context, userID, pinID int64) (*models.Bookmark, error)
	Create(ctx context.Context, b *models.Bookmark) error
	SetDeleted(ctx context.Context, id int64, deleted bool) error
	ListByUser(ctx context.Context, userID int64, actor policy.Actor) ([]models.Bookmark, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
}

// TagStore is the tag persistence.
type TagStore interface {
	ListAll(ctx context.Context) ([]models.Tag, error)
	GetByKeyword(ctx context.Context, keyword string) (*models.Tag, error)
	Create(ctx context.Context, keyword string) (*models.Tag, error)
	PinIDsByTag(ctx context.Context, tagID int64) ([]int64, error)
}

// PinTagStore is the pin-tag link persistence.
type PinTagStore interface {
	Get(ctx context.Context, pinID, tagID int64) (*models.PinTag, error)
	Create(ctx context.Context, pinID, tagID int64) (*models.PinTag, error)
	SetDeleted(ctx context.Context, id int64, deleted bool) error
	ListActiveByPin(ctx context.Context, pinID int64) ([]models.PinTag, error)
}
