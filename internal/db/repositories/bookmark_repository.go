package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pinco/pinco-backend/internal/db"
	"github.com/pinco/pinco-backend/internal/db/models"
	"github.com/pinco/pinco-backend/internal/policy"
)

const bookmarkColumns = `b.bookmark_id, b.user_id, b.pin_id, b.is_deleted, b.created_at`

// bookmarkPinColumns nests the pin projection under the "pin." prefix for sqlx.
const bookmarkPinColumns = `p.pin_id AS "pin.pin_id",
	ST_Y(p.point::geometry) AS "pin.latitude",
	ST_X(p.point::geometry) AS "pin.longitude",
	p.content AS "pin.content", p.user_id AS "pin.user_id", p.like_count AS "pin.like_count",
	p.is_public AS "pin.is_public", p.is_deleted AS "pin.is_deleted",
	p.created_at AS "pin.created_at", p.modified_at AS "pin.modified_at",
	COALESCE((SELECT array_agg(t.keyword ORDER BY pt.pin_tag_id)
	          FROM pin_tags pt JOIN tags t ON t.tag_id = pt.tag_id
	          WHERE pt.pin_id = p.pin_id AND pt.is_deleted = false), '{}') AS "pin.pin_tags"`

// BookmarkRepository handles bookmark database operations
type BookmarkRepository struct {
	db *sqlx.DB
}

// NewBookmarkRepository creates a new BookmarkRepository
func NewBookmarkRepository(conn *sqlx.DB) *BookmarkRepository {
	return &BookmarkRepository{db: conn}
}

func (r *BookmarkRepository) conn(ctx context.Context) db.Queryer {
	return db.Conn(ctx, r.db)
}

func (r *BookmarkRepository) getOne(ctx context.Context, where string, args ...interface{}) (*models.Bookmark, error) {
	q := r.conn(ctx)
	query := q.Rebind(`SELECT ` + bookmarkColumns + ` FROM bookmarks b WHERE ` + where)

	var b models.Bookmark
	err := q.GetContext(ctx, &b, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmark: %w", err)
	}
	return &b, nil
}

// GetByID returns a bookmark in any state, or nil.
func (r *BookmarkRepository) GetByID(ctx context.Context, id int64) (*models.Bookmark, error) {
	return r.getOne(ctx, `b.bookmark_id = ?`, id)
}

// GetByUserAndPin returns the user's bookmark of a pin in any state, or nil.
func (r *BookmarkRepository) GetByUserAndPin(ctx context.Context, userID, pinID int64) (*models.Bookmark, error) {
	return r.getOne(ctx, `b.user_id = ? AND b.pin_id = ?`, userID, pinID)
}

// Create inserts an active bookmark.
func (r *BookmarkRepository) Create(ctx context.Context, b *models.Bookmark) error {
	q := r.conn(ctx)
	query := q.Rebind(`
		INSERT INTO bookmarks (user_id, pin_id) VALUES (?, ?)
		RETURNING bookmark_id, is_deleted, created_at
	`)

	err := q.QueryRowxContext(ctx, query, b.UserID, b.PinID).Scan(&b.ID, &b.Deleted, &b.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create bookmark: %w", err)
	}
	return nil
}

// SetDeleted sets the soft-delete flag.
func (r *BookmarkRepository) SetDeleted(ctx context.Context, id int64, deleted bool) error {
	q := r.conn(ctx)
	if _, err := q.ExecContext(ctx, q.Rebind(`UPDATE bookmarks SET is_deleted = ? WHERE bookmark_id = ?`), deleted, id); err != nil {
		return fmt.Errorf("failed to update bookmark: %w", err)
	}
	return nil
}

// ListByUser returns the user's active bookmarks whose pins are active and readable by actor,
// newest first, each with its pin.
func (r *BookmarkRepository) ListByUser(ctx context.Context, userID int64, actor policy.Actor) ([]models.Bookmark, error) {
	visible, visArgs := policy.VisibleClause("p.user_id", "p.is_public", actor)
	q := r.conn(ctx)
	query := q.Rebind(`
		SELECT ` + bookmarkColumns + `, ` + bookmarkPinColumns + `
		FROM bookmarks b
		JOIN pins p ON p.pin_id = b.pin_id
		WHERE b.user_id = ? AND b.is_deleted = false AND p.is_deleted = false AND ` + visible + `
		ORDER BY b.created_at DESC, b.bookmark_id DESC
	`)

	bookmarks := []models.Bookmark{}
	if err := q.SelectContext(ctx, &bookmarks, query, append([]interface{}{userID}, visArgs...)...); err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	return bookmarks, nil
}

// CountByUser counts the user's active bookmarks on active pins.
func (r *BookmarkRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	q := r.conn(ctx)
	var n int
	err := q.GetContext(ctx, &n, q.Rebind(`
		SELECT COUNT(*) FROM bookmarks b JOIN pins p ON p.pin_id = b.pin_id
		WHERE b.user_id = ? AND b.is_deleted = false AND p.is_deleted = false
	`), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookmarks: %w", err)
	}
	return n, nil
}
