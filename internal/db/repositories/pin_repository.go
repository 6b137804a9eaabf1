package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pinco/pinco-backend/internal/db"
	"github.com/pinco/pinco-backend/internal/db/models"
	"github.com/pinco/pinco-backend/internal/policy"
)

// pinColumns projects a pin row aliased "p" with its coordinates and active tag keywords.
const pinColumns = `p.pin_id,
	ST_Y(p.point::geometry) AS latitude,
	ST_X(p.point::geometry) AS longitude,
	p.content, p.user_id, p.like_count, p.is_public, p.is_deleted, p.created_at, p.modified_at,
	COALESCE((SELECT array_agg(t.keyword ORDER BY pt.pin_tag_id)
	          FROM pin_tags pt JOIN tags t ON t.tag_id = pt.tag_id
	          WHERE pt.pin_id = p.pin_id AND pt.is_deleted = false), '{}') AS pin_tags`

const pinOrder = ` ORDER BY p.created_at DESC, p.pin_id DESC`

// PinRepository handles pin database operations, including the PostGIS spatial queries.
type PinRepository struct {
	db *sqlx.DB
}

// NewPinRepository creates a new PinRepository
func NewPinRepository(conn *sqlx.DB) *PinRepository {
	return &PinRepository{db: conn}
}

func (r *PinRepository) conn(ctx context.Context) db.Queryer {
	return db.Conn(ctx, r.db)
}

// Create inserts pin and fills in the generated fields.
func (r *PinRepository) Create(ctx context.Context, pin *models.Pin) error {
	q := r.conn(ctx)
	query := q.Rebind(`
		INSERT INTO pins (point, content, user_id, is_public)
		VALUES (ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography, ?, ?, ?)
		RETURNING pin_id, like_count, created_at, modified_at
	`)

	err := q.QueryRowxContext(ctx, query, pin.Longitude, pin.Latitude, pin.Content, pin.UserID, pin.IsPublic).
		Scan(&pin.ID, &pin.LikeCount, &pin.CreatedAt, &pin.ModifiedAt)
	if err != nil {
		return fmt.Errorf("failed to create pin: %w", err)
	}
	if pin.PinTags == nil {
		pin.PinTags = pq.StringArray{}
	}
	return nil
}

// Find returns a pin regardless of visibility, for ownership checks. Deleted pins are returned
// only when includeDeleted is set.
func (r *PinRepository) Find(ctx context.Context, id int64, includeDeleted bool) (*models.Pin, error) {
	q := r.conn(ctx)
	query := `SELECT ` + pinColumns + ` FROM pins p WHERE p.pin_id = ?`
	if !includeDeleted {
		query += ` AND p.is_deleted = false`
	}

	var pin models.Pin
	err := q.GetContext(ctx, &pin, q.Rebind(query), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pin: %w", err)
	}
	return &pin, nil
}

// GetVisible returns an active pin the actor may read, or nil.
func (r *PinRepository) GetVisible(ctx context.Context, id int64, actor policy.Actor) (*models.Pin, error) {
	visible, args := policy.VisibleClause("p.user_id", "p.is_public", actor)
	q := r.conn(ctx)
	query := `SELECT ` + pinColumns + ` FROM pins p WHERE p.pin_id = ? AND p.is_deleted = false AND ` + visible

	var pin models.Pin
	err := q.GetContext(ctx, &pin, q.Rebind(query), append([]interface{}{id}, args...)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pin: %w", err)
	}
	return &pin, nil
}

// listVisible runs a pin listing: cond is ANDed with "not deleted" and the visibility predicate.
func (r *PinRepository) listVisible(ctx context.Context, actor policy.Actor, cond string, condArgs ...interface{}) ([]models.Pin, error) {
	visible, visArgs := policy.VisibleClause("p.user_id", "p.is_public", actor)

	query := `SELECT ` + pinColumns + ` FROM pins p WHERE p.is_deleted = false AND ` + visible
	if cond != "" {
		query += ` AND ` + cond
	}
	query += pinOrder

	args := append(append([]interface{}{}, visArgs...), condArgs...)
	q := r.conn(ctx)
	pins := []models.Pin{}
	if err := q.SelectContext(ctx, &pins, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list pins: %w", err)
	}
	return pins, nil
}

// ListAll returns every pin the actor may read.
func (r *PinRepository) ListAll(ctx context.Context, actor policy.Actor) ([]models.Pin, error) {
	return r.listVisible(ctx, actor, "")
}

// ListWithinRadius returns visible pins within radiusMeters of center.
func (r *PinRepository) ListWithinRadius(ctx context.Context, center models.Point, radiusMeters float64, actor policy.Actor) ([]models.Pin, error) {
	return r.listVisible(ctx, actor,
		`ST_DWithin(p.point, ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography, ?)`,
		center.Longitude, center.Latitude, radiusMeters)
}

// ListWithinBounds returns visible pins inside the rectangle.
func (r *PinRepository) ListWithinBounds(ctx context.Context, b models.Bounds, actor policy.Actor) ([]models.Pin, error) {
	return r.listVisible(ctx, actor,
		`p.point::geometry && ST_MakeEnvelope(?, ?, ?, ?, 4326)`,
		b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// ListByAuthor returns the visible pins of one author.
func (r *PinRepository) ListByAuthor(ctx context.Context, authorID int64, actor policy.Actor) ([]models.Pin, error) {
	return r.listVisible(ctx, actor, `p.user_id = ?`, authorID)
}

// ListByAuthorMonth returns the visible pins an author created in the given month.
func (r *PinRepository) ListByAuthorMonth(ctx context.Context, authorID int64, year, month int, actor policy.Actor) ([]models.Pin, error) {
	return r.listVisible(ctx, actor,
		`p.user_id = ? AND EXTRACT(YEAR FROM p.created_at) = ? AND EXTRACT(MONTH FROM p.created_at) = ?`,
		authorID, year, month)
}

// ListByIDs returns the visible pins among ids, in no particular order.
func (r *PinRepository) ListByIDs(ctx context.Context, ids []int64, actor policy.Actor) ([]models.Pin, error) {
	if len(ids) == 0 {
		return []models.Pin{}, nil
	}
	return r.listVisible(ctx, actor, `p.pin_id = ANY(?)`, pq.Array(ids))
}

// CountByUser counts the active pins of a user.
func (r *PinRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	q := r.conn(ctx)
	var n int
	err := q.GetContext(ctx, &n, q.Rebind(`SELECT COUNT(*) FROM pins WHERE user_id = ? AND is_deleted = false`), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count pins: %w", err)
	}
	return n, nil
}

func (r *PinRepository) exec(ctx context.Context, what, query string, args ...interface{}) error {
	q := r.conn(ctx)
	if _, err := q.ExecContext(ctx, q.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	return nil
}

// UpdateContent replaces the pin text.
func (r *PinRepository) UpdateContent(ctx context.Context, id int64, content string) error {
	return r.exec(ctx, "update pin content",
		`UPDATE pins SET content = ?, modified_at = ? WHERE pin_id = ?`, content, time.Now(), id)
}

// SetPublic sets the visibility flag.
func (r *PinRepository) SetPublic(ctx context.Context, id int64, isPublic bool) error {
	return r.exec(ctx, "update pin visibility",
		`UPDATE pins SET is_public = ?, modified_at = ? WHERE pin_id = ?`, isPublic, time.Now(), id)
}

// SetDeleted sets the soft-delete flag.
func (r *PinRepository) SetDeleted(ctx context.Context, id int64, deleted bool) error {
	return r.exec(ctx, "update pin deleted flag",
		`UPDATE pins SET is_deleted = ?, modified_at = ? WHERE pin_id = ?`, deleted, time.Now(), id)
}

// SoftDeleteByUser soft-deletes every pin of a user.
func (r *PinRepository) SoftDeleteByUser(ctx context.Context, userID int64) error {
	return r.exec(ctx, "delete user pins",
		`UPDATE pins SET is_deleted = true, modified_at = ? WHERE user_id = ? AND is_deleted = false`, time.Now(), userID)
}

// RefreshLikeCount recomputes like_count from the likes table and returns it.
func (r *PinRepository) RefreshLikeCount(ctx context.Context, pinID int64) (int, error) {
	q := r.conn(ctx)
	query := q.Rebind(`
		UPDATE pins SET like_count = (SELECT COUNT(*) FROM likes WHERE pin_id = ?)
		WHERE pin_id = ?
		RETURNING like_count
	`)

	var count int
	err := q.GetContext(ctx, &count, query, pinID, pinID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to refresh like count: pin %d not found: %w", pinID, err)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to refresh like count: %w", err)
	}
	return count, nil
}

// RefreshLikeCounts recomputes like_count for every pin in ids.
func (r *PinRepository) RefreshLikeCounts(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return r.exec(ctx, "refresh like counts", `
		UPDATE pins p SET like_count = (SELECT COUNT(*) FROM likes l WHERE l.pin_id = p.pin_id)
		WHERE p.pin_id = ANY(?)
	`, pq.Array(ids))
}
