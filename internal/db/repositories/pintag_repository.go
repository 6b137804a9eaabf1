package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pinco/pinco-backend/internal/db"
	"github.com/pinco/pinco-backend/internal/db/models"
)

const pinTagSelect = `
	SELECT pt.pin_tag_id, pt.pin_id, pt.tag_id, t.keyword, p.user_id AS pin_owner_id, pt.is_deleted, pt.created_at
	FROM pin_tags pt
	JOIN tags t ON t.tag_id = pt.tag_id
	JOIN pins p ON p.pin_id = pt.pin_id
`

// PinTagRepository handles pin-tag link database operations
type PinTagRepository struct {
	db *sqlx.DB
}

// NewPinTagRepository creates a new PinTagRepository
func NewPinTagRepository(conn *sqlx.DB) *PinTagRepository {
	return &PinTagRepository{db: conn}
}

func (r *PinTagRepository) conn(ctx context.Context) db.Queryer {
	return db.Conn(ctx, r.db)
}

// Get returns the link between a pin and a tag in any state, or nil. Links of a soft-deleted pin
// are not returned, so they cannot be removed or restored until the pin is.
func (r *PinTagRepository) Get(ctx context.Context, pinID, tagID int64) (*models.PinTag, error) {
	q := r.conn(ctx)
	var link models.PinTag
	query := q.Rebind(pinTagSelect + ` WHERE pt.pin_id = ? AND pt.tag_id = ? AND p.is_deleted = false`)
	err := q.GetContext(ctx, &link, query, pinID, tagID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pin tag: %w", err)
	}
	return &link, nil
}

// Create inserts an active link and returns it with the joined fields filled in.
func (r *PinTagRepository) Create(ctx context.Context, pinID, tagID int64) (*models.PinTag, error) {
	q := r.conn(ctx)
	var id int64
	err := q.QueryRowxContext(ctx, q.Rebind(`INSERT INTO pin_tags (pin_id, tag_id) VALUES (?, ?) RETURNING pin_tag_id`), pinID, tagID).
		Scan(&id)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create pin tag: %w", err)
	}
	return r.Get(ctx, pinID, tagID)
}

// SetDeleted sets the soft-delete flag of a link.
func (r *PinTagRepository) SetDeleted(ctx context.Context, id int64, deleted bool) error {
	q := r.conn(ctx)
	if _, err := q.ExecContext(ctx, q.Rebind(`UPDATE pin_tags SET is_deleted = ? WHERE pin_tag_id = ?`), deleted, id); err != nil {
		return fmt.Errorf("failed to update pin tag: %w", err)
	}
	return nil
}

// ListActiveByPin returns the active links of a pin in creation order.
func (r *PinTagRepository) ListActiveByPin(ctx context.Context, pinID int64) ([]models.PinTag, error) {
	q := r.conn(ctx)
	links := []models.PinTag{}
	query := q.Rebind(pinTagSelect + ` WHERE pt.pin_id = ? AND pt.is_deleted = false ORDER BY pt.pin_tag_id`)
	if err := q.SelectContext(ctx, &links, query, pinID); err != nil {
		return nil, fmt.Errorf("failed to list pin tags: %w", err)
	}
	return links, nil
}
