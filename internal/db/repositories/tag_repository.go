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

// TagRepository handles tag database operations
type TagRepository struct {
	db *sqlx.DB
}

// NewTagRepository creates a new TagRepository
func NewTagRepository(conn *sqlx.DB) *TagRepository {
	return &TagRepository{db: conn}
}

func (r *TagRepository) conn(ctx context.Context) db.Queryer {
	return db.Conn(ctx, r.db)
}

// ListAll returns every tag ordered by keyword.
func (r *TagRepository) ListAll(ctx context.Context) ([]models.Tag, error) {
	q := r.conn(ctx)
	tags := []models.Tag{}
	if err := q.SelectContext(ctx, &tags, `SELECT tag_id, keyword, created_at FROM tags ORDER BY keyword`); err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

// GetByKeyword returns the tag with exactly this keyword, or nil.
func (r *TagRepository) GetByKeyword(ctx context.Context, keyword string) (*models.Tag, error) {
	q := r.conn(ctx)
	var tag models.Tag
	err := q.GetContext(ctx, &tag, q.Rebind(`SELECT tag_id, keyword, created_at FROM tags WHERE keyword = ?`), keyword)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}
	return &tag, nil
}

// Create inserts a tag. A duplicate keyword reports ErrDuplicate.
func (r *TagRepository) Create(ctx context.Context, keyword string) (*models.Tag, error) {
	q := r.conn(ctx)
	tag := models.Tag{Keyword: keyword}
	err := q.QueryRowxContext(ctx, q.Rebind(`INSERT INTO tags (keyword) VALUES (?) RETURNING tag_id, created_at`), keyword).
		Scan(&tag.ID, &tag.CreatedAt)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}
	return &tag, nil
}

// PinIDsByTag returns the ids of active pins carrying an active link to the tag, in link order.
func (r *TagRepository) PinIDsByTag(ctx context.Context, tagID int64) ([]int64, error) {
	q := r.conn(ctx)
	query := q.Rebind(`
		SELECT pt.pin_id
		FROM pin_tags pt
		JOIN pins p ON p.pin_id = pt.pin_id
		WHERE pt.tag_id = ? AND pt.is_deleted = false AND p.is_deleted = false
		ORDER BY pt.pin_tag_id
	`)

	ids := []int64{}
	if err := q.SelectContext(ctx, &ids, query, tagID); err != nil {
		return nil, fmt.Errorf("failed to list tagged pins: %w", err)
	}
	return ids, nil
}
