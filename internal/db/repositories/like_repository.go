package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pinco/pinco-backend/internal/db"
	"github.com/pinco/pinco-backend/internal/db/models"
	"github.com/pinco/pinco-backend/internal/policy"
)

// LikeRepository handles like database operations
type LikeRepository struct {
	db *sqlx.DB
}

// NewLikeRepository creates a new LikeRepository
func NewLikeRepository(conn *sqlx.DB) *LikeRepository {
	return &LikeRepository{db: conn}
}

func (r *LikeRepository) conn(ctx context.Context) db.Queryer {
	return db.Conn(ctx, r.db)
}

// Exists reports whether the user already likes the pin.
func (r *LikeRepository) Exists(ctx context.Context, userID, pinID int64) (bool, error) {
	q := r.conn(ctx)
	var found bool
	err := q.GetContext(ctx, &found,
		q.Rebind(`SELECT EXISTS (SELECT 1 FROM likes WHERE user_id = ? AND pin_id = ?)`), userID, pinID)
	if err != nil {
		return false, fmt.Errorf("failed to check like: %w", err)
	}
	return found, nil
}

// Create records a like. An existing like for the pair is left as is, so a concurrent double
// like neither fails nor aborts the surrounding transaction.
func (r *LikeRepository) Create(ctx context.Context, userID, pinID int64) error {
	q := r.conn(ctx)
	query := q.Rebind(`INSERT INTO likes (user_id, pin_id) VALUES (?, ?) ON CONFLICT (user_id, pin_id) DO NOTHING`)
	if _, err := q.ExecContext(ctx, query, userID, pinID); err != nil {
		return fmt.Errorf("failed to create like: %w", err)
	}
	return nil
}

// Delete removes a like and reports whether one existed.
func (r *LikeRepository) Delete(ctx context.Context, userID, pinID int64) (bool, error) {
	q := r.conn(ctx)
	res, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM likes WHERE user_id = ? AND pin_id = ?`), userID, pinID)
	if err != nil {
		return false, fmt.Errorf("failed to delete like: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete like: %w", err)
	}
	return n > 0, nil
}

// ListUsersByPin returns the active users who liked a pin, oldest like first.
func (r *LikeRepository) ListUsersByPin(ctx context.Context, pinID int64) ([]models.UserSummary, error) {
	q := r.conn(ctx)
	query := q.Rebind(`
		SELECT u.user_id, u.username
		FROM likes l
		JOIN users u ON u.user_id = l.user_id
		WHERE l.pin_id = ? AND u.is_deleted = false
		ORDER BY l.created_at, l.like_id
	`)

	users := []models.UserSummary{}
	if err := q.SelectContext(ctx, &users, query, pinID); err != nil {
		return nil, fmt.Errorf("failed to list users who liked pin: %w", err)
	}
	return users, nil
}

// ListPinsLikedByUser returns the active pins a user liked that actor may read.
func (r *LikeRepository) ListPinsLikedByUser(ctx context.Context, userID int64, actor policy.Actor) ([]models.Pin, error) {
	visible, visArgs := policy.VisibleClause("p.user_id", "p.is_public", actor)
	q := r.conn(ctx)
	query := q.Rebind(`
		SELECT ` + pinColumns + `
		FROM likes l
		JOIN pins p ON p.pin_id = l.pin_id
		WHERE l.user_id = ? AND p.is_deleted = false AND ` + visible + `
		ORDER BY l.created_at DESC, l.like_id DESC
	`)

	pins := []models.Pin{}
	if err := q.SelectContext(ctx, &pins, query, append([]interface{}{userID}, visArgs...)...); err != nil {
		return nil, fmt.Errorf("failed to list liked pins: %w", err)
	}
	return pins, nil
}

// PinIDsByUser returns the ids of every pin the user liked.
func (r *LikeRepository) PinIDsByUser(ctx context.Context, userID int64) ([]int64, error) {
	q := r.conn(ctx)
	ids := []int64{}
	if err := q.SelectContext(ctx, &ids, q.Rebind(`SELECT pin_id FROM likes WHERE user_id = ?`), userID); err != nil {
		return nil, fmt.Errorf("failed to list liked pin ids: %w", err)
	}
	return ids, nil
}

// DeleteByUser removes every like of a user.
func (r *LikeRepository) DeleteByUser(ctx context.Context, userID int64) error {
	q := r.conn(ctx)
	if _, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM likes WHERE user_id = ?`), userID); err != nil {
		return fmt.Errorf("failed to delete user likes: %w", err)
	}
	return nil
}
