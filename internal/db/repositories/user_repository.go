package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pinco/pinco-backend/internal/db"
	"github.com/pinco/pinco-backend/internal/db/models"
)

const userColumns = `user_id, email, password, username, api_key, is_deleted, created_at, modified_at`

// UserRepository handles user database operations
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(conn *sqlx.DB) *UserRepository {
	return &UserRepository{db: conn}
}

func (r *UserRepository) conn(ctx context.Context) db.Queryer {
	return db.Conn(ctx, r.db)
}

// Create inserts user and fills in its generated id and timestamps.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	q := r.conn(ctx)
	query := q.Rebind(`
		INSERT INTO users (email, password, username, api_key)
		VALUES (?, ?, ?, ?)
		RETURNING user_id, created_at, modified_at
	`)

	err := q.QueryRowxContext(ctx, query, user.Email, user.Password, user.UserName, user.APIKey).
		Scan(&user.ID, &user.CreatedAt, &user.ModifiedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	q := r.conn(ctx)
	query := q.Rebind(`SELECT ` + userColumns + ` FROM users WHERE ` + where + ` AND is_deleted = false`)

	var user models.User
	err := q.GetContext(ctx, &user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetByID returns an active user, or nil if none exists.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, "user_id = ?", id)
}

// GetByEmail returns an active user, or nil if none exists.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "email = ?", email)
}

// GetByAPIKey returns the active owner of key, or nil.
func (r *UserRepository) GetByAPIKey(ctx context.Context, key string) (*models.User, error) {
	if key == "" {
		return nil, nil
	}
	return r.getOne(ctx, "api_key = ?", key)
}

func (r *UserRepository) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	q := r.conn(ctx)
	var found bool
	if err := q.GetContext(ctx, &found, q.Rebind(query), args...); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return found, nil
}

// EmailExists checks every row, deleted ones included, since emails stay unique.
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = ?)`, email)
}

// UserNameTaken reports whether another active user already uses name.
func (r *UserRepository) UserNameTaken(ctx context.Context, name string, exceptID int64) (bool, error) {
	return r.exists(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = ? AND user_id <> ? AND is_deleted = false)`,
		name, exceptID)
}

// APIKeyExists reports whether key is assigned to any user.
func (r *UserRepository) APIKeyExists(ctx context.Context, key string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE api_key = ?)`, key)
}

// SetAPIKey assigns key to the user.
func (r *UserRepository) SetAPIKey(ctx context.Context, id int64, key string) error {
	q := r.conn(ctx)
	_, err := q.ExecContext(ctx, q.Rebind(`UPDATE users SET api_key = ?, modified_at = ? WHERE user_id = ?`),
		key, time.Now(), id)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to set api key: %w", err)
	}
	return nil
}

// Update writes the user name and password hash.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.ModifiedAt = time.Now()

	q := r.conn(ctx)
	_, err := q.ExecContext(ctx,
		q.Rebind(`UPDATE users SET username = ?, password = ?, modified_at = ? WHERE user_id = ?`),
		user.UserName, user.Password, user.ModifiedAt, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// SoftDelete marks the user deleted. The row and its api key stay for uniqueness.
func (r *UserRepository) SoftDelete(ctx context.Context, id int64) error {
	q := r.conn(ctx)
	_, err := q.ExecContext(ctx,
		q.Rebind(`UPDATE users SET is_deleted = true, modified_at = ? WHERE user_id = ?`), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}
