// Package models defines the row types of the pin service. Each type maps one table (or one
// joined projection) and carries db tags for sqlx scanning plus json tags for API responses.
// Models are plain data; business rules live in services and SQL lives in repositories.
package models

import "time"

// User is an account. Password holds the bcrypt hash and never leaves the server.
type User struct {
	ID         int64     `json:"id" db:"user_id"`
	Email      string    `json:"email" db:"email"`
	Password   string    `json:"-" db:"password"`
	UserName   string    `json:"userName" db:"username"`
	APIKey     *string   `json:"-" db:"api_key"`
	Deleted    bool      `json:"-" db:"is_deleted"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	ModifiedAt time.Time `json:"modifiedAt" db:"modified_at"`
}

// HasAPIKey reports whether an API key has been assigned yet.
func (u *User) HasAPIKey() bool {
	return u.APIKey != nil && *u.APIKey != ""
}

// APIKeyValue returns the API key or "".
func (u *User) APIKeyValue() string {
	if u.APIKey == nil {
		return ""
	}
	return *u.APIKey
}

// UserSummary is the public projection used in "who liked this" lists.
type UserSummary struct {
	ID       int64  `json:"id" db:"user_id"`
	UserName string `json:"userName" db:"username"`
}
