package auth

import (
	"context"
	"time"
)

// Blacklist records access tokens revoked before their expiry.
type Blacklist interface {
	Add(ctx context.Context, token string, ttl time.Duration) error
	Contains(ctx context.Context, token string) (bool, error)
}

// RefreshTokenStore keeps the current refresh token of each user.
type RefreshTokenStore interface {
	Save(ctx context.Context, userID int64, token string, ttl time.Duration) error
	FindByUser(ctx context.Context, userID int64) (string, error)
	DeleteByUser(ctx context.Context, userID int64) error
	DeleteByToken(ctx context.Context, token string) error
	// Matches reports whether token is the refresh token currently held for userID.
	Matches(ctx context.Context, userID int64, token string) (bool, error)
}

// NoopBlacklist never revokes anything. It is used when Redis is not configured.
type NoopBlacklist struct{}

func (NoopBlacklist) Add(context.Context, string, time.Duration) error { return nil }

func (NoopBlacklist) Contains(context.Context, string) (bool, error) { return false, nil }

// NoopRefreshStore stores nothing; any signature-valid refresh token is accepted.
type NoopRefreshStore struct{}

func (NoopRefreshStore) Save(context.Context, int64, string, time.Duration) error { return nil }

func (NoopRefreshStore) FindByUser(context.Context, int64) (string, error) { return "", nil }

func (NoopRefreshStore) DeleteByUser(context.Context, int64) error { return nil }

func (NoopRefreshStore) DeleteByToken(context.Context, string) error { return nil }

func (NoopRefreshStore) Matches(context.Context, int64, string) (bool, error) { return true, nil }
