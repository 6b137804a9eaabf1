package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	blacklistPrefix    = "pinco:blacklist:"
	refreshUserPrefix  = "pinco:refresh:user:"
	refreshTokenPrefix = "pinco:refresh:token:"
)

// tokenDigest keeps raw tokens out of Redis keys.
func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RedisBlacklist stores revoked access tokens until they would have expired anyway.
type RedisBlacklist struct {
	client redis.UniversalClient
}

// NewRedisBlacklist creates a blacklist backed by client.
func NewRedisBlacklist(client redis.UniversalClient) *RedisBlacklist {
	return &RedisBlacklist{client: client}
}

// Add revokes token for ttl. A non-positive ttl is a no-op since the token is already expired.
func (b *RedisBlacklist) Add(ctx context.Context, token string, ttl time.Duration) error {
	if token == "" || ttl <= 0 {
		return nil
	}
	if err := b.client.Set(ctx, blacklistPrefix+tokenDigest(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}
	return nil
}

func (b *RedisBlacklist) Contains(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	n, err := b.client.Exists(ctx, blacklistPrefix+tokenDigest(token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return n > 0, nil
}

// RedisRefreshStore keeps one refresh token per user plus a reverse index by token digest.
type RedisRefreshStore struct {
	client redis.UniversalClient
}

// NewRedisRefreshStore creates a refresh token store backed by client.
func NewRedisRefreshStore(client redis.UniversalClient) *RedisRefreshStore {
	return &RedisRefreshStore{client: client}
}

func userKey(userID int64) string {
	return refreshUserPrefix + strconv.FormatInt(userID, 10)
}

// Save replaces any previous refresh token of userID.
func (s *RedisRefreshStore) Save(ctx context.Context, userID int64, token string, ttl time.Duration) error {
	previous, err := s.FindByUser(ctx, userID)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if previous != "" {
			pipe.Del(ctx, refreshTokenPrefix+tokenDigest(previous))
		}
		pipe.Set(ctx, userKey(userID), token, ttl)
		pipe.Set(ctx, refreshTokenPrefix+tokenDigest(token), userID, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	return nil
}

// FindByUser returns the stored token, or "" when there is none.
func (s *RedisRefreshStore) FindByUser(ctx context.Context, userID int64) (string, error) {
	token, err := s.client.Get(ctx, userKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get refresh token: %w", err)
	}
	return token, nil
}

func (s *RedisRefreshStore) DeleteByUser(ctx context.Context, userID int64) error {
	token, err := s.FindByUser(ctx, userID)
	if err != nil {
		return err
	}
	keys := []string{userKey(userID)}
	if token != "" {
		keys = append(keys, refreshTokenPrefix+tokenDigest(token))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return nil
}

func (s *RedisRefreshStore) DeleteByToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	tokenKey := refreshTokenPrefix + tokenDigest(token)
	id, err := s.client.Get(ctx, tokenKey).Int64()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up refresh token: %w", err)
	}

	// Only drop the user entry if it still points at this token.
	current, err := s.FindByUser(ctx, id)
	if err != nil {
		return err
	}
	keys := []string{tokenKey}
	if current == token {
		keys = append(keys, userKey(id))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return nil
}

func (s *RedisRefreshStore) Matches(ctx context.Context, userID int64, token string) (bool, error) {
	current, err := s.FindByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return current != "" && current == token, nil
}
