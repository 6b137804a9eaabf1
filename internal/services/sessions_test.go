package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pinco/pinco-backend/internal/apperr"
	"github.com/pinco/pinco-backend/internal/auth"
	"github.com/pinco/pinco-backend/internal/db/models"
)

const testSigningKey = "services-test-signing-key-0123456789"

func testCodec() *auth.TokenCodec {
	return auth.NewTokenCodec([]byte(testSigningKey), 15*time.Minute, 24*time.Hour)
}

type sessionFixture struct {
	users     *MockUserStore
	refresh   *auth.RedisRefreshStore
	blacklist *auth.RedisBlacklist
	svc       *AuthService
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &sessionFixture{
		users:     new(MockUserStore),
		refresh:   auth.NewRedisRefreshStore(client),
		blacklist: auth.NewRedisBlacklist(client),
	}
	f.svc = NewAuthService(f.users, testCodec(), f.refresh, f.blacklist)
	return f
}

func userWithPassword(t *testing.T, id int64, password string) *models.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	key := "key-" + password
	return &models.User{ID: id, Email: "user@example.com", Password: hash, UserName: "tester", APIKey: &key}
}

func TestEnsureAPIKey_AssignsOnce(t *testing.T) {
	f := newSessionFixture(t)
	user := &models.User{ID: 4}
	f.users.On("APIKeyExists", mock.Anything, mock.AnythingOfType("string")).Return(false, nil)
	f.users.On("SetAPIKey", mock.Anything, int64(4), mock.AnythingOfType("string")).Return(nil).Once()

	key, err := f.svc.EnsureAPIKey(context.Background(), user)
	require.NoError(t, err)
	assert.NotEmpty(t, key)
	assert.Equal(t, key, user.APIKeyValue())

	again, err := f.svc.EnsureAPIKey(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, key, again)
	f.users.AssertNumberOfCalls(t, "SetAPIKey", 1)
}

func TestLogin(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	user := userWithPassword(t, 4, "password123")
	f.users.On("GetByEmail", mock.Anything, "user@example.com").Return(user, nil)
	f.users.On("GetByEmail", mock.Anything, "nobody@example.com").Return(nil, nil)

	_, err := f.svc.Login(ctx, "nobody@example.com", "password123")
	assert.True(t, apperr.Is(err, apperr.UserNotFound))

	_, err = f.svc.Login(ctx, "user@example.com", "wrong-password")
	assert.True(t, apperr.Is(err, apperr.PasswordNotMatch))

	session, err := f.svc.Login(ctx, "user@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "key-password123", session.APIKey)
	assert.True(t, f.svc.Codec().Verify(session.AccessToken))

	stored, err := f.refresh.FindByUser(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, session.RefreshToken, stored)
}

func TestReissue(t *testing.T) {
	ctx := context.Background()

	t.Run("blank and garbage tokens", func(t *testing.T) {
		f := newSessionFixture(t)
		_, err := f.svc.Reissue(ctx, "  ")
		assert.True(t, apperr.Is(err, apperr.InvalidAccessToken))
		_, err = f.svc.Reissue(ctx, "not.a.token")
		assert.True(t, apperr.Is(err, apperr.InvalidAccessToken))
	})

	t.Run("token not on record", func(t *testing.T) {
		f := newSessionFixture(t)
		token, err := f.svc.Codec().IssueRefresh(4)
		require.NoError(t, err)

		_, err = f.svc.Reissue(ctx, token)
		assert.True(t, apperr.Is(err, apperr.InvalidAccessToken))
		f.users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("recorded token yields new pair", func(t *testing.T) {
		f := newSessionFixture(t)
		user := userWithPassword(t, 4, "password123")
		f.users.On("GetByID", mock.Anything, int64(4)).Return(user, nil)

		token, err := f.svc.Codec().IssueRefresh(4)
		require.NoError(t, err)
		require.NoError(t, f.refresh.Save(ctx, 4, token, time.Hour))

		session, err := f.svc.Reissue(ctx, token)
		require.NoError(t, err)
		claims := f.svc.Codec().Decode(session.AccessToken)
		require.NotNil(t, claims)
		assert.Equal(t, int64(4), claims.ID)
		assert.Equal(t, auth.RoleUser, claims.Role)
	})

	t.Run("withdrawn user", func(t *testing.T) {
		f := newSessionFixture(t)
		f.users.On("GetByID", mock.Anything, int64(4)).Return(nil, nil)

		token, err := f.svc.Codec().IssueRefresh(4)
		require.NoError(t, err)
		require.NoError(t, f.refresh.Save(ctx, 4, token, time.Hour))

		_, err = f.svc.Reissue(ctx, token)
		assert.True(t, apperr.Is(err, apperr.UserNotFound))
	})
}

func TestLogout_RevokesBoth(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	codec := f.svc.Codec()

	access, err := codec.IssueAccess(auth.Principal{ID: 4, Email: "user@example.com"})
	require.NoError(t, err)
	refresh, err := codec.IssueRefresh(4)
	require.NoError(t, err)
	require.NoError(t, f.refresh.Save(ctx, 4, refresh, time.Hour))

	f.svc.Logout(ctx, access, refresh)

	revoked, err := f.blacklist.Contains(ctx, access)
	require.NoError(t, err)
	assert.True(t, revoked)

	stored, err := f.refresh.FindByUser(ctx, 4)
	require.NoError(t, err)
	assert.Empty(t, stored)

	// garbage is ignored
	f.svc.Logout(ctx, "garbage", "")
}

func TestVerifyAccess(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	user := userWithPassword(t, 12, "password-12")

	token, err := f.svc.IssueAccessToken(user)
	require.NoError(t, err)

	claims, err := f.svc.VerifyAccess(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, claims)
	assert.Equal(t, int64(12), claims.ID)

	claims, err = f.svc.VerifyAccess(ctx, "not-a-token")
	require.NoError(t, err)
	assert.Nil(t, claims)

	require.NoError(t, f.blacklist.Add(ctx, token, time.Minute))
	claims, err = f.svc.VerifyAccess(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, claims, "blacklisted token must not verify")
}
