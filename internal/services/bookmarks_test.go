package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pinco/pinco-backend/internal/apperr"
	"github.com/pinco/pinco-backend/internal/db/models"
	"github.com/pinco/pinco-backend/internal/db/repositories"
	"github.com/pinco/pinco-backend/internal/policy"
)

type bookmarkFixture struct {
	bookmarks *MockBookmarkStore
	pins      *MockPinStore
	users     *MockUserStore
	tx        *directTx
	svc       *BookmarkService
}

func newBookmarkFixture() *bookmarkFixture {
	f := &bookmarkFixture{
		bookmarks: new(MockBookmarkStore),
		pins:      new(MockPinStore),
		users:     new(MockUserStore),
		tx:        &directTx{},
	}
	f.svc = NewBookmarkService(f.bookmarks, f.pins, f.users, f.tx)
	return f
}

// ---------------------------------------------------------------------------
// Add
// ---------------------------------------------------------------------------

func TestBookmarkAdd_Creates(t *testing.T) {
	f := newBookmarkFixture()
	ctx := context.Background()
	actor := policy.UserActor(7)
	pin := &models.Pin{ID: 3, UserID: 9, IsPublic: true}

	f.users.On("GetByID", mock.Anything, int64(7)).Return(&models.User{ID: 7}, nil)
	f.pins.On("GetVisible", mock.Anything, int64(3), actor).Return(pin, nil)
	f.bookmarks.On("GetByUserAndPin", mock.Anything, int64(7), int64(3)).Return(nil, nil)
	f.bookmarks.On("Create", mock.Anything, mock.AnythingOfType("*models.Bookmark")).
		Run(func(args mock.Arguments) { args.Get(1).(*models.Bookmark).ID = 11 }).
		Return(nil)

	b, err := f.svc.Add(ctx, actor, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(11), b.ID)
	assert.Same(t, pin, b.Pin)
	assert.Equal(t, 1, f.tx.calls)
	f.bookmarks.AssertExpectations(t)
}

func TestBookmarkAdd_RestoresDeleted(t *testing.T) {
	f := newBookmarkFixture()
	actor := policy.UserActor(7)

	f.users.On("GetByID", mock.Anything, int64(7)).Return(&models.User{ID: 7}, nil)
	f.pins.On("GetVisible", mock.Anything, int64(3), actor).Return(&models.Pin{ID: 3, UserID: 7}, nil)
	f.bookmarks.On("GetByUserAndPin", mock.Anything, int64(7), int64(3)).
		Return(&models.Bookmark{ID: 5, UserID: 7, PinID: 3, Deleted: true}, nil)
	f.bookmarks.On("SetDeleted", mock.Anything, int64(5), false).Return(nil)

	b, err := f.svc.Add(context.Background(), actor, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), b.ID)
	assert.False(t, b.Deleted)
	f.bookmarks.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestBookmarkAdd_Conflicts(t *testing.T) {
	t.Run("active bookmark exists", func(t *testing.T) {
		f := newBookmarkFixture()
		actor := policy.UserActor(7)
		f.users.On("GetByID", mock.Anything, int64(7)).Return(&models.User{ID: 7}, nil)
		f.pins.On("GetVisible", mock.Anything, int64(3), actor).Return(&models.Pin{ID: 3}, nil)
		f.bookmarks.On("GetByUserAndPin", mock.Anything, int64(7), int64(3)).
			Return(&models.Bookmark{ID: 5, UserID: 7, PinID: 3}, nil)

		_, err := f.svc.Add(context.Background(), actor, 3)
		assert.True(t, apperr.Is(err, apperr.BookmarkAlreadyExists), "err = %v", err)
	})

	t.Run("concurrent insert", func(t *testing.T) {
		f := newBookmarkFixture()
		actor := policy.UserActor(7)
		f.users.On("GetByID", mock.Anything, int64(7)).Return(&models.User{ID: 7}, nil)
		f.pins.On("GetVisible", mock.Anything, int64(3), actor).Return(&models.Pin{ID: 3}, nil)
		f.bookmarks.On("GetByUserAndPin", mock.Anything, int64(7), int64(3)).Return(nil, nil)
		f.bookmarks.On("Create", mock.Anything, mock.Anything).Return(repositories.ErrDuplicate)

		_, err := f.svc.Add(context.Background(), actor, 3)
		assert.True(t, apperr.Is(err, apperr.BookmarkAlreadyExists), "err = %v", err)
	})

	t.Run("insert failure", func(t *testing.T) {
		f := newBookmarkFixture()
		actor := policy.UserActor(7)
		f.users.On("GetByID", mock.Anything, int64(7)).Return(&models.User{ID: 7}, nil)
		f.pins.On("GetVisible", mock.Anything, int64(3), actor).Return(&models.Pin{ID: 3}, nil)
		f.bookmarks.On("GetByUserAndPin", mock.Anything, int64(7), int64(3)).Return(nil, nil)
		f.bookmarks.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))

		_, err := f.svc.Add(context.Background(), actor, 3)
		assert.True(t, apperr.Is(err, apperr.BookmarkCreateFailed), "err = %v", err)
	})
}

func TestBookmarkAdd_Rejections(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		f := newBookmarkFixture()
		_, err := f.svc.Add(context.Background(), policy.Anonymous(), 3)
		assert.True(t, apperr.Is(err, apperr.AuthRequired))
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newBookmarkFixture()
		f.users.On("GetByID", mock.Anything, int64(7)).Return(nil, nil)
		_, err := f.svc.Add(context.Background(), policy.UserActor(7), 3)
		assert.True(t, apperr.Is(err, apperr.BookmarkInvalidUserInput))
	})

	t.Run("private pin of another user", func(t *testing.T) {
		f := newBookmarkFixture()
		actor := policy.UserActor(7)
		f.users.On("GetByID", mock.Anything, int64(7)).Return(&models.User{ID: 7}, nil)
		f.pins.On("GetVisible", mock.Anything, int64(3), actor).Return(nil, nil)
		_, err := f.svc.Add(context.Background(), actor, 3)
		assert.True(t, apperr.Is(err, apperr.PinNotFound))
		f.bookmarks.AssertNotCalled(t, "GetByUserAndPin", mock.Anything, mock.Anything, mock.Anything)
	})
}

// ---------------------------------------------------------------------------
// Delete / Restore
// ---------------------------------------------------------------------------

func TestBookmarkDelete_OwnershipHidesExistence(t *testing.T) {
	f := newBookmarkFixture()
	f.bookmarks.On("GetByID", mock.Anything, int64(5)).Return(&models.Bookmark{ID: 5, UserID: 7}, nil)
	f.bookmarks.On("GetByID", mock.Anything, int64(6)).Return(nil, nil)

	errOther := f.svc.Delete(context.Background(), policy.UserActor(8), 5)
	errMissing := f.svc.Delete(context.Background(), policy.UserActor(8), 6)

	assert.True(t, apperr.Is(errOther, apperr.BookmarkNotFound))
	assert.True(t, apperr.Is(errMissing, apperr.BookmarkNotFound))
	assert.Equal(t, errMissing.Error(), errOther.Error(), "non-owner and missing must be indistinguishable")
	f.bookmarks.AssertNotCalled(t, "SetDeleted", mock.Anything, mock.Anything, mock.Anything)
}

func TestBookmarkDelete_Owner(t *testing.T) {
	f := newBookmarkFixture()
	f.bookmarks.On("GetByID", mock.Anything, int64(5)).Return(&models.Bookmark{ID: 5, UserID: 7}, nil)
	f.bookmarks.On("SetDeleted", mock.Anything, int64(5), true).Return(nil)

	require.NoError(t, f.svc.Delete(context.Background(), policy.UserActor(7), 5))
	f.bookmarks.AssertExpectations(t)
}

func TestBookmarkDelete_PersistFailure(t *testing.T) {
	f := newBookmarkFixture()
	f.bookmarks.On("GetByID", mock.Anything, int64(5)).Return(&models.Bookmark{ID: 5, UserID: 7}, nil)
	f.bookmarks.On("SetDeleted", mock.Anything, int64(5), true).Return(errors.New("db down"))

	err := f.svc.Delete(context.Background(), policy.UserActor(7), 5)
	assert.True(t, apperr.Is(err, apperr.BookmarkDeleteFailed))
}

func TestBookmarkRestore(t *testing.T) {
	t.Run("active bookmark restores without error", func(t *testing.T) {
		f := newBookmarkFixture()
		f.users.On("GetByID", mock.Anything, int64(7)).Return(&models.User{ID: 7}, nil)
		f.bookmarks.On("GetByID", mock.Anything, int64(5)).Return(&models.Bookmark{ID: 5, UserID: 7}, nil)
		f.bookmarks.On("SetDeleted", mock.Anything, int64(5), false).Return(nil)

		require.NoError(t, f.svc.Restore(context.Background(), policy.UserActor(7), 5))
	})

	t.Run("requires existing user first", func(t *testing.T) {
		f := newBookmarkFixture()
		f.users.On("GetByID", mock.Anything, int64(7)).Return(nil, nil)

		err := f.svc.Restore(context.Background(), policy.UserActor(7), 5)
		assert.True(t, apperr.Is(err, apperr.BookmarkInvalidUserInput))
		f.bookmarks.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("non-owner", func(t *testing.T) {
		f := newBookmarkFixture()
		f.users.On("GetByID", mock.Anything, int64(8)).Return(&models.User{ID: 8}, nil)
		f.bookmarks.On("GetByID", mock.Anything, int64(5)).Return(&models.Bookmark{ID: 5, UserID: 7, Deleted: true}, nil)

		err := f.svc.Restore(context.Background(), policy.UserActor(8), 5)
		assert.True(t, apperr.Is(err, apperr.BookmarkNotFound))
	})
}

func TestBookmarkListMine_PassesActor(t *testing.T) {
	f := newBookmarkFixture()
	actor := policy.UserActor(7)
	f.users.On("GetByID", mock.Anything, int64(7)).Return(&models.User{ID: 7}, nil)
	f.bookmarks.On("ListByUser", mock.Anything, int64(7), actor).Return(nil, nil)

	list, err := f.svc.ListMine(context.Background(), actor)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}
