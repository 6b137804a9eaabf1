package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/pinco/pinco-backend/internal/db/models"
	"github.com/pinco/pinco-backend/internal/policy"
)

// directTx runs fn without a transaction and counts calls.
type directTx struct {
	calls int
}

func (t *directTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

func pinOrNil(v interface{}) *models.Pin {
	if v == nil {
		return nil
	}
	return v.(*models.Pin)
}

func pinsOrNil(v interface{}) []models.Pin {
	if v == nil {
		return nil
	}
	return v.([]models.Pin)
}

// MockUserStore implements UserStore
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if v := args.Get(0); v != nil {
		return v.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserStore) GetByAPIKey(ctx context.Context, key string) (*models.User, error) {
	args := m.Called(ctx, key)
	if v := args.Get(0); v != nil {
		return v.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserStore) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserStore) UserNameTaken(ctx context.Context, name string, exceptID int64) (bool, error) {
	args := m.Called(ctx, name, exceptID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserStore) APIKeyExists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserStore) SetAPIKey(ctx context.Context, id int64, key string) error {
	args := m.Called(ctx, id, key)
	return args.Error(0)
}

func (m *MockUserStore) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserStore) SoftDelete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPinStore implements PinStore
type MockPinStore struct {
	mock.Mock
}

func (m *MockPinStore) Create(ctx context.Context, pin *models.Pin) error {
	args := m.Called(ctx, pin)
	return args.Error(0)
}

func (m *MockPinStore) Find(ctx context.Context, id int64, includeDeleted bool) (*models.Pin, error) {
	args := m.Called(ctx, id, includeDeleted)
	return pinOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPinStore) GetVisible(ctx context.Context, id int64, actor policy.Actor) (*models.Pin, error) {
	args := m.Called(ctx, id, actor)
	return pinOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPinStore) ListAll(ctx context.Context, actor policy.Actor) ([]models.Pin, error) {
	args := m.Called(ctx, actor)
	return pinsOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPinStore) ListWithinRadius(ctx context.Context, center models.Point, radiusMeters float64, actor policy.Actor) ([]models.Pin, error) {
	args := m.Called(ctx, center, radiusMeters, actor)
	return pinsOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPinStore) ListWithinBounds(ctx context.Context, b models.Bounds, actor policy.Actor) ([]models.Pin, error) {
	args := m.Called(ctx, b, actor)
	return pinsOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPinStore) ListByAuthor(ctx context.Context, authorID int64, actor policy.Actor) ([]models.Pin, error) {
	args := m.Called(ctx, authorID, actor)
	return pinsOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPinStore) ListByAuthorMonth(ctx context.Context, authorID int64, year, month int, actor policy.Actor) ([]models.Pin, error) {
	args := m.Called(ctx, authorID, year, month, actor)
	return pinsOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPinStore) ListByIDs(ctx context.Context, ids []int64, actor policy.Actor) ([]models.Pin, error) {
	args := m.Called(ctx, ids, actor)
	return pinsOrNil(args.Get(0)), args.Error(1)
}

func (m *MockPinStore) CountByUser(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockPinStore) UpdateContent(ctx context.Context, id int64, content string) error {
	args := m.Called(ctx, id, content)
	return args.Error(0)
}

func (m *MockPinStore) SetPublic(ctx context.Context, id int64, isPublic bool) error {
	args := m.Called(ctx, id, isPublic)
	return args.Error(0)
}

func (m *MockPinStore) SetDeleted(ctx context.Context, id int64, deleted bool) error {
	args := m.Called(ctx, id, deleted)
	return args.Error(0)
}

func (m *MockPinStore) SoftDeleteByUser(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockPinStore) RefreshLikeCount(ctx context.Context, pinID int64) (int, error) {
	args := m.Called(ctx, pinID)
	return args.Int(0), args.Error(1)
}

func (m *MockPinStore) RefreshLikeCounts(ctx context.Context, ids []int64) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

// MockLikeStore implements LikeStore
type MockLikeStore struct {
	mock.Mock
}

func (m *MockLikeStore) Exists(ctx context.Context, userID, pinID int64) (bool, error) {
	args := m.Called(ctx, userID, pinID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLikeStore) Create(ctx context.Context, userID, pinID int64) error {
	args := m.Called(ctx, userID, pinID)
	return args.Error(0)
}

func (m *MockLikeStore) Delete(ctx context.Context, userID, pinID int64) (bool, error) {
	args := m.Called(ctx, userID, pinID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLikeStore) ListUsersByPin(ctx context.Context, pinID int64) ([]models.UserSummary, error) {
	args := m.Called(ctx, pinID)
	if v := args.Get(0); v != nil {
		return v.([]models.UserSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLikeStore) ListPinsLikedByUser(ctx context.Context, userID int64, actor policy.Actor) ([]models.Pin, error) {
	args := m.Called(ctx, userID, actor)
	return pinsOrNil(args.Get(0)), args.Error(1)
}

func (m *MockLikeStore) PinIDsByUser(ctx context.Context, userID int64) ([]int64, error) {
	args := m.Called(ctx, userID)
	if v := args.Get(0); v != nil {
		return v.([]int64), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLikeStore) DeleteByUser(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// MockBookmarkStore implements BookmarkStore
type MockBookmarkStore struct {
	mock.Mock
}

func (m *MockBookmarkStore) GetByID(ctx context.Context, id int64) (*models.Bookmark, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Bookmark), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBookmarkStore) GetByUserAndPin(ctx context.Context, userID, pinID int64) (*models.Bookmark, error) {
	args := m.Called(ctx, userID, pinID)
	if v := args.Get(0); v != nil {
		return v.(*models.Bookmark), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBookmarkStore) Create(ctx context.Context, b *models.Bookmark) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockBookmarkStore) SetDeleted(ctx context.Context, id int64, deleted bool) error {
	args := m.Called(ctx, id, deleted)
	return args.Error(0)
}

func (m *MockBookmarkStore) ListByUser(ctx context.Context, userID int64, actor policy.Actor) ([]models.Bookmark, error) {
	args := m.Called(ctx, userID, actor)
	if v := args.Get(0); v != nil {
		return v.([]models.Bookmark), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBookmarkStore) CountByUser(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

// MockTagStore implements TagStore
type MockTagStore struct {
	mock.Mock
}

func (m *MockTagStore) ListAll(ctx context.Context) ([]models.Tag, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]models.Tag), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTagStore) GetByKeyword(ctx context.Context, keyword string) (*models.Tag, error) {
	args := m.Called(ctx, keyword)
	if v := args.Get(0); v != nil {
		return v.(*models.Tag), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTagStore) Create(ctx context.Context, keyword string) (*models.Tag, error) {
	args := m.Called(ctx, keyword)
	if v := args.Get(0); v != nil {
		return v.(*models.Tag), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTagStore) PinIDsByTag(ctx context.Context, tagID int64) ([]int64, error) {
	args := m.Called(ctx, tagID)
	if v := args.Get(0); v != nil {
		return v.([]int64), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockPinTagStore implements PinTagStore
type MockPinTagStore struct {
	mock.Mock
}

func (m *MockPinTagStore) Get(ctx context.Context, pinID, tagID int64) (*models.PinTag, error) {
	args := m.Called(ctx, pinID, tagID)
	if v := args.Get(0); v != nil {
		return v.(*models.PinTag), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPinTagStore) Create(ctx context.Context, pinID, tagID int64) (*models.PinTag, error) {
	args := m.Called(ctx, pinID, tagID)
	if v := args.Get(0); v != nil {
		return v.(*models.PinTag), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPinTagStore) SetDeleted(ctx context.Context, id int64, deleted bool) error {
	args := m.Called(ctx, id, deleted)
	return args.Error(0)
}

func (m *MockPinTagStore) ListActiveByPin(ctx context.Context, pinID int64) ([]models.PinTag, error) {
	args := m.Called(ctx, pinID)
	if v := args.Get(0); v != nil {
		return v.([]models.PinTag), args.Error(1)
	}
	return nil, args.Error(1)
}
