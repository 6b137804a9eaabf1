package bookmarks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pinco/pinco-backend/internal/apperr"
	"github.com/pinco/pinco-backend/internal/auth"
	"github.com/pinco/pinco-backend/internal/db/models"
	"github.com/pinco/pinco-backend/internal/middleware"
	"github.com/pinco/pinco-backend/internal/policy"
	"github.com/pinco/pinco-backend/internal/telemetry"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockBookmarkService struct{ mock.Mock }

func (m *MockBookmarkService) Add(ctx context.Context, actor policy.Actor, pinID int64) (*models.Bookmark, error) {
	args := m.Called(ctx, actor, pinID)
	if b, ok := args.Get(0).(*models.Bookmark); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBookmarkService) ListMine(ctx context.Context, actor policy.Actor) ([]models.Bookmark, error) {
	args := m.Called(ctx, actor)
	if b, ok := args.Get(0).([]models.Bookmark); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBookmarkService) Delete(ctx context.Context, actor policy.Actor, id int64) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *MockBookmarkService) Restore(ctx context.Context, actor policy.Actor, id int64) error {
	return m.Called(ctx, actor, id).Error(0)
}

func newRouter(svc *MockBookmarkService, principalID int64) *gin.Engine {
	r := gin.New()
	if principalID != 0 {
		r.Use(func(c *gin.Context) {
			c.Set(middleware.PrincipalKey, auth.Principal{ID: principalID})
			c.Next()
		})
	}
	NewHandlers(svc).Register(r.Group("/api/pins"), r.Group("/api/bookmarks"))
	return r
}

func do(t *testing.T, r *gin.Engine, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	body := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestAdd(t *testing.T) {
	svc := new(MockBookmarkService)
	svc.On("Add", mock.Anything, policy.UserActor(2), int64(7)).
		Return(&models.Bookmark{ID: 4, UserID: 2, PinID: 7, Pin: &models.Pin{ID: 7}}, nil)

	w, body := do(t, newRouter(svc, 2), http.MethodPost, "/api/pins/7/bookmarks")

	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(4), data["id"])
	assert.Equal(t, float64(7), data["pin"].(map[string]any)["id"])
}

func TestAdd_AlreadyExists(t *testing.T) {
	svc := new(MockBookmarkService)
	svc.On("Add", mock.Anything, policy.UserActor(2), int64(7)).Return(nil, apperr.New(apperr.BookmarkAlreadyExists))

	w, body := do(t, newRouter(svc, 2), http.MethodPost, "/api/pins/7/bookmarks")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "4002", body["errorCode"])
}

func TestListMine_WrapsList(t *testing.T) {
	svc := new(MockBookmarkService)
	svc.On("ListMine", mock.Anything, policy.UserActor(2)).Return([]models.Bookmark{}, nil)

	w, body := do(t, newRouter(svc, 2), http.MethodGet, "/api/bookmarks")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"bookmarkList": []any{}}, body["data"])
}

func TestDelete_OtherUsersBookmarkIsNotFound(t *testing.T) {
	svc := new(MockBookmarkService)
	svc.On("Delete", mock.Anything, policy.UserActor(9), int64(4)).Return(apperr.New(apperr.BookmarkNotFound))

	w, body := do(t, newRouter(svc, 9), http.MethodDelete, "/api/bookmarks/4")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "4001", body["errorCode"])
}

func TestRestore_CountsTransition(t *testing.T) {
	svc := new(MockBookmarkService)
	svc.On("Restore", mock.Anything, policy.UserActor(2), int64(4)).Return(nil)
	counter := telemetry.SoftDeleteTransitionsTotal.WithLabelValues("bookmark", "restore")
	before := testutil.ToFloat64(counter)

	w, body := do(t, newRouter(svc, 2), http.MethodPatch, "/api/bookmarks/4")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Bookmark restored.", body["msg"])
	assert.Equal(t, float64(1), testutil.ToFloat64(counter)-before)
}
