package pins

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
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
	"github.com/pinco/pinco-backend/internal/services"
	"github.com/pinco/pinco-backend/internal/telemetry"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type MockPinService struct{ mock.Mock }

func (m *MockPinService) pin(args mock.Arguments) (*models.Pin, error) {
	if p, ok := args.Get(0).(*models.Pin); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPinService) list(args mock.Arguments) ([]models.Pin, error) {
	if p, ok := args.Get(0).([]models.Pin); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPinService) Create(ctx context.Context, actor policy.Actor, in services.CreatePinInput) (*models.Pin, error) {
	return m.pin(m.Called(ctx, actor, in))
}

func (m *MockPinService) Get(ctx context.Context, actor policy.Actor, id int64) (*models.Pin, error) {
	return m.pin(m.Called(ctx, actor, id))
}

func (m *MockPinService) ListAll(ctx context.Context, actor policy.Actor) ([]models.Pin, error) {
	return m.list(m.Called(ctx, actor))
}

func (m *MockPinService) ListWithinRadius(ctx context.Context, actor policy.Actor, lat, lon, r float64) ([]models.Pin, error) {
	return m.list(m.Called(ctx, actor, lat, lon, r))
}

func (m *MockPinService) ListWithinBounds(ctx context.Context, actor policy.Actor, b models.Bounds) ([]models.Pin, error) {
	return m.list(m.Called(ctx, actor, b))
}

func (m *MockPinService) ListByAuthor(ctx context.Context, actor policy.Actor, authorID int64) ([]models.Pin, error) {
	return m.list(m.Called(ctx, actor, authorID))
}

func (m *MockPinService) ListByAuthorMonth(ctx context.Context, actor policy.Actor, authorID int64, year, month int) ([]models.Pin, error) {
	return m.list(m.Called(ctx, actor, authorID, year, month))
}

func (m *MockPinService) UpdateContent(ctx context.Context, actor policy.Actor, id int64, content string) (*models.Pin, error) {
	return m.pin(m.Called(ctx, actor, id, content))
}

func (m *MockPinService) TogglePublic(ctx context.Context, actor policy.Actor, id int64) (*models.Pin, error) {
	return m.pin(m.Called(ctx, actor, id))
}

func (m *MockPinService) Delete(ctx context.Context, actor policy.Actor, id int64) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *MockPinService) Restore(ctx context.Context, actor policy.Actor, id int64) (*models.Pin, error) {
	return m.pin(m.Called(ctx, actor, id))
}

type MockLikeService struct{ mock.Mock }

func (m *MockLikeService) status(args mock.Arguments) (*services.LikeStatus, error) {
	if s, ok := args.Get(0).(*services.LikeStatus); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLikeService) LikeOn(ctx context.Context, actor policy.Actor, pinID int64) (*services.LikeStatus, error) {
	return m.status(m.Called(ctx, actor, pinID))
}

func (m *MockLikeService) LikeOff(ctx context.Context, actor policy.Actor, pinID int64) (*services.LikeStatus, error) {
	return m.status(m.Called(ctx, actor, pinID))
}

func (m *MockLikeService) UsersWhoLiked(ctx context.Context, actor policy.Actor, pinID int64) ([]models.UserSummary, error) {
	args := m.Called(ctx, actor, pinID)
	if u, ok := args.Get(0).([]models.UserSummary); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// newRouter mounts the handlers; a non-zero principalID is attached the way the gate does.
func newRouter(pins *MockPinService, likes *MockLikeService, principalID int64) *gin.Engine {
	r := gin.New()
	if principalID != 0 {
		r.Use(func(c *gin.Context) {
			c.Set(middleware.PrincipalKey, auth.Principal{ID: principalID})
			c.Next()
		})
	}
	NewHandlers(pins, likes).Register(r.Group("/api/pins"))
	return r
}

type envelope struct {
	ErrorCode string          `json:"errorCode"`
	Msg       string          `json:"msg"`
	Data      json.RawMessage `json:"data"`
}

func do(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestCreate_Success(t *testing.T) {
	pins, likes := new(MockPinService), new(MockLikeService)
	in := services.CreatePinInput{Latitude: 37.5, Longitude: 127.0, Content: "coffee"}
	pins.On("Create", mock.Anything, policy.UserActor(3), in).
		Return(&models.Pin{ID: 11, Latitude: 37.5, Longitude: 127.0, Content: "coffee", UserID: 3, IsPublic: true}, nil)
	before := testutil.ToFloat64(telemetry.PinsCreatedTotal)

	w, env := do(t, newRouter(pins, likes, 3), http.MethodPost, "/api/pins",
		`{"latitude":37.5,"longitude":127.0,"content":"coffee"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "200", env.ErrorCode)
	var pin models.Pin
	require.NoError(t, json.Unmarshal(env.Data, &pin))
	assert.Equal(t, int64(11), pin.ID)
	assert.Equal(t, float64(1), testutil.ToFloat64(telemetry.PinsCreatedTotal)-before)
	pins.AssertExpectations(t)
}

func TestCreate_BindingErrorsMapToPinCodes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing latitude", `{"longitude":127,"content":"x"}`, "1006"},
		{"latitude out of range", `{"latitude":91,"longitude":127,"content":"x"}`, "1006"},
		{"missing longitude", `{"latitude":37,"content":"x"}`, "1007"},
		{"missing content", `{"latitude":37,"longitude":127}`, "1005"},
		{"malformed", `{"latitude":`, "400"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pins := new(MockPinService)
			w, env := do(t, newRouter(pins, new(MockLikeService), 3), http.MethodPost, "/api/pins", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, env.ErrorCode)
			pins.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCreate_AnonymousGetsAuthRequired(t *testing.T) {
	pins := new(MockPinService)
	pins.On("Create", mock.Anything, policy.Anonymous(), mock.Anything).
		Return(nil, apperr.New(apperr.AuthRequired))

	w, env := do(t, newRouter(pins, new(MockLikeService), 0), http.MethodPost, "/api/pins",
		`{"latitude":37.5,"longitude":127.0,"content":"coffee"}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "2014", env.ErrorCode)
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func TestGet_NotFound(t *testing.T) {
	pins := new(MockPinService)
	pins.On("Get", mock.Anything, policy.Anonymous(), int64(8)).Return(nil, apperr.New(apperr.PinNotFound))

	w, env := do(t, newRouter(pins, new(MockLikeService), 0), http.MethodGet, "/api/pins/8", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "1002", env.ErrorCode)
}

func TestGet_InvalidID(t *testing.T) {
	w, env := do(t, newRouter(new(MockPinService), new(MockLikeService), 0), http.MethodGet, "/api/pins/abc", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "400", env.ErrorCode)
}

func TestListWithinRadius_DefaultRadiusLeftToService(t *testing.T) {
	pins := new(MockPinService)
	pins.On("ListWithinRadius", mock.Anything, policy.UserActor(2), 37.5, 127.0, 0.0).
		Return([]models.Pin{{ID: 1}}, nil)

	w, _ := do(t, newRouter(pins, new(MockLikeService), 2), http.MethodGet, "/api/pins?latitude=37.5&longitude=127", "")

	assert.Equal(t, http.StatusOK, w.Code)
	pins.AssertExpectations(t)
}

func TestListWithinRadius_MissingLatitude(t *testing.T) {
	w, env := do(t, newRouter(new(MockPinService), new(MockLikeService), 0), http.MethodGet, "/api/pins?longitude=127", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "1006", env.ErrorCode)
}

func TestListWithinBounds(t *testing.T) {
	pins := new(MockPinService)
	b := models.Bounds{MinLat: 37, MinLon: 126, MaxLat: 38, MaxLon: 127}
	pins.On("ListWithinBounds", mock.Anything, policy.Anonymous(), b).Return([]models.Pin{}, nil)

	w, env := do(t, newRouter(pins, new(MockLikeService), 0), http.MethodGet,
		"/api/pins/bounds?minLat=37&minLon=126&maxLat=38&maxLon=127", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestListByAuthorMonth(t *testing.T) {
	pins := new(MockPinService)
	pins.On("ListByAuthorMonth", mock.Anything, policy.Anonymous(), int64(4), 2026, 3).
		Return([]models.Pin{{ID: 9}}, nil)

	w, _ := do(t, newRouter(pins, new(MockLikeService), 0), http.MethodGet, "/api/pins/user/4/date?year=2026&month=3", "")

	assert.Equal(t, http.StatusOK, w.Code)
	pins.AssertExpectations(t)
}

func TestListAll_RoutesBeforePinID(t *testing.T) {
	pins := new(MockPinService)
	pins.On("ListAll", mock.Anything, policy.Anonymous()).Return([]models.Pin{}, nil)

	w, _ := do(t, newRouter(pins, new(MockLikeService), 0), http.MethodGet, "/api/pins/all", "")

	assert.Equal(t, http.StatusOK, w.Code)
	pins.AssertExpectations(t)
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

func TestUpdateContent_NoPermission(t *testing.T) {
	pins := new(MockPinService)
	pins.On("UpdateContent", mock.Anything, policy.UserActor(5), int64(1), "new").
		Return(nil, apperr.New(apperr.PinNoPermission))

	w, env := do(t, newRouter(pins, new(MockLikeService), 5), http.MethodPut, "/api/pins/1", `{"content":"new"}`)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "1010", env.ErrorCode)
}

func TestDeleteAndRestore_CountTransitions(t *testing.T) {
	pins := new(MockPinService)
	pins.On("Delete", mock.Anything, policy.UserActor(5), int64(1)).Return(nil)
	pins.On("Restore", mock.Anything, policy.UserActor(5), int64(1)).Return(&models.Pin{ID: 1}, nil)
	deleted := telemetry.SoftDeleteTransitionsTotal.WithLabelValues("pin", "delete")
	restored := telemetry.SoftDeleteTransitionsTotal.WithLabelValues("pin", "restore")
	d0, r0 := testutil.ToFloat64(deleted), testutil.ToFloat64(restored)

	r := newRouter(pins, new(MockLikeService), 5)
	w, _ := do(t, r, http.MethodDelete, "/api/pins/1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, r, http.MethodPatch, "/api/pins/1/restore", "")
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, float64(1), testutil.ToFloat64(deleted)-d0)
	assert.Equal(t, float64(1), testutil.ToFloat64(restored)-r0)
}

func TestTogglePublic(t *testing.T) {
	pins := new(MockPinService)
	pins.On("TogglePublic", mock.Anything, policy.UserActor(5), int64(2)).Return(&models.Pin{ID: 2, IsPublic: false}, nil)

	w, env := do(t, newRouter(pins, new(MockLikeService), 5), http.MethodPut, "/api/pins/2/public", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"isPublic":false`)
}

// ---------------------------------------------------------------------------
// Likes
// ---------------------------------------------------------------------------

func TestLikeOn_UsesPrincipal(t *testing.T) {
	likes := new(MockLikeService)
	likes.On("LikeOn", mock.Anything, policy.UserActor(6), int64(3)).
		Return(&services.LikeStatus{IsLiked: true, LikeCount: 4}, nil)
	counter := telemetry.LikeTogglesTotal.WithLabelValues("on")
	before := testutil.ToFloat64(counter)

	w, env := do(t, newRouter(new(MockPinService), likes, 6), http.MethodPost, "/api/pins/3/likes", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"isLiked":true,"likeCount":4}`, string(env.Data))
	assert.Equal(t, float64(1), testutil.ToFloat64(counter)-before)
}

func TestLikeOff_AnonymousRejectedBeforeService(t *testing.T) {
	likes := new(MockLikeService)

	w, env := do(t, newRouter(new(MockPinService), likes, 0), http.MethodDelete, "/api/pins/3/likes", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "2014", env.ErrorCode)
	likes.AssertNotCalled(t, "LikeOff", mock.Anything, mock.Anything, mock.Anything)
}

func TestLikeOff_NotFound(t *testing.T) {
	likes := new(MockLikeService)
	likes.On("LikeOff", mock.Anything, policy.UserActor(6), int64(3)).Return(nil, apperr.New(apperr.LikesNotFound))

	w, env := do(t, newRouter(new(MockPinService), likes, 6), http.MethodDelete, "/api/pins/3/likes", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "5006", env.ErrorCode)
}

func TestUsersWhoLiked(t *testing.T) {
	likes := new(MockLikeService)
	likes.On("UsersWhoLiked", mock.Anything, policy.Anonymous(), int64(3)).
		Return([]models.UserSummary{{ID: 1, UserName: "kim"}}, nil)

	w, env := do(t, newRouter(new(MockPinService), likes, 0), http.MethodGet, "/api/pins/3/likesusers", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"id":1,"userName":"kim"}]`, string(env.Data))
}
