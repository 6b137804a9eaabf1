package services

import (
	"context"
	"strings"

	"github.com/pinco/pinco-backend/internal/apperr"
	"github.com/pinco/pinco-backend/internal/db/models"
	"github.com/pinco/pinco-backend/internal/policy"
)

// DefaultRadiusMeters is used when a radius query omits or zeroes the radius.
const DefaultRadiusMeters = 1000

// CreatePinInput is the payload of a new pin. IsPublic defaults to true when omitted.
type CreatePinInput struct {
	Latitude  float64
	Longitude float64
	Content   string
	IsPublic  *bool
}

// PinService implements pin reads and owner-only mutations.
type PinService struct {
	pins  PinStore
	users UserStore
}

// NewPinService creates a PinService.
func NewPinService(pins PinStore, users UserStore) *PinService {
	return &PinService{pins: pins, users: users}
}

// Create stores a new pin owned by actor.
func (s *PinService) Create(ctx context.Context, actor policy.Actor, in CreatePinInput) (*models.Pin, error) {
	userID, ok := actor.ID()
	if !ok {
		return nil, apperr.New(apperr.AuthRequired)
	}
	if err := validatePoint(in.Latitude, in.Longitude); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, apperr.New(apperr.InvalidPinContent)
	}

	pin := &models.Pin{
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		Content:   content,
		UserID:    userID,
		IsPublic:  true,
	}
	if in.IsPublic != nil {
		pin.IsPublic = *in.IsPublic
	}
	if err := s.pins.Create(ctx, pin); err != nil {
		return nil, apperr.Wrap(apperr.PinCreateFailed, err)
	}
	return pin, nil
}

// Get returns a pin the actor may see.
func (s *PinService) Get(ctx context.Context, actor policy.Actor, id int64) (*models.Pin, error) {
	pin, err := s.pins.GetVisible(ctx, id, actor)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	if pin == nil {
		return nil, apperr.New(apperr.PinNotFound)
	}
	return pin, nil
}

// ListAll returns every pin visible to actor.
func (s *PinService) ListAll(ctx context.Context, actor policy.Actor) ([]models.Pin, error) {
	return wrapList(s.pins.ListAll(ctx, actor))
}

// ListWithinRadius returns visible pins within radiusMeters of (lat, lon).
func (s *PinService) ListWithinRadius(ctx context.Context, actor policy.Actor, lat, lon, radiusMeters float64) ([]models.Pin, error) {
	if err := validatePoint(lat, lon); err != nil {
		return nil, err
	}
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}
	return wrapList(s.pins.ListWithinRadius(ctx, models.Point{Latitude: lat, Longitude: lon}, radiusMeters, actor))
}

// ListWithinBounds returns visible pins inside a latitude/longitude rectangle.
func (s *PinService) ListWithinBounds(ctx context.Context, actor policy.Actor, b models.Bounds) ([]models.Pin, error) {
	if err := validatePoint(b.MinLat, b.MinLon); err != nil {
		return nil, err
	}
	if err := validatePoint(b.MaxLat, b.MaxLon); err != nil {
		return nil, err
	}
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return nil, apperr.New(apperr.InvalidPinInput)
	}
	return wrapList(s.pins.ListWithinBounds(ctx, b, actor))
}

// ListByAuthor returns the visible pins of an existing user.
func (s *PinService) ListByAuthor(ctx context.Context, actor policy.Actor, authorID int64) ([]models.Pin, error) {
	if err := s.requireUser(ctx, authorID); err != nil {
		return nil, err
	}
	return wrapList(s.pins.ListByAuthor(ctx, authorID, actor))
}

// ListByAuthorMonth returns the visible pins an existing user created in the given month.
func (s *PinService) ListByAuthorMonth(ctx context.Context, actor policy.Actor, authorID int64, year, month int) ([]models.Pin, error) {
	if month < 1 || month > 12 || year < 1 {
		return nil, apperr.New(apperr.InvalidValue)
	}
	if err := s.requireUser(ctx, authorID); err != nil {
		return nil, err
	}
	return wrapList(s.pins.ListByAuthorMonth(ctx, authorID, year, month, actor))
}

// ListOwn returns all of a user's own active pins, public and private.
func (s *PinService) ListOwn(ctx context.Context, userID int64) ([]models.Pin, error) {
	return wrapList(s.pins.ListByAuthor(ctx, userID, policy.UserActor(userID)))
}

// UpdateContent replaces the content of an owned pin.
func (s *PinService) UpdateContent(ctx context.Context, actor policy.Actor, id int64, content string) (*models.Pin, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.New(apperr.InvalidPinContent)
	}
	if _, err := s.owned(ctx, actor, id, false); err != nil {
		return nil, err
	}
	if err := s.pins.UpdateContent(ctx, id, content); err != nil {
		return nil, apperr.Wrap(apperr.PinUpdateFailed, err)
	}
	return s.reload(ctx, id, false)
}

// TogglePublic flips the visibility flag of an owned pin.
func (s *PinService) TogglePublic(ctx context.Context, actor policy.Actor, id int64) (*models.Pin, error) {
	pin, err := s.owned(ctx, actor, id, false)
	if err != nil {
		return nil, err
	}
	if err := s.pins.SetPublic(ctx, id, !pin.IsPublic); err != nil {
		return nil, apperr.Wrap(apperr.PinUpdateFailed, err)
	}
	return s.reload(ctx, id, false)
}

// Delete soft-deletes an owned pin.
func (s *PinService) Delete(ctx context.Context, actor policy.Actor, id int64) error {
	if _, err := s.owned(ctx, actor, id, false); err != nil {
		return err
	}
	if err := s.pins.SetDeleted(ctx, id, true); err != nil {
		return apperr.Wrap(apperr.PinDeleteFailed, err)
	}
	return nil
}

// Restore brings a soft-deleted owned pin back.
func (s *PinService) Restore(ctx context.Context, actor policy.Actor, id int64) (*models.Pin, error) {
	if _, err := s.owned(ctx, actor, id, true); err != nil {
		return nil, err
	}
	if err := s.pins.SetDeleted(ctx, id, false); err != nil {
		return nil, apperr.Wrap(apperr.PinUpdateFailed, err)
	}
	return s.reload(ctx, id, false)
}

// SoftDeleteByUser soft-deletes every pin of a withdrawn user.
func (s *PinService) SoftDeleteByUser(ctx context.Context, userID int64) error {
	if err := s.pins.SoftDeleteByUser(ctx, userID); err != nil {
		return apperr.Wrap(apperr.PinDeleteFailed, err)
	}
	return nil
}

// owned loads a pin for mutation: missing is PIN_NOT_FOUND, someone else's is PIN_NO_PERMISSION.
func (s *PinService) owned(ctx context.Context, actor policy.Actor, id int64, includeDeleted bool) (*models.Pin, error) {
	if actor.IsAnonymous() {
		return nil, apperr.New(apperr.AuthRequired)
	}
	pin, err := s.pins.Find(ctx, id, includeDeleted)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	if pin == nil {
		return nil, apperr.New(apperr.PinNotFound)
	}
	if !policy.CanMutate(actor, pin.OwnerID()) {
		return nil, apperr.New(apperr.PinNoPermission)
	}
	return pin, nil
}

func (s *PinService) reload(ctx context.Context, id int64, includeDeleted bool) (*models.Pin, error) {
	pin, err := s.pins.Find(ctx, id, includeDeleted)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	if pin == nil {
		return nil, apperr.New(apperr.PinNotFound)
	}
	return pin, nil
}

func (s *PinService) requireUser(ctx context.Context, id int64) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return apperr.Wrap(apperr.InternalError, err)
	}
	if user == nil || user.Deleted {
		return apperr.New(apperr.UserNotFound)
	}
	return nil
}

func validatePoint(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return apperr.New(apperr.InvalidPinLatitude)
	}
	if lon < -180 || lon > 180 {
		return apperr.New(apperr.InvalidPinLongitude)
	}
	return nil
}

func wrapList(pins []models.Pin, err error) ([]models.Pin, error) {
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	if pins == nil {
		pins = []models.Pin{}
	}
	return pins, nil
}
