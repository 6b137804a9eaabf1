package services

import (
	"context"
	"errors"

	"github.com/pinco/pinco-backend/internal/apperr"
	"github.com/pinco/pinco-backend/internal/db"
	"github.com/pinco/pinco-backend/internal/db/models"
	"github.com/pinco/pinco-backend/internal/db/repositories"
	"github.com/pinco/pinco-backend/internal/policy"
)

// LikeStatus is the result of a like toggle.
type LikeStatus struct {
	IsLiked   bool `json:"isLiked"`
	LikeCount int  `json:"likeCount"`
}

// LikeService records likes and keeps the denormalized pins.like_count in step with them.
type LikeService struct {
	likes LikeStore
	pins  PinStore
	users UserStore
	tx    db.TxRunner
}

// NewLikeService creates a LikeService.
func NewLikeService(likes LikeStore, pins PinStore, users UserStore, tx db.TxRunner) *LikeService {
	return &LikeService{likes: likes, pins: pins, users: users, tx: tx}
}

// LikeOn records that actor likes a pin it can see. Liking twice is not an error.
func (s *LikeService) LikeOn(ctx context.Context, actor policy.Actor, pinID int64) (*LikeStatus, error) {
	userID, err := s.validate(ctx, actor, pinID)
	if err != nil {
		return nil, err
	}

	var count int
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		exists, err := s.likes.Exists(ctx, userID, pinID)
		if err != nil {
			return apperr.Wrap(apperr.LikesCreateFailed, err)
		}
		if !exists {
			// A like recorded by a concurrent request counts as already liked.
			if err := s.likes.Create(ctx, userID, pinID); err != nil && !errors.Is(err, repositories.ErrDuplicate) {
				return apperr.Wrap(apperr.LikesCreateFailed, err)
			}
		}
		count, err = s.refresh(ctx, pinID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &LikeStatus{IsLiked: true, LikeCount: count}, nil
}

// LikeOff removes actor's like from a pin.
func (s *LikeService) LikeOff(ctx context.Context, actor policy.Actor, pinID int64) (*LikeStatus, error) {
	userID, err := s.validate(ctx, actor, pinID)
	if err != nil {
		return nil, err
	}

	var count int
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		removed, err := s.likes.Delete(ctx, userID, pinID)
		if err != nil {
			return apperr.Wrap(apperr.LikesRevokeFailed, err)
		}
		if !removed {
			return apperr.New(apperr.LikesNotFound)
		}
		count, err = s.refresh(ctx, pinID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &LikeStatus{IsLiked: false, LikeCount: count}, nil
}

// UsersWhoLiked lists the users who liked a pin the actor can see.
func (s *LikeService) UsersWhoLiked(ctx context.Context, actor policy.Actor, pinID int64) ([]models.UserSummary, error) {
	if err := s.requireVisiblePin(ctx, actor, pinID); err != nil {
		return nil, err
	}
	users, err := s.likes.ListUsersByPin(ctx, pinID)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	if users == nil {
		users = []models.UserSummary{}
	}
	return users, nil
}

// PinsLikedByUser lists the pins a user liked, filtered to what actor may see.
func (s *LikeService) PinsLikedByUser(ctx context.Context, actor policy.Actor, userID int64) ([]models.Pin, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	if user == nil {
		return nil, apperr.New(apperr.LikesInvalidUserInput)
	}
	return wrapList(s.likes.ListPinsLikedByUser(ctx, userID, actor))
}

// DeleteWithdrawnUserLikes drops every like of a user and recounts the affected pins.
func (s *LikeService) DeleteWithdrawnUserLikes(ctx context.Context, userID int64) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		pinIDs, err := s.likes.PinIDsByUser(ctx, userID)
		if err != nil {
			return apperr.Wrap(apperr.LikesUpdatePinFailed, err)
		}
		if len(pinIDs) == 0 {
			return nil
		}
		if err := s.likes.DeleteByUser(ctx, userID); err != nil {
			return apperr.Wrap(apperr.LikesUpdatePinFailed, err)
		}
		if err := s.pins.RefreshLikeCounts(ctx, pinIDs); err != nil {
			return apperr.Wrap(apperr.LikesUpdatePinFailed, err)
		}
		return nil
	})
}

// CountForPins sums the like counts of the given pins.
func CountForPins(pins []models.Pin) int {
	total := 0
	for _, p := range pins {
		total += p.LikeCount
	}
	return total
}

func (s *LikeService) validate(ctx context.Context, actor policy.Actor, pinID int64) (int64, error) {
	userID, ok := actor.ID()
	if !ok {
		return 0, apperr.New(apperr.AuthRequired)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0, apperr.Wrap(apperr.InternalError, err)
	}
	if user == nil {
		return 0, apperr.New(apperr.LikesInvalidUserInput)
	}
	if err := s.requireVisiblePin(ctx, actor, pinID); err != nil {
		return 0, err
	}
	return userID, nil
}

func (s *LikeService) requireVisiblePin(ctx context.Context, actor policy.Actor, pinID int64) error {
	pin, err := s.pins.GetVisible(ctx, pinID, actor)
	if err != nil {
		return apperr.Wrap(apperr.InternalError, err)
	}
	if pin == nil {
		return apperr.New(apperr.LikesInvalidPinInput)
	}
	return nil
}

func (s *LikeService) refresh(ctx context.Context, pinID int64) (int, error) {
	count, err := s.pins.RefreshLikeCount(ctx, pinID)
	if err != nil {
		return 0, apperr.Wrap(apperr.LikesUpdatePinFailed, err)
	}
	return count, nil
}
