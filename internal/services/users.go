package services

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pinco/pinco-backend/internal/apperr"
	"github.com/pinco/pinco-backend/internal/auth"
	"github.com/pinco/pinco-backend/internal/db"
	"github.com/pinco/pinco-backend/internal/db/models"
	"github.com/pinco/pinco-backend/internal/db/repositories"
	"github.com/pinco/pinco-backend/internal/policy"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,6}$`)

const (
	minPasswordLength = 8
	minUserNameLength = 2
	maxUserNameLength = 20
)

// EditUserInput carries a profile change. Password is the current password and is always required.
type EditUserInput struct {
	Password    string
	NewUserName string
	NewPassword string
}

// MyPage is the account summary.
type MyPage struct {
	Email         string `json:"email"`
	UserName      string `json:"userName"`
	MyPinCount    int    `json:"myPinCount"`
	BookmarkCount int    `json:"bookmarkCount"`
	LikesCount    int    `json:"likesCount"`
}

// MyPins splits a user's pins by visibility.
type MyPins struct {
	PublicPins  []models.Pin `json:"publicPins"`
	PrivatePins []models.Pin `json:"privatePins"`
}

// UserService implements account management.
type UserService struct {
	users     UserStore
	bookmarks BookmarkStore
	pins      *PinService
	likes     *LikeService
	sessions  *AuthService
	tx        db.TxRunner
}

// NewUserService creates a UserService.
func NewUserService(users UserStore, bookmarks BookmarkStore, pins *PinService, likes *LikeService, sessions *AuthService, tx db.TxRunner) *UserService {
	return &UserService{users: users, bookmarks: bookmarks, pins: pins, likes: likes, sessions: sessions, tx: tx}
}

// Join registers an account and starts its first session.
func (s *UserService) Join(ctx context.Context, email, password, userName string) (*Session, error) {
	email = strings.TrimSpace(email)
	userName = strings.TrimSpace(userName)

	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if err := validateUserName(userName); err != nil {
		return nil, err
	}

	taken, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	if taken {
		return nil, apperr.New(apperr.EmailAlreadyExists)
	}
	taken, err = s.users.UserNameTaken(ctx, userName, 0)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	if taken {
		return nil, apperr.New(apperr.NicknameAlreadyExists)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	user := &models.User{Email: email, Password: hash, UserName: userName}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperr.New(apperr.EmailAlreadyExists)
		}
		return nil, apperr.Wrap(apperr.InternalError, err)
	}

	return s.sessions.StartSession(ctx, user)
}

// GetInfo returns the active account of userID.
func (s *UserService) GetInfo(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	if user == nil {
		return nil, apperr.New(apperr.UserNotFound)
	}
	return user, nil
}

// Edit changes the display name and/or password after checking the current password. A name
// equal to the current one or a password equal to the current one does not count as a change.
func (s *UserService) Edit(ctx context.Context, userID int64, in EditUserInput) (*models.User, error) {
	user, err := s.GetInfo(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, apperr.New(apperr.CurrentPasswordRequired)
	}
	if !auth.CheckPassword(in.Password, user.Password) {
		return nil, apperr.New(apperr.PasswordNotMatch)
	}

	newName := strings.TrimSpace(in.NewUserName)
	nameChanged := newName != "" && newName != user.UserName
	passwordChanged := in.NewPassword != "" && !auth.CheckPassword(in.NewPassword, user.Password)
	if !nameChanged && !passwordChanged {
		return nil, apperr.New(apperr.NoFieldsToUpdate)
	}

	if nameChanged {
		if err := validateUserName(newName); err != nil {
			return nil, err
		}
		taken, err := s.users.UserNameTaken(ctx, newName, user.ID)
		if err != nil {
			return nil, apperr.Wrap(apperr.InternalError, err)
		}
		if taken {
			return nil, apperr.New(apperr.NicknameAlreadyExists)
		}
		user.UserName = newName
	}
	if passwordChanged {
		if err := validatePassword(in.NewPassword); err != nil {
			return nil, err
		}
		hash, err := auth.HashPassword(in.NewPassword)
		if err != nil {
			return nil, apperr.Wrap(apperr.InternalError, err)
		}
		user.Password = hash
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	return user, nil
}

// Delete withdraws an account: the user and their pins are soft-deleted, their likes removed
// and their refresh token dropped.
func (s *UserService) Delete(ctx context.Context, userID int64, password string) error {
	user, err := s.GetInfo(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(password, user.Password) {
		return apperr.New(apperr.PasswordNotMatch)
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.users.SoftDelete(ctx, userID); err != nil {
			return apperr.Wrap(apperr.InternalError, err)
		}
		if err := s.pins.SoftDeleteByUser(ctx, userID); err != nil {
			return err
		}
		return s.likes.DeleteWithdrawnUserLikes(ctx, userID)
	})
	if err != nil {
		return err
	}

	if err := s.sessions.RevokeUser(ctx, userID); err != nil {
		slog.Warn("failed to drop refresh token of withdrawn user", "user_id", userID, "error", err)
	}
	return nil
}

// MyPage summarizes the account: pin count, active bookmark count and likes received.
func (s *UserService) MyPage(ctx context.Context, userID int64) (*MyPage, error) {
	user, err := s.GetInfo(ctx, userID)
	if err != nil {
		return nil, err
	}
	pins, err := s.pins.ListOwn(ctx, userID)
	if err != nil {
		return nil, err
	}
	bookmarks, err := s.bookmarks.CountByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}

	return &MyPage{
		Email:         user.Email,
		UserName:      user.UserName,
		MyPinCount:    len(pins),
		BookmarkCount: bookmarks,
		LikesCount:    CountForPins(pins),
	}, nil
}

// MyPins returns the user's own pins split into public and private.
func (s *UserService) MyPins(ctx context.Context, userID int64) (*MyPins, error) {
	if _, err := s.GetInfo(ctx, userID); err != nil {
		return nil, err
	}
	pins, err := s.pins.ListOwn(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := &MyPins{PublicPins: []models.Pin{}, PrivatePins: []models.Pin{}}
	for _, p := range pins {
		if p.IsPublic {
			out.PublicPins = append(out.PublicPins, p)
		} else {
			out.PrivatePins = append(out.PrivatePins, p)
		}
	}
	return out, nil
}

// MyBookmarks returns the pins of the user's active bookmarks.
func (s *UserService) MyBookmarks(ctx context.Context, userID int64) ([]models.Pin, error) {
	if _, err := s.GetInfo(ctx, userID); err != nil {
		return nil, err
	}
	list, err := s.bookmarks.ListByUser(ctx, userID, policy.UserActor(userID))
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}

	pins := make([]models.Pin, 0, len(list))
	for _, b := range list {
		if b.Pin != nil {
			pins = append(pins, *b.Pin)
		}
	}
	return pins, nil
}

func validateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return apperr.New(apperr.InvalidEmailFormat)
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return apperr.New(apperr.InvalidPasswordFormat)
	}
	return nil
}

func validateUserName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < minUserNameLength || n > maxUserNameLength {
		return apperr.New(apperr.InvalidUsernameFormat)
	}
	return nil
}
