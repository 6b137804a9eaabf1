package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pinco/pinco-backend/internal/apperr"
	"github.com/pinco/pinco-backend/internal/auth"
	"github.com/pinco/pinco-backend/internal/db/models"
)

// Session is the credential set handed to a client after join, login or reissue.
type Session struct {
	User         *models.User
	APIKey       string
	AccessToken  string
	RefreshToken string
}

// AuthService owns the credential lifecycle: API key assignment, token issuance, reissue from a
// refresh token and logout revocation.
type AuthService struct {
	users     UserStore
	codec     *auth.TokenCodec
	refresh   auth.RefreshTokenStore
	blacklist auth.Blacklist
}

// NewAuthService creates an AuthService. Nil collaborators fall back to the no-op stores.
func NewAuthService(users UserStore, codec *auth.TokenCodec, refresh auth.RefreshTokenStore, blacklist auth.Blacklist) *AuthService {
	if refresh == nil {
		refresh = auth.NoopRefreshStore{}
	}
	if blacklist == nil {
		blacklist = auth.NoopBlacklist{}
	}
	return &AuthService{users: users, codec: codec, refresh: refresh, blacklist: blacklist}
}

// Codec returns the token codec used for issuance.
func (s *AuthService) Codec() *auth.TokenCodec {
	return s.codec
}

// EnsureAPIKey returns the user's API key, assigning a fresh unique one on first need.
func (s *AuthService) EnsureAPIKey(ctx context.Context, user *models.User) (string, error) {
	if user.HasAPIKey() {
		return user.APIKeyValue(), nil
	}

	key, err := auth.EnsureUniqueAPIKey(ctx, s.users.APIKeyExists)
	if err != nil {
		return "", apperr.Wrap(apperr.InternalError, err)
	}
	if err := s.users.SetAPIKey(ctx, user.ID, key); err != nil {
		return "", apperr.Wrap(apperr.InternalError, err)
	}
	user.APIKey = &key
	return key, nil
}

// IssueAccessToken mints an access token carrying the user's identity.
func (s *AuthService) IssueAccessToken(user *models.User) (string, error) {
	token, err := s.codec.IssueAccess(auth.Principal{ID: user.ID, Email: user.Email, UserName: user.UserName, Role: auth.RoleUser})
	if err != nil {
		return "", apperr.Wrap(apperr.InternalError, err)
	}
	return token, nil
}

// StartSession assigns an API key if needed, issues both tokens and records the refresh token.
func (s *AuthService) StartSession(ctx context.Context, user *models.User) (*Session, error) {
	apiKey, err := s.EnsureAPIKey(ctx, user)
	if err != nil {
		return nil, err
	}

	access, err := s.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := s.codec.IssueRefresh(user.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	if err := s.refresh.Save(ctx, user.ID, refresh, s.codec.RefreshTTL()); err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}

	return &Session{User: user, APIKey: apiKey, AccessToken: access, RefreshToken: refresh}, nil
}

// Login checks the password of an active account and starts a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	if user == nil || user.Deleted {
		return nil, apperr.New(apperr.UserNotFound)
	}
	if !auth.CheckPassword(password, user.Password) {
		return nil, apperr.New(apperr.PasswordNotMatch)
	}
	return s.StartSession(ctx, user)
}

// Reissue exchanges a valid, still-recorded refresh token for a new token pair.
func (s *AuthService) Reissue(ctx context.Context, refreshToken string) (*Session, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, apperr.New(apperr.InvalidAccessToken)
	}
	claims := s.codec.Decode(refreshToken)
	if claims == nil || claims.ID == 0 {
		return nil, apperr.New(apperr.InvalidAccessToken)
	}

	ok, err := s.refresh.Matches(ctx, claims.ID, refreshToken)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	if !ok {
		return nil, apperr.New(apperr.InvalidAccessToken)
	}

	user, err := s.users.GetByID(ctx, claims.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, err)
	}
	if user == nil || user.Deleted {
		return nil, apperr.New(apperr.UserNotFound)
	}
	return s.StartSession(ctx, user)
}

// Logout revokes whatever credentials the client presented. It never fails: revocation problems
// are logged and the client's cookies are cleared regardless.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) {
	if accessToken != "" {
		if ttl := s.codec.RemainingValidity(accessToken); ttl > 0 {
			if err := s.blacklist.Add(ctx, accessToken, ttl); err != nil {
				slog.Warn("failed to blacklist access token", "error", err)
			}
		}
		if claims := s.codec.Decode(accessToken); claims != nil && claims.ID != 0 {
			if err := s.refresh.DeleteByUser(ctx, claims.ID); err != nil {
				slog.Warn("failed to drop refresh token", "user_id", claims.ID, "error", err)
			}
		}
	}

	if refreshToken != "" {
		if err := s.refresh.DeleteByToken(ctx, refreshToken); err != nil {
			slog.Warn("failed to drop refresh token", "error", err)
		}
	}
}

// RevokeUser drops the stored refresh token of a user.
func (s *AuthService) RevokeUser(ctx context.Context, userID int64) error {
	return s.refresh.DeleteByUser(ctx, userID)
}

// VerifyAccess returns the claims of an access token that is valid and not revoked, or nil.
// An error means the blacklist could not be consulted.
func (s *AuthService) VerifyAccess(ctx context.Context, token string) (*auth.Claims, error) {
	claims := s.codec.Decode(token)
	if claims == nil || claims.ID == 0 {
		return nil, nil
	}
	revoked, err := s.blacklist.Contains(ctx, token)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, nil
	}
	return claims, nil
}
