// Package users implements the account endpoints under /api/user: registration, sessions,
// profile management and the personal pin views.
package users

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pinco/pinco-backend/internal/api/response"
	"github.com/pinco/pinco-backend/internal/auth"
	"github.com/pinco/pinco-backend/internal/db/models"
	"github.com/pinco/pinco-backend/internal/middleware"
	"github.com/pinco/pinco-backend/internal/policy"
	"github.com/pinco/pinco-backend/internal/services"
)

// AccountService is the account behaviour the handlers need.
type AccountService interface {
	Join(ctx context.Context, email, password, userName string) (*services.Session, error)
	GetInfo(ctx context.Context, userID int64) (*models.User, error)
	Edit(ctx context.Context, userID int64, in services.EditUserInput) (*models.User, error)
	Delete(ctx context.Context, userID int64, password string) error
	MyPage(ctx context.Context, userID int64) (*services.MyPage, error)
	MyPins(ctx context.Context, userID int64) (*services.MyPins, error)
	MyBookmarks(ctx context.Context, userID int64) ([]models.Pin, error)
}

// SessionService is the credential lifecycle the handlers need.
type SessionService interface {
	Login(ctx context.Context, email, password string) (*services.Session, error)
	Reissue(ctx context.Context, refreshToken string) (*services.Session, error)
	Logout(ctx context.Context, accessToken, refreshToken string)
	Codec() *auth.TokenCodec
}

// LikedPins lists the pins a user has liked.
type LikedPins interface {
	PinsLikedByUser(ctx context.Context, actor policy.Actor, userID int64) ([]models.Pin, error)
}

// Handlers serves /api/user.
type Handlers struct {
	accounts      AccountService
	sessions      SessionService
	likes         LikedPins
	secureCookies bool
}

// NewHandlers creates the account handlers. secureCookies forces the Secure cookie attribute.
func NewHandlers(accounts AccountService, sessions SessionService, likes LikedPins, secureCookies bool) *Handlers {
	return &Handlers{accounts: accounts, sessions: sessions, likes: likes, secureCookies: secureCookies}
}

type joinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	UserName string `json:"userName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type reissueRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type editRequest struct {
	Password    string `json:"password"`
	NewUserName string `json:"newUserName"`
	NewPassword string `json:"newPassword"`
}

type deleteRequest struct {
	Password string `json:"password"`
}

// TokenResponse is returned by login and reissue.
type TokenResponse struct {
	APIKey       string `json:"apiKey"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// @Summary      Join
// @Tags         Users
// @Accept       json
// @Produce      json
// @Success      200  {object}  response.Body  "data: models.User"
// @Failure      400  {object}  response.Body  "INVALID_EMAIL_FORMAT / INVALID_PASSWORD_FORMAT / INVALID_USERNAME_FORMAT"
// @Failure      409  {object}  response.Body  "EMAIL_ALREADY_EXISTS / NICKNAME_ALREADY_EXISTS"
// @Router       /api/user/join [post]
func (h *Handlers) Join(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}
	session, err := h.accounts.Join(c.Request.Context(), req.Email, req.Password, req.UserName)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.setSessionCookies(c, session)
	response.OK(c, session.User)
}

// @Summary      Login
// @Tags         Users
// @Accept       json
// @Produce      json
// @Success      200  {object}  response.Body  "data: TokenResponse"
// @Failure      401  {object}  response.Body  "PASSWORD_NOT_MATCH"
// @Failure      404  {object}  response.Body  "USER_NOT_FOUND"
// @Router       /api/user/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}
	session, err := h.sessions.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.setSessionCookies(c, session)
	response.OK(c, tokens(session))
}

// Reissue exchanges a refresh token for a new token pair. The token is read from the body, then
// X-Refresh-Token, then the refreshToken cookie.
// POST /api/user/reissue
func (h *Handlers) Reissue(c *gin.Context) {
	var req reissueRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, err)
			return
		}
	}
	refresh := strings.TrimSpace(req.RefreshToken)
	if refresh == "" {
		refresh = strings.TrimSpace(c.GetHeader(auth.HeaderRefreshToken))
	}
	if refresh == "" {
		if cookie, err := c.Cookie(auth.CookieRefreshToken); err == nil {
			refresh = cookie
		}
	}

	session, err := h.sessions.Reissue(c.Request.Context(), refresh)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.setCookie(c, auth.CookieAccessToken, session.AccessToken, h.sessions.Codec().AccessTTL())
	h.setCookie(c, auth.CookieRefreshToken, session.RefreshToken, h.sessions.Codec().RefreshTTL())
	c.Header(auth.HeaderAuthorization, "Bearer "+session.APIKey+" "+session.AccessToken)
	response.OK(c, tokens(session))
}

// Logout revokes the presented tokens and clears every credential cookie. It always succeeds.
// POST /api/user/logout
func (h *Handlers) Logout(c *gin.Context) {
	access, refresh := auth.ResolveLogoutTokens(c.Request)
	h.sessions.Logout(c.Request.Context(), access, refresh)
	h.clearCookies(c, auth.CookieAccessToken, auth.CookieRefreshToken, auth.CookieAPIKey)
	response.OKWithMessage(c, "Logged out.", nil)
}

// GetInfo returns the caller's account.
// GET /api/user/getInfo
func (h *Handlers) GetInfo(c *gin.Context) {
	p, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}
	user, err := h.accounts.GetInfo(c.Request.Context(), p.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// @Summary      Edit account
// @Tags         Users
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      200  {object}  response.Body  "data: models.User"
// @Failure      400  {object}  response.Body  "CURRENT_PASSWORD_REQUIRED / NO_FIELDS_TO_UPDATE"
// @Failure      401  {object}  response.Body  "PASSWORD_NOT_MATCH"
// @Failure      409  {object}  response.Body  "NICKNAME_ALREADY_EXISTS"
// @Router       /api/user/edit [put]
func (h *Handlers) Edit(c *gin.Context) {
	p, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}
	user, err := h.accounts.Edit(c.Request.Context(), p.ID, services.EditUserInput{
		Password:    req.Password,
		NewUserName: req.NewUserName,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// Delete withdraws the caller's account and expires its cookies.
// DELETE /api/user/delete
func (h *Handlers) Delete(c *gin.Context) {
	p, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}
	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.accounts.Delete(c.Request.Context(), p.ID, req.Password); err != nil {
		response.Error(c, err)
		return
	}
	h.clearCookies(c, auth.CookieAccessToken, auth.CookieAPIKey)
	response.OKWithMessage(c, "Account deleted.", nil)
}

// PinsLikedByUser lists the pins a user liked that the caller may see.
// GET /api/user/:userId/likespins
func (h *Handlers) PinsLikedByUser(c *gin.Context) {
	userID, ok := response.PathID(c, "userId")
	if !ok {
		return
	}
	pins, err := h.likes.PinsLikedByUser(c.Request.Context(), middleware.ActorFrom(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, pins)
}

// MyPage returns the caller's account summary.
// GET /api/user/mypage
func (h *Handlers) MyPage(c *gin.Context) {
	p, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}
	page, err := h.accounts.MyPage(c.Request.Context(), p.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, page)
}

// MyPins returns the caller's pins split by visibility.
// GET /api/user/mypin
func (h *Handlers) MyPins(c *gin.Context) {
	p, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}
	pins, err := h.accounts.MyPins(c.Request.Context(), p.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, pins)
}

// MyBookmarks returns the pins the caller bookmarked.
// GET /api/user/mybookmark
func (h *Handlers) MyBookmarks(c *gin.Context) {
	p, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}
	pins, err := h.accounts.MyBookmarks(c.Request.Context(), p.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"bookmarkList": pins})
}

// Register mounts the handlers on the /api/user group. guards run in front of join, login and
// reissue only.
func (h *Handlers) Register(g *gin.RouterGroup, guards ...gin.HandlerFunc) {
	guarded := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, guards...), handler)
	}
	g.POST("/join", guarded(h.Join)...)
	g.POST("/login", guarded(h.Login)...)
	g.POST("/logout", h.Logout)
	g.POST("/reissue", guarded(h.Reissue)...)
	g.GET("/getInfo", h.GetInfo)
	g.PUT("/edit", h.Edit)
	g.DELETE("/delete", h.Delete)
	g.GET("/:userId/likespins", h.PinsLikedByUser)
	g.GET("/mypage", h.MyPage)
	g.GET("/mypin", h.MyPins)
	g.GET("/mybookmark", h.MyBookmarks)
}

func tokens(s *services.Session) TokenResponse {
	return TokenResponse{APIKey: s.APIKey, AccessToken: s.AccessToken, RefreshToken: s.RefreshToken}
}

// setSessionCookies stores a fresh session. The api key cookie lives for the browser session.
func (h *Handlers) setSessionCookies(c *gin.Context, s *services.Session) {
	codec := h.sessions.Codec()
	h.setCookie(c, auth.CookieAPIKey, s.APIKey, 0)
	h.setCookie(c, auth.CookieAccessToken, s.AccessToken, codec.AccessTTL())
	h.setCookie(c, auth.CookieRefreshToken, s.RefreshToken, codec.RefreshTTL())
}

func (h *Handlers) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	secure := h.secureCookies || auth.RequestIsSecure(c.Request)
	http.SetCookie(c.Writer, auth.NewCookie(name, value, ttl, secure))
}

func (h *Handlers) clearCookies(c *gin.Context, names ...string) {
	for _, name := range names {
		h.setCookie(c, name, "", 0)
	}
}
