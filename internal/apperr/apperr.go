// Package apperr defines the numeric error catalog shared by services, middleware and handlers.
// Every failure a client can observe is one of the Code values below; the HTTP layer renders
// them as {"errorCode": "<code>", "msg": "<message>"} with the paired status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Code is a stable, client-visible failure kind.
type Code struct {
	Num     int
	Status  int
	Message string
}

// String returns the numeric code as it appears in response bodies.
func (c Code) String() string {
	return strconv.Itoa(c.Num)
}

var (
	// Common
	Success         = Code{200, http.StatusOK, "Request processed successfully."}
	InvalidValue    = Code{400, http.StatusBadRequest, "Invalid input value."}
	TooManyRequests = Code{429, http.StatusTooManyRequests, "Too many requests."}
	InternalError   = Code{500, http.StatusInternalServerError, "Internal server error."}

	// Pin
	InvalidPinInput     = Code{1001, http.StatusBadRequest, "Invalid pin input."}
	PinNotFound         = Code{1002, http.StatusNotFound, "Pin does not exist."}
	PinsNotFound        = Code{1003, http.StatusNotFound, "No pins match the given conditions."}
	PinCreateFailed     = Code{1004, http.StatusInternalServerError, "Failed to create pin."}
	InvalidPinContent   = Code{1005, http.StatusBadRequest, "Content is required."}
	InvalidPinLatitude  = Code{1006, http.StatusBadRequest, "A valid latitude is required."}
	InvalidPinLongitude = Code{1007, http.StatusBadRequest, "A valid longitude is required."}
	PinUpdateFailed     = Code{1008, http.StatusInternalServerError, "Failed to update pin."}
	PinDeleteFailed     = Code{1009, http.StatusInternalServerError, "Failed to delete pin."}
	PinNoPermission     = Code{1010, http.StatusForbidden, "No permission to modify this pin."}

	// User
	InvalidEmailFormat      = Code{2001, http.StatusBadRequest, "Invalid email format."}
	InvalidPasswordFormat   = Code{2002, http.StatusBadRequest, "Password does not meet the format requirements."}
	InvalidUsernameFormat   = Code{2003, http.StatusBadRequest, "Username does not meet the format requirements."}
	EmailAlreadyExists      = Code{2004, http.StatusConflict, "Email already exists."}
	NicknameAlreadyExists   = Code{2005, http.StatusConflict, "Username already exists."}
	UserNotFound            = Code{2006, http.StatusNotFound, "User does not exist."}
	PasswordNotMatch        = Code{2007, http.StatusUnauthorized, "Password does not match."}
	UserInfoNotFound        = Code{2008, http.StatusNotFound, "User information not found."}
	CurrentPasswordRequired = Code{2009, http.StatusBadRequest, "Current password is required."}
	CurrentPasswordNotMatch = Code{2010, http.StatusUnauthorized, "Current password does not match."}
	NoFieldsToUpdate        = Code{2011, http.StatusBadRequest, "Nothing to update."}
	InvalidAPIKey           = Code{2012, http.StatusUnauthorized, "Invalid API key."}
	InvalidAccessToken      = Code{2013, http.StatusUnauthorized, "Invalid access token."}
	AuthRequired            = Code{2014, http.StatusUnauthorized, "Login required."}
	TokenExpired            = Code{2015, http.StatusUnauthorized, "Access token has expired."}
	AccessDenied            = Code{2016, http.StatusForbidden, "Access denied."}

	// Tag
	TagNotFound         = Code{3001, http.StatusNotFound, "Tag does not exist."}
	TagAlreadyExists    = Code{3002, http.StatusConflict, "Tag already exists."}
	TagLinkNotFound     = Code{3003, http.StatusNotFound, "Tag link does not exist."}
	TagAlreadyLinked    = Code{3004, http.StatusConflict, "Tag is already linked to this pin."}
	TagCreateFailed     = Code{3005, http.StatusInternalServerError, "Failed to create tag."}
	TagPinNotFound      = Code{3006, http.StatusNotFound, "Pin not found."}
	PinTagListEmpty     = Code{3007, http.StatusNotFound, "No tags are linked to this pin."}
	PinTagDeleteFailed  = Code{3008, http.StatusInternalServerError, "Failed to remove tag."}
	PinTagRestoreFailed = Code{3009, http.StatusInternalServerError, "Failed to restore tag."}
	InvalidTagKeyword   = Code{3010, http.StatusBadRequest, "Tag keyword is required."}
	InvalidTagInput     = Code{3011, http.StatusBadRequest, "Invalid tag input."}
	TagPostsNotFound    = Code{3012, http.StatusNotFound, "No pins carry all of these tags."}

	// Bookmark
	BookmarkNotFound         = Code{4001, http.StatusNotFound, "Bookmark does not exist."}
	BookmarkAlreadyExists    = Code{4002, http.StatusConflict, "Pin is already bookmarked."}
	BookmarksNotFound        = Code{4003, http.StatusNoContent, "No bookmarks found."}
	BookmarkCreateFailed     = Code{4004, http.StatusInternalServerError, "Failed to create bookmark."}
	BookmarkDeleteFailed     = Code{4005, http.StatusInternalServerError, "Failed to delete bookmark."}
	BookmarkRestoreFailed    = Code{4006, http.StatusInternalServerError, "Failed to restore bookmark."}
	BookmarkInvalidUserInput = Code{4007, http.StatusNotFound, "Invalid user."}

	// Likes
	LikesInvalidUserInput = Code{5001, http.StatusNotFound, "Invalid user."}
	LikesInvalidPinInput  = Code{5002, http.StatusNotFound, "Invalid pin."}
	LikesCreateFailed     = Code{5003, http.StatusInternalServerError, "Failed to like pin."}
	LikesRevokeFailed     = Code{5004, http.StatusInternalServerError, "Failed to revoke like."}
	LikesUpdatePinFailed  = Code{5005, http.StatusNotFound, "Failed to refresh like count."}
	LikesNotFound         = Code{5006, http.StatusNotFound, "Like does not exist."}
)

// Error is a catalog failure with an optional underlying cause. The cause is kept for
// logging and errors.Is/As; it is never rendered to clients.
type Error struct {
	Code  Code
	cause error
}

// New returns an Error for code with no cause.
func New(code Code) *Error {
	return &Error{Code: code}
}

// Wrap returns an Error for code that retains err as its cause.
func Wrap(code Code, err error) *Error {
	return &Error{Code: code, cause: err}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%d %s: %v", e.Code.Num, e.Code.Message, e.cause)
	}
	return fmt.Sprintf("%d %s", e.Code.Num, e.Code.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// From extracts the first *Error in err's chain.
func From(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Is reports whether err carries the given catalog code.
func Is(err error, code Code) bool {
	ae, ok := From(err)
	return ok && ae.Code.Num == code.Num
}
