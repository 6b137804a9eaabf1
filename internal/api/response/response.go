// Package response renders the JSON envelope every API endpoint answers with:
//
//	{"errorCode": "200", "msg": "...", "data": ...}
//
// Failures carry the numeric catalog code and its message, never the underlying cause.
package response

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/pinco/pinco-backend/internal/apperr"
)

// Body is the response envelope.
type Body struct {
	ErrorCode string `json:"errorCode"`
	Msg       string `json:"msg"`
	Data      any    `json:"data,omitempty"`
}

// OK writes a 200 envelope carrying data.
func OK(c *gin.Context, data any) {
	OKWithMessage(c, apperr.Success.Message, data)
}

// OKWithMessage writes a 200 envelope with a custom message.
func OKWithMessage(c *gin.Context, msg string, data any) {
	c.JSON(http.StatusOK, Body{ErrorCode: apperr.Success.String(), Msg: msg, Data: data})
}

// Abort writes code as the response and stops the handler chain.
func Abort(c *gin.Context, code apperr.Code) {
	if code.Status == http.StatusNoContent {
		c.AbortWithStatus(code.Status)
		return
	}
	c.AbortWithStatusJSON(code.Status, Body{ErrorCode: code.String(), Msg: code.Message})
}

// Error renders err. Catalog errors keep their code; request binding failures are mapped field by
// field; anything else is logged and answered with INTERNAL_ERROR.
func Error(c *gin.Context, err error) {
	if ae, ok := apperr.From(err); ok {
		if cause := ae.Unwrap(); cause != nil {
			slog.Error("request failed",
				"code", ae.Code.Num,
				"path", c.FullPath(),
				"request_id", c.GetString("request_id"),
				"error", cause)
		}
		Abort(c, ae.Code)
		return
	}

	if code, ok := BindingCode(err); ok {
		Abort(c, code)
		return
	}

	slog.Error("unhandled request error", "path", c.FullPath(), "request_id", c.GetString("request_id"), "error", err)
	Abort(c, apperr.InternalError)
}

// fieldCodes maps request fields to their dedicated validation codes.
var fieldCodes = map[string]apperr.Code{
	"Latitude":  apperr.InvalidPinLatitude,
	"Longitude": apperr.InvalidPinLongitude,
	"Content":   apperr.InvalidPinContent,
}

// BindingCode reports the catalog code for a gin binding failure. Validation errors map the first
// failing field through fieldCodes (INVALID_VALUE otherwise); malformed JSON and unparsable
// values are INVALID_VALUE.
func BindingCode(err error) (apperr.Code, bool) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if code, ok := fieldCodes[verrs[0].Field()]; ok {
			return code, true
		}
		return apperr.InvalidValue, true
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		if typeErr != nil {
			if code, ok := fieldCodes[capitalize(typeErr.Field)]; ok {
				return code, true
			}
		}
		return apperr.InvalidValue, true
	}

	var numErr *strconv.NumError
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.As(err, &numErr) {
		return apperr.InvalidValue, true
	}
	return apperr.Code{}, false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}

// PathID parses the positive integer path parameter name, aborting with INVALID_VALUE otherwise.
func PathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		Abort(c, apperr.InvalidValue)
		return 0, false
	}
	return id, true
}
