package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/npezzotti/go-messenger/internal/chat"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func NewBadRequestError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusBadRequest,
		Message:    lower(http.StatusText(http.StatusBadRequest)),
	}
}

func NewNotFoundError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusNotFound,
		Message:    lower(http.StatusText(http.StatusNotFound)),
	}
}

func NewInternalServerError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusInternalServerError,
		Message:    lower(http.StatusText(http.StatusInternalServerError)),
		Err:        err,
	}
}

func NewUnauthorizedError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusUnauthorized,
		Message:    lower(http.StatusText(http.StatusUnauthorized)),
	}
}

func NewForbiddenError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusForbidden,
		Message:    lower(http.StatusText(http.StatusForbidden)),
	}
}

func NewMethodNotAllowedError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusMethodNotAllowed,
		Message:    lower(http.StatusText(http.StatusMethodNotAllowed)),
	}
}

// fromChatError maps a lifecycle failure onto the HTTP surface. The
// domain message is kept for client-addressable failures; internal
// detail stays server-side.
func fromChatError(err error) *ApiError {
	switch chat.Kind(err) {
	case chat.KindNotFound:
		return &ApiError{StatusCode: http.StatusNotFound, Message: err.Error()}
	case chat.KindNotAuthorized:
		return &ApiError{StatusCode: http.StatusForbidden, Message: err.Error()}
	case chat.KindValidation:
		return &ApiError{StatusCode: http.StatusBadRequest, Message: err.Error()}
	case chat.KindUnauthenticated:
		return NewUnauthorizedError()
	default:
		return NewInternalServerError(err)
	}
}
