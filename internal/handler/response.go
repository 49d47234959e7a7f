package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/messaging-api/pkg/errors"
	"github.com/jwalitptl/messaging-api/pkg/validator"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// StatusOf maps an error code onto an HTTP status.
func StatusOf(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrBadRequest:
		return http.StatusBadRequest
	case apperrors.ErrUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrForbidden:
		return http.StatusForbidden
	case apperrors.ErrConflict:
		return http.StatusConflict
	case apperrors.ErrThreadIntegrity:
		return http.StatusUnprocessableEntity
	case apperrors.ErrTransaction:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes the error envelope for err and records err on the
// context for the request logger.
func RespondError(c *gin.Context, err error) {
	_ = c.Error(err)

	if fields, ok := validator.Translate(err); ok {
		c.JSON(http.StatusBadRequest, &Response{
			Status:  "error",
			Message: "validation failed",
			Data:    fields,
		})
		return
	}

	status := StatusOf(apperrors.CodeOf(err))
	message := "internal server error"
	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) && status != http.StatusInternalServerError {
		message = appErr.Message
	}
	c.JSON(status, NewErrorResponse(message))
}

// BadRequest answers a malformed request that never reached a service.
func BadRequest(c *gin.Context, err error) {
	if _, ok := validator.Translate(err); ok {
		RespondError(c, err)
		return
	}
	RespondError(c, apperrors.BadRequest("invalid request body", err))
}
