package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/genserve/internal/modelhost"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

const (
	typeInvalidRequest = "invalid_request_error"
	typeGeneration     = "generation_error"
	typeServer         = "server_error"
)

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type ErrorResponse struct {
	Error ResponseError `json:"error"`
}

// statusFor maps a host error to its HTTP status and error type.
func statusFor(err error) (int, string, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, modelhost.ErrInvalidInput):
		return http.StatusBadRequest, typeInvalidRequest, err.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, typeServer, "request cancelled before generation finished"
	default:
		return http.StatusInternalServerError, typeGeneration, "text generation failed"
	}
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return c.JSON(status, ErrorResponse{
		Error: ResponseError{Message: msg, Type: errType},
	})
}
