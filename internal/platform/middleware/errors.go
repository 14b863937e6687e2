package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medvault/medvault/pkg/apperrors"
)

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorHandler translates domain errors into HTTP responses in one place.
// AppError kinds map to their status codes; echo.HTTPError passes through;
// anything else is a 500 with the cause logged, never leaked.
func ErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			status int
			body   errorResponse
		)

		var appErr *apperrors.AppError
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &appErr):
			status = appErr.StatusCode
			body = errorResponse{Code: appErr.Code, Message: appErr.Message}
		case errors.As(err, &httpErr):
			status = httpErr.Code
			msg, ok := httpErr.Message.(string)
			if !ok {
				msg = http.StatusText(status)
			}
			body = errorResponse{Code: http.StatusText(status), Message: msg}
		default:
			status = http.StatusInternalServerError
			body = errorResponse{Code: "INTERNAL", Message: "internal server error"}
		}

		if status >= 500 {
			log.Error().
				Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Str("request_id", GetRequestID(c)).
				Msg("request failed")
		}

		body.RequestID = GetRequestID(c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}
