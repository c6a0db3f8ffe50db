package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/patient-records/internal/apperr"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StatusOf maps an error kind to its HTTP status. Unknown kinds are 500.
func StatusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.MissingAuthorization, apperr.MalformedToken, apperr.WrongPassword, apperr.RefreshTokenInvalid:
		return http.StatusUnauthorized
	case apperr.InsufficientRole, apperr.ForbiddenOwnership, apperr.AccountDeactivated:
		return http.StatusForbidden
	case apperr.PrincipalNotFound, apperr.NotFound:
		return http.StatusNotFound
	case apperr.DuplicateUsername, apperr.DuplicateEmail:
		return http.StatusConflict
	case apperr.WeakPassword, apperr.LeakedPassword, apperr.InvalidRoleValue, apperr.InvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// kindOfStatus names the errors echo raises itself (unknown route, bad
// method, body too large) so they render like ours.
func kindOfStatus(code int) string {
	switch code {
	case http.StatusNotFound:
		return string(apperr.NotFound)
	case http.StatusUnauthorized:
		return string(apperr.MissingAuthorization)
	case http.StatusBadRequest:
		return string(apperr.InvalidInput)
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case http.StatusTooManyRequests:
		return "TOO_MANY_REQUESTS"
	default:
		return string(apperr.Internal)
	}
}

// ErrorHandler is the echo.HTTPErrorHandler of the API. It is the only
// place where an error kind becomes a status code. Internal errors are
// logged with their context and rendered without it.
func ErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		kind := apperr.KindOf(err)
		status := StatusOf(kind)
		body := errorBody{Error: string(kind), Message: err.Error()}

		// errors raised by echo itself carry no kind
		var he *echo.HTTPError
		if kind == apperr.Internal && errors.As(err, &he) {
			status = he.Code
			body = errorBody{Error: kindOfStatus(he.Code), Message: fmt.Sprint(he.Message)}
		}

		if status >= http.StatusInternalServerError {
			log.Error().Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
			body.Message = "internal server error"
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Error().Err(err).Msg("write error response")
		}
	}
}
