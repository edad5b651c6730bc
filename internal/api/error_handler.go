package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/logiflow/logiflow/internal/api/handler"
	"github.com/logiflow/logiflow/internal/core/domain"
)

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their HTTP status and message code.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"message": "<CODE>", "errors": [...]}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, handler.ErrorResponse) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, handler.ErrorResponse{Message: handler.MsgInvalidPayload, Errors: ve.Violations}
	}

	// Known domain errors → deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, handler.ErrorResponse{Message: handler.MsgInvalidPayload}
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, handler.ErrorResponse{Message: handler.MsgInvalidCredentials}
	case errors.Is(err, domain.ErrEmailInUse):
		return http.StatusConflict, handler.ErrorResponse{Message: handler.MsgEmailInUse}
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, handler.ErrorResponse{Message: handler.MsgUnauthorized}
	case errors.Is(err, domain.ErrMissingToken),
		errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrExpiredToken):
		return http.StatusUnauthorized, handler.ErrorResponse{Message: handler.MsgInvalidToken}
	}

	// Echo's own errors (router 404/405, explicit echo.NewHTTPError).
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code < http.StatusInternalServerError {
		return he.Code, handler.ErrorResponse{Message: httpErrorCode(he)}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, handler.ErrorResponse{Message: handler.MsgInternalError}
}

// httpErrorCode keeps a message that is already a code (e.g. INVALID_PAYLOAD)
// and derives one from the status text otherwise.
func httpErrorCode(he *echo.HTTPError) string {
	if msg, ok := he.Message.(string); ok && isMessageCode(msg) {
		return msg
	}
	if he.Code == http.StatusNotFound {
		return handler.MsgNotFound
	}
	return strings.ToUpper(strings.ReplaceAll(http.StatusText(he.Code), " ", "_"))
}

func isMessageCode(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && r != '_' {
			return false
		}
	}
	return true
}
