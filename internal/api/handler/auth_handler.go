package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/logiflow/logiflow/internal/api/metrics"
	"github.com/logiflow/logiflow/internal/core/domain"
	"github.com/logiflow/logiflow/internal/core/ports"
)

// AuthHandler serves the stateless JSON login and signup endpoints.
type AuthHandler struct {
	authService ports.AuthService
	log         zerolog.Logger
}

func NewAuthHandler(authService ports.AuthService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

type signupRequest struct {
	Name     string `json:"name" validate:"required" example:"Ana Operadora"`
	Email    string `json:"email" validate:"required" example:"ana@logiflow.io"`
	Password string `json:"password" validate:"notblank,min=6,maxbytes=72" example:"s3cret!"`
}

type loginRequest struct {
	Email    string `json:"email" example:"ana@logiflow.io"`
	Password string `json:"password" example:"s3cret!"`
}

type authResponse struct {
	Token string           `json:"token"`
	User  *domain.Identity `json:"user"`
}

// Signup creates an operator account and returns a bearer token for it.
//
// @Summary      Register a new operator
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signupRequest  true  "Signup payload"
// @Success      201   {object}  authResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /auth/api/signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		metrics.SignupsTotal.WithLabelValues(metrics.ChannelAPI, metrics.ResultInvalid).Inc()
		return echo.NewHTTPError(http.StatusBadRequest, MsgInvalidPayload)
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	if err := c.Validate(&req); err != nil {
		metrics.SignupsTotal.WithLabelValues(metrics.ChannelAPI, metrics.ResultInvalid).Inc()
		return err
	}

	start := time.Now()
	identity, err := h.authService.Register(c.Request().Context(), ports.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		result := metrics.ResultError
		switch {
		case errors.Is(err, domain.ErrEmailInUse):
			result = metrics.ResultConflict
		case errors.Is(err, domain.ErrInvalidInput):
			result = metrics.ResultInvalid
		}
		metrics.SignupsTotal.WithLabelValues(metrics.ChannelAPI, result).Inc()
		return err
	}
	metrics.ObserveSince(metrics.SignupDuration, start)

	token, err := h.authService.IssueToken(identity)
	if err != nil {
		return err
	}

	metrics.SignupsTotal.WithLabelValues(metrics.ChannelAPI, metrics.ResultSuccess).Inc()
	metrics.TokensIssuedTotal.Inc()
	return c.JSON(http.StatusCreated, authResponse{Token: token, User: identity})
}

// Login authenticates an operator and returns a bearer token.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /auth/api/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.ChannelAPI, metrics.ResultInvalid).Inc()
		return echo.NewHTTPError(http.StatusBadRequest, MsgInvalidPayload)
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.ChannelAPI, metrics.ResultInvalid).Inc()
		return echo.NewHTTPError(http.StatusBadRequest, MsgEmailPasswordRequired)
	}

	identity, err := h.authService.Login(c.Request().Context(), email, req.Password)
	if err != nil {
		result := metrics.ResultError
		if errors.Is(err, domain.ErrInvalidCredentials) {
			result = metrics.ResultRejected
		}
		metrics.LoginAttemptsTotal.WithLabelValues(metrics.ChannelAPI, result).Inc()
		return err
	}

	token, err := h.authService.IssueToken(identity)
	if err != nil {
		return err
	}

	metrics.LoginAttemptsTotal.WithLabelValues(metrics.ChannelAPI, metrics.ResultSuccess).Inc()
	metrics.TokensIssuedTotal.Inc()
	h.log.Info().Int64("user_id", identity.ID).Str("channel", metrics.ChannelAPI).Msg("user logged in")
	return c.JSON(http.StatusOK, authResponse{Token: token, User: identity})
}
