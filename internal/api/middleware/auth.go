package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/logiflow/logiflow/internal/api/metrics"
	"github.com/logiflow/logiflow/internal/core/domain"
	"github.com/logiflow/logiflow/internal/core/ports"
	"github.com/logiflow/logiflow/internal/core/service"
)

// TokenVerifier is the part of the token service the bearer gate needs.
type TokenVerifier interface {
	Verify(token string) (*service.TokenClaims, error)
}

// BearerGate authenticates stateless API callers. The token is taken from
// "Authorization: Bearer <t>" and, failing that, from the token query
// parameter. The user is re-resolved on every request so a deleted account
// stops working before its token expires.
func BearerGate(tokens TokenVerifier, users ports.IdentityResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := extractBearerToken(c)
			if raw == "" {
				metrics.GateRejectionsTotal.WithLabelValues("bearer", "no_token").Inc()
				return domain.ErrUnauthorized
			}

			claims, err := tokens.Verify(raw)
			if err != nil {
				metrics.GateRejectionsTotal.WithLabelValues("bearer", "invalid_token").Inc()
				return err
			}

			identity, err := resolve(c.Request().Context(), users, claims.ID)
			if err != nil {
				if errors.Is(err, domain.ErrUserNotFound) {
					metrics.GateRejectionsTotal.WithLabelValues("bearer", "user_gone").Inc()
					return domain.ErrUnauthorized
				}
				return err
			}

			SetPrincipal(c, domain.Principal{Kind: domain.AuthKindBearer, Identity: identity})
			return next(c)
		}
	}
}

// extractBearerToken prefers the Authorization header. A Bearer header with
// an empty credential is treated as no token at all.
func extractBearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header != "" {
		scheme, credential, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(credential)
		}
	}
	return strings.TrimSpace(c.QueryParam("token"))
}

func resolve(ctx context.Context, users ports.IdentityResolver, id int64) (*domain.Identity, error) {
	identity, err := users.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, domain.ErrUserNotFound
	}
	return identity, nil
}
