package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/logiflow/logiflow/internal/api/middleware"
	"github.com/logiflow/logiflow/internal/core/domain"
)

// ctxPrincipal extracts the principal attached by a gate. Its absence means a
// route was mounted without one, which is answered 401 rather than trusted.
func ctxPrincipal(c echo.Context) (domain.Principal, error) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return domain.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, MsgUnauthorized)
	}
	return p, nil
}

// pageData is the view model shared by every template.
type pageData struct {
	Title       string
	CurrentUser *domain.Identity
	Form        formValues
	Errors      []string
	Principal   domain.Principal
	CSRFToken   string
}

type formValues struct {
	Name  string
	Email string
	Next  string
}

func newPageData(c echo.Context, title string) pageData {
	return pageData{
		Title:       title,
		CurrentUser: middleware.CurrentUserFrom(c),
		CSRFToken:   middleware.CSRFToken(c),
	}
}
