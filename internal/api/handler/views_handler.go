package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ViewsHandler serves the session-protected back-office pages.
type ViewsHandler struct{}

func NewViewsHandler() *ViewsHandler {
	return &ViewsHandler{}
}

// Dashboard shows the signed-in operator. It must sit behind SessionGate.
func (h *ViewsHandler) Dashboard(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	data := newPageData(c, "Dashboard")
	data.Principal = p
	if data.CurrentUser == nil {
		data.CurrentUser = p.Identity
	}
	return c.Render(http.StatusOK, PageDashboard, data)
}
