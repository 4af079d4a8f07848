package posterkit

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/posterkit/editor"
	"github.com/eringen/posterkit/preview"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// previewModel builds what the preview components draw for one session.
func (a *App) previewModel(c echo.Context, snap editor.Snapshot) (preview.Model, error) {
	templates, err := a.Cache.List()
	if err != nil {
		return preview.Model{}, err
	}
	m := preview.Model{
		Template:      snap.Template,
		Templates:     templates,
		State:         snap.State,
		DraggingBg:    snap.DraggingBg,
		DraggingPrice: snap.DraggingPrice,
		CSRFToken:     CsrfToken(c),
	}
	if snap.HasImage {
		m.BackgroundURL = backgroundURL(snap.Version)
	}
	return m, nil
}
