package posterkit

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/eringen/posterkit/apperr"
	"github.com/eringen/posterkit/drag"
	"github.com/eringen/posterkit/editor"
	"github.com/eringen/posterkit/preview"
)

func (a *App) handleEditor(c echo.Context) error {
	s, err := a.editorSession(c)
	if err != nil {
		return err
	}
	m, err := a.previewModel(c, s.Snapshot())
	if err != nil {
		return err
	}
	return Render(c, preview.Page(m))
}

func (a *App) handleStage(c echo.Context) error {
	s, err := a.editorSession(c)
	if err != nil {
		return err
	}
	m, err := a.previewModel(c, s.Snapshot())
	if err != nil {
		return err
	}
	return Render(c, preview.Stage(m))
}

func (a *App) handleTemplates(c echo.Context) error {
	templates, err := a.Cache.List()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, templates)
}

func (a *App) handleState(c echo.Context) error {
	s, err := a.editorSession(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.Snapshot())
}

// mutate runs fn against the caller's session and responds with the
// resulting snapshot.
func (a *App) mutate(c echo.Context, fn func(*editor.Session) error) error {
	s, err := a.editorSession(c)
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.Snapshot())
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return apperr.Wrap(apperr.CodeInvalidInput, err, "malformed request")
	}
	return nil
}

func (a *App) handleSelectTemplate(c echo.Context) error {
	var req templateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	tpl, err := a.Cache.Get(req.Name)
	if errors.Is(err, ErrNotFound) {
		return apperr.New(apperr.CodeNotFound, "unknown template %q", req.Name)
	}
	if err != nil {
		return err
	}
	return a.mutate(c, func(s *editor.Session) error {
		return s.SelectTemplate(tpl)
	})
}

func (a *App) handleApplyPriceArea(c echo.Context) error {
	return a.mutate(c, (*editor.Session).ApplyPriceArea)
}

func (a *App) handleRemoveBackground(c echo.Context) error {
	var req removeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	key := req.APIKey
	if key == "" {
		key = a.Config.RemoveBgAPIKey
	}
	s, err := a.editorSession(c)
	if err != nil {
		return err
	}
	if err := s.CheckRemoval(key); err != nil {
		return err
	}
	if !a.limiter.Allow(c.RealIP()) {
		return apperr.New(apperr.CodeRateLimited, "too many background removals, please wait a minute")
	}
	if err := s.RemoveBackground(c.Request().Context(), a.Remover, key); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.Snapshot())
}

func (a *App) handleScale(c echo.Context) error {
	var req scaleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return a.mutate(c, func(s *editor.Session) error {
		return s.AdjustImageSize(req.Factor)
	})
}

func (a *App) handleFontSize(c echo.Context) error {
	var req fontSizeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return a.mutate(c, func(s *editor.Session) error {
		switch {
		case req.Size != nil:
			return s.SetFontSize(*req.Size)
		case req.Delta != nil:
			return s.AdjustFontSize(*req.Delta)
		}
		return apperr.New(apperr.CodeInvalidInput, "send either size or delta")
	})
}

func (a *App) handlePrice(c echo.Context) error {
	var req priceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return a.mutate(c, func(s *editor.Session) error {
		if req.Color != nil {
			if err := s.SetPriceColor(*req.Color); err != nil {
				return err
			}
		}
		if req.Price != nil {
			return s.SetPrice(*req.Price)
		}
		return nil
	})
}

func (a *App) handleCenter(c echo.Context) error {
	return a.mutate(c, (*editor.Session).CenterImage)
}

func (a *App) handleToggle(c echo.Context) error {
	s, err := a.editorSession(c)
	if err != nil {
		return err
	}
	name := c.Param("name")
	on, err := s.Toggle(name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toggleResponse{Name: name, On: on})
}

func (a *App) handlePointer(c echo.Context) error {
	var req pointerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return a.mutate(c, func(s *editor.Session) error {
		switch c.Param("phase") {
		case "down":
			subject, err := drag.ParseSubject(req.Subject)
			if err != nil {
				return apperr.Wrap(apperr.CodeInvalidInput, err, "unknown drag subject %q", req.Subject)
			}
			return s.PointerDown(subject, req.pointer())
		case "move":
			s.PointerMove(req.pointer())
		case "up":
			s.PointerUp()
		default:
			return apperr.New(apperr.CodeNotFound, "unknown pointer phase %q", c.Param("phase"))
		}
		return nil
	})
}

// statusFor maps an error code to the HTTP status it is reported with.
func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeInvalidInput:
		return http.StatusBadRequest
	case apperr.CodeMissingImage, apperr.CodeMissingAPIKey, apperr.CodeMissingTemplate,
		apperr.CodeNothingToRender, apperr.CodeDecode:
		return http.StatusUnprocessableEntity
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeRateLimited:
		return http.StatusTooManyRequests
	case apperr.CodeConflict:
		return http.StatusConflict
	case apperr.CodeRemote:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	resp := errorResponse{Error: apperr.UserMessage(err)}
	code := http.StatusInternalServerError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		code = he.Code
		if msg, ok := he.Message.(string); ok {
			resp.Error = msg
		} else {
			resp.Error = http.StatusText(code)
		}
	case apperr.GetCode(err) != "":
		resp.Code = string(apperr.GetCode(err))
		code = statusFor(apperr.GetCode(err))
	}

	entry := a.Log.WithFields(logrus.Fields{
		"status": code,
		"uri":    c.Request().RequestURI,
	}).WithError(err)
	if code >= 500 {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, resp)
}
