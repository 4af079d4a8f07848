package posterkit

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/eringen/posterkit/apperr"
	"github.com/eringen/posterkit/editor"
	"github.com/eringen/posterkit/export"
)

func backgroundURL(version int) string {
	return "/editor/background?v=" + strconv.Itoa(version)
}

// readUpload reads the multipart "image" field fully into memory.
func (a *App) readUpload(c echo.Context) ([]byte, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidInput, err, "no image file provided")
	}
	limit := a.Config.MaxUploadSize
	if file.Size > limit {
		return nil, apperr.New(apperr.CodeInvalidInput, "file too large (max %dMB)", limit>>20)
	}

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return nil, fmt.Errorf("posterkit: read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, apperr.New(apperr.CodeInvalidInput, "file too large (max %dMB)", limit>>20)
	}
	return data, nil
}

func (a *App) handleUpload(c echo.Context) error {
	data, err := a.readUpload(c)
	if err != nil {
		return err
	}
	return a.mutate(c, func(s *editor.Session) error {
		if err := s.Upload(data); err != nil {
			return err
		}
		a.Log.WithFields(logrus.Fields{
			"session": s.ID,
			"bytes":   len(data),
		}).Info("background uploaded")
		return nil
	})
}

func (a *App) handleBackground(c echo.Context) error {
	s, err := a.editorSession(c)
	if err != nil {
		return err
	}
	bg, version := s.Background()
	if bg.Empty() {
		return apperr.New(apperr.CodeNotFound, "no background image")
	}
	etag := fmt.Sprintf(`"%s-%d"`, s.ID, version)
	c.Response().Header().Set("ETag", etag)
	if c.Request().Header.Get("If-None-Match") == etag {
		return c.NoContent(http.StatusNotModified)
	}
	return c.Blob(http.StatusOK, bg.ContentType, bg.Data)
}

// handleExport downloads the composited poster. Without a background
// there is nothing to export and the response is empty.
func (a *App) handleExport(c echo.Context) error {
	s, err := a.editorSession(c)
	if err != nil {
		return err
	}
	f, err := s.Export(c.Request().Context(), a.Exporter)
	if apperr.Is(err, apperr.CodeMissingImage) || apperr.Is(err, apperr.CodeNothingToRender) {
		return c.NoContent(http.StatusNoContent)
	}
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, f.Name))
	return c.Blob(http.StatusOK, export.ContentType, f.Data)
}
