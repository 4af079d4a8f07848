// Package export turns the current editor state into a downloadable PNG.
package export

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"

	"github.com/eringen/posterkit/apperr"
	"github.com/eringen/posterkit/compositor"
	"github.com/eringen/posterkit/poster"
)

const (
	// Filename is the name every exported poster is downloaded as.
	Filename    = "poster.png"
	ContentType = "image/png"
)

// File is an encoded export ready to be served or saved.
type File struct {
	Name        string
	ContentType string
	Data        []byte
	Width       int
	Height      int
}

// Pipeline renders and encodes posters.
type Pipeline struct {
	compositor *compositor.Compositor
	encoder    png.Encoder
}

// NewPipeline creates a Pipeline backed by c.
func NewPipeline(c *compositor.Compositor) *Pipeline {
	return &Pipeline{
		compositor: c,
		encoder:    png.Encoder{CompressionLevel: png.BestSpeed},
	}
}

// Export composites the poster and encodes it once every layer has been
// drawn. Without a background image nothing is exported and the error
// carries apperr.CodeMissingImage.
func (p *Pipeline) Export(ctx context.Context, tpl *poster.Template, bg *poster.Resource, st poster.State) (*File, error) {
	if bg.Empty() {
		return nil, apperr.New(apperr.CodeMissingImage, "upload an image before exporting")
	}
	if tpl == nil {
		return nil, apperr.New(apperr.CodeMissingTemplate, "select a template before exporting")
	}

	img, err := p.compositor.Render(ctx, tpl, bg, st).Wait(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := p.encoder.Encode(&buf, img); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "encode poster")
	}
	b := img.Bounds()
	return &File{
		Name:        Filename,
		ContentType: ContentType,
		Data:        buf.Bytes(),
		Width:       b.Dx(),
		Height:      b.Dy(),
	}, nil
}

// Save writes f into dir and returns the written path.
func (f *File) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, f.Name)
	if err := os.WriteFile(path, f.Data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
