package compositor

import (
	"bytes"
	"context"
	"image"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/eringen/posterkit/apperr"
	"github.com/eringen/posterkit/poster"
)

// Loader resolves and decodes an image reference such as a template
// overlay URI.
type Loader interface {
	Load(ctx context.Context, uri string) (image.Image, error)
}

// ResourceLoader loads data: URIs, http(s) URLs and files in FS.
// Local references have Prefix stripped before being looked up, so
// "/public/overlays/1.png" with Prefix "/public/" resolves to
// overlays/1.png.
type ResourceLoader struct {
	FS     fs.FS
	Prefix string
	Client *http.Client
}

// NewLoader returns a ResourceLoader reading local files below the root
// directory.
func NewLoader(root, prefix string) *ResourceLoader {
	return NewFSLoader(os.DirFS(root), prefix)
}

// NewFSLoader returns a ResourceLoader reading local files from fsys.
func NewFSLoader(fsys fs.FS, prefix string) *ResourceLoader {
	return &ResourceLoader{
		FS:     fsys,
		Prefix: prefix,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Load implements Loader.
func (l *ResourceLoader) Load(ctx context.Context, uri string) (image.Image, error) {
	switch {
	case uri == "":
		return nil, apperr.New(apperr.CodeDecode, "empty image reference")
	case strings.HasPrefix(uri, "data:"):
		res, err := poster.ParseDataURI(uri)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeDecode, err, "parse data URI")
		}
		return Decode(bytes.NewReader(res.Data))
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return l.fetch(ctx, uri)
	default:
		return l.open(uri)
	}
}

func (l *ResourceLoader) fetch(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDecode, err, "build request for %s", url)
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDecode, err, "fetch %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.CodeDecode, "fetch %s: status %d", url, resp.StatusCode)
	}
	return Decode(resp.Body)
}

func (l *ResourceLoader) open(ref string) (image.Image, error) {
	rel := strings.TrimPrefix(ref, l.Prefix)
	// Clean as a rooted path so ".." cannot climb out of FS.
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	f, err := l.FS.Open(rel)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDecode, err, "open %s", ref)
	}
	defer f.Close()
	return Decode(f)
}

// Decode decodes an encoded image, applying its EXIF orientation.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDecode, err, "decode image")
	}
	return img, nil
}

// DecodeConfig reports the format and dimensions of an encoded image
// without decoding its pixels.
func DecodeConfig(data []byte) (image.Config, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", apperr.Wrap(apperr.CodeDecode, err, "unsupported image")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return image.Config{}, "", apperr.New(apperr.CodeDecode, "image has no pixels (%dx%d)", cfg.Width, cfg.Height)
	}
	return cfg, format, nil
}
