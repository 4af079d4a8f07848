package posterkit

import (
	"embed"
	"errors"
	"io/fs"
	"os"
)

// EmbeddedAssets contains the assets shipped with the editor:
// editor.js, editor.css and the default template overlays and thumbnails.
//
//go:embed embedded
var EmbeddedAssets embed.FS

// layeredFS opens a name from the first filesystem that has it.
type layeredFS []fs.FS

func (l layeredFS) Open(name string) (fs.File, error) {
	err := error(fs.ErrNotExist)
	for _, fsys := range l {
		f, openErr := fsys.Open(name)
		if openErr == nil {
			return f, nil
		}
		if !errors.Is(openErr, fs.ErrNotExist) {
			err = openErr
		}
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: err}
}

// PublicFS is what /public serves: files in staticDir, falling back to
// the embedded assets.
func PublicFS(staticDir string) fs.FS {
	embedded, _ := fs.Sub(EmbeddedAssets, "embedded")
	return layeredFS{os.DirFS(staticDir), embedded}
}

func (a *App) publicFS() fs.FS {
	return PublicFS(a.Config.StaticDir)
}
