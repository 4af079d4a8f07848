// Package editor owns the per-user editing session: the transform state,
// the drag controller listening on its surface, the current background
// image and the selected template. Every mutation goes through a Session
// method and is applied under the session lock, one at a time.
package editor

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/eringen/posterkit/apperr"
	"github.com/eringen/posterkit/compositor"
	"github.com/eringen/posterkit/drag"
	"github.com/eringen/posterkit/export"
	"github.com/eringen/posterkit/poster"
	"github.com/eringen/posterkit/removebg"
)

// Remover strips the background of an image.
type Remover interface {
	Remove(ctx context.Context, apiKey string, img *poster.Resource) (*poster.Resource, error)
}

// Session is one editor. It is safe for concurrent use.
type Session struct {
	ID string

	mu       sync.Mutex
	state    poster.State
	surface  *drag.Surface
	drag     *drag.Controller
	tpl      *poster.Template
	bg       *poster.Resource
	version  int
	lastUsed time.Time
	now      func() time.Time
}

// Snapshot is a consistent copy of a session taken under its lock.
type Snapshot struct {
	State         poster.State     `json:"state"`
	Template      *poster.Template `json:"template"`
	HasImage      bool             `json:"has_image"`
	Version       int              `json:"version"`
	DraggingBg    bool             `json:"dragging_background"`
	DraggingPrice bool             `json:"dragging_price"`
	Dragging      string           `json:"dragging"`
}

// NewSession creates a session with the initial state and tpl selected.
// tpl may be nil.
func NewSession(id string, tpl *poster.Template) *Session {
	s := &Session{
		ID:      id,
		state:   poster.NewState(),
		surface: drag.NewSurface(),
		now:     time.Now,
	}
	if tpl != nil {
		t := *tpl
		s.tpl = &t
	}
	s.drag = drag.NewController(&s.state, s.surface)
	s.lastUsed = s.now()
	return s
}

// do runs fn under the session lock and marks the session used.
func (s *Session) do(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = s.now()
	return fn()
}

// LastUsed returns when the session last handled a call.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Snapshot returns a copy of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		State:         s.state,
		HasImage:      !s.bg.Empty(),
		Version:       s.version,
		DraggingBg:    s.drag.IsDragging(drag.Background),
		DraggingPrice: s.drag.IsDragging(drag.Price),
		Dragging:      s.drag.Active().String(),
	}
	if s.tpl != nil {
		t := *s.tpl
		snap.Template = &t
	}
	return snap
}

// Background returns the current background image and its version. The
// version changes whenever the image is replaced.
func (s *Session) Background() (*poster.Resource, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bg, s.version
}

// SelectTemplate makes t the active template. Transforms and the price
// anchor are left as they are.
func (s *Session) SelectTemplate(t poster.Template) error {
	if !t.Valid() {
		return apperr.New(apperr.CodeInvalidInput, "invalid template %q", t.Name)
	}
	return s.do(func() error {
		s.tpl = &t
		return nil
	})
}

// ApplyPriceArea moves the price to the selected template's price area.
func (s *Session) ApplyPriceArea() error {
	return s.do(func() error {
		if s.tpl == nil {
			return apperr.New(apperr.CodeMissingTemplate, "select a template first")
		}
		s.state.ApplyPriceArea(*s.tpl)
		return nil
	})
}

// Upload replaces the background with data and resets its placement.
// The bytes must decode as a supported image.
func (s *Session) Upload(data []byte) error {
	if len(data) == 0 {
		return apperr.New(apperr.CodeInvalidInput, "no image uploaded")
	}
	if _, _, err := compositor.DecodeConfig(data); err != nil {
		return apperr.Wrap(apperr.CodeInvalidInput, err, "the file is not a supported image")
	}
	res := poster.NewResource(data)
	return s.do(func() error {
		s.setBackground(res)
		s.state.ResetBackground()
		return nil
	})
}

func (s *Session) setBackground(res *poster.Resource) {
	s.bg = res
	s.version++
}

// CheckRemoval reports whether a background removal with apiKey could
// run now, without calling the remote service.
func (s *Session) CheckRemoval(apiKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bg.Empty() {
		return apperr.New(apperr.CodeMissingImage, removebg.MsgMissingImage)
	}
	if apiKey == "" {
		return apperr.New(apperr.CodeMissingAPIKey, removebg.MsgMissingAPIKey)
	}
	return nil
}

// RemoveBackground replaces the background with its background-removed
// version. The remote call runs outside the session lock; if another
// upload lands meanwhile, the result is discarded with a CONFLICT error.
// On failure the background is unchanged.
func (s *Session) RemoveBackground(ctx context.Context, r Remover, apiKey string) error {
	s.mu.Lock()
	img, version := s.bg, s.version
	s.lastUsed = s.now()
	s.mu.Unlock()

	out, err := r.Remove(ctx, apiKey, img)
	if err != nil {
		return err
	}
	return s.do(func() error {
		if s.version != version {
			return apperr.New(apperr.CodeConflict, "the image changed while its background was being removed; try again")
		}
		s.setBackground(out)
		return nil
	})
}

// AdjustImageSize multiplies the background scale by factor.
func (s *Session) AdjustImageSize(factor float64) error {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return apperr.New(apperr.CodeInvalidInput, "scale factor must be a positive number")
	}
	return s.do(func() error {
		s.state.AdjustImageSize(factor)
		return nil
	})
}

// AdjustFontSize changes the price font size by delta.
func (s *Session) AdjustFontSize(delta int) error {
	return s.do(func() error {
		s.state.AdjustFontSize(delta)
		return nil
	})
}

// SetFontSize sets the price font size.
func (s *Session) SetFontSize(size int) error {
	return s.do(func() error {
		s.state.SetFontSize(size)
		return nil
	})
}

// SetPrice sets the price text. An empty text hides the label.
func (s *Session) SetPrice(text string) error {
	return s.do(func() error {
		s.state.Price = text
		return nil
	})
}

// SetPriceColor sets the price color to a CSS hex color or color name.
func (s *Session) SetPriceColor(c string) error {
	if _, ok := compositor.ParseColor(c); !ok {
		return apperr.New(apperr.CodeInvalidInput, "invalid color %q", c)
	}
	return s.do(func() error {
		s.state.PriceColor = c
		return nil
	})
}

// Toggle flips the named view flag ("grid" or "template") and returns
// its new value.
func (s *Session) Toggle(name string) (bool, error) {
	var on bool
	err := s.do(func() error {
		switch name {
		case "grid":
			s.state.ShowGrid = !s.state.ShowGrid
			on = s.state.ShowGrid
		case "template":
			s.state.ShowTemplate = !s.state.ShowTemplate
			on = s.state.ShowTemplate
		default:
			return apperr.New(apperr.CodeInvalidInput, "unknown toggle %q", name)
		}
		return nil
	})
	return on, err
}

// CenterImage moves the background towards the middle of the canvas.
func (s *Session) CenterImage() error {
	return s.do(func() error {
		if s.tpl == nil {
			return apperr.New(apperr.CodeMissingTemplate, "select a template first")
		}
		s.state.CenterImage(*s.tpl, !s.bg.Empty())
		return nil
	})
}

// PointerDown starts dragging subject. Dragging the background requires
// an image.
func (s *Session) PointerDown(subject drag.Subject, p drag.Pointer) error {
	return s.do(func() error {
		if subject == drag.Background && s.bg.Empty() {
			return apperr.New(apperr.CodeMissingImage, "upload an image first")
		}
		if subject == drag.Price && s.state.Price == "" {
			return apperr.New(apperr.CodeInvalidInput, "there is no price to drag")
		}
		s.drag.Begin(subject, p)
		return nil
	})
}

// PointerMove delivers a move event to the active drag, if any. It
// reports whether anything was listening.
func (s *Session) PointerMove(p drag.Pointer) bool {
	var delivered bool
	_ = s.do(func() error {
		delivered = s.surface.Dispatch(drag.Event{Kind: drag.EventMove, Pointer: p})
		return nil
	})
	return delivered
}

// PointerUp ends the active drag, if any.
func (s *Session) PointerUp() bool {
	var delivered bool
	_ = s.do(func() error {
		delivered = s.surface.Dispatch(drag.Event{Kind: drag.EventEnd})
		return nil
	})
	return delivered
}

// Export renders the session's poster with p. The render runs on a
// snapshot, outside the session lock.
func (s *Session) Export(ctx context.Context, p *export.Pipeline) (*export.File, error) {
	s.mu.Lock()
	st, bg := s.state, s.bg
	var tpl *poster.Template
	if s.tpl != nil {
		t := *s.tpl
		tpl = &t
	}
	s.lastUsed = s.now()
	s.mu.Unlock()

	return p.Export(ctx, tpl, bg, st)
}

// Close ends any drag in progress and releases its subscription.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drag.End()
}
