// Package compositor bakes a template, a background image and the editor
// transform state into a raster image at the template's resolution.
//
// Decoding is asynchronous: Render starts the background and overlay
// decodes concurrently and returns a *Render future immediately. The
// layers are then drawn by a single continuation chain in fixed order,
// background, overlay, text, and the future completes once the chain has
// finished. Callers that need the pixels wait on the future rather than
// on a delay.
//
// Decode failures never fail a render. They are logged and the chain
// moves on, so a broken overlay still yields a poster with its price.
package compositor

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/eringen/posterkit/apperr"
	"github.com/eringen/posterkit/poster"
)

// Layer names a drawn layer of a render.
type Layer string

const (
	LayerBackground Layer = "background"
	LayerOverlay    Layer = "overlay"
	LayerText       Layer = "text"
)

// Compositor renders posters. It is safe for concurrent use; concurrent
// renders race and Last reports whichever completed most recently.
type Compositor struct {
	loader Loader
	log    logrus.FieldLogger
	font   *typeface

	mu   sync.Mutex
	last *image.RGBA
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithLoader sets how overlay references are resolved.
func WithLoader(l Loader) Option {
	return func(c *Compositor) { c.loader = l }
}

// WithLogger sets the logger decode failures are reported to.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Compositor) { c.log = l }
}

// WithFont replaces the bold Go font used for the price label.
func WithFont(ttf []byte) Option {
	return func(c *Compositor) { c.font = newTypeface(ttf) }
}

// New creates a Compositor. Without options overlays are resolved
// relative to the working directory.
func New(opts ...Option) *Compositor {
	c := &Compositor{
		loader: NewLoader(".", "/"),
		log:    logrus.StandardLogger(),
		font:   newTypeface(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Last returns the surface of the most recently completed render, or nil.
func (c *Compositor) Last() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Render is the completion future of one render.
type Render struct {
	done   chan struct{}
	img    *image.RGBA
	err    error
	layers []Layer
}

// Done is closed once every layer has been drawn.
func (r *Render) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the render completes or ctx is cancelled. A render
// skipped for lack of a template or background returns an error with
// code apperr.CodeNothingToRender.
func (r *Render) Wait(ctx context.Context) (*image.RGBA, error) {
	select {
	case <-r.done:
		return r.img, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Layers returns the layers drawn, bottom to top. It is only meaningful
// after Done is closed.
func (r *Render) Layers() []Layer {
	select {
	case <-r.done:
		return r.layers
	default:
		return nil
	}
}

// Render starts compositing tpl, bg and st. It returns immediately; ctx
// only bounds remote overlay fetches.
func (c *Compositor) Render(ctx context.Context, tpl *poster.Template, bg *poster.Resource, st poster.State) *Render {
	r := &Render{done: make(chan struct{})}
	st.Clamp()
	if tpl == nil || !tpl.Valid() {
		r.err = apperr.New(apperr.CodeNothingToRender, "no template selected")
		close(r.done)
		return r
	}
	if bg.Empty() {
		r.err = apperr.New(apperr.CodeNothingToRender, "no background image")
		close(r.done)
		return r
	}

	data := bg.Data
	bgImg := decodeAsync(func() (image.Image, error) {
		return Decode(bytes.NewReader(data))
	})
	var overlay *decoding
	if st.ShowTemplate && tpl.Overlay != "" {
		uri := tpl.Overlay
		overlay = decodeAsync(func() (image.Image, error) {
			return c.loader.Load(ctx, uri)
		})
	}

	go c.composite(r, *tpl, st, bgImg, overlay)
	return r
}

// composite is the continuation chain. Each step awaits its decode
// before drawing, which fixes the layer order regardless of which
// decode finishes first.
func (c *Compositor) composite(r *Render, tpl poster.Template, st poster.State, bg, overlay *decoding) {
	defer close(r.done)
	log := c.log.WithField("template", tpl.Name)

	dst := image.NewRGBA(image.Rect(0, 0, tpl.Width, tpl.Height))

	if img, err := bg.await(); err != nil {
		log.WithError(err).Error("background image failed to decode")
	} else {
		drawBackground(dst, img, st.BgPosition, st.BgScale)
		r.layers = append(r.layers, LayerBackground)
	}

	if overlay != nil {
		if img, err := overlay.await(); err != nil {
			log.WithError(err).WithField("overlay", tpl.Overlay).Error("template overlay failed to decode")
		} else {
			drawOverlay(dst, img)
			r.layers = append(r.layers, LayerOverlay)
		}
	}

	if st.Price != "" {
		if err := c.drawPrice(dst, st); err != nil {
			log.WithError(err).Error("price label failed to draw")
		} else {
			r.layers = append(r.layers, LayerText)
		}
	}

	log.WithFields(logrus.Fields{
		"width":  tpl.Width,
		"height": tpl.Height,
		"layers": len(r.layers),
	}).Debug("poster composited")

	r.img = dst
	c.mu.Lock()
	c.last = dst
	c.mu.Unlock()
}

// drawBackground draws src with its top-left corner at pos, scaled
// uniformly by scale. Only destination pixels inside dst are visited, so
// the cost is bounded by the canvas, not by the zoomed image.
func drawBackground(dst *image.RGBA, src image.Image, pos poster.Position, scale float64) {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return
	}
	sr := src.Bounds()
	if scale == 1 && pos.X == math.Trunc(pos.X) && pos.Y == math.Trunc(pos.Y) {
		dp := image.Pt(int(pos.X), int(pos.Y))
		xdraw.Draw(dst, sr.Sub(sr.Min).Add(dp), src, sr.Min, xdraw.Over)
		return
	}
	s2d := f64.Aff3{
		scale, 0, pos.X - scale*float64(sr.Min.X),
		0, scale, pos.Y - scale*float64(sr.Min.Y),
	}
	xdraw.CatmullRom.Transform(dst, s2d, src, sr, xdraw.Over, nil)
}

// drawOverlay stretches src over the whole canvas.
func drawOverlay(dst *image.RGBA, src image.Image) {
	b := dst.Bounds()
	stretched := imaging.Resize(src, b.Dx(), b.Dy(), imaging.Lanczos)
	xdraw.Draw(dst, b, stretched, image.Point{}, xdraw.Over)
}

func (c *Compositor) drawPrice(dst *image.RGBA, st poster.State) error {
	face, err := c.font.face(poster.ClampFontSize(st.PriceFontSize))
	if err != nil {
		return err
	}
	defer face.Close()

	col, ok := ParseColor(st.PriceColor)
	if !ok {
		c.log.WithField("color", st.PriceColor).Warn("unparseable price color, using white")
		col = color.White
	}
	drawLabel(dst, face, st.Price, st.PricePosition, col)
	return nil
}

// decoding is a pending decode.
type decoding struct {
	done chan struct{}
	img  image.Image
	err  error
}

func decodeAsync(fn func() (image.Image, error)) *decoding {
	d := &decoding{done: make(chan struct{})}
	go func() {
		defer close(d.done)
		d.img, d.err = fn()
	}()
	return d
}

func (d *decoding) await() (image.Image, error) {
	<-d.done
	return d.img, d.err
}
