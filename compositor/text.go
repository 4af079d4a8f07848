package compositor

import (
	"image"
	"image/color"
	"strings"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/eringen/posterkit/poster"
)

// typeface parses its TTF once and hands out per-render faces; a
// font.Face is not safe for concurrent use, so faces are never shared.
type typeface struct {
	ttf  []byte
	once sync.Once
	font *opentype.Font
	err  error
}

func newTypeface(ttf []byte) *typeface {
	if ttf == nil {
		ttf = gobold.TTF
	}
	return &typeface{ttf: ttf}
}

func (t *typeface) face(px int) (font.Face, error) {
	t.once.Do(func() {
		t.font, t.err = opentype.Parse(t.ttf)
	})
	if t.err != nil {
		return nil, t.err
	}
	// At 72 DPI one point is one pixel.
	return opentype.NewFace(t.font, &opentype.FaceOptions{
		Size:    float64(px),
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// drawLabel draws text centered horizontally on anchor, with the middle
// of the em box on the anchor's y coordinate.
func drawLabel(dst *image.RGBA, face font.Face, text string, anchor poster.Position, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
	}
	m := face.Metrics()
	width := d.MeasureString(text)
	d.Dot = fixed.Point26_6{
		X: toFixed(anchor.X) - width/2,
		Y: toFixed(anchor.Y) + (m.Ascent-m.Descent)/2,
	}
	d.DrawString(text)
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(v * 64)
}

// ParseColor parses a CSS hex color ("#fff", "#ffffff") or a CSS color
// name.
func ParseColor(s string) (color.Color, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		c, err := colorful.Hex(strings.ToLower(s))
		if err != nil {
			return nil, false
		}
		return c.Clamped(), true
	}
	if c, ok := colornames.Map[strings.ToLower(s)]; ok {
		return c, true
	}
	return nil, false
}
