// Package preview renders the interactive editor: a DOM-layered
// approximation of the compositor output that shares its transform
// state, plus the page around it.
//
// Layers are independent elements so dragging and zooming only restyle
// one element; nothing is rasterized until export.
package preview

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/eringen/posterkit/poster"
)

// GridPeriod is the spacing of the alignment grid, in canvas pixels.
const GridPeriod = 50

// LayerKind identifies a preview layer.
type LayerKind string

const (
	KindBackground LayerKind = "background"
	KindOverlay    LayerKind = "overlay"
	KindText       LayerKind = "text"
	KindGrid       LayerKind = "grid"
)

// Stacking order, lowest first. The grid sits above everything so it is
// visible over the overlay.
const (
	zBackground = 0
	zOverlay    = 20
	zText       = 30
	zGrid       = 40
)

// Model is everything the preview needs to draw one editor session.
type Model struct {
	Template      *poster.Template
	Templates     []poster.Template
	BackgroundURL string
	State         poster.State
	DraggingBg    bool
	DraggingPrice bool
	CSRFToken     string
	Error         string
}

// Layer describes one positioned element of the stage.
type Layer struct {
	Kind LayerKind
	Z    int
	// Style is the inline CSS positioning the element.
	Style string
	// Subject is the drag subject a pointer-down on this layer starts,
	// empty for layers that ignore the pointer.
	Subject string
	Src     string
	Text    string
}

// Interactive reports whether the layer receives pointer events.
func (l Layer) Interactive() bool {
	return l.Subject != ""
}

// Layers returns the visible layers of m in stacking order.
func Layers(m Model) []Layer {
	if m.Template == nil {
		return nil
	}
	st := m.State
	var layers []Layer

	if m.BackgroundURL != "" {
		layers = append(layers, Layer{
			Kind: KindBackground,
			Z:    zBackground,
			Style: fmt.Sprintf(
				"position:absolute;left:0;top:0;transform:translate(%spx,%spx) scale(%s);transform-origin:top left;transition:%s;z-index:%d;cursor:move;touch-action:none",
				num(st.BgPosition.X), num(st.BgPosition.Y), num(st.BgScale), transition(m.DraggingBg), zBackground,
			),
			Subject: "background",
			Src:     m.BackgroundURL,
		})
	}

	if st.ShowTemplate && m.Template.Overlay != "" {
		layers = append(layers, Layer{
			Kind:  KindOverlay,
			Z:     zOverlay,
			Style: fmt.Sprintf("position:absolute;left:0;top:0;width:100%%;height:100%%;pointer-events:none;z-index:%d", zOverlay),
			Src:   m.Template.Overlay,
		})
	}

	if st.Price != "" {
		layers = append(layers, Layer{
			Kind: KindText,
			Z:    zText,
			Style: fmt.Sprintf(
				"position:absolute;left:%spx;top:%spx;transform:translate(-50%%,-50%%);transition:%s;z-index:%d;cursor:move;touch-action:none;white-space:nowrap;user-select:none;color:%s;font-size:%dpx;font-weight:bold;text-shadow:2px 2px 4px rgba(0,0,0,0.5)",
				num(st.PricePosition.X), num(st.PricePosition.Y), transition(m.DraggingPrice), zText,
				SafeColor(st.PriceColor), poster.ClampFontSize(st.PriceFontSize),
			),
			Subject: "price",
			Text:    st.Price,
		})
	}

	if st.ShowGrid {
		layers = append(layers, Layer{
			Kind: KindGrid,
			Z:    zGrid,
			Style: fmt.Sprintf(
				"position:absolute;inset:0;pointer-events:none;z-index:%d;background-image:linear-gradient(to right, rgba(0,0,0,0.1) 1px, transparent 1px),linear-gradient(to bottom, rgba(0,0,0,0.1) 1px, transparent 1px);background-size:%dpx %dpx",
				zGrid, GridPeriod, GridPeriod,
			),
		})
	}
	return layers
}

// transition disables easing while the layer is being dragged.
func transition(dragging bool) string {
	if dragging {
		return "none"
	}
	return "transform 0.1s ease"
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var reCSSColor = regexp.MustCompile(`^(#[0-9a-fA-F]{3}|#[0-9a-fA-F]{6}|[a-zA-Z]{3,20})$`)

// SafeColor returns c when it is a plain hex color or color name, and the
// default price color otherwise, so user input cannot escape the style
// attribute.
func SafeColor(c string) string {
	if reCSSColor.MatchString(c) {
		return c
	}
	return poster.DefaultPriceColor
}
