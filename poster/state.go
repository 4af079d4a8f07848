package poster

import "math"

// Domains of the clamped state values.
const (
	MinScale    = 0.1
	MaxScale    = 5.0
	MinFontSize = 10
	MaxFontSize = 200

	DefaultFontSize   = 40
	DefaultPriceColor = "#ffffff"

	// centerOffset approximates half the on-screen size of an uploaded
	// image when centering it on the canvas.
	centerOffset = 250
)

// DefaultPricePosition is the price anchor before any template defaults
// are applied.
var DefaultPricePosition = Position{X: 200, Y: 700}

// State is the transform and style state of one editor session. It is
// mutated only through the methods below and the drag controller.
type State struct {
	BgPosition    Position `json:"bg_position"`
	BgScale       float64  `json:"bg_scale"`
	PricePosition Position `json:"price_position"`
	PriceColor    string   `json:"price_color"`
	PriceFontSize int      `json:"price_font_size"`
	Price         string   `json:"price"`
	ShowGrid      bool     `json:"show_grid"`
	ShowTemplate  bool     `json:"show_template"`
}

// NewState returns the initial editor state.
func NewState() State {
	return State{
		BgScale:       1,
		PricePosition: DefaultPricePosition,
		PriceColor:    DefaultPriceColor,
		PriceFontSize: DefaultFontSize,
		ShowTemplate:  true,
	}
}

// AdjustImageSize multiplies the background scale by factor and clamps
// the result to [MinScale, MaxScale].
func (s *State) AdjustImageSize(factor float64) {
	s.BgScale = ClampScale(s.BgScale * factor)
}

// AdjustFontSize adds delta to the price font size, clamped.
func (s *State) AdjustFontSize(delta int) {
	s.SetFontSize(s.PriceFontSize + delta)
}

// SetFontSize sets the price font size, clamped to [MinFontSize, MaxFontSize].
func (s *State) SetFontSize(size int) {
	s.PriceFontSize = ClampFontSize(size)
}

// ResetBackground restores the background placement after a new upload.
func (s *State) ResetBackground() {
	s.BgPosition = Position{}
	s.BgScale = 1
}

// CenterImage moves the background anchor towards the middle of the
// template canvas.
func (s *State) CenterImage(t Template, hasImage bool) {
	off := 0.0
	if hasImage {
		off = centerOffset
	}
	s.BgPosition = Position{
		X: float64(t.Width)/2 - off,
		Y: float64(t.Height)/2 - off,
	}
}

// ApplyPriceArea copies the template's price anchor and font size into
// the state. Selecting a template never does this implicitly.
func (s *State) ApplyPriceArea(t Template) {
	s.PricePosition = Position{X: t.PriceArea.X, Y: t.PriceArea.Y}
	if t.PriceArea.FontSize > 0 {
		s.SetFontSize(t.PriceArea.FontSize)
	}
}

// Clamp pulls BgScale and PriceFontSize back into their domains. State
// decoded from outside the editor goes through this before use.
func (s *State) Clamp() {
	s.BgScale = ClampScale(s.BgScale)
	s.PriceFontSize = ClampFontSize(s.PriceFontSize)
}

// ClampScale limits v to the background scale domain. NaN maps to 1.
func ClampScale(v float64) float64 {
	if math.IsNaN(v) {
		return 1
	}
	return math.Max(MinScale, math.Min(MaxScale, v))
}

// ClampFontSize limits v to the price font size domain.
func ClampFontSize(v int) int {
	return max(MinFontSize, min(MaxFontSize, v))
}
