// Package poster holds the data model shared by the editor: templates,
// canvas positions, the mutable transform state and encoded image
// resources.
package poster

// Template is a fixed-size canvas preset. Templates are read-only once
// loaded.
type Template struct {
	Name      string    `json:"name" toml:"name"`
	Thumbnail string    `json:"thumbnail" toml:"thumbnail"`
	Overlay   string    `json:"overlay" toml:"overlay"`
	Width     int       `json:"width" toml:"width"`
	Height    int       `json:"height" toml:"height"`
	PriceArea PriceArea `json:"price_area" toml:"price_area"`
	Logo      string    `json:"logo,omitempty" toml:"logo"`
}

// PriceArea is the template's default anchor and size for the price label.
type PriceArea struct {
	X        float64 `json:"x" toml:"x"`
	Y        float64 `json:"y" toml:"y"`
	FontSize int     `json:"font_size" toml:"font_size"`
}

// Valid reports whether the template describes a drawable canvas.
func (t Template) Valid() bool {
	return t.Name != "" && t.Width > 0 && t.Height > 0
}

// Position is a point in canvas space, in pixels.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by d.
func (p Position) Add(d Position) Position {
	return Position{X: p.X + d.X, Y: p.Y + d.Y}
}

// Sub returns the vector from q to p.
func (p Position) Sub(q Position) Position {
	return Position{X: p.X - q.X, Y: p.Y - q.Y}
}

// DefaultTemplates returns the built-in template catalog used when no
// templates file is configured.
func DefaultTemplates() []Template {
	area := PriceArea{X: 540, Y: 960, FontSize: 80}
	return []Template{
		{
			Name:      "Oferta",
			Thumbnail: "/public/thumbnails/1.png",
			Overlay:   "/public/overlays/1.png",
			Width:     1080,
			Height:    1920,
			PriceArea: area,
		},
		{
			Name:      "Nuevo",
			Thumbnail: "/public/thumbnails/2.png",
			Overlay:   "/public/overlays/2.png",
			Width:     1080,
			Height:    1920,
			PriceArea: area,
		},
		{
			Name:      "Descuento",
			Thumbnail: "/public/thumbnails/3.png",
			Overlay:   "/public/overlays/3.png",
			Width:     1080,
			Height:    1920,
			PriceArea: area,
		},
	}
}

// FindTemplate returns the template with the given name.
func FindTemplate(templates []Template, name string) (Template, bool) {
	for _, t := range templates {
		if t.Name == name {
			return t, true
		}
	}
	return Template{}, false
}
