package posterkit

import "github.com/eringen/posterkit/drag"

type templateRequest struct {
	Name string `json:"name" form:"name"`
}

type scaleRequest struct {
	Factor float64 `json:"factor" form:"factor"`
}

// fontSizeRequest either adjusts by Delta or sets Size.
type fontSizeRequest struct {
	Delta *int `json:"delta,omitempty"`
	Size  *int `json:"size,omitempty"`
}

// priceRequest updates whichever fields are present.
type priceRequest struct {
	Price *string `json:"price,omitempty"`
	Color *string `json:"color,omitempty"`
}

type removeRequest struct {
	APIKey string `json:"api_key" form:"api_key"`
}

// pointerRequest carries a mouse position (X, Y) or a touch list, of
// which only the first touch is used.
type pointerRequest struct {
	Subject string         `json:"subject"`
	X       float64        `json:"x"`
	Y       float64        `json:"y"`
	Touches []drag.Pointer `json:"touches,omitempty"`
}

func (r pointerRequest) pointer() drag.Pointer {
	if p, ok := drag.FromTouches(r.Touches); ok {
		return p
	}
	return drag.FromMouse(r.X, r.Y)
}

type toggleResponse struct {
	Name string `json:"name"`
	On   bool   `json:"on"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
