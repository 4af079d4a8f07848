package poster

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
)

// ErrInvalidDataURI is returned by ParseDataURI for malformed input.
var ErrInvalidDataURI = errors.New("poster: invalid data URI")

// Resource is a self-contained encoded image. It never refers to the
// file it was read from, so the uploaded image and a background-removed
// replacement are interchangeable.
type Resource struct {
	Data        []byte
	ContentType string
}

// NewResource wraps data, sniffing its content type.
func NewResource(data []byte) *Resource {
	return &Resource{Data: data, ContentType: http.DetectContentType(data)}
}

// Empty reports whether r holds no image bytes.
func (r *Resource) Empty() bool {
	return r == nil || len(r.Data) == 0
}

// DataURI encodes the resource as a base64 data URI.
func (r *Resource) DataURI() string {
	if r.Empty() {
		return ""
	}
	return "data:" + r.ContentType + ";base64," + base64.StdEncoding.EncodeToString(r.Data)
}

// ParseDataURI decodes a base64 data URI into a Resource.
func ParseDataURI(s string) (*Resource, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, ErrInvalidDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, ErrInvalidDataURI
	}
	contentType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, ErrInvalidDataURI
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, ErrInvalidDataURI
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &Resource{Data: data, ContentType: contentType}, nil
}
