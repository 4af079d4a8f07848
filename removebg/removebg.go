// Package removebg is a client for the remove.bg background removal API.
//
// The client sends the current background image and returns the
// processed bytes as a new poster.Resource. It reports failures only as
// success or failure: the API's own error codes are logged, never
// interpreted.
package removebg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eringen/posterkit/apperr"
	"github.com/eringen/posterkit/poster"
)

// DefaultEndpoint is the public remove.bg endpoint.
const DefaultEndpoint = "https://api.remove.bg/v1.0/removebg"

// Messages shown to the user.
const (
	MsgMissingImage  = "upload an image first"
	MsgMissingAPIKey = "missing API key: enter your remove.bg API key"
	MsgRemoteFailure = "could not process the image; check your API key and internet connection"
)

// maxResponseSize bounds the processed image read from the API.
const maxResponseSize = 50 << 20

// Options are the optional request hints.
type Options struct {
	// Size is the output size hint: auto, preview, small, medium, hd or 4k.
	Size string
	// Type is the foreground type hint: auto, person, product or car.
	Type string
}

// Client calls the remote API.
type Client struct {
	Endpoint   string
	HTTPClient *http.Client
	Options    Options
	// Attempts caps how often one Remove call reaches the API. Only
	// transport failures and 5xx answers earn another try.
	Attempts int
	// RetryDelay is the first pause between tries; it doubles after each.
	RetryDelay time.Duration
	Log        logrus.FieldLogger
}

// transientError wraps a failure where the request never got an answer
// or the service answered 5xx.
type transientError struct{ err error }

func (e transientError) Error() string { return e.err.Error() }
func (e transientError) Unwrap() error { return e.err }

// NewClient returns a client for endpoint (DefaultEndpoint when empty).
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		Endpoint:   endpoint,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		Options:    Options{Size: "auto"},
		Attempts:   2,
		RetryDelay: 500 * time.Millisecond,
		Log:        logrus.StandardLogger(),
	}
}

// Remove strips the background of img. On any failure the returned error
// carries a user-facing message and img is left untouched.
func (c *Client) Remove(ctx context.Context, apiKey string, img *poster.Resource) (*poster.Resource, error) {
	if img.Empty() {
		return nil, apperr.New(apperr.CodeMissingImage, MsgMissingImage)
	}
	if apiKey == "" {
		return nil, apperr.New(apperr.CodeMissingAPIKey, MsgMissingAPIKey)
	}

	body, contentType, err := c.encodeForm(img)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, MsgRemoteFailure)
	}

	out, err := c.postWithRetry(ctx, apiKey, body, contentType)
	if err != nil {
		c.Log.WithError(err).WithField("endpoint", c.Endpoint).Error("background removal failed")
		return nil, apperr.Wrap(apperr.CodeRemote, err, MsgRemoteFailure)
	}
	return poster.NewResource(out), nil
}

func (c *Client) encodeForm(img *poster.Resource) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image_file", "image.png")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", err
	}
	size := c.Options.Size
	if size == "" {
		size = "auto"
	}
	if err := w.WriteField("size", size); err != nil {
		return nil, "", err
	}
	if c.Options.Type != "" {
		if err := w.WriteField("type", c.Options.Type); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func (c *Client) postWithRetry(ctx context.Context, apiKey string, body []byte, contentType string) ([]byte, error) {
	pause := c.RetryDelay
	for attempt := 1; ; attempt++ {
		out, err := c.post(ctx, apiKey, body, contentType)
		if err == nil || !errors.As(err, new(transientError)) || attempt >= c.Attempts {
			return out, err
		}
		c.Log.WithError(err).WithField("attempt", attempt).Warn("background removal failed, trying again")

		t := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
		pause *= 2
	}
}

func (c *Client) post(ctx context.Context, apiKey string, body []byte, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Api-Key", apiKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, transientError{err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		err := fmt.Errorf("removebg: %s: %s", resp.Status, bytes.TrimSpace(detail))
		if resp.StatusCode >= 500 {
			return nil, transientError{err}
		}
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, transientError{err}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("removebg: empty response body")
	}
	return data, nil
}
