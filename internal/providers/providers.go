package providers

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned by providers when the model answered with
// neither an image nor text.
var ErrEmptyResponse = errors.New("API returned an empty response. The prompt may have been blocked.")

// Request is one image-editing call to a generative model.
type Request struct {
	Image    []byte
	MimeType string
	Prompt   string
}

// Response is what the model returned. Image is nil when the model answered
// with text only, which usually means it refused the request.
type Response struct {
	Image    []byte
	MimeType string
	Text     string
}

// HasImage reports whether the response carries image bytes.
func (r *Response) HasImage() bool {
	return r != nil && len(r.Image) > 0
}

// Provider defines the interface for an image-editing model.
type Provider interface {
	EditImage(ctx context.Context, req Request) (*Response, error)
}
