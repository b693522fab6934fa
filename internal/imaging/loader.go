package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"mime"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WEBP format decoder
	"golang.org/x/sync/errgroup"
)

// ErrDecode is wrapped by every failure to turn encoded bytes into pixels.
var ErrDecode = errors.New("failed to decode image")

// Upload is a user-supplied file as it arrives from a picker, a drop target
// or a path on disk. MimeType is the type the client declared and may be empty.
type Upload struct {
	Name     string
	MimeType string
	Data     []byte
}

// ReadUpload reads a file from disk into an Upload. The declared mime type is
// derived from the file extension.
func ReadUpload(path string) (Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Upload{}, fmt.Errorf("failed to read image: %w", err)
	}
	return Upload{
		Name:     filepath.Base(path),
		MimeType: mime.TypeByExtension(filepath.Ext(path)),
		Data:     data,
	}, nil
}

// SourceImage is one decoded member of an uploaded image set. It is immutable
// once created.
type SourceImage struct {
	// Name is the original file name, used to derive export names.
	Name string `json:"name"`

	// Bitmap is the uploaded bytes with the mime type detected from content.
	Bitmap EncodedBitmap `json:"bitmap"`

	// Width is the natural width in pixels (after EXIF orientation).
	Width int `json:"width"`

	// Height is the natural height in pixels (after EXIF orientation).
	Height int `json:"height"`

	img image.Image
}

// Image returns the decoded pixels. Callers must not modify the result.
func (s *SourceImage) Image() image.Image {
	return s.img
}

// Decode turns an encoded bitmap into pixels and reports the detected format
// name ("png", "jpeg", "gif", "webp", "bmp" or "tiff").
//
// JPEG orientation tags are honored so the pixels match what a browser shows.
// Every failure wraps ErrDecode.
func Decode(b EncodedBitmap) (image.Image, string, error) {
	if b.IsZero() {
		return nil, "", fmt.Errorf("%w: empty data", ErrDecode)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(b.Data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	img, err := imaging.Decode(bytes.NewReader(b.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, format, nil
}

// NewSourceImage decodes a single upload.
func NewSourceImage(u Upload) (*SourceImage, error) {
	img, format, err := Decode(EncodedBitmap{MimeType: u.MimeType, Data: u.Data})
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	return &SourceImage{
		Name:   u.Name,
		Bitmap: EncodedBitmap{MimeType: "image/" + format, Data: u.Data},
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		img:    img,
	}, nil
}

// Ingest decodes a batch of uploads concurrently.
//
// The batch is all-or-nothing: if any upload fails to decode, Ingest returns
// an error naming that file and no images. On success the result preserves
// the input order. An empty batch yields an empty, non-nil slice.
func Ingest(ctx context.Context, uploads []Upload) ([]*SourceImage, error) {
	images := make([]*SourceImage, len(uploads))

	g, ctx := errgroup.WithContext(ctx)
	for i, u := range uploads {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src, err := NewSourceImage(u)
			if err != nil {
				return fmt.Errorf("failed to read %q: %w", u.Name, err)
			}
			images[i] = src
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// Cache provides thread-safe caching of decoded bitmaps so that repeated
// reads of the same encoded bytes (crop, stats) only decode once.
//
// Entries are keyed by EncodedBitmap.ID. Cached images remain in memory until
// Evict or Clear is called; owners clear the cache whenever the set of images
// they display is replaced.
type Cache struct {
	mu     sync.RWMutex
	images map[string]image.Image
}

// NewCache creates an empty decode cache.
func NewCache() *Cache {
	return &Cache{
		images: make(map[string]image.Image),
	}
}

// Decode returns the pixels for b, decoding and caching them on first use.
func (c *Cache) Decode(b EncodedBitmap) (image.Image, error) {
	id := b.ID()

	c.mu.RLock()
	if img, ok := c.images[id]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	img, _, err := Decode(b)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.images[id] = img
	c.mu.Unlock()

	return img, nil
}

// Store seeds the cache with pixels that were already decoded elsewhere.
func (c *Cache) Store(b EncodedBitmap, img image.Image) {
	c.mu.Lock()
	c.images[b.ID()] = img
	c.mu.Unlock()
}

// Len reports the number of cached images.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Clear removes all images from the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.mu.Unlock()
}

// Evict removes the entry for b, if any.
func (c *Cache) Evict(b EncodedBitmap) {
	c.mu.Lock()
	delete(c.images, b.ID())
	c.mu.Unlock()
}
