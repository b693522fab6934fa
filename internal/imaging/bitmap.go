package imaging

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// MimePNG is the mime type of every bitmap this package produces.
const MimePNG = "image/png"

// ErrInvalidDataURL is returned by ParseDataURL for strings that are not
// base64 data URLs.
var ErrInvalidDataURL = errors.New("invalid image data format")

// EncodedBitmap is an image serialized in a standard interchange format,
// together with the mime type that describes it.
//
// EncodedBitmap values are treated as immutable: operations that transform a
// bitmap always return a new value and never write into Data.
type EncodedBitmap struct {
	// MimeType is the interchange format, e.g. "image/png" or "image/jpeg".
	MimeType string `json:"mime_type"`

	// Data holds the encoded bytes.
	Data []byte `json:"-"`
}

// IsZero reports whether the bitmap carries no data.
func (b EncodedBitmap) IsZero() bool {
	return len(b.Data) == 0
}

// ID returns a stable content hash of the bitmap. Two bitmaps with the same
// bytes share an ID, which is what display components use as identity.
func (b EncodedBitmap) ID() string {
	sum := sha256.Sum256(b.Data)
	return hex.EncodeToString(sum[:12])
}

// Base64 returns the standard base64 encoding of the bitmap bytes.
func (b EncodedBitmap) Base64() string {
	return base64.StdEncoding.EncodeToString(b.Data)
}

// DataURL renders the self-describing form "data:<mime>;base64,<payload>".
func (b EncodedBitmap) DataURL() string {
	return "data:" + b.MimeType + ";base64," + b.Base64()
}

// Extension returns the file extension implied by the mime type, without the
// leading dot. "image/jpeg" yields "jpeg"; unknown types fall back to "png".
func (b EncodedBitmap) Extension() string {
	_, sub, ok := strings.Cut(b.MimeType, "/")
	if !ok || sub == "" {
		return "png"
	}
	return sub
}

// ParseDataURL decodes a base64 data URL back into an EncodedBitmap.
func ParseDataURL(s string) (EncodedBitmap, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return EncodedBitmap{}, ErrInvalidDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || payload == "" {
		return EncodedBitmap{}, ErrInvalidDataURL
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return EncodedBitmap{}, ErrInvalidDataURL
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return EncodedBitmap{}, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return EncodedBitmap{MimeType: mime, Data: data}, nil
}
