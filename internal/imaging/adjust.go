package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/parallel"
	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Adjustment bounds, in percent. 100 is the identity value for both axes.
const (
	MinAdjustment      = 0.0
	MaxAdjustment      = 200.0
	IdentityAdjustment = 100.0
)

// Adjustment holds brightness and contrast as percentages.
//
// The transform applied to each normalized color channel v is
//
//	clamp((v - 0.5) * Contrast/100 + 0.5 + (Brightness/100 - 1), 0, 1)
//
// Alpha is never touched. 100/100 is the identity.
type Adjustment struct {
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
}

// DefaultAdjustment returns the identity adjustment (100/100).
func DefaultAdjustment() Adjustment {
	return Adjustment{Brightness: IdentityAdjustment, Contrast: IdentityAdjustment}
}

// IsIdentity reports whether applying a would leave every pixel unchanged.
func (a Adjustment) IsIdentity() bool {
	return a.Brightness == IdentityAdjustment && a.Contrast == IdentityAdjustment
}

// Validate checks that both values are within [MinAdjustment, MaxAdjustment].
func (a Adjustment) Validate() error {
	if a.Brightness < MinAdjustment || a.Brightness > MaxAdjustment {
		return fmt.Errorf("brightness %.1f outside range [%.0f, %.0f]", a.Brightness, MinAdjustment, MaxAdjustment)
	}
	if a.Contrast < MinAdjustment || a.Contrast > MaxAdjustment {
		return fmt.Errorf("contrast %.1f outside range [%.0f, %.0f]", a.Contrast, MinAdjustment, MaxAdjustment)
	}
	return nil
}

// Apply transforms a color whose channels are normalized to [0, 1].
func (a Adjustment) Apply(c colorful.Color) colorful.Color {
	contrast := a.Contrast / 100
	offset := 0.5 + (a.Brightness/100 - 1)
	return colorful.Color{
		R: (c.R-0.5)*contrast + offset,
		G: (c.G-0.5)*contrast + offset,
		B: (c.B-0.5)*contrast + offset,
	}.Clamped()
}

// table precomputes the 8-bit channel mapping. The transform is the same for
// every channel, so one gray ramp covers R, G and B.
func (a Adjustment) table() *[256]uint8 {
	var lut [256]uint8
	for i := range lut {
		v := float64(i) / 255
		r, _, _ := a.Apply(colorful.Color{R: v, G: v, B: v}).RGB255()
		lut[i] = r
	}
	return &lut
}

// Transformer applies an Adjustment to an encoded bitmap and re-encodes the
// result. Implementations must always emit lossless PNG and must never modify
// the input bytes.
type Transformer interface {
	Adjust(src EncodedBitmap, a Adjustment) (EncodedBitmap, error)
}

// Backend names accepted by NewTransformer.
const (
	BackendImaging = "imaging"
	BackendBild    = "bild"
)

// NewTransformer returns the Transformer registered under name. An empty name
// selects the imaging backend.
func NewTransformer(name string) (Transformer, error) {
	switch name {
	case "", BackendImaging:
		return ImagingTransformer{}, nil
	case BackendBild:
		return BildTransformer{}, nil
	default:
		return nil, fmt.Errorf("unknown adjustment backend: %s", name)
	}
}

// ImagingTransformer adjusts pixels with disintegration/imaging, working on
// non-premultiplied NRGBA data.
type ImagingTransformer struct{}

// Adjust implements Transformer.
func (ImagingTransformer) Adjust(src EncodedBitmap, a Adjustment) (EncodedBitmap, error) {
	img, _, err := Decode(src)
	if err != nil {
		return EncodedBitmap{}, fmt.Errorf("failed to load image for adjustment: %w", err)
	}

	lut := a.table()
	out := imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: lut[c.R], G: lut[c.G], B: lut[c.B], A: c.A}
	})

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return EncodedBitmap{}, fmt.Errorf("failed to encode adjusted image: %w", err)
	}
	return EncodedBitmap{MimeType: MimePNG, Data: buf.Bytes()}, nil
}

// BildTransformer adjusts pixels with anthonynsimon/bild's row-parallel
// scheduler. The lookup runs over non-premultiplied NRGBA bytes; bild's own
// adjust.Apply works on premultiplied RGBA and would round translucent
// colors.
type BildTransformer struct{}

// Adjust implements Transformer.
func (BildTransformer) Adjust(src EncodedBitmap, a Adjustment) (EncodedBitmap, error) {
	img, _, err := Decode(src)
	if err != nil {
		return EncodedBitmap{}, fmt.Errorf("failed to load image for adjustment: %w", err)
	}

	lut := a.table()
	out := imaging.Clone(img)
	rowBytes := out.Rect.Dx() * 4
	parallel.Line(out.Rect.Dy(), func(start, end int) {
		for y := start; y < end; y++ {
			row := out.Pix[y*out.Stride : y*out.Stride+rowBytes]
			for i := 0; i < len(row); i += 4 {
				row[i] = lut[row[i]]
				row[i+1] = lut[row[i+1]]
				row[i+2] = lut[row[i+2]]
			}
		}
	})

	return encodeWith(imgio.PNGEncoder(), out)
}

func encodeWith(enc imgio.Encoder, img image.Image) (EncodedBitmap, error) {
	var buf bytes.Buffer
	if err := enc(&buf, img); err != nil {
		return EncodedBitmap{}, fmt.Errorf("failed to encode adjusted image: %w", err)
	}
	return EncodedBitmap{MimeType: MimePNG, Data: buf.Bytes()}, nil
}
