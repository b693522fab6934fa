package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// ErrEmptySelection is returned when a crop selection rounds to zero width or
// height. Front ends keep the export control inert instead of reporting it.
var ErrEmptySelection = errors.New("crop width or height is zero")

// InitialCropFraction is the share of the constraining dimension covered by
// the selection a crop editor opens with.
const InitialCropFraction = 0.9

// AspectRatio constrains a crop selection to width/height. Zero means free.
type AspectRatio float64

// Aspect presets offered by crop front ends.
const (
	AspectFree   AspectRatio = 0
	AspectSquare AspectRatio = 1
	AspectWide   AspectRatio = 16.0 / 9.0
	AspectTall   AspectRatio = 9.0 / 16.0
)

// AspectPresets lists the named presets in display order.
var AspectPresets = []struct {
	Name  string      `json:"name"`
	Ratio AspectRatio `json:"ratio"`
}{
	{"Free", AspectFree},
	{"1:1", AspectSquare},
	{"16:9", AspectWide},
	{"9:16", AspectTall},
}

// IsFree reports whether width and height may change independently.
func (a AspectRatio) IsFree() bool {
	return a <= 0
}

// ParseAspect accepts "free" (or ""), a "W:H" pair, or a decimal ratio.
func ParseAspect(s string) (AspectRatio, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "free" {
		return AspectFree, nil
	}

	if w, h, ok := strings.Cut(s, ":"); ok {
		wf, err1 := strconv.ParseFloat(w, 64)
		hf, err2 := strconv.ParseFloat(h, 64)
		if err1 != nil || err2 != nil || !positiveFinite(wf) || !positiveFinite(hf) {
			return 0, fmt.Errorf("invalid aspect ratio %q", s)
		}
		return AspectRatio(wf / hf), nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("invalid aspect ratio %q", s)
	}
	return AspectRatio(f), nil
}

func positiveFinite(f float64) bool {
	return f > 0 && !math.IsInf(f, 0)
}

// Rect is a selection in display coordinates. Values may be fractional since
// displayed images are usually scaled.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Size is a width/height pair in display units.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CropResult contains the exported crop.
type CropResult struct {
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	ImageBase64 string        `json:"image_base64"`
	MimeType    string        `json:"mime_type"`
	Bitmap      EncodedBitmap `json:"-"`
}

// Crop extracts region from img and resamples it to outW x outH.
// The region is in img's coordinate space and must lie within its bounds.
func Crop(img image.Image, region image.Rectangle, outW, outH int) (*CropResult, error) {
	bounds := img.Bounds()

	if !region.In(bounds) {
		return nil, fmt.Errorf("crop region %v outside image bounds %v", region, bounds)
	}
	if region.Empty() || outW <= 0 || outH <= 0 {
		return nil, ErrEmptySelection
	}

	cropped := imaging.Crop(img, region)
	if cropped.Bounds().Dx() != outW || cropped.Bounds().Dy() != outH {
		cropped = imaging.Resize(cropped, outW, outH, imaging.CatmullRom)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, cropped, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode cropped image: %w", err)
	}

	b := EncodedBitmap{MimeType: MimePNG, Data: buf.Bytes()}
	return &CropResult{
		Width:       cropped.Bounds().Dx(),
		Height:      cropped.Bounds().Dy(),
		ImageBase64: b.Base64(),
		MimeType:    MimePNG,
		Bitmap:      b,
	}, nil
}

// CropEditor holds the transient selection state for one crop session over a
// displayed bitmap. It never modifies the bitmap it was opened on.
type CropEditor struct {
	img     image.Image
	display Size
	aspect  AspectRatio
	sel     Rect
}

// NewCropEditor opens a crop session over img as displayed at display. A zero
// display size means the image is shown at its natural size. The initial
// selection is centered and covers InitialCropFraction of the constraining
// dimension.
func NewCropEditor(img image.Image, display Size, aspect AspectRatio) *CropEditor {
	bounds := img.Bounds()
	if display.Width <= 0 || display.Height <= 0 {
		display = Size{Width: float64(bounds.Dx()), Height: float64(bounds.Dy())}
	}

	e := &CropEditor{img: img, display: display}
	e.SetAspect(aspect)
	return e
}

// Display returns the display size the editor maps selections from.
func (e *CropEditor) Display() Size {
	return e.display
}

// Natural returns the natural pixel size of the bitmap.
func (e *CropEditor) Natural() image.Point {
	return e.img.Bounds().Size()
}

// Aspect returns the current constraint.
func (e *CropEditor) Aspect() AspectRatio {
	return e.aspect
}

// Selection returns the current selection in display coordinates.
func (e *CropEditor) Selection() Rect {
	return e.sel
}

// SetAspect changes the constraint and re-derives a centered selection.
func (e *CropEditor) SetAspect(a AspectRatio) {
	if a < 0 {
		a = AspectFree
	}
	e.aspect = a
	e.sel = centeredSelection(e.display, a)
}

func centeredSelection(display Size, a AspectRatio) Rect {
	w := display.Width * InitialCropFraction
	h := display.Height * InitialCropFraction
	if !a.IsFree() {
		h = w / float64(a)
		if limit := display.Height * InitialCropFraction; h > limit {
			h = limit
			w = h * float64(a)
		}
	}
	return Rect{
		X:      (display.Width - w) / 2,
		Y:      (display.Height - h) / 2,
		Width:  w,
		Height: h,
	}
}

// SetSelection replaces the selection. The rectangle is clamped to the display
// area; under a fixed aspect the height follows the width. The effective
// selection is returned.
func (e *CropEditor) SetSelection(r Rect) Rect {
	fixed := !e.aspect.IsFree()
	ratio := float64(e.aspect)

	r.X = clampFloat(r.X, 0, e.display.Width)
	r.Y = clampFloat(r.Y, 0, e.display.Height)
	r.Width = math.Max(r.Width, 0)
	r.Height = math.Max(r.Height, 0)

	if fixed {
		r.Height = r.Width / ratio
	}
	if r.X+r.Width > e.display.Width {
		r.Width = e.display.Width - r.X
		if fixed {
			r.Height = r.Width / ratio
		}
	}
	if r.Y+r.Height > e.display.Height {
		r.Height = e.display.Height - r.Y
		if fixed {
			r.Width = r.Height * ratio
		}
	}

	e.sel = r
	return r
}

// CanExport reports whether the selection is non-empty once rounded to
// whole pixels.
func (e *CropEditor) CanExport() bool {
	return math.Round(e.sel.Width) > 0 && math.Round(e.sel.Height) > 0
}

// NaturalRect maps the selection into the bitmap's natural pixel space using
// the natural-to-displayed ratio on each axis.
func (e *CropEditor) NaturalRect() image.Rectangle {
	bounds := e.img.Bounds()
	scaleX := float64(bounds.Dx()) / e.display.Width
	scaleY := float64(bounds.Dy()) / e.display.Height

	x0 := int(math.Round(e.sel.X * scaleX))
	y0 := int(math.Round(e.sel.Y * scaleY))
	x1 := int(math.Round((e.sel.X + e.sel.Width) * scaleX))
	y1 := int(math.Round((e.sel.Y + e.sel.Height) * scaleY))

	// A tiny selection over a downscaled view still covers one source pixel,
	// including at the right and bottom edges.
	x0 = min(x0, bounds.Dx()-1)
	y0 = min(y0, bounds.Dy()-1)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}

	r := image.Rect(x0, y0, x1, y1).Add(bounds.Min)
	return r.Intersect(bounds)
}

// OutputSize returns the exported dimensions: the rounded selection size
// scaled by the device pixel ratio.
func (e *CropEditor) OutputSize(devicePixelRatio float64) (int, int) {
	if devicePixelRatio <= 0 {
		devicePixelRatio = 1
	}
	w := int(math.Round(math.Round(e.sel.Width) * devicePixelRatio))
	h := int(math.Round(math.Round(e.sel.Height) * devicePixelRatio))
	return w, h
}

// Export renders exactly the selected region at device pixel density as PNG.
// It returns ErrEmptySelection when CanExport is false.
func (e *CropEditor) Export(devicePixelRatio float64) (*CropResult, error) {
	if !e.CanExport() {
		return nil, ErrEmptySelection
	}
	w, h := e.OutputSize(devicePixelRatio)
	return Crop(e.img, e.NaturalRect(), w, h)
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
