package imaging

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

func TestParseAspect(t *testing.T) {
	tests := []struct {
		in      string
		want    AspectRatio
		wantErr bool
	}{
		{"", AspectFree, false},
		{"free", AspectFree, false},
		{"Free", AspectFree, false},
		{"1:1", AspectSquare, false},
		{"16:9", AspectWide, false},
		{"9:16", AspectTall, false},
		{"4:3", AspectRatio(4.0 / 3.0), false},
		{"1.5", 1.5, false},
		{"0:1", 0, true},
		{"a:b", 0, true},
		{"wide", 0, true},
		{"-2", 0, true},
		{"inf", 0, true},
		{"nan", 0, true},
		{"inf:1", 0, true},
		{"1:inf", 0, true},
		{"nan:1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAspect(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAspect(%q): err %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseAspect(%q): got %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestAspectPresets(t *testing.T) {
	want := []string{"Free", "1:1", "16:9", "9:16"}
	if len(AspectPresets) != len(want) {
		t.Fatalf("presets: got %d, want %d", len(AspectPresets), len(want))
	}
	for i, p := range AspectPresets {
		if p.Name != want[i] {
			t.Errorf("preset %d: got %s, want %s", i, p.Name, want[i])
		}
	}
	if !AspectPresets[0].Ratio.IsFree() {
		t.Error("first preset should be free")
	}
}

func TestCrop(t *testing.T) {
	img := createPatternImage(100, 100)

	result, err := Crop(img, image.Rect(10, 10, 50, 50), 40, 40)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if result.Width != 40 || result.Height != 40 {
		t.Errorf("size: got %dx%d, want 40x40", result.Width, result.Height)
	}
	if result.MimeType != MimePNG || result.Bitmap.IsZero() {
		t.Errorf("result should carry a PNG bitmap: %+v", result.MimeType)
	}
	if result.ImageBase64 != result.Bitmap.Base64() {
		t.Error("ImageBase64 should match the bitmap")
	}
}

func TestCrop_Resample(t *testing.T) {
	img := createPatternImage(100, 100)

	result, err := Crop(img, image.Rect(0, 0, 50, 50), 100, 100)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if result.Width != 100 || result.Height != 100 {
		t.Errorf("size: got %dx%d, want 100x100", result.Width, result.Height)
	}

	// The top-left quadrant is red; upscaling keeps it red.
	out, _, err := Decode(result.Bitmap)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	r, g, b, _ := out.At(50, 50).RGBA()
	if r>>8 != 255 || g>>8 != 0 || b>>8 != 0 {
		t.Errorf("center pixel: got (%d,%d,%d), want red", r>>8, g>>8, b>>8)
	}
}

func TestCrop_OutOfBounds(t *testing.T) {
	img := createInMemoryImage(100, 100, color.White)

	if _, err := Crop(img, image.Rect(50, 50, 150, 150), 100, 100); err == nil {
		t.Error("expected error for region outside the image")
	}
}

func TestCrop_Empty(t *testing.T) {
	img := createInMemoryImage(100, 100, color.White)

	if _, err := Crop(img, image.Rect(10, 10, 10, 20), 10, 10); !errors.Is(err, ErrEmptySelection) {
		t.Errorf("empty region: got %v, want ErrEmptySelection", err)
	}
	if _, err := Crop(img, image.Rect(0, 0, 10, 10), 0, 10); !errors.Is(err, ErrEmptySelection) {
		t.Errorf("zero output: got %v, want ErrEmptySelection", err)
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNewCropEditor_InitialSelection(t *testing.T) {
	img := createInMemoryImage(400, 200, color.White)

	tests := []struct {
		name   string
		aspect AspectRatio
		want   Rect
	}{
		{"free", AspectFree, Rect{X: 20, Y: 10, Width: 360, Height: 180}},
		// 16:9 from 90% width would be 202.5 tall; capped at 90% height.
		{"wide", AspectWide, Rect{X: 40, Y: 10, Width: 320, Height: 180}},
		{"square", AspectSquare, Rect{X: 110, Y: 10, Width: 180, Height: 180}},
		{"tall", AspectTall, Rect{X: 149.375, Y: 10, Width: 101.25, Height: 180}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewCropEditor(img, Size{}, tt.aspect)
			got := e.Selection()
			if !approx(got.X, tt.want.X) || !approx(got.Y, tt.want.Y) ||
				!approx(got.Width, tt.want.Width) || !approx(got.Height, tt.want.Height) {
				t.Errorf("selection: got %+v, want %+v", got, tt.want)
			}
			if d := e.Display(); d.Width != 400 || d.Height != 200 {
				t.Errorf("zero display should default to natural size, got %+v", d)
			}
		})
	}
}

func TestNewCropEditor_FixedAspectFromWidth(t *testing.T) {
	img := createInMemoryImage(100, 400, color.White)
	e := NewCropEditor(img, Size{}, AspectSquare)

	// Width constrains: 90 wide, 90 tall, centered.
	want := Rect{X: 5, Y: 155, Width: 90, Height: 90}
	got := e.Selection()
	if !approx(got.X, want.X) || !approx(got.Y, want.Y) || !approx(got.Width, want.Width) || !approx(got.Height, want.Height) {
		t.Errorf("selection: got %+v, want %+v", got, want)
	}
}

func TestCropEditor_SetAspectRecenters(t *testing.T) {
	img := createInMemoryImage(200, 200, color.White)
	e := NewCropEditor(img, Size{}, AspectFree)
	e.SetSelection(Rect{X: 0, Y: 0, Width: 10, Height: 10})

	e.SetAspect(AspectWide)
	got := e.Selection()
	if !approx(got.Width, 180) || !approx(got.Height, 101.25) {
		t.Errorf("selection: got %+v, want 180x101.25", got)
	}
	if !approx(got.X+got.Width/2, 100) || !approx(got.Y+got.Height/2, 100) {
		t.Errorf("selection should be centered: %+v", got)
	}
	if e.Aspect() != AspectWide {
		t.Errorf("Aspect: got %v", e.Aspect())
	}
}

func TestCropEditor_SetSelection(t *testing.T) {
	img := createInMemoryImage(200, 100, color.White)

	tests := []struct {
		name   string
		aspect AspectRatio
		in     Rect
		want   Rect
	}{
		{"free inside", AspectFree, Rect{10, 10, 50, 30}, Rect{10, 10, 50, 30}},
		{"free clamps right", AspectFree, Rect{180, 10, 50, 30}, Rect{180, 10, 20, 30}},
		{"free clamps negative", AspectFree, Rect{-10, -5, -1, 20}, Rect{0, 0, 0, 20}},
		{"square follows width", AspectSquare, Rect{10, 10, 40, 5}, Rect{10, 10, 40, 40}},
		{"square clamps bottom", AspectSquare, Rect{0, 50, 80, 0}, Rect{0, 50, 50, 50}},
		{"wide clamps right", AspectWide, Rect{168, 0, 64, 0}, Rect{168, 0, 32, 18}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewCropEditor(img, Size{}, tt.aspect)
			got := e.SetSelection(tt.in)
			if !approx(got.X, tt.want.X) || !approx(got.Y, tt.want.Y) ||
				!approx(got.Width, tt.want.Width) || !approx(got.Height, tt.want.Height) {
				t.Errorf("SetSelection(%+v): got %+v, want %+v", tt.in, got, tt.want)
			}
			if e.Selection() != got {
				t.Error("Selection should return the effective rectangle")
			}
		})
	}
}

func TestCropEditor_CanExport(t *testing.T) {
	img := createInMemoryImage(100, 100, color.White)
	e := NewCropEditor(img, Size{}, AspectFree)

	if !e.CanExport() {
		t.Error("initial selection should be exportable")
	}

	e.SetSelection(Rect{X: 10, Y: 10, Width: 0.4, Height: 50})
	if e.CanExport() {
		t.Error("width rounding to 0 should not be exportable")
	}
	if _, err := e.Export(1); !errors.Is(err, ErrEmptySelection) {
		t.Errorf("Export: got %v, want ErrEmptySelection", err)
	}

	e.SetSelection(Rect{X: 10, Y: 10, Width: 0.5, Height: 0.5})
	if !e.CanExport() {
		t.Error("a selection rounding to 1x1 should be exportable")
	}
}

func TestCropEditor_NaturalRect(t *testing.T) {
	// 1000x500 image displayed at 500x250.
	img := createInMemoryImage(1000, 500, color.White)
	e := NewCropEditor(img, Size{Width: 500, Height: 250}, AspectFree)
	e.SetSelection(Rect{X: 50, Y: 25, Width: 100, Height: 50})

	want := image.Rect(100, 50, 300, 150)
	if got := e.NaturalRect(); got != want {
		t.Errorf("NaturalRect: got %v, want %v", got, want)
	}
}

func TestCropEditor_NaturalRectTinySelection(t *testing.T) {
	img := createInMemoryImage(10, 10, color.White)
	e := NewCropEditor(img, Size{Width: 1000, Height: 1000}, AspectFree)
	e.SetSelection(Rect{X: 500, Y: 500, Width: 1, Height: 1})

	if got := e.NaturalRect(); got.Dx() != 1 || got.Dy() != 1 {
		t.Errorf("NaturalRect: got %v, want one source pixel", got)
	}
}

func TestCropEditor_SelectionAtEdgeStaysExportable(t *testing.T) {
	// 10x10 image displayed at 20x20: half a display pixel at the right edge
	// rounds to one output pixel and must map to the last source column.
	img := createPatternImage(10, 10)
	e := NewCropEditor(img, Size{Width: 20, Height: 20}, AspectFree)
	e.SetSelection(Rect{X: 19.5, Y: 0, Width: 0.5, Height: 20})

	if !e.CanExport() {
		t.Fatal("selection should be exportable")
	}
	if got, want := e.NaturalRect(), image.Rect(9, 0, 10, 10); got != want {
		t.Errorf("NaturalRect: got %v, want %v", got, want)
	}
	if _, err := e.Export(1); err != nil {
		t.Errorf("Export failed: %v", err)
	}

	e.SetSelection(Rect{X: 0, Y: 19.5, Width: 20, Height: 0.5})
	if got, want := e.NaturalRect(), image.Rect(0, 9, 10, 10); got != want {
		t.Errorf("NaturalRect at bottom edge: got %v, want %v", got, want)
	}
}

func TestCropEditor_OutputSize(t *testing.T) {
	img := createInMemoryImage(1000, 500, color.White)
	e := NewCropEditor(img, Size{Width: 500, Height: 250}, AspectFree)
	e.SetSelection(Rect{X: 0, Y: 0, Width: 100.4, Height: 49.6})

	tests := []struct {
		dpr          float64
		wantW, wantH int
	}{
		{1, 100, 50},
		{2, 200, 100},
		{1.5, 150, 75},
		{0, 100, 50},
	}

	for _, tt := range tests {
		w, h := e.OutputSize(tt.dpr)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("OutputSize(%v): got %dx%d, want %dx%d", tt.dpr, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestCropEditor_Export(t *testing.T) {
	img := createPatternImage(200, 200)
	e := NewCropEditor(img, Size{Width: 100, Height: 100}, AspectFree)
	// Bottom-right quadrant in display space.
	e.SetSelection(Rect{X: 50, Y: 50, Width: 50, Height: 50})

	result, err := e.Export(2)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if result.Width != 100 || result.Height != 100 {
		t.Errorf("size: got %dx%d, want 100x100", result.Width, result.Height)
	}

	out, _, err := Decode(result.Bitmap)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	r, g, b, _ := out.At(50, 50).RGBA()
	if r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Errorf("pixel: got (%d,%d,%d), want white", r>>8, g>>8, b>>8)
	}

	// The source image is untouched.
	if c := img.NRGBAAt(0, 0); c != (color.NRGBA{255, 0, 0, 255}) {
		t.Errorf("source modified: %v", c)
	}
}
