package imaging

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

func TestAdjustment_Validate(t *testing.T) {
	tests := []struct {
		name    string
		adj     Adjustment
		wantErr bool
	}{
		{"identity", DefaultAdjustment(), false},
		{"min", Adjustment{Brightness: 0, Contrast: 0}, false},
		{"max", Adjustment{Brightness: 200, Contrast: 200}, false},
		{"brightness low", Adjustment{Brightness: -1, Contrast: 100}, true},
		{"brightness high", Adjustment{Brightness: 201, Contrast: 100}, true},
		{"contrast high", Adjustment{Brightness: 100, Contrast: 250}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.adj.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate: got %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAdjustment_Apply(t *testing.T) {
	tests := []struct {
		name string
		adj  Adjustment
		in   float64
		want float64
	}{
		{"identity", DefaultAdjustment(), 0.3, 0.3},
		{"brighter", Adjustment{Brightness: 150, Contrast: 100}, 0.2, 0.7},
		{"brighter clamps", Adjustment{Brightness: 150, Contrast: 100}, 0.8, 1},
		{"darker clamps", Adjustment{Brightness: 0, Contrast: 100}, 0.4, 0},
		{"more contrast", Adjustment{Brightness: 100, Contrast: 200}, 0.6, 0.7},
		{"flat", Adjustment{Brightness: 100, Contrast: 0}, 0.9, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.adj.Apply(colorful.Color{R: tt.in, G: tt.in, B: tt.in})
			if diff := got.R - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Apply(%v): got %v, want %v", tt.in, got.R, tt.want)
			}
			if got.R != got.G || got.G != got.B {
				t.Errorf("channels should be transformed identically: %+v", got)
			}
		})
	}
}

func TestAdjustment_TableIdentity(t *testing.T) {
	lut := DefaultAdjustment().table()
	for i, v := range lut {
		if int(v) != i {
			t.Fatalf("identity table[%d] = %d", i, v)
		}
	}
}

func TestAdjustment_TableValues(t *testing.T) {
	tests := []struct {
		adj  Adjustment
		in   int
		want uint8
	}{
		{Adjustment{Brightness: 150, Contrast: 100}, 0, 128},
		{Adjustment{Brightness: 0, Contrast: 100}, 255, 128},
		{Adjustment{Brightness: 100, Contrast: 200}, 0, 0},
		{Adjustment{Brightness: 100, Contrast: 0}, 255, 128},
		{Adjustment{Brightness: 200, Contrast: 100}, 0, 255},
	}

	for _, tt := range tests {
		if got := tt.adj.table()[tt.in]; got != tt.want {
			t.Errorf("%+v table[%d]: got %d, want %d", tt.adj, tt.in, got, tt.want)
		}
	}
}

func TestNewTransformer(t *testing.T) {
	for _, name := range []string{"", BackendImaging, BackendBild} {
		if _, err := NewTransformer(name); err != nil {
			t.Errorf("NewTransformer(%q): %v", name, err)
		}
	}
	if _, err := NewTransformer("opencv"); err == nil {
		t.Error("expected error for unknown backend")
	}
}

// transformers lists every backend so the properties below hold for all.
var transformers = map[string]Transformer{
	BackendImaging: ImagingTransformer{},
	BackendBild:    BildTransformer{},
}

// toNRGBA copies img into non-premultiplied pixels without rounding.
func toNRGBA(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

func decodeNRGBA(t *testing.T, b EncodedBitmap) *image.NRGBA {
	t.Helper()
	img, format, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if format != "png" {
		t.Errorf("output format: got %s, want png", format)
	}
	return toNRGBA(img)
}

func TestTransformer_Identity(t *testing.T) {
	src := pngBitmap(t, createPatternImage(16, 16))
	want := toNRGBA(createPatternImage(16, 16))

	for name, tr := range transformers {
		t.Run(name, func(t *testing.T) {
			out, err := tr.Adjust(src, DefaultAdjustment())
			if err != nil {
				t.Fatalf("Adjust failed: %v", err)
			}
			if out.MimeType != MimePNG {
				t.Errorf("MimeType: got %s, want %s", out.MimeType, MimePNG)
			}
			if got := decodeNRGBA(t, out); !bytes.Equal(got.Pix, want.Pix) {
				t.Error("identity adjustment changed pixels")
			}
		})
	}
}

func TestTransformer_Brightness(t *testing.T) {
	src := pngBitmap(t, createInMemoryImage(4, 4, color.NRGBA{51, 102, 153, 255}))
	adj := Adjustment{Brightness: 150, Contrast: 100}
	lut := adj.table()

	for name, tr := range transformers {
		t.Run(name, func(t *testing.T) {
			out, err := tr.Adjust(src, adj)
			if err != nil {
				t.Fatalf("Adjust failed: %v", err)
			}
			got := decodeNRGBA(t, out).NRGBAAt(1, 1)
			want := color.NRGBA{lut[51], lut[102], lut[153], 255}
			if got != want {
				t.Errorf("pixel: got %v, want %v", got, want)
			}
		})
	}
}

func TestTransformer_PreservesAlpha(t *testing.T) {
	img := createInMemoryImage(4, 4, color.NRGBA{200, 100, 50, 128})
	img.SetNRGBA(0, 0, color.NRGBA{0, 0, 0, 0})
	src := pngBitmap(t, img)
	adj := Adjustment{Brightness: 80, Contrast: 120}

	for name, tr := range transformers {
		t.Run(name, func(t *testing.T) {
			out, err := tr.Adjust(src, adj)
			if err != nil {
				t.Fatalf("Adjust failed: %v", err)
			}
			got := decodeNRGBA(t, out)
			if a := got.NRGBAAt(2, 2).A; a != 128 {
				t.Errorf("translucent alpha: got %d, want 128", a)
			}
			if a := got.NRGBAAt(0, 0).A; a != 0 {
				t.Errorf("transparent alpha: got %d, want 0", a)
			}
		})
	}
}

func TestTransformer_TranslucentColors(t *testing.T) {
	pixels := []color.NRGBA{
		{200, 100, 50, 128},
		{201, 99, 7, 10},
		{255, 0, 130, 3},
		{13, 240, 90, 254},
	}
	img := image.NewNRGBA(image.Rect(0, 0, len(pixels), 1))
	for x, c := range pixels {
		img.SetNRGBA(x, 0, c)
	}
	src := pngBitmap(t, img)

	for _, adj := range []Adjustment{DefaultAdjustment(), {Brightness: 130, Contrast: 150}, {Brightness: 60, Contrast: 40}} {
		lut := adj.table()
		for name, tr := range transformers {
			t.Run(name, func(t *testing.T) {
				out, err := tr.Adjust(src, adj)
				if err != nil {
					t.Fatalf("Adjust failed: %v", err)
				}
				got := decodeNRGBA(t, out)
				for x, c := range pixels {
					want := color.NRGBA{lut[c.R], lut[c.G], lut[c.B], c.A}
					if g := got.NRGBAAt(x, 0); g != want {
						t.Errorf("%+v pixel %v: got %v, want %v", adj, c, g, want)
					}
				}
			})
		}
	}
}

func TestTransformer_DoesNotModifyInput(t *testing.T) {
	src := pngBitmap(t, createPatternImage(8, 8))
	orig := append([]byte(nil), src.Data...)

	for name, tr := range transformers {
		t.Run(name, func(t *testing.T) {
			if _, err := tr.Adjust(src, Adjustment{Brightness: 30, Contrast: 170}); err != nil {
				t.Fatalf("Adjust failed: %v", err)
			}
			if !bytes.Equal(src.Data, orig) {
				t.Error("input bytes were modified")
			}
		})
	}
}

func TestTransformer_InvalidInput(t *testing.T) {
	for name, tr := range transformers {
		t.Run(name, func(t *testing.T) {
			if _, err := tr.Adjust(EncodedBitmap{Data: []byte("bad")}, DefaultAdjustment()); err == nil {
				t.Error("expected error for undecodable input")
			}
		})
	}
}
