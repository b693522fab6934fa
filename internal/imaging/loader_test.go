package imaging

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// createInMemoryImage creates a solid-color image.
func createInMemoryImage(width, height int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createPatternImage creates a four-quadrant image: red top-left, green
// top-right, blue bottom-left, white bottom-right.
func createPatternImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.Color
			if x < width/2 && y < height/2 {
				c = color.NRGBA{255, 0, 0, 255} // Red
			} else if x >= width/2 && y < height/2 {
				c = color.NRGBA{0, 255, 0, 255} // Green
			} else if x < width/2 && y >= height/2 {
				c = color.NRGBA{0, 0, 255, 255} // Blue
			} else {
				c = color.NRGBA{255, 255, 255, 255} // White
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

func pngBitmap(t *testing.T, img image.Image) EncodedBitmap {
	t.Helper()
	return EncodedBitmap{MimeType: MimePNG, Data: encodePNG(t, img)}
}

func TestReadUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "holiday.png")
	data := encodePNG(t, createInMemoryImage(10, 10, color.White))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	u, err := ReadUpload(path)
	if err != nil {
		t.Fatalf("ReadUpload failed: %v", err)
	}
	if u.Name != "holiday.png" {
		t.Errorf("Name: got %s, want holiday.png", u.Name)
	}
	if u.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", u.MimeType)
	}
	if !bytes.Equal(u.Data, data) {
		t.Error("Data should match the file contents")
	}
}

func TestReadUpload_NonExistent(t *testing.T) {
	if _, err := ReadUpload("/nonexistent/path/image.png"); err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestDecode(t *testing.T) {
	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, createInMemoryImage(30, 20, color.Gray{128}), nil); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		data       []byte
		wantFormat string
	}{
		{"png", encodePNG(t, createInMemoryImage(30, 20, color.White)), "png"},
		{"jpeg", jpg.Bytes(), "jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, format, err := Decode(EncodedBitmap{Data: tt.data})
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if format != tt.wantFormat {
				t.Errorf("format: got %s, want %s", format, tt.wantFormat)
			}
			if img.Bounds().Dx() != 30 || img.Bounds().Dy() != 20 {
				t.Errorf("size: got %v, want 30x20", img.Bounds().Size())
			}
		})
	}
}

func TestDecode_Invalid(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":   nil,
		"garbage": []byte("definitely not an image"),
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := Decode(EncodedBitmap{Data: data})
			if !errors.Is(err, ErrDecode) {
				t.Errorf("err: got %v, want ErrDecode", err)
			}
		})
	}
}

func TestNewSourceImage_DetectsMimeFromContent(t *testing.T) {
	// A PNG uploaded with a misleading declared type.
	src, err := NewSourceImage(Upload{
		Name:     "photo.jpg",
		MimeType: "image/jpeg",
		Data:     encodePNG(t, createInMemoryImage(8, 6, color.White)),
	})
	if err != nil {
		t.Fatalf("NewSourceImage failed: %v", err)
	}
	if src.Bitmap.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", src.Bitmap.MimeType)
	}
	if src.Width != 8 || src.Height != 6 {
		t.Errorf("size: got %dx%d, want 8x6", src.Width, src.Height)
	}
	if src.Image() == nil {
		t.Error("Image() should return decoded pixels")
	}
}

func TestIngest(t *testing.T) {
	uploads := []Upload{
		{Name: "a.png", Data: encodePNG(t, createInMemoryImage(10, 10, color.White))},
		{Name: "b.png", Data: encodePNG(t, createInMemoryImage(20, 10, color.Black))},
		{Name: "c.png", Data: encodePNG(t, createInMemoryImage(30, 10, color.White))},
	}

	images, err := Ingest(context.Background(), uploads)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if len(images) != 3 {
		t.Fatalf("images: got %d, want 3", len(images))
	}
	for i, img := range images {
		if img.Name != uploads[i].Name {
			t.Errorf("images[%d]: got %s, want %s (order must be preserved)", i, img.Name, uploads[i].Name)
		}
		if img.Width != 10*(i+1) {
			t.Errorf("images[%d].Width: got %d", i, img.Width)
		}
	}
}

func TestIngest_Empty(t *testing.T) {
	images, err := Ingest(context.Background(), nil)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if images == nil || len(images) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", images)
	}
}

func TestIngest_CorruptBatch(t *testing.T) {
	uploads := []Upload{
		{Name: "good.png", Data: encodePNG(t, createInMemoryImage(10, 10, color.White))},
		{Name: "broken.png", Data: []byte("nope")},
	}

	images, err := Ingest(context.Background(), uploads)
	if err == nil {
		t.Fatal("expected error for corrupt batch")
	}
	if images != nil {
		t.Errorf("no images should be returned, got %d", len(images))
	}
	if !strings.Contains(err.Error(), `"broken.png"`) {
		t.Errorf("error should name the file: %v", err)
	}
	if !errors.Is(err, ErrDecode) {
		t.Errorf("error should wrap ErrDecode: %v", err)
	}
}

func TestCache_Decode(t *testing.T) {
	cache := NewCache()
	b := pngBitmap(t, createInMemoryImage(10, 10, color.White))

	img1, err := cache.Decode(b)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	img2, err := cache.Decode(b)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img1 != img2 {
		t.Error("second Decode should return the cached image")
	}
	if cache.Len() != 1 {
		t.Errorf("Len: got %d, want 1", cache.Len())
	}
}

func TestCache_Decode_Invalid(t *testing.T) {
	cache := NewCache()
	if _, err := cache.Decode(EncodedBitmap{Data: []byte("bad")}); err == nil {
		t.Error("expected error for invalid bitmap")
	}
	if cache.Len() != 0 {
		t.Errorf("failed decodes should not be cached, Len=%d", cache.Len())
	}
}

func TestCache_StoreEvictClear(t *testing.T) {
	cache := NewCache()
	a := pngBitmap(t, createInMemoryImage(4, 4, color.White))
	b := pngBitmap(t, createInMemoryImage(4, 4, color.Black))

	cache.Store(a, createInMemoryImage(4, 4, color.White))
	cache.Store(b, createInMemoryImage(4, 4, color.Black))
	if cache.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", cache.Len())
	}

	cache.Evict(a)
	if cache.Len() != 1 {
		t.Errorf("after Evict: got %d, want 1", cache.Len())
	}
	cache.Evict(a) // evicting twice is harmless

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("after Clear: got %d, want 0", cache.Len())
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache := NewCache()
	b := pngBitmap(t, createInMemoryImage(50, 50, color.White))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Decode(b); err != nil {
				t.Errorf("concurrent Decode failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if cache.Len() != 1 {
		t.Errorf("Len: got %d, want 1", cache.Len())
	}
}
