package imaging

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodedBitmap_DataURLRoundTrip(t *testing.T) {
	b := EncodedBitmap{MimeType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff, 0x00, 0x01}}

	url := b.DataURL()
	if want := "data:image/jpeg;base64,/9j/AAE="; url != want {
		t.Errorf("DataURL: got %s, want %s", url, want)
	}

	got, err := ParseDataURL(url)
	if err != nil {
		t.Fatalf("ParseDataURL failed: %v", err)
	}
	if got.MimeType != b.MimeType || !bytes.Equal(got.Data, b.Data) {
		t.Errorf("round trip: got %+v, want %+v", got, b)
	}
}

func TestParseDataURL_Invalid(t *testing.T) {
	tests := []string{
		"",
		"image/png;base64,AAAA",
		"data:image/png;base64",
		"data:image/png,AAAA",
		"data:image/png;base64,",
		"data:image/png;base64,!!!",
	}

	for _, s := range tests {
		if _, err := ParseDataURL(s); !errors.Is(err, ErrInvalidDataURL) {
			t.Errorf("ParseDataURL(%q): got %v, want ErrInvalidDataURL", s, err)
		}
	}
}

func TestEncodedBitmap_Extension(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"image/png", "png"},
		{"image/jpeg", "jpeg"},
		{"image/webp", "webp"},
		{"", "png"},
		{"image/", "png"},
	}

	for _, tt := range tests {
		if got := (EncodedBitmap{MimeType: tt.mime}).Extension(); got != tt.want {
			t.Errorf("Extension(%q): got %s, want %s", tt.mime, got, tt.want)
		}
	}
}

func TestEncodedBitmap_ID(t *testing.T) {
	a := EncodedBitmap{MimeType: MimePNG, Data: []byte("one")}
	b := EncodedBitmap{MimeType: "image/jpeg", Data: []byte("one")}
	c := EncodedBitmap{MimeType: MimePNG, Data: []byte("two")}

	if a.ID() != b.ID() {
		t.Error("ID should depend only on the bytes")
	}
	if a.ID() == c.ID() {
		t.Error("different bytes should have different IDs")
	}
	if len(a.ID()) != 24 {
		t.Errorf("ID length: got %d, want 24", len(a.ID()))
	}
	if !(EncodedBitmap{}).IsZero() || a.IsZero() {
		t.Error("IsZero should report missing data only")
	}
}
