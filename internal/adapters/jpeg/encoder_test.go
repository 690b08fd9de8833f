package jpeg

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func TestEncoder_RoundTrip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 0xff})
		}
	}

	data, err := NewEncoder(DefaultQuality).Encode(img)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.HasPrefix(data, []byte{0xff, 0xd8}) {
		t.Fatal("output does not start with a JPEG SOI marker")
	}

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
		t.Errorf("bounds = %v, want 16x8", b)
	}
}

func TestNewEncoder_ClampsQuality(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 1},
		{-5, 1},
		{85, 85},
		{150, 100},
	}
	for _, tt := range tests {
		if got := NewEncoder(tt.in).Quality(); got != tt.want {
			t.Errorf("NewEncoder(%d).Quality() = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestEncoder_ContentType(t *testing.T) {
	if got := NewEncoder(85).ContentType(); got != "image/jpeg" {
		t.Errorf("ContentType = %q", got)
	}
}
