package imagedrop

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	return buf.Bytes()
}

func TestDecode_ReportsNaturalSize(t *testing.T) {
	d, err := Decode(encodePNG(t, 400, 300))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.NaturalWidth != 400 || d.NaturalHeight != 300 {
		t.Errorf("expected 400x300, got %dx%d", d.NaturalWidth, d.NaturalHeight)
	}
	if !strings.HasPrefix(d.DataURL, "data:image/png;base64,") {
		t.Errorf("png input should produce a png data URL, got %q", d.DataURL[:32])
	}
}

func TestDecode_JPEGStaysJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}

	d, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(d.DataURL, "data:image/jpeg;base64,") {
		t.Errorf("jpeg input should produce a jpeg data URL, got %q", d.DataURL[:32])
	}
}

func TestDecode_LargeImageKeepsNaturalSize(t *testing.T) {
	d, err := Decode(encodePNG(t, 2048, 1024))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The preview shrinks but placement math still uses the source dimensions.
	if d.NaturalWidth != 2048 || d.NaturalHeight != 1024 {
		t.Errorf("expected natural 2048x1024, got %dx%d", d.NaturalWidth, d.NaturalHeight)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(d.DataURL, "data:image/png;base64,"))
	if err != nil {
		t.Fatalf("decoding data URL: %v", err)
	}
	preview, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decoding preview: %v", err)
	}
	if w := preview.Bounds().Dx(); w > 1024 {
		t.Errorf("preview width %d exceeds the preview bound", w)
	}
}

func TestDecode_GarbageFails(t *testing.T) {
	if _, err := Decode([]byte("not an image")); err == nil {
		t.Fatal("expected error for undecodable input")
	}
}
