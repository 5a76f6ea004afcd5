package rasterizer

import (
	"encoding/base64"
	"image"
	"strings"
	"testing"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		size    string
		width   int
		height  int
		wantErr bool
	}{
		{"768x512", 768, 512, false},
		{"100x100", 100, 100, false},
		{"768", 0, 0, true},
		{"x512", 0, 0, true},
		{"768x", 0, 0, true},
		{"axb", 0, 0, true},
		{"-10x20", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, tt := range tests {
		width, height, err := parseSize(tt.size)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseSize(%q): expected error, got %dx%d", tt.size, width, height)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseSize(%q): unexpected error: %v", tt.size, err)
			continue
		}
		if width != tt.width || height != tt.height {
			t.Errorf("parseSize(%q): expected %dx%d, got %dx%d", tt.size, tt.width, tt.height, width, height)
		}
	}
}

func TestFitImageKeepsAspectRatio(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1000, 500))

	fitted, err := fitImage(src, "100x100")
	if err != nil {
		t.Fatalf("fitImage failed: %v", err)
	}
	bounds := fitted.Bounds()
	if bounds.Dx() != 100 || bounds.Dy() != 50 {
		t.Errorf("expected 100x50, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestFitImageEmptySizeIsPassthrough(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 30, 40))

	fitted, err := fitImage(src, "")
	if err != nil {
		t.Fatalf("fitImage failed: %v", err)
	}
	if fitted.Bounds() != src.Bounds() {
		t.Errorf("expected unchanged bounds, got %v", fitted.Bounds())
	}
}

func TestEncodeSettingsRejectsUnknownFormat(t *testing.T) {
	_, _, err := encodeSettings(RenderOptions{Format: "webp"})
	if err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestExpandPageDirective(t *testing.T) {
	out := expandPageDirective(PageNumberDirective, 3)
	if out != "1 2 3 " {
		t.Errorf("unexpected directive expansion: %q", out)
	}
	// Fields must count exactly one token per page despite the trailing
	// delimiter.
	if got := len(strings.Fields(out)); got != 3 {
		t.Errorf("expected 3 tokens, got %d", got)
	}
}

func TestImageToBase64RoundTrips(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 10))

	encoded, err := imageToBase64(src, RenderOptions{Format: "png"})
	if err != nil {
		t.Fatalf("imageToBase64 failed: %v", err)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("payload is not valid base64: %v", err)
	}
	// PNG signature.
	if len(data) < 8 || string(data[1:4]) != "PNG" {
		t.Error("payload does not look like a PNG")
	}
}
