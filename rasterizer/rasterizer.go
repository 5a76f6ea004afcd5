package rasterizer

import (
	"context"
	"fmt"
	"image"
)

// PageNumberDirective is the identify format that makes a backend emit one
// page-number token per page, separated by single spaces. Splitting the
// returned string with strings.Fields yields exactly one token per page.
const PageNumberDirective = "%p "

// RenderOptions carries the per-conversion rendering settings. The adapter
// owns interpretation of every field: a malformed Size, an unknown Format or
// an unsupported Compression surface here, not in the option model.
type RenderOptions struct {
	// Density is the rasterization resolution in DPI.
	Density int
	// Size is the target bounding box as "WxH" in pixels. Empty keeps the
	// rendered size.
	Size string
	// Quality is the encoder quality (0-100), 0 for the encoder default.
	Quality int
	// Format is the output image extension without the dot.
	Format string
	// Compression names the compression scheme ("jpeg", "none", ...).
	Compression string
}

// Rasterizer turns single PDF pages into images. Page selection is
// zero-based. Implementations are safe for concurrent use.
type Rasterizer interface {
	// Identify runs the metadata query with the given format directive and
	// returns its raw output.
	Identify(ctx context.Context, path, directive string) (string, error)

	// PageCount returns the number of pages as a structured integer.
	PageCount(ctx context.Context, path string) (int, error)

	// Write renders one page and writes the encoded image to outPath.
	Write(ctx context.Context, path string, page int, opts RenderOptions, outPath string) error

	// ToBase64 renders one page and returns the encoded image as a
	// standard-encoding base64 string.
	ToBase64(ctx context.Context, path string, page int, opts RenderOptions) (string, error)

	// Close releases any resources held by the backend.
	Close() error
}

// New creates a rasterizer backend by name. An empty name selects the
// PDFium backend, which needs no CGo and no external binary.
func New(backend string) (Rasterizer, error) {
	switch backend {
	case "", "pdfium":
		return NewPDFium()
	case "fitz", "mupdf":
		return NewFitz()
	case "magick", "gm":
		return NewMagick()
	default:
		return nil, fmt.Errorf("unknown rasterizer backend %q", backend)
	}
}

// pageRenderer is the piece an in-process backend has to provide; the shared
// pipeline turns the rendered image into files and base64 payloads.
type pageRenderer interface {
	render(ctx context.Context, path string, page int, density int) (image.Image, error)
	PageCount(ctx context.Context, path string) (int, error)
	Close() error
}
