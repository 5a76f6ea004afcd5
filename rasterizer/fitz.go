package rasterizer

import (
	"context"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// Fitz rasterizes PDF pages with MuPDF via go-fitz (requires CGo).
type Fitz struct {
	adapter
}

// NewFitz creates a MuPDF-backed rasterizer.
func NewFitz() (*Fitz, error) {
	return &Fitz{adapter{fitzPages{}}}, nil
}

type fitzPages struct{}

func (fitzPages) render(_ context.Context, path string, page int, density int) (image.Image, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}
	defer doc.Close()

	if page < 0 || page >= doc.NumPage() {
		return nil, fmt.Errorf("page index %d outside document with %d pages", page, doc.NumPage())
	}

	img, err := doc.ImageDPI(page, float64(density))
	if err != nil {
		return nil, fmt.Errorf("unable to render page %d: %w", page, err)
	}
	return img, nil
}

func (fitzPages) PageCount(_ context.Context, path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, fmt.Errorf("unable to open PDF document: %w", err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// Close is a no-op; documents are closed per render.
func (fitzPages) Close() error {
	return nil
}
