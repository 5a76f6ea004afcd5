package rasterizer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// parseSize splits a "WxH" size string into pixel dimensions.
func parseSize(size string) (width, height int, err error) {
	parts := strings.SplitN(size, "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed size %q, want WxH", size)
	}
	width, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed size %q: %w", size, err)
	}
	height, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed size %q: %w", size, err)
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("malformed size %q: dimensions must be positive", size)
	}
	return width, height, nil
}

// fitImage scales the rendered page down to the requested bounding box,
// preserving aspect ratio. An empty size keeps the rendered dimensions.
func fitImage(img image.Image, size string) (image.Image, error) {
	if size == "" {
		return img, nil
	}
	width, height, err := parseSize(size)
	if err != nil {
		return nil, err
	}
	return imaging.Fit(img, width, height, imaging.Lanczos), nil
}

// encodeSettings maps RenderOptions onto an imaging format and its encoder
// options. Compression "none" disables PNG compression; quality applies to
// lossy formats.
func encodeSettings(opts RenderOptions) (imaging.Format, []imaging.EncodeOption, error) {
	format, err := imaging.FormatFromExtension(opts.Format)
	if err != nil {
		return 0, nil, fmt.Errorf("unsupported output format %q: %w", opts.Format, err)
	}
	var encOpts []imaging.EncodeOption
	if opts.Quality > 0 {
		encOpts = append(encOpts, imaging.JPEGQuality(opts.Quality))
	}
	if opts.Compression == "none" {
		encOpts = append(encOpts, imaging.PNGCompressionLevel(png.NoCompression))
	}
	return format, encOpts, nil
}

// saveImage fits and encodes a rendered page to disk.
func saveImage(img image.Image, opts RenderOptions, outPath string) error {
	fitted, err := fitImage(img, opts.Size)
	if err != nil {
		return err
	}
	_, encOpts, err := encodeSettings(opts)
	if err != nil {
		return err
	}
	return imaging.Save(fitted, outPath, encOpts...)
}

// imageToBase64 fits and encodes a rendered page into a base64 string.
func imageToBase64(img image.Image, opts RenderOptions) (string, error) {
	fitted, err := fitImage(img, opts.Size)
	if err != nil {
		return "", err
	}
	format, encOpts, err := encodeSettings(opts)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, format, encOpts...); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// expandPageDirective emulates the identify metadata query for in-process
// backends: the directive is emitted once per page with %p replaced by the
// 1-based page number, trailing delimiters and all.
func expandPageDirective(directive string, pages int) string {
	var b strings.Builder
	for page := 1; page <= pages; page++ {
		b.WriteString(strings.ReplaceAll(directive, "%p", strconv.Itoa(page)))
	}
	return b.String()
}

// adapter lifts an in-process page renderer into the full Rasterizer
// contract using the shared pipeline.
type adapter struct {
	pageRenderer
}

func (a adapter) Identify(ctx context.Context, path, directive string) (string, error) {
	pages, err := a.PageCount(ctx, path)
	if err != nil {
		return "", err
	}
	return expandPageDirective(directive, pages), nil
}

func (a adapter) Write(ctx context.Context, path string, page int, opts RenderOptions, outPath string) error {
	img, err := a.render(ctx, path, page, opts.Density)
	if err != nil {
		return err
	}
	return saveImage(img, opts, outPath)
}

func (a adapter) ToBase64(ctx context.Context, path string, page int, opts RenderOptions) (string, error) {
	img, err := a.render(ctx, path, page, opts.Density)
	if err != nil {
		return "", err
	}
	return imageToBase64(img, opts)
}
