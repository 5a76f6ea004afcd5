package rasterizer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Magick rasterizes PDF pages by shelling out to GraphicsMagick or
// ImageMagick, whichever is installed. Page selection uses the toolkit's
// zero-based "input.pdf[n]" syntax.
type Magick struct {
	bin      string
	graphics bool // true when bin is the gm multi-call binary
}

// NewMagick creates a subprocess-backed rasterizer. It fails when neither
// GraphicsMagick nor ImageMagick is found on the PATH.
func NewMagick() (*Magick, error) {
	if path, err := exec.LookPath("gm"); err == nil {
		return &Magick{bin: path, graphics: true}, nil
	}
	if path, err := exec.LookPath("magick"); err == nil {
		return &Magick{bin: path}, nil
	}
	// Legacy ImageMagick 6 installs expose convert/identify directly.
	if path, err := exec.LookPath("convert"); err == nil {
		return &Magick{bin: path}, nil
	}
	return nil, fmt.Errorf("no GraphicsMagick or ImageMagick binary found in PATH")
}

// command builds an invocation of the given subcommand, accounting for the
// difference between multi-call binaries (gm convert, magick convert) and
// the separate convert/identify binaries of legacy ImageMagick 6.
func (m *Magick) command(ctx context.Context, subcommand string, args ...string) *exec.Cmd {
	if m.graphics || strings.Contains(filepath.Base(m.bin), "magick") {
		return exec.CommandContext(ctx, m.bin, append([]string{subcommand}, args...)...)
	}
	if path, err := exec.LookPath(subcommand); err == nil {
		return exec.CommandContext(ctx, path, args...)
	}
	return exec.CommandContext(ctx, m.bin, args...)
}

// Identify runs `identify -format <directive>` on the whole document. Only
// stdout is returned; toolkit warnings on stderr must not leak into the
// directive output callers parse.
func (m *Magick) Identify(ctx context.Context, path, directive string) (string, error) {
	cmd := m.command(ctx, "identify", "-format", directive, path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("identify failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return string(out), nil
}

// PageCount reads the page count in-process with a pure-Go PDF reader,
// which is much cheaper than launching the toolkit. It falls back to the
// identify directive when the reader cannot open the file.
func (m *Magick) PageCount(ctx context.Context, path string) (int, error) {
	f, r, err := pdf.Open(path)
	if err == nil {
		defer f.Close()
		return r.NumPage(), nil
	}

	out, err := m.Identify(ctx, path, PageNumberDirective)
	if err != nil {
		return 0, err
	}
	return len(strings.Fields(out)), nil
}

// convertArgs assembles the convert invocation for one page.
func convertArgs(path string, page int, opts RenderOptions, outPath string) []string {
	args := []string{"-density", strconv.Itoa(opts.Density)}
	args = append(args, fmt.Sprintf("%s[%d]", path, page))
	if opts.Size != "" {
		args = append(args, "-resize", opts.Size)
	}
	if opts.Quality > 0 {
		args = append(args, "-quality", strconv.Itoa(opts.Quality))
	}
	if opts.Compression != "" {
		args = append(args, "-compress", opts.Compression)
	}
	return append(args, outPath)
}

// Write renders one page straight to outPath.
func (m *Magick) Write(ctx context.Context, path string, page int, opts RenderOptions, outPath string) error {
	cmd := m.command(ctx, "convert", convertArgs(path, page, opts, outPath)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("convert failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// ToBase64 renders one page to a temporary file and returns its contents
// base64-encoded.
func (m *Magick) ToBase64(ctx context.Context, path string, page int, opts RenderOptions) (string, error) {
	tmp, err := os.CreateTemp("", "pdf2img-*."+opts.Format)
	if err != nil {
		return "", fmt.Errorf("unable to create temp image file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := m.Write(ctx, path, page, opts, tmpPath); err != nil {
		return "", err
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return "", fmt.Errorf("unable to read rendered image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Close is a no-op; every invocation is a fresh process.
func (m *Magick) Close() error {
	return nil
}
