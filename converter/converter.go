// Package converter orchestrates PDF page to image conversions. It owns
// input validation, page enumeration, output path resolution and bulk
// dispatch; all pixel-level work is delegated to a rasterizer backend.
package converter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/mfirth/pdf2img/rasterizer"
)

// Result describes one page written to disk.
type Result struct {
	Name   string  `json:"name"`
	SizeKB float64 `json:"sizeKB"`
	Path   string  `json:"path"`
	Page   int     `json:"page"`
}

// Base64Result describes one page encoded in memory.
type Base64Result struct {
	Base64 string `json:"base64"`
	Page   int    `json:"page"`
}

// Converter converts pages of PDF documents according to a fixed set of
// options. It is safe for concurrent use; the options never change after
// construction.
type Converter struct {
	rast rasterizer.Rasterizer
	opts Options
}

// New creates a Converter. Zero-valued option fields fall back to the
// documented defaults.
func New(r rasterizer.Rasterizer, opts Options) *Converter {
	return &Converter{rast: r, opts: opts.withDefaults()}
}

// Options returns the merged options the Converter was built with.
func (c *Converter) Options() Options {
	return c.opts
}

// WithOptions returns a copy of the Converter using the given options, with
// the usual zero-value defaults applied.
func (c *Converter) WithOptions(opts Options) *Converter {
	return &Converter{rast: c.rast, opts: opts.withDefaults()}
}

// WithSaveTarget returns a copy of the Converter that writes into the given
// directory with the given file name stem. The receiver is unchanged.
func (c *Converter) WithSaveTarget(dir, name string) *Converter {
	opts := c.opts
	opts.SaveDirectory = dir
	opts.SaveName = name
	return &Converter{rast: c.rast, opts: opts}
}

// validate runs the pure input checks. Both checks run before any
// rasterizer call is made and have no side effects.
func validate(path string) error {
	if path == "" {
		return ErrNoInputPath
	}
	if filepath.Ext(path) != ".pdf" {
		return fmt.Errorf("%w: %s", ErrInvalidPDF, path)
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return err
	}
	return nil
}

// Pages returns the ordered 1-based page indices of the document, derived
// from the rasterizer's identify directive. Tokens are counted with
// strings.Fields so a trailing delimiter can never produce a phantom page.
func (c *Converter) Pages(ctx context.Context, path string) ([]int, error) {
	if err := validate(path); err != nil {
		return nil, err
	}
	out, err := c.rast.Identify(ctx, path, rasterizer.PageNumberDirective)
	if err != nil {
		return nil, fmt.Errorf("rasterizer identify: %w", err)
	}
	tokens := strings.Fields(out)
	pages := make([]int, 0, len(tokens))
	for _, token := range tokens {
		page, err := strconv.Atoi(token)
		if err != nil {
			return nil, fmt.Errorf("rasterizer identify: unexpected page token %q", token)
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// PageCount returns the document's page count as a structured integer.
func (c *Converter) PageCount(ctx context.Context, path string) (int, error) {
	if err := validate(path); err != nil {
		return 0, err
	}
	count, err := c.rast.PageCount(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("rasterizer page count: %w", err)
	}
	return count, nil
}

// savePaths derives the output directory and file name stem for the given
// input. The options are never mutated; everything is computed per call.
func (c *Converter) savePaths(path string) (dir, name string) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dir = c.opts.SaveDirectory
	if dir == "" {
		dir = base
	}
	name = c.opts.SaveName
	if name == "" {
		name = base
	}
	return dir, name
}

func (c *Converter) renderOptions() rasterizer.RenderOptions {
	return rasterizer.RenderOptions{
		Density:     c.opts.Density,
		Size:        c.opts.Size,
		Quality:     c.opts.Quality,
		Format:      c.opts.Format,
		Compression: c.opts.Compression,
	}
}

// Convert renders a single 1-based page to disk and returns the written
// file's details. The save directory is created if missing.
func (c *Converter) Convert(ctx context.Context, path string, page int) (Result, error) {
	total, err := c.PageCount(ctx, path)
	if err != nil {
		return Result{}, err
	}
	if page < 1 || page > total {
		return Result{}, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, page, total)
	}
	return c.convertPage(ctx, path, page)
}

// convertPage performs the actual single-page write. Validation and the
// page range check have already happened.
func (c *Converter) convertPage(ctx context.Context, path string, page int) (Result, error) {
	dir, name := c.savePaths(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("unable to create save directory %s: %w", dir, err)
	}

	outPath := filepath.Join(dir, fmt.Sprintf("%s_%d.%s", name, page, c.opts.Format))
	// Rasterizer page selection is zero-based.
	if err := c.rast.Write(ctx, path, page-1, c.renderOptions(), outPath); err != nil {
		return Result{}, fmt.Errorf("rasterizer write page %d: %w", page, err)
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return Result{}, fmt.Errorf("unable to stat output file %s: %w", outPath, err)
	}
	return Result{
		Name:   info.Name(),
		SizeKB: float64(info.Size()) / 1000,
		Path:   outPath,
		Page:   page,
	}, nil
}

// ToBase64 renders a single 1-based page and returns it as a base64 string
// without touching the filesystem.
func (c *Converter) ToBase64(ctx context.Context, path string, page int) (Base64Result, error) {
	total, err := c.PageCount(ctx, path)
	if err != nil {
		return Base64Result{}, err
	}
	if page < 1 || page > total {
		return Base64Result{}, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, page, total)
	}
	return c.base64Page(ctx, path, page)
}

func (c *Converter) base64Page(ctx context.Context, path string, page int) (Base64Result, error) {
	encoded, err := c.rast.ToBase64(ctx, path, page-1, c.renderOptions())
	if err != nil {
		return Base64Result{}, fmt.Errorf("rasterizer encode page %d: %w", page, err)
	}
	return Base64Result{Base64: encoded, Page: page}, nil
}

// ConvertAll converts every page of the document, in order.
func (c *Converter) ConvertAll(ctx context.Context, path string) ([]Result, error) {
	pages, err := c.Pages(ctx, path)
	if err != nil {
		return nil, err
	}
	return c.ConvertPages(ctx, path, pages)
}

// ConvertPages converts the requested pages concurrently and returns the
// results in the order the pages were requested. The call is all-or-nothing:
// the first failure is returned and completed sibling results are discarded.
// A failing page does not cancel its siblings; they run to completion.
func (c *Converter) ConvertPages(ctx context.Context, path string, pages []int) ([]Result, error) {
	if err := c.checkPages(ctx, path, pages); err != nil {
		return nil, err
	}
	results := make([]Result, len(pages))
	err := c.forEachPage(pages, func(i, page int) error {
		result, err := c.convertPage(ctx, path, page)
		if err != nil {
			return err
		}
		results[i] = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ToBase64All encodes every page of the document, in order.
func (c *Converter) ToBase64All(ctx context.Context, path string) ([]Base64Result, error) {
	pages, err := c.Pages(ctx, path)
	if err != nil {
		return nil, err
	}
	return c.ToBase64Pages(ctx, path, pages)
}

// ToBase64Pages encodes the requested pages concurrently, with the same
// ordering and all-or-nothing semantics as ConvertPages.
func (c *Converter) ToBase64Pages(ctx context.Context, path string, pages []int) ([]Base64Result, error) {
	if err := c.checkPages(ctx, path, pages); err != nil {
		return nil, err
	}
	results := make([]Base64Result, len(pages))
	err := c.forEachPage(pages, func(i, page int) error {
		result, err := c.base64Page(ctx, path, page)
		if err != nil {
			return err
		}
		results[i] = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// checkPages validates the input and every requested page index before any
// rendering starts, so a bad request fails fast with no partial output.
func (c *Converter) checkPages(ctx context.Context, path string, pages []int) error {
	if err := validate(path); err != nil {
		return err
	}
	if len(pages) == 0 {
		return fmt.Errorf("%w: no pages requested", ErrPageOutOfRange)
	}
	total, err := c.PageCount(ctx, path)
	if err != nil {
		return err
	}
	for _, page := range pages {
		if page < 1 || page > total {
			return fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, page, total)
		}
	}
	return nil
}

// forEachPage fans the per-page work out over a bounded pool of workers and
// waits for the whole batch. The first error wins; later errors are dropped.
func (c *Converter) forEachPage(pages []int, fn func(i, page int) error) error {
	workers := c.opts.MaxConcurrency
	if workers <= 0 || workers > len(pages) {
		workers = len(pages)
	}

	type task struct{ i, page int }
	tasks := make(chan task)

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				if err := fn(t.i, t.page); err != nil {
					once.Do(func() { firstErr = err })
				}
			}
		}()
	}

	for i, page := range pages {
		tasks <- task{i: i, page: page}
	}
	close(tasks)
	wg.Wait()

	return firstErr
}
