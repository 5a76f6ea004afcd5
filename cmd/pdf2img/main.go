package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mfirth/pdf2img/converter"
	"github.com/mfirth/pdf2img/rasterizer"
)

func main() {
	backend := flag.String("backend", "pdfium", "Rasterizer backend: pdfium, fitz or magick")
	pages := flag.String("pages", "", "Comma separated page list, e.g. 1,3,4 (default: all pages)")
	density := flag.Int("density", 72, "Render density in DPI")
	format := flag.String("format", "png", "Output image format: png, jpg, tiff")
	size := flag.String("size", "", "Fit output inside WxH, e.g. 768x512 (default: no resize)")
	quality := flag.Int("quality", 0, "JPEG quality (1-100, 0 uses the encoder default)")
	out := flag.String("out", "", "Output directory (default: a folder named after the input file)")
	name := flag.String("name", "", "Output file name stem (default: the input file's base name)")
	base64Out := flag.Bool("base64", false, "Print base64 payloads to stdout instead of writing files")
	workers := flag.Int("workers", 4, "Maximum concurrent page conversions")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] input.pdf\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	inputPath := flag.Arg(0)

	rast, err := rasterizer.New(*backend)
	if err != nil {
		fmt.Printf("[ERROR]: %v\n", err)
		os.Exit(1)
	}
	defer rast.Close()

	conv := converter.New(rast, converter.Options{
		Quality:        *quality,
		Format:         *format,
		Size:           *size,
		Density:        *density,
		SaveDirectory:  *out,
		SaveName:       *name,
		MaxConcurrency: *workers,
	})

	ctx := context.Background()

	pageList, err := parsePages(*pages)
	if err != nil {
		fmt.Printf("[ERROR]: %v\n", err)
		os.Exit(1)
	}

	startTime := time.Now()

	if *base64Out {
		var results []converter.Base64Result
		if pageList == nil {
			results, err = conv.ToBase64All(ctx, inputPath)
		} else {
			results, err = conv.ToBase64Pages(ctx, inputPath, pageList)
		}
		if err != nil {
			fmt.Printf("[ERROR]: %v\n", err)
			os.Exit(1)
		}
		for _, result := range results {
			fmt.Printf("page %d: %s\n", result.Page, result.Base64)
		}
		return
	}

	var results []converter.Result
	if pageList == nil {
		results, err = conv.ConvertAll(ctx, inputPath)
	} else {
		results, err = conv.ConvertPages(ctx, inputPath, pageList)
	}
	if err != nil {
		fmt.Printf("[ERROR]: %v\n", err)
		os.Exit(1)
	}

	for _, result := range results {
		fmt.Printf("page %d -> %s (%.1f kB)\n", result.Page, result.Path, result.SizeKB)
	}
	fmt.Printf("Converted %d pages in %s\n", len(results), time.Since(startTime))
}

// parsePages parses "1,3,4" into a page list. Empty input means all pages.
func parsePages(value string) ([]int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	pages := make([]int, 0, len(parts))
	for _, part := range parts {
		page, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid page number %q", part)
		}
		pages = append(pages, page)
	}
	return pages, nil
}
