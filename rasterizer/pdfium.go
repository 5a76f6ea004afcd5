package rasterizer

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
)

// PDFium rasterizes PDF pages with go-pdfium running under WebAssembly,
// so no CGo and no external binary is needed.
type PDFium struct {
	adapter
}

// NewPDFium creates a PDFium-backed rasterizer using WebAssembly.
func NewPDFium() (*PDFium, error) {
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PDFium WebAssembly: %w", err)
	}

	instance, err := pool.GetInstance(time.Second * 30)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to get PDFium instance: %w", err)
	}

	return &PDFium{adapter{&pdfiumPages{pool: pool, instance: instance}}}, nil
}

// pdfiumPages holds a single worker instance; renders are serialized on it.
type pdfiumPages struct {
	mu       sync.Mutex
	pool     pdfium.Pool
	instance pdfium.Pdfium
}

func (p *pdfiumPages) render(_ context.Context, path string, page int, density int) (image.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pdfBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read PDF file: %w", err)
	}

	doc, err := p.instance.OpenDocument(&requests.OpenDocument{
		File: &pdfBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}
	defer p.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: doc.Document,
	})

	pageRender, err := p.instance.RenderPageInDPI(&requests.RenderPageInDPI{
		DPI: density,
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: doc.Document,
				Index:    page,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to render page %d: %w", page, err)
	}
	defer pageRender.Cleanup()

	// The image buffer is owned by the wasm worker; copy it out before
	// Cleanup releases it.
	src := pageRender.Result.Image
	out := image.NewRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	return out, nil
}

func (p *pdfiumPages) PageCount(_ context.Context, path string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pdfBytes, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("unable to read PDF file: %w", err)
	}

	doc, err := p.instance.OpenDocument(&requests.OpenDocument{
		File: &pdfBytes,
	})
	if err != nil {
		return 0, fmt.Errorf("unable to open PDF document: %w", err)
	}
	defer p.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: doc.Document,
	})

	pageCount, err := p.instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: doc.Document,
	})
	if err != nil {
		return 0, fmt.Errorf("unable to get page count: %w", err)
	}
	return pageCount.PageCount, nil
}

func (p *pdfiumPages) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
	p.instance = nil
	return nil
}
