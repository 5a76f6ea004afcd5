package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/mfirth/pdf2img/rasterizer"
)

// stubRasterizer is an in-memory rasterizer for orchestration tests. It
// reports a fixed page count and writes a small deterministic payload for
// every page it is asked to render.
type stubRasterizer struct {
	pages    int
	failPage int // zero-based page whose render fails, -1 for none

	mu       sync.Mutex
	rendered []int // zero-based pages rendered, in completion order
}

func newStub(pages int) *stubRasterizer {
	return &stubRasterizer{pages: pages, failPage: -1}
}

func (s *stubRasterizer) Identify(_ context.Context, _ string, directive string) (string, error) {
	var b strings.Builder
	for page := 1; page <= s.pages; page++ {
		b.WriteString(strings.ReplaceAll(directive, "%p", strconv.Itoa(page)))
	}
	return b.String(), nil
}

func (s *stubRasterizer) PageCount(_ context.Context, _ string) (int, error) {
	return s.pages, nil
}

func (s *stubRasterizer) record(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rendered = append(s.rendered, page)
}

func (s *stubRasterizer) Write(_ context.Context, _ string, page int, opts rasterizer.RenderOptions, outPath string) error {
	if page == s.failPage {
		return errors.New("render blew up")
	}
	s.record(page)
	payload := fmt.Sprintf("page-%d-%s", page, opts.Format)
	return os.WriteFile(outPath, []byte(payload), 0o644)
}

func (s *stubRasterizer) ToBase64(_ context.Context, _ string, page int, _ rasterizer.RenderOptions) (string, error) {
	if page == s.failPage {
		return "", errors.New("render blew up")
	}
	s.record(page)
	return fmt.Sprintf("b64-page-%d", page), nil
}

func (s *stubRasterizer) Close() error { return nil }

// writeTestPDF creates a file with a .pdf extension; content is irrelevant
// because the stub never parses it.
func writeTestPDF(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "sample.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("failed to write test pdf: %v", err)
	}
	return path
}

func newTestConverter(t *testing.T, stub *stubRasterizer, opts Options) (*Converter, string) {
	t.Helper()
	dir := t.TempDir()
	if opts.SaveDirectory == "" {
		opts.SaveDirectory = filepath.Join(dir, "out")
	}
	return New(stub, opts), dir
}

func TestConvertRejectsNonPDFExtension(t *testing.T) {
	conv, dir := newTestConverter(t, newStub(1), Options{})

	path := filepath.Join(dir, "sample.txt")
	if err := os.WriteFile(path, []byte("not a pdf"), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	_, err := conv.Convert(context.Background(), path, 1)
	if !errors.Is(err, ErrInvalidPDF) {
		t.Errorf("expected ErrInvalidPDF, got %v", err)
	}

	_, err = conv.ToBase64(context.Background(), path, 1)
	if !errors.Is(err, ErrInvalidPDF) {
		t.Errorf("expected ErrInvalidPDF from ToBase64, got %v", err)
	}
}

func TestConvertRejectsUppercaseExtension(t *testing.T) {
	conv, dir := newTestConverter(t, newStub(1), Options{})

	path := filepath.Join(dir, "SAMPLE.PDF")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	// Extension matching is case-sensitive, exactly as supplied.
	if _, err := conv.Convert(context.Background(), path, 1); !errors.Is(err, ErrInvalidPDF) {
		t.Errorf("expected ErrInvalidPDF for .PDF, got %v", err)
	}
}

func TestConvertRejectsMissingFile(t *testing.T) {
	conv, dir := newTestConverter(t, newStub(1), Options{})

	_, err := conv.Convert(context.Background(), filepath.Join(dir, "nope.pdf"), 1)
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

func TestConvertRejectsEmptyPath(t *testing.T) {
	conv, _ := newTestConverter(t, newStub(1), Options{})

	_, err := conv.Convert(context.Background(), "", 1)
	if !errors.Is(err, ErrNoInputPath) {
		t.Errorf("expected ErrNoInputPath, got %v", err)
	}
}

func TestPagesAndPageCount(t *testing.T) {
	stub := newStub(3)
	conv, dir := newTestConverter(t, stub, Options{})
	path := writeTestPDF(t, dir)

	pages, err := conv.Pages(context.Background(), path)
	if err != nil {
		t.Fatalf("Pages failed: %v", err)
	}
	want := []int{1, 2, 3}
	if len(pages) != len(want) {
		t.Fatalf("expected %d pages, got %d", len(want), len(pages))
	}
	for i := range want {
		if pages[i] != want[i] {
			t.Errorf("page %d: expected %d, got %d", i, want[i], pages[i])
		}
	}

	count, err := conv.PageCount(context.Background(), path)
	if err != nil {
		t.Fatalf("PageCount failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected page count 3, got %d", count)
	}
	if count != len(pages) {
		t.Errorf("PageCount (%d) disagrees with len(Pages) (%d)", count, len(pages))
	}
}

func TestConvertPageRange(t *testing.T) {
	conv, dir := newTestConverter(t, newStub(3), Options{})
	path := writeTestPDF(t, dir)

	if _, err := conv.Convert(context.Background(), path, 4); !errors.Is(err, ErrPageOutOfRange) {
		t.Errorf("expected ErrPageOutOfRange for page N+1, got %v", err)
	}
	if _, err := conv.Convert(context.Background(), path, 0); !errors.Is(err, ErrPageOutOfRange) {
		t.Errorf("expected ErrPageOutOfRange for page 0, got %v", err)
	}
	if _, err := conv.Convert(context.Background(), path, 3); err != nil {
		t.Errorf("expected page N to convert, got %v", err)
	}
}

func TestConvertResultRoundTrip(t *testing.T) {
	conv, dir := newTestConverter(t, newStub(2), Options{Format: "png"})
	path := writeTestPDF(t, dir)

	result, err := conv.Convert(context.Background(), path, 2)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	if result.Page != 2 {
		t.Errorf("expected page 2, got %d", result.Page)
	}
	if result.Name != "sample_2.png" {
		t.Errorf("expected name sample_2.png, got %s", result.Name)
	}
	info, err := os.Stat(result.Path)
	if err != nil {
		t.Fatalf("result path does not exist: %v", err)
	}
	wantKB := float64(info.Size()) / 1000
	if result.SizeKB != wantKB {
		t.Errorf("expected size %.3f KB, got %.3f KB", wantKB, result.SizeKB)
	}
}

func TestConvertIsDeterministic(t *testing.T) {
	conv, dir := newTestConverter(t, newStub(1), Options{})
	path := writeTestPDF(t, dir)

	first, err := conv.Convert(context.Background(), path, 1)
	if err != nil {
		t.Fatalf("first Convert failed: %v", err)
	}
	second, err := conv.Convert(context.Background(), path, 1)
	if err != nil {
		t.Fatalf("second Convert failed: %v", err)
	}
	if first.Path != second.Path {
		t.Errorf("paths differ between runs: %s vs %s", first.Path, second.Path)
	}
	if first.SizeKB != second.SizeKB {
		t.Errorf("sizes differ between runs: %v vs %v", first.SizeKB, second.SizeKB)
	}
}

func TestConvertDerivesSaveDirAndName(t *testing.T) {
	dir := t.TempDir()
	// Empty SaveDirectory and SaveName derive from the input base name.
	conv := New(newStub(1), Options{})

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(cwd)

	path := writeTestPDF(t, dir)
	result, err := conv.Convert(context.Background(), path, 1)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if result.Path != filepath.Join("sample", "sample_1.png") {
		t.Errorf("unexpected derived path: %s", result.Path)
	}
}

func TestConvertAllReturnsEveryPageInOrder(t *testing.T) {
	conv, dir := newTestConverter(t, newStub(5), Options{})
	path := writeTestPDF(t, dir)

	results, err := conv.ConvertAll(context.Background(), path)
	if err != nil {
		t.Fatalf("ConvertAll failed: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	for i, result := range results {
		if result.Page != i+1 {
			t.Errorf("result %d: expected page %d, got %d", i, i+1, result.Page)
		}
		if _, err := os.Stat(result.Path); err != nil {
			t.Errorf("result %d: output file missing: %v", i, err)
		}
	}
}

func TestConvertPagesKeepsRequestedOrder(t *testing.T) {
	conv, dir := newTestConverter(t, newStub(3), Options{})
	path := writeTestPDF(t, dir)

	results, err := conv.ConvertPages(context.Background(), path, []int{2, 1})
	if err != nil {
		t.Fatalf("ConvertPages failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Page != 2 || results[1].Page != 1 {
		t.Errorf("expected order [2 1], got [%d %d]", results[0].Page, results[1].Page)
	}
}

func TestConvertPagesFailsFastOnBadPage(t *testing.T) {
	stub := newStub(3)
	conv, dir := newTestConverter(t, stub, Options{})
	path := writeTestPDF(t, dir)

	_, err := conv.ConvertPages(context.Background(), path, []int{1, 7})
	if !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("expected ErrPageOutOfRange, got %v", err)
	}
	// No page may have been rendered: the range check happens up front.
	if len(stub.rendered) != 0 {
		t.Errorf("expected no renders, got %v", stub.rendered)
	}
}

func TestConvertPagesIsAllOrNothing(t *testing.T) {
	stub := newStub(3)
	stub.failPage = 1 // zero-based: page 2 fails
	conv, dir := newTestConverter(t, stub, Options{})
	path := writeTestPDF(t, dir)

	results, err := conv.ConvertPages(context.Background(), path, []int{1, 2, 3})
	if err == nil {
		t.Fatal("expected an error when one page fails")
	}
	if results != nil {
		t.Errorf("expected no partial results, got %v", results)
	}
}

func TestToBase64PagesOrderAndPayload(t *testing.T) {
	conv, dir := newTestConverter(t, newStub(3), Options{})
	path := writeTestPDF(t, dir)

	results, err := conv.ToBase64Pages(context.Background(), path, []int{3, 1})
	if err != nil {
		t.Fatalf("ToBase64Pages failed: %v", err)
	}
	if results[0].Page != 3 || results[1].Page != 1 {
		t.Errorf("expected order [3 1], got [%d %d]", results[0].Page, results[1].Page)
	}
	if results[0].Base64 != "b64-page-2" {
		t.Errorf("unexpected payload for page 3: %s", results[0].Base64)
	}
}

func TestBulkRespectsConcurrencyBound(t *testing.T) {
	stub := newStub(8)
	conv, dir := newTestConverter(t, stub, Options{MaxConcurrency: 2})
	path := writeTestPDF(t, dir)

	results, err := conv.ConvertAll(context.Background(), path)
	if err != nil {
		t.Fatalf("ConvertAll failed: %v", err)
	}
	if len(results) != 8 {
		t.Fatalf("expected 8 results, got %d", len(results))
	}
	if len(stub.rendered) != 8 {
		t.Errorf("expected 8 renders, got %d", len(stub.rendered))
	}
}
