package converter

import "errors"

// Sentinel errors returned by the orchestration layer. Callers discriminate
// with errors.Is; adapter failures are wrapped and carry none of these.
var (
	// ErrInvalidPDF is returned when the supplied path does not end in ".pdf".
	ErrInvalidPDF = errors.New("input file does not have a .pdf extension")

	// ErrFileNotFound is returned when no file exists at the supplied path.
	ErrFileNotFound = errors.New("input file not found")

	// ErrPageOutOfRange is returned when a requested page is below 1 or
	// exceeds the document's page count.
	ErrPageOutOfRange = errors.New("requested page is outside the document")

	// ErrNoInputPath is returned when an empty path is supplied.
	ErrNoInputPath = errors.New("no input file path supplied")
)
