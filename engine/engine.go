package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"

	"github.com/mfirth/pdf2img/config"
	"github.com/mfirth/pdf2img/converter"
	"github.com/mfirth/pdf2img/database"
)

// ServerHandler carries the shared server state into the route handlers and
// scheduled jobs
type ServerHandler struct {
	DB           database.Repository
	Echo         *echo.Echo
	ServerConfig config.ServerConfig
	Converter    *converter.Converter
}

func NewServerHandler(db database.Repository, e *echo.Echo, serverConfig config.ServerConfig, conv *converter.Converter) *ServerHandler {
	return &ServerHandler{DB: db, Echo: e, ServerConfig: serverConfig, Converter: conv}
}

// watchJobFunc scans the watch folder for PDFs and converts each one. It
// creates a job record so the run shows up in the jobs API, then delegates to
// the tracking variant.
func (serverHandler *ServerHandler) watchJobFunc() {
	// Add panic recovery to prevent entire application crash
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in watch job", "panic", r)
		}
	}()

	job, err := serverHandler.DB.CreateJob(database.JobTypeWatch, "Scanning watch folder")
	if err != nil {
		Logger.Error("Failed to create watch job record", "error", err)
		return
	}
	serverHandler.watchJobFuncWithTracking(job.ID)
}

// watchJobFuncWithTracking wraps the watch job with progress tracking
func (serverHandler *ServerHandler) watchJobFuncWithTracking(jobID ulid.ULID) {
	db := serverHandler.DB
	serverConfig := serverHandler.ServerConfig

	// Add panic recovery and update job status on panic
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in watch job", "panic", r, "jobID", jobID)
			db.UpdateJobError(jobID, fmt.Sprintf("Panic: %v", r))
		}
	}()

	if err := db.UpdateJobStatus(jobID, database.JobStatusRunning, "Scanning watch folder"); err != nil {
		Logger.Error("Failed to update job status", "error", err)
	}

	Logger.Info("Starting watch job", "path", serverConfig.WatchPath, "jobID", jobID)

	// Exact-case match only: the converter rejects anything but ".pdf", so
	// picking up other casings would fail every scan without ever clearing
	// the file.
	var pdfFiles []string
	err := filepath.Walk(serverConfig.WatchPath, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() && filepath.Ext(path) == ".pdf" {
			pdfFiles = append(pdfFiles, path)
		}
		return nil
	})
	if err != nil {
		Logger.Error("Error scanning watch folder", "error", err)
		db.UpdateJobError(jobID, fmt.Sprintf("Scan failed: %v", err))
		return
	}

	totalFiles := len(pdfFiles)
	if totalFiles == 0 {
		Logger.Info("No PDFs to convert in watch folder")
		db.CompleteJob(jobID, `{"filesConverted": 0, "message": "No files found"}`)
		return
	}

	Logger.Info("Found PDFs to convert", "count", totalFiles)
	convertedFiles := 0
	errorCount := 0
	pagesWritten := 0

	for i, filePath := range pdfFiles {
		fileName := filepath.Base(filePath)
		progress := i * 100 / totalFiles
		db.UpdateJobProgress(jobID, progress, fmt.Sprintf("Converting %s (%d of %d)", fileName, i+1, totalFiles))

		results, err := serverHandler.convertWatchedFile(filePath)
		if err != nil {
			Logger.Error("Failed to convert document", "filePath", filePath, "error", err)
			errorCount++
			continue
		}
		convertedFiles++
		pagesWritten += len(results)

		if serverConfig.WatchDelete {
			if err := os.Remove(filePath); err != nil {
				Logger.Warn("Failed to remove converted source", "filePath", filePath, "error", err)
			}
		}
	}

	summary := watchResult{
		FilesConverted: convertedFiles,
		FilesTotal:     totalFiles,
		PagesWritten:   pagesWritten,
		Errors:         errorCount,
	}
	resultJSON, _ := json.Marshal(summary)
	if err := db.CompleteJob(jobID, string(resultJSON)); err != nil {
		Logger.Error("Failed to mark job as complete", "error", err)
	}

	Logger.Info("Watch job completed", "jobID", jobID, "converted", convertedFiles, "total", totalFiles, "pages", pagesWritten, "errors", errorCount)
}

type watchResult struct {
	FilesConverted int `json:"filesConverted"`
	FilesTotal     int `json:"filesTotal"`
	PagesWritten   int `json:"pagesWritten"`
	Errors         int `json:"errors"`
}

// convertWatchedFile converts every page of a watched PDF into its own
// subfolder of the output path
func (serverHandler *ServerHandler) convertWatchedFile(filePath string) ([]converter.Result, error) {
	base := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	outDir := filepath.Join(serverHandler.ServerConfig.OutputPath, base)

	conv := serverHandler.Converter.WithSaveTarget(outDir, base)
	return conv.ConvertAll(context.Background(), filePath)
}

// cleanupJobFuncWithTracking sweeps finished job records older than a week
func (serverHandler *ServerHandler) cleanupJobFuncWithTracking(jobID ulid.ULID) {
	db := serverHandler.DB

	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in cleanup job", "panic", r, "jobID", jobID)
			db.UpdateJobError(jobID, fmt.Sprintf("Panic: %v", r))
		}
	}()

	if err := db.UpdateJobStatus(jobID, database.JobStatusRunning, "Deleting old job records"); err != nil {
		Logger.Error("Failed to update job status", "error", err)
	}

	deleted, err := db.DeleteOldJobs(7 * 24 * time.Hour)
	if err != nil {
		Logger.Error("Job record cleanup failed", "error", err)
		db.UpdateJobError(jobID, fmt.Sprintf("Cleanup failed: %v", err))
		return
	}

	result := fmt.Sprintf(`{"deleted": %d}`, deleted)
	if err := db.CompleteJob(jobID, result); err != nil {
		Logger.Error("Failed to mark job as complete", "error", err)
	}
	Logger.Info("Cleanup job completed", "jobID", jobID, "deleted", deleted)
}
