package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mfirth/pdf2img/converter"
	"github.com/mfirth/pdf2img/database"
)

// SetupRoutes registers the API surface on the echo instance
func (serverHandler *ServerHandler) SetupRoutes() {
	e := serverHandler.Echo
	e.GET("/api/health", serverHandler.Health)
	e.POST("/api/convert", serverHandler.ConvertUpload)
	e.POST("/api/convert/base64", serverHandler.ConvertUploadBase64)
	e.GET("/api/jobs", serverHandler.GetRecentJobs)
	e.GET("/api/jobs/active", serverHandler.GetActiveJobs)
	e.GET("/api/jobs/:id", serverHandler.GetJob)
}

// Health reports readiness, including which rasterizer backend is in use
func (serverHandler *ServerHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"backend": serverHandler.ServerConfig.ConversionConfig.Backend,
	})
}

// ConvertUpload accepts a multipart PDF upload, converts the requested pages
// to image files under the output path and returns the written page records
func (serverHandler *ServerHandler) ConvertUpload(c echo.Context) error {
	tmpPath, base, cleanup, err := serverHandler.receiveUpload(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
	}
	defer cleanup()

	pages, err := parsePagesParam(c.FormValue("pages"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
	}

	job, err := serverHandler.DB.CreateJob(database.JobTypeConversion, fmt.Sprintf("Converting %s", base))
	if err != nil {
		Logger.Error("Failed to create conversion job record", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"error": "Failed to create job"})
	}
	serverHandler.DB.UpdateJobStatus(job.ID, database.JobStatusRunning, "Converting upload")

	outDir := filepath.Join(serverHandler.ServerConfig.OutputPath, base)
	conv := serverHandler.requestConverter(c).WithSaveTarget(outDir, base)

	ctx := c.Request().Context()
	var results []converter.Result
	if len(pages) == 0 {
		results, err = conv.ConvertAll(ctx, tmpPath)
	} else {
		results, err = conv.ConvertPages(ctx, tmpPath, pages)
	}
	if err != nil {
		serverHandler.DB.UpdateJobError(job.ID, err.Error())
		return c.JSON(conversionStatus(err), map[string]interface{}{"error": err.Error(), "jobID": job.ID.String()})
	}

	resultJSON, _ := json.Marshal(results)
	serverHandler.DB.CompleteJob(job.ID, string(resultJSON))

	return c.JSON(http.StatusOK, map[string]interface{}{
		"jobID":   job.ID.String(),
		"results": results,
	})
}

// ConvertUploadBase64 converts an uploaded PDF and returns each page as a
// base64 payload instead of writing files
func (serverHandler *ServerHandler) ConvertUploadBase64(c echo.Context) error {
	tmpPath, base, cleanup, err := serverHandler.receiveUpload(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
	}
	defer cleanup()

	pages, err := parsePagesParam(c.FormValue("pages"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
	}

	job, err := serverHandler.DB.CreateJob(database.JobTypeConversion, fmt.Sprintf("Converting %s to base64", base))
	if err != nil {
		Logger.Error("Failed to create conversion job record", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"error": "Failed to create job"})
	}
	serverHandler.DB.UpdateJobStatus(job.ID, database.JobStatusRunning, "Converting upload")

	conv := serverHandler.requestConverter(c)

	ctx := c.Request().Context()
	var results []converter.Base64Result
	if len(pages) == 0 {
		results, err = conv.ToBase64All(ctx, tmpPath)
	} else {
		results, err = conv.ToBase64Pages(ctx, tmpPath, pages)
	}
	if err != nil {
		serverHandler.DB.UpdateJobError(job.ID, err.Error())
		return c.JSON(conversionStatus(err), map[string]interface{}{"error": err.Error(), "jobID": job.ID.String()})
	}

	result := fmt.Sprintf(`{"pages": %d}`, len(results))
	serverHandler.DB.CompleteJob(job.ID, result)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"jobID":   job.ID.String(),
		"results": results,
	})
}

// receiveUpload writes the uploaded "file" form part to a temp file ending in
// .pdf and returns its path, the original base name and a cleanup func
func (serverHandler *ServerHandler) receiveUpload(c echo.Context) (string, string, func(), error) {
	file, fileHeader, err := c.Request().FormFile("file")
	if err != nil {
		return "", "", nil, fmt.Errorf("missing file upload: %w", err)
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") {
		return "", "", nil, fmt.Errorf("uploaded file %s is not a PDF", fileHeader.Filename)
	}

	tmp, err := os.CreateTemp("", "pdf2img-upload-*.pdf")
	if err != nil {
		return "", "", nil, fmt.Errorf("unable to create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", "", nil, fmt.Errorf("unable to store upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", "", nil, err
	}

	base := strings.TrimSuffix(filepath.Base(fileHeader.Filename), filepath.Ext(fileHeader.Filename))
	cleanup := func() { os.Remove(tmp.Name()) }
	return tmp.Name(), base, cleanup, nil
}

// requestConverter applies the per-request option overrides on top of the
// server's conversion defaults
func (serverHandler *ServerHandler) requestConverter(c echo.Context) *converter.Converter {
	opts := serverHandler.Converter.Options()
	if v := c.FormValue("density"); v != "" {
		if density, err := strconv.Atoi(v); err == nil && density > 0 {
			opts.Density = density
		}
	}
	if v := c.FormValue("format"); v != "" {
		opts.Format = v
	}
	if v := c.FormValue("size"); v != "" {
		opts.Size = v
	}
	if v := c.FormValue("quality"); v != "" {
		if quality, err := strconv.Atoi(v); err == nil && quality > 0 && quality <= 100 {
			opts.Quality = quality
		}
	}
	return serverHandler.Converter.WithOptions(opts)
}

// parsePagesParam parses a comma separated page list like "1,3,4". An empty
// value means all pages.
func parsePagesParam(value string) ([]int, error) {
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

// conversionStatus maps converter errors onto HTTP status codes
func conversionStatus(err error) int {
	switch {
	case errors.Is(err, converter.ErrInvalidPDF),
		errors.Is(err, converter.ErrNoInputPath),
		errors.Is(err, converter.ErrPageOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, converter.ErrFileNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
