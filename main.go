package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	config "github.com/mfirth/pdf2img/config"
	converter "github.com/mfirth/pdf2img/converter"
	database "github.com/mfirth/pdf2img/database"
	engine "github.com/mfirth/pdf2img/engine"
	rasterizer "github.com/mfirth/pdf2img/rasterizer"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// injectGlobals injects all of our globals into their packages
func injectGlobals(logger *slog.Logger) {
	Logger = logger
	database.Logger = Logger
	config.Logger = Logger
	engine.Logger = Logger
}

func main() {
	serverConfig, logger := config.SetupServer()
	injectGlobals(logger) //inject the logger into all of the packages

	// Show info banner if using ephemeral database
	if serverConfig.DatabaseType == "ephemeral" {
		fmt.Println("\n" + strings.Repeat("=", 50))
		fmt.Println("EPHEMERAL DATABASE MODE")
		fmt.Println(strings.Repeat("=", 50))
		fmt.Println("• Job history will be destroyed on exit")
		fmt.Println("• Perfect for testing and development")
		fmt.Println(strings.Repeat("=", 50) + "\n")
	}

	// Setup job store (handles ephemeral, postgres, sqlite)
	Logger.Info("Setting up job store", "type", serverConfig.DatabaseType)
	db, err := database.NewRepository(serverConfig)
	if err != nil {
		Logger.Error("Failed to set up job store", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	Logger.Info("Job store setup complete")

	// Construct the rasterizer backend and the converter on top of it
	Logger.Info("Setting up rasterizer", "backend", serverConfig.ConversionConfig.Backend)
	rast, err := rasterizer.New(serverConfig.ConversionConfig.Backend)
	if err != nil {
		Logger.Error("Failed to set up rasterizer backend", "backend", serverConfig.ConversionConfig.Backend, "error", err)
		os.Exit(1)
	}
	defer rast.Close()

	conv := converter.New(rast, converter.Options{
		Quality:        serverConfig.ConversionConfig.Quality,
		Format:         serverConfig.ConversionConfig.Format,
		Size:           serverConfig.ConversionConfig.Size,
		Density:        serverConfig.ConversionConfig.Density,
		Compression:    serverConfig.ConversionConfig.Compression,
		MaxConcurrency: serverConfig.ConversionConfig.MaxConcurrency,
	})

	e := echo.New()
	e.HideBanner = true

	// JSON 404s for unknown API paths
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}
		if code == http.StatusNotFound && strings.HasPrefix(c.Request().URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, map[string]string{
				"error":   "Not Found",
				"message": "The requested API endpoint does not exist",
				"path":    c.Request().URL.Path,
			})
			return
		}
		e.DefaultHTTPErrorHandler(err, c)
	}

	serverHandler := engine.NewServerHandler(db, e, serverConfig, conv)
	Logger.Info("About to initialize schedules")
	serverHandler.InitializeSchedules() //initialize all the cron jobs
	Logger.Info("Schedules initialized, about to run startup checks")
	serverHandler.StartupChecks() //Run all the sanity checks
	Logger.Info("Startup checks complete")

	e.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig))
	serverHandler.SetupRoutes()

	if serverConfig.ListenAddrIP == "" {
		Logger.Info("No Ip Addr set, binding on ALL addresses")
	}

	Logger.Info("Starting HTTP server")

	// Try to start server with automatic port increment if port is in use
	maxRetries := 5
	startPort := serverConfig.ListenAddrPort
	var startErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		addr := fmt.Sprintf("%s:%s", serverConfig.ListenAddrIP, serverConfig.ListenAddrPort)
		Logger.Info("Attempting to start server", "address", addr, "attempt", attempt+1)

		startErr = e.Start(addr)

		if startErr != nil && isAddressInUse(startErr) {
			Logger.Warn("Port already in use, trying next port",
				"port", serverConfig.ListenAddrPort,
				"attempt", attempt+1,
				"max_attempts", maxRetries)

			portNum := 0
			fmt.Sscanf(serverConfig.ListenAddrPort, "%d", &portNum)
			portNum++
			serverConfig.ListenAddrPort = fmt.Sprintf("%d", portNum)

			if attempt == maxRetries-1 {
				Logger.Error("Failed to find available port after maximum retries",
					"start_port", startPort,
					"end_port", serverConfig.ListenAddrPort,
					"max_retries", maxRetries)
				os.Exit(1)
			}
		} else if startErr != nil {
			Logger.Error("Failed to start server", "error", startErr)
			os.Exit(1)
		} else {
			break
		}
	}

	if startErr == nil && serverConfig.ListenAddrPort != startPort {
		Logger.Warn("Server started on alternative port due to conflicts",
			"requested_port", startPort,
			"actual_port", serverConfig.ListenAddrPort)
	}
}

// isAddressInUse checks if the error is due to address already in use
func isAddressInUse(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "address already in use")
}
