package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// ServerConfig contains all of the server settings
type ServerConfig struct {
	ListenAddrIP     string
	ListenAddrPort   string
	DatabaseType     string
	DatabaseHost     string
	DatabasePort     string
	DatabaseUser     string
	DatabasePassword string
	DatabaseDbname   string
	DatabaseSslmode  string
	WatchPath        string // absolute path to the folder scanned for new PDFs
	WatchInterval    int    // minutes between watch-folder scans
	WatchDelete      bool   // delete source PDFs after successful conversion
	OutputPath       string // absolute path where converted images land
	ConversionConfig
}

// ConversionConfig stores the default conversion settings applied to
// uploads and watch-folder documents.
type ConversionConfig struct {
	Backend        string
	Density        int
	Format         string
	Size           string
	Quality        int
	Compression    string
	MaxConcurrency int
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolVal
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// SetupServer loads configuration and returns ServerConfig and Logger
func SetupServer() (ServerConfig, *slog.Logger) {
	serverConfigLive := ServerConfig{}

	// Load .env file (silently ignore if doesn't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("config.env")

	logger := setupLogging()
	Logger = logger

	// Server configuration
	serverConfigLive.ListenAddrPort = getEnv("SERVER_PORT", "8000")
	serverConfigLive.ListenAddrIP = getEnv("SERVER_ADDR", "")

	// Database configuration (job tracking store)
	serverConfigLive.DatabaseType = getEnv("DATABASE_TYPE", "sqlite")
	serverConfigLive.DatabaseHost = getEnv("DATABASE_HOST", "localhost")
	serverConfigLive.DatabasePort = getEnv("DATABASE_PORT", "5432")
	serverConfigLive.DatabaseUser = getEnv("DATABASE_USER", "pdf2img")
	serverConfigLive.DatabasePassword = getEnv("DATABASE_PASSWORD", "")
	serverConfigLive.DatabaseDbname = getEnv("DATABASE_NAME", "pdf2img")
	serverConfigLive.DatabaseSslmode = getEnv("DATABASE_SSLMODE", "")

	logger.Info("Database configuration loaded", "type", serverConfigLive.DatabaseType)

	// Watch-folder configuration
	watchDir := filepath.ToSlash(getEnv("WATCH_PATH", "watch"))
	watchDirAbs, err := filepath.Abs(watchDir)
	if err != nil {
		logger.Error("Failed creating absolute path for watch directory", "error", err)
	}
	serverConfigLive.WatchPath = watchDirAbs
	serverConfigLive.WatchInterval = getEnvInt("WATCH_INTERVAL", 10)
	serverConfigLive.WatchDelete = getEnvBool("WATCH_DELETE", true)

	// Output configuration
	outputDir := filepath.ToSlash(getEnv("OUTPUT_PATH", "images"))
	outputDirAbs, err := filepath.Abs(outputDir)
	if err != nil {
		logger.Error("Failed creating absolute path for output directory", "error", err)
	}
	serverConfigLive.OutputPath = outputDirAbs

	// Conversion defaults
	serverConfigLive.Backend = getEnv("RASTERIZER_BACKEND", "pdfium")
	serverConfigLive.Density = getEnvInt("CONVERT_DENSITY", 72)
	serverConfigLive.Format = getEnv("CONVERT_FORMAT", "png")
	serverConfigLive.Size = getEnv("CONVERT_SIZE", "768x512")
	serverConfigLive.Quality = getEnvInt("CONVERT_QUALITY", 0)
	serverConfigLive.Compression = getEnv("CONVERT_COMPRESSION", "jpeg")
	serverConfigLive.MaxConcurrency = getEnvInt("CONVERT_MAX_CONCURRENCY", 4)

	logger.Info("Conversion defaults loaded",
		"backend", serverConfigLive.Backend,
		"density", serverConfigLive.Density,
		"format", serverConfigLive.Format)

	fmt.Println("\n========================================")
	fmt.Println("   pdf2img - PDF to Image Converter")
	fmt.Println("========================================")
	fmt.Printf("Server will start on: %s:%s\n", serverConfigLive.ListenAddrIP, serverConfigLive.ListenAddrPort)
	if serverConfigLive.ListenAddrIP == "" {
		fmt.Println("(Listening on all network interfaces)")
	}
	fmt.Printf("Watch folder: %s (every %d minutes)\n", serverConfigLive.WatchPath, serverConfigLive.WatchInterval)
	fmt.Printf("Output folder: %s\n", serverConfigLive.OutputPath)
	fmt.Printf("Detailed logs: %s\n", getEnv("LOG_FILE", "pdf2img.log"))
	fmt.Println("Initializing...")

	return serverConfigLive, logger
}

// setupLogging configures the application logger
func setupLogging() *slog.Logger {
	logLevel := getEnv("LOG_LEVEL", "debug")
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelDebug
	}

	handlerOptions := &slog.HandlerOptions{Level: level}

	logOutput := getEnv("LOG_OUTPUT", "file")
	var logWriter io.Writer

	if logOutput == "stdout" {
		logWriter = os.Stdout
	} else {
		logPath, err := filepath.Abs(filepath.ToSlash(getEnv("LOG_FILE", "pdf2img.log")))
		if err != nil {
			fmt.Printf("Error creating log file path: %v\n", err)
			logWriter = os.Stdout
		} else {
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				fmt.Printf("Failed to open log file: %v\n", err)
				logWriter = os.Stdout
			} else {
				logWriter = logFile
				fmt.Println("Logging to file: ", logPath)
			}
		}
	}

	handler := slog.NewTextHandler(logWriter, handlerOptions)
	return slog.New(handler)
}

// CheckExecutable verifies that the named binary can be run, either as a
// bare name resolved on the PATH or as an explicit path
func CheckExecutable(name string, logger *slog.Logger) error {
	path, err := exec.LookPath(name)
	if err != nil {
		logger.Error("Cannot find executable", "name", name)
		return err
	}
	logger.Debug("Executable found", "path", path)
	return nil
}
