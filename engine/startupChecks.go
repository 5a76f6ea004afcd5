package engine

import (
	"os"

	"github.com/mfirth/pdf2img/config"
)

// StartupChecks performs all the checks to make sure everything works
func (serverHandler *ServerHandler) StartupChecks() error {
	serverConfig := serverHandler.ServerConfig
	backendChecks(serverConfig)
	watchDirectoryChecks(serverConfig)
	outputDirectoryChecks(serverConfig)
	return nil
}

// backendChecks verifies the configured rasterizer backend is usable. The
// subprocess backend needs an external binary on PATH; the in-process
// backends were already constructed before we got here.
func backendChecks(serverConfig config.ServerConfig) error {
	backend := serverConfig.ConversionConfig.Backend
	if backend != "magick" && backend != "gm" {
		Logger.Info("Using in-process rasterizer backend", "backend", backend)
		return nil
	}

	for _, candidate := range []string{"gm", "magick", "convert"} {
		if err := config.CheckExecutable(candidate, Logger); err == nil {
			Logger.Info("Found conversion binary for subprocess backend", "binary", candidate)
			return nil
		}
	}
	Logger.Warn("No GraphicsMagick or ImageMagick binary found on PATH, conversions will fail", "backend", backend)
	return nil
}

// watchDirectoryChecks ensures the watch directory exists
func watchDirectoryChecks(serverConfig config.ServerConfig) error {
	if serverConfig.WatchPath == "" {
		Logger.Warn("Watch path not configured")
		return nil
	}

	watchInfo, err := os.Stat(serverConfig.WatchPath)
	if err != nil {
		if os.IsNotExist(err) {
			Logger.Info("Creating watch directory", "path", serverConfig.WatchPath)
			if err := os.MkdirAll(serverConfig.WatchPath, 0755); err != nil {
				Logger.Error("Unable to create watch directory", "path", serverConfig.WatchPath, "error", err)
				return err
			}
			return nil
		}
		return err
	}
	if !watchInfo.IsDir() {
		Logger.Error("Watch path exists but is not a directory", "path", serverConfig.WatchPath)
	}
	return nil
}

// outputDirectoryChecks ensures the output directory exists and is writable
func outputDirectoryChecks(serverConfig config.ServerConfig) error {
	if serverConfig.OutputPath == "" {
		Logger.Warn("Output path not configured")
		return nil
	}

	if err := os.MkdirAll(serverConfig.OutputPath, 0755); err != nil {
		Logger.Error("Unable to create output directory", "path", serverConfig.OutputPath, "error", err)
		return err
	}

	probe, err := os.CreateTemp(serverConfig.OutputPath, ".write-check-*")
	if err != nil {
		Logger.Error("Output directory is not writable", "path", serverConfig.OutputPath, "error", err)
		return err
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}
