package engine

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/mfirth/pdf2img/database"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// InitializeSchedules starts the cron jobs: the watch folder scan and a daily
// sweep of old job records
func (serverHandler *ServerHandler) InitializeSchedules() {
	serverConfig := serverHandler.ServerConfig

	// Run watch job immediately at startup in a goroutine
	Logger.Info("Running watch job at startup")
	go serverHandler.watchJobFunc()

	c := cron.New()
	var watchJob cron.Job
	watchJob = cron.FuncJob(func() { serverHandler.watchJobFunc() })
	watchJob = cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(watchJob) //ensure we don't kick off another if old one is still running
	c.AddJob(fmt.Sprintf("@every %dm", serverConfig.WatchInterval), watchJob)
	Logger.Info("Adding watch job scheduler", "interval_minutes", serverConfig.WatchInterval)

	cleanupJob := cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(cron.FuncJob(func() {
		job, err := serverHandler.DB.CreateJob(database.JobTypeCleanup, "Deleting old job records")
		if err != nil {
			Logger.Error("Failed to create cleanup job record", "error", err)
			return
		}
		serverHandler.cleanupJobFuncWithTracking(job.ID)
	}))
	c.AddJob("@daily", cleanupJob)

	c.Start()
}
