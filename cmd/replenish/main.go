package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/replenish_backend/airtable"
	"bitbucket.org/mmdatafocus/replenish_backend/config"
	"bitbucket.org/mmdatafocus/replenish_backend/export"
	"bitbucket.org/mmdatafocus/replenish_backend/models"
	"bitbucket.org/mmdatafocus/replenish_backend/pipeline"
	"bitbucket.org/mmdatafocus/replenish_backend/shiphero"
	"bitbucket.org/mmdatafocus/replenish_backend/shopify"
)

func main() {
	var (
		task    = flag.String("task", models.TaskPrepareReplenishment, "pipeline task to run")
		timeout = flag.Duration("timeout", 30*time.Minute, "abort the run after this long")
		list    = flag.Bool("list", false, "list available tasks and exit")
	)
	flag.Parse()

	if *list {
		fmt.Println(strings.Join([]string{
			models.TaskPrepareReplenishment,
			models.TaskPopulateAirtable,
			models.TaskBarcodeLabels,
			models.TaskPushPurchaseOrders,
		}, "\n"))
		return
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	ctx, cancel := context.WithTimeout(sigCtx, *timeout)
	defer cancel()

	if config.HasDatabase() {
		if err := config.ConnectDatabase(); err != nil {
			logger.WithError(err).Fatal("database connection failed")
		}
		models.MigrateTable()
	}
	if config.HasRedis() {
		if err := config.ConnectRedis(); err != nil {
			logger.WithError(err).Fatal("redis connection failed")
		}
	}

	records, err := airtable.NewClient()
	if err != nil {
		logger.WithError(err).Fatal("record store client could not be wired")
	}
	var sheets *export.SheetsExporter
	if config.EnvString("SHEETS_SPREADSHEET_ID", "") != "" {
		sheets, err = export.NewSheetsExporter(ctx)
		if err != nil {
			logger.WithError(err).Fatal("sheets exporter could not be wired")
		}
	}

	worker := pipeline.NewWorker(shiphero.NewClientFromEnv(), shopify.NewClient(), records, sheets)
	run, err := worker.Run(ctx, *task, models.RunTriggeredManual)
	if err != nil {
		logger.WithFields(logrus.Fields{"task": *task}).WithError(err).Fatal("run failed")
	}
	logger.WithFields(logrus.Fields{
		"task":           *task,
		"status":         run.Status,
		"records_synced": run.RecordsSynced,
		"duration_ms":    run.DurationMs,
	}).Info("run complete")
}
