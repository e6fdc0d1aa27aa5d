package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/replenish_backend/airtable"
	"bitbucket.org/mmdatafocus/replenish_backend/config"
	"bitbucket.org/mmdatafocus/replenish_backend/export"
	"bitbucket.org/mmdatafocus/replenish_backend/models"
	"bitbucket.org/mmdatafocus/replenish_backend/shiphero"
	"bitbucket.org/mmdatafocus/replenish_backend/shopify"
)

// ErrRunInProgress is returned when another process already holds the
// pipeline lock for the requested task.
var ErrRunInProgress = errors.New("pipeline run already in progress")

const runLockTTL = 30 * time.Minute

// Worker executes pipeline tasks against the upstream APIs and records
// each run's outcome.
type Worker struct {
	warehouse  *shiphero.Client
	storefront *shopify.Client
	records    *airtable.Client
	sheets     *export.SheetsExporter

	logger *logrus.Logger
	now    func() time.Time
}

// NewWorker wires a worker from its clients. sheets may be nil when no
// spreadsheet sink is configured.
func NewWorker(warehouse *shiphero.Client, storefront *shopify.Client, records *airtable.Client, sheets *export.SheetsExporter) *Worker {
	return &Worker{
		warehouse:  warehouse,
		storefront: storefront,
		records:    records,
		sheets:     sheets,
		logger:     config.GetLogger(),
		now:        time.Now,
	}
}

// runState accumulates what happened during one task execution.
type runState struct {
	run     *models.PipelineRun
	stats   map[string]interface{}
	partial bool
}

func (s *runState) addStat(key string, value interface{}) {
	s.stats[key] = value
}

// Run executes one named task under a single-flight lock, recording the
// run and its errors in the run-history tables when a database is
// configured.
func (w *Worker) Run(ctx context.Context, task, triggeredBy string) (*models.PipelineRun, error) {
	release, err := w.acquireLock(ctx, task)
	if err != nil {
		return nil, err
	}
	defer release()

	startedAt := w.now()
	state := &runState{
		run: &models.PipelineRun{
			Task:        task,
			Status:      models.RunStatusRunning,
			TriggeredBy: triggeredBy,
			StartedAt:   &startedAt,
		},
		stats: map[string]interface{}{},
	}
	w.persistRun(state.run)
	w.logger.WithFields(logrus.Fields{
		"task":         task,
		"triggered_by": triggeredBy,
	}).Info("pipeline run started")

	var runErr error
	switch task {
	case models.TaskPrepareReplenishment:
		runErr = w.prepareReplenishment(ctx, state)
	case models.TaskPopulateAirtable:
		runErr = w.populateRecordStore(ctx, state)
	case models.TaskBarcodeLabels:
		runErr = w.barcodeLabels(ctx, state)
	case models.TaskPushPurchaseOrders:
		runErr = w.pushPurchaseOrders(ctx, state)
	default:
		runErr = fmt.Errorf("unknown pipeline task %q", task)
	}

	finishedAt := w.now()
	state.run.FinishedAt = &finishedAt
	state.run.DurationMs = finishedAt.Sub(startedAt).Milliseconds()
	switch {
	case runErr != nil:
		state.run.Status = models.RunStatusFailed
	case state.partial:
		state.run.Status = models.RunStatusPartial
	default:
		state.run.Status = models.RunStatusSuccess
	}
	if stats, err := json.Marshal(state.stats); err == nil {
		state.run.StatsJSON = stats
	}
	w.persistRun(state.run)
	if runErr == nil {
		if err := config.SetRedisValue(lastSuccessKey(task), finishedAt.Format(time.RFC3339), 0); err != nil {
			w.logger.WithField("task", task).Warn("last-success marker not stored")
		}
	}

	entry := w.logger.WithFields(logrus.Fields{
		"task":        task,
		"status":      state.run.Status,
		"duration_ms": state.run.DurationMs,
		"errors":      state.run.ErrorCount,
	})
	if runErr != nil {
		config.LogError(w.logger, "pipeline", "Run", task, state.stats, runErr)
		entry.Error("pipeline run failed")
		return state.run, runErr
	}
	entry.Info("pipeline run finished")
	return state.run, nil
}

// lastSuccessKey names the Redis marker holding each task's most recent
// successful finish time.
func lastSuccessKey(task string) string {
	return "replenish:last_success:" + task
}

func (w *Worker) acquireLock(ctx context.Context, task string) (func(), error) {
	if !config.HasRedis() {
		return func() {}, nil
	}
	locker := config.GetRedisLock()
	lock, err := locker.Obtain(ctx, "replenish:pipeline:"+task, runLockTTL, nil)
	if err == redislock.ErrNotObtained {
		return nil, ErrRunInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("obtain pipeline lock: %w", err)
	}
	return func() {
		if err := lock.Release(context.Background()); err != nil {
			w.logger.WithField("task", task).Warn("pipeline lock release failed")
		}
	}, nil
}

func (w *Worker) persistRun(run *models.PipelineRun) {
	if !config.HasDatabase() {
		return
	}
	if err := config.GetDB().Save(run).Error; err != nil {
		w.logger.WithField("task", run.Task).Warn("pipeline run history not persisted")
	}
}

// recordSourceError logs a source failure, stores it in run history, and
// marks the run partial. The pipeline keeps going with whatever data the
// remaining sources provide.
func (w *Worker) recordSourceError(state *runState, source, entityType string, err error) {
	state.partial = true
	state.run.ErrorCount++
	w.logger.WithFields(logrus.Fields{
		"source": source,
		"entity": entityType,
	}).WithError(err).Warn("source degraded, continuing without it")
	if !config.HasDatabase() {
		return
	}
	runErr := &models.PipelineRunError{
		RunId:      state.run.ID,
		Source:     source,
		EntityType: entityType,
		Message:    err.Error(),
		Retryable:  true,
	}
	if dbErr := config.GetDB().Create(runErr).Error; dbErr != nil {
		w.logger.Warn("pipeline run error not persisted")
	}
}
