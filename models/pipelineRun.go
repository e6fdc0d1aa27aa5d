package models

import (
	"time"

	"bitbucket.org/mmdatafocus/replenish_backend/config"
)

const (
	RunStatusQueued  = "queued"
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
	RunStatusPartial = "partial"
)

const (
	RunTriggeredManual = "manual"
	RunTriggeredRemote = "remote"
	RunTriggeredSystem = "system"
)

const (
	TaskPrepareReplenishment = "prepare-replenishment"
	TaskPopulateAirtable     = "populate-airtable"
	TaskBarcodeLabels        = "barcode-labels"
	TaskPushPurchaseOrders   = "push-pos"
)

// PipelineRun is one recorded execution of a pipeline task. Persistence is
// optional; without a database the pipeline still runs, it just leaves no
// history.
type PipelineRun struct {
	ID            uint       `gorm:"primary_key" json:"id"`
	Task          string     `gorm:"index;size:50;not null" json:"task"`
	Status        string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy   string     `gorm:"size:20" json:"triggered_by"`
	StatsJSON     []byte     `gorm:"type:json" json:"stats"`
	RecordsSynced int        `json:"records_synced"`
	ErrorCount    int        `json:"error_count"`
	StartedAt     *time.Time `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	DurationMs    int64      `json:"duration_ms"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// PipelineRunError is one quarantined record or failed stage within a run.
type PipelineRunError struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	RunId       uint      `gorm:"index;not null" json:"run_id"`
	Source      string    `gorm:"size:50" json:"source"`
	EntityType  string    `gorm:"size:50" json:"entity_type"`
	ExternalId  string    `gorm:"size:128" json:"external_id"`
	ErrorCode   string    `gorm:"size:64" json:"error_code"`
	Message     string    `gorm:"type:text" json:"message"`
	PayloadJSON []byte    `gorm:"type:json" json:"payload"`
	Retryable   bool      `gorm:"default:false" json:"retryable"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func MigrateTable() {
	db := config.GetDB()
	if db == nil {
		return
	}
	_ = db.AutoMigrate(
		&PipelineRun{},
		&PipelineRunError{},
	)
}
