// Package model defines the records FrameSeal keeps about batch runs.
// Struct tags map fields to SQLite columns (`db:"..."`, read by sqlx) and to
// API responses (`json:"..."`).
package model

import "time"

// RunStatus is the lifecycle state of a batch run.
type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunFinished RunStatus = "finished"
	RunCanceled RunStatus = "canceled"
)

// ResultStatus is the outcome of one image in a run.
// Go doesn't have enums; typed string constants read well in SQL and JSON.
type ResultStatus string

const (
	StatusSucceeded ResultStatus = "succeeded"
	StatusFailed    ResultStatus = "failed"
	StatusCanceled  ResultStatus = "canceled"
)

// AllStatuses lists result statuses in display order.
var AllStatuses = []ResultStatus{StatusSucceeded, StatusFailed, StatusCanceled}

// Run is one invocation of the batch pipeline.
type Run struct {
	ID         int64      `db:"id" json:"id"`
	Format     string     `db:"format" json:"format"`
	Total      int        `db:"total" json:"total"`
	Succeeded  int        `db:"succeeded" json:"succeeded"`
	Failed     int        `db:"failed" json:"failed"`
	Canceled   int        `db:"canceled" json:"canceled"`
	Status     RunStatus  `db:"status" json:"status"`
	StartedAt  time.Time  `db:"started_at" json:"started_at"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// ImageResult records what happened to a single input file.
// OutputPath is nil unless the image was written.
type ImageResult struct {
	ID           int64        `db:"id" json:"id"`
	RunID        int64        `db:"run_id" json:"run_id"`
	SourcePath   string       `db:"source_path" json:"source_path"`
	OutputPath   *string      `db:"output_path" json:"output_path,omitempty"`
	Status       ResultStatus `db:"status" json:"status"`
	ErrorMessage *string      `db:"error_message" json:"error_message,omitempty"`
	DurationMs   int64        `db:"duration_ms" json:"duration_ms"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}
