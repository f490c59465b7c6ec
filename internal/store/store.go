// Package store archives pipeline runs: the run record, the reshaped
// observations and every result table cell.
package store

import (
	"imrmap/internal/domain"
	"imrmap/internal/summarize"
)

// DefaultDBPath is the default relative path for the SQLite archive.
// Open() creates the parent dir.
const DefaultDBPath = ".imrmap/runs.db"

// Run statuses.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Run is one pipeline execution.
type Run struct {
	ID           string // UUID
	Study        string // config file the run was started from
	Solver       string
	Formula      string
	Config       string // YAML snapshot of the effective config
	Status       string
	Error        string
	Counties     int
	Observations int
	StartedAt    string
	FinishedAt   string
}

// Store is the persistence facade for runs.
// Pipeline and CLI use only this interface; implementation is SQLite or in-memory.
type Store interface {
	// Runs
	CreateRun(r *Run) (runID string, err error)
	FinishRun(runID, status, errMsg string) error
	GetRun(runID string) (*Run, error)
	ListRuns() ([]*Run, error)
	// Data and results of a run
	SaveObservations(runID string, obs []domain.Observation) error
	ListObservations(runID string) ([]domain.Observation, error)
	SaveTable(runID string, t *summarize.Table) error
	ListTables(runID string) ([]*summarize.Table, error)
	Close() error
}
