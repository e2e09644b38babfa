// Package queue implements the Orchestrator (spec §4.G): a single-process
// polling scheduler that launches Document Flow and File Flow runs for
// launchable rows, throttled by the Concurrency Gate and Per-Type
// Serializer inside the stages themselves rather than by a fixed worker
// pool size.
package queue

import (
	"errors"
	"time"
)

// Sentinel errors for orchestrator operations.
var (
	// ErrNoWorkAvailable indicates a tick found nothing launchable.
	ErrNoWorkAvailable = errors.New("queue: no work available")

	// ErrAlreadyRunning indicates Start was called on a running Orchestrator.
	ErrAlreadyRunning = errors.New("queue: orchestrator already running")

	// ErrNotRunning indicates the Orchestrator is not running. Stop and
	// RunOnce do not return it.
	ErrNotRunning = errors.New("queue: orchestrator not running")
)

// PoolHealth reports the orchestrator's aggregate state for operators: DB
// reachability, in-flight flow count, and stuck-row sweep counters.
type PoolHealth struct {
	IsHealthy          bool           `json:"is_healthy"`
	DBReachable        bool           `json:"db_reachable"`
	DBError            string         `json:"db_error,omitempty"`
	ActiveFlows        int            `json:"active_flows"`
	DocumentBatchLimit int            `json:"document_batch_limit"`
	FileBatchLimit     int            `json:"file_batch_limit"`
	WorkerStats        []WorkerHealth `json:"worker_stats"`
	LastTickAt         time.Time      `json:"last_tick_at"`
	LastSweepAt        time.Time      `json:"last_sweep_at"`
	RowsRecoveredTotal int            `json:"rows_recovered_total"`
}

// WorkerHealth reports one in-flight flow launch, identified by the kind of
// row it is driving ("document" or "file") and that row's id. There is no
// fixed pool of numbered worker slots: one WorkerHealth entry exists per
// flow currently running.
type WorkerHealth struct {
	Kind      string    `json:"kind"`
	RowID     string    `json:"row_id"`
	StartedAt time.Time `json:"started_at"`
}
