package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/docfiler/ent"
	"github.com/codeready-toolchain/docfiler/pkg/config"
	"github.com/codeready-toolchain/docfiler/pkg/stages"
)

// Orchestrator is the single-process polling scheduler of spec §4.G. Each
// tick it launches a Document Flow or File Flow run for every launchable
// document/file it finds, up to the configured batch limits, and
// independently sweeps rows stuck mid-stage. Flow functions already
// terminate cleanly on any failure (see pkg/flow), so the orchestrator
// itself never inspects a flow's outcome beyond tracking when it finished.
type Orchestrator struct {
	client *ent.Client
	deps   stages.Deps
	config *config.OrchestratorConfig

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool

	mu          sync.RWMutex
	activeFlows map[string]WorkerHealth

	sweep sweepState
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(client *ent.Client, deps stages.Deps, cfg *config.OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		client:      client,
		deps:        deps,
		config:      cfg,
		stopCh:      make(chan struct{}),
		activeFlows: make(map[string]WorkerHealth),
	}
}

// Start begins the tick loop and the stuck-row sweep loop as background
// goroutines. Safe to call only once; a second call returns ErrAlreadyRunning.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.started {
		return ErrAlreadyRunning
	}
	o.started = true

	slog.Info("starting orchestrator",
		"poll_interval", o.config.PollInterval,
		"document_batch_limit", o.config.DocumentBatchLimit,
		"file_batch_limit", o.config.FileBatchLimit)

	// Recover anything left stuck mid-stage by a prior process before the
	// first tick, rather than waiting a full PollInterval for the sweep
	// loop's first run.
	o.sweepStuck(ctx)

	o.wg.Add(2)
	go func() { defer o.wg.Done(); o.runTickLoop(ctx) }()
	go func() { defer o.wg.Done(); o.runSweepLoop(ctx) }()

	return nil
}

// Stop signals both loops to stop and waits for in-flight flow launches to
// drain, bounded by GracefulShutdownTimeout.
func (o *Orchestrator) Stop() {
	if !o.started {
		return
	}
	slog.Info("stopping orchestrator")
	o.stopOnce.Do(func() { close(o.stopCh) })

	done := make(chan struct{})
	go func() { o.wg.Wait(); close(done) }()

	select {
	case <-done:
		slog.Info("orchestrator stopped")
	case <-time.After(o.config.GracefulShutdownTimeout):
		slog.Warn("orchestrator shutdown timed out waiting for in-flight flows")
	}
}

// RunOnce performs exactly one launch pass (documents then files) and blocks
// until every flow it started has returned. Used by the run-once CLI mode,
// which drains the currently-launchable backlog and exits rather than
// polling forever.
func (o *Orchestrator) RunOnce(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var wg sync.WaitGroup
	o.launchDocuments(ctx, &wg)
	o.launchFiles(ctx, &wg)
	wg.Wait()
	return nil
}

// Health returns the current state of the orchestrator for operators.
func (o *Orchestrator) Health() *PoolHealth {
	ctx := context.Background()

	_, err := o.client.Document.Query().Limit(1).Count(ctx)
	dbHealthy := err == nil
	var dbErr string
	if err != nil {
		dbErr = fmt.Sprintf("document count query failed: %v", err)
	}

	o.mu.RLock()
	stats := make([]WorkerHealth, 0, len(o.activeFlows))
	for _, wh := range o.activeFlows {
		stats = append(stats, wh)
	}
	o.mu.RUnlock()

	o.sweep.mu.Lock()
	lastSweep := o.sweep.lastSweepAt
	recovered := o.sweep.rowsRecovered
	o.sweep.mu.Unlock()

	return &PoolHealth{
		IsHealthy:          dbHealthy,
		DBReachable:        dbHealthy,
		DBError:            dbErr,
		ActiveFlows:        len(stats),
		DocumentBatchLimit: o.config.DocumentBatchLimit,
		FileBatchLimit:     o.config.FileBatchLimit,
		WorkerStats:        stats,
		LastSweepAt:        lastSweep,
		RowsRecoveredTotal: recovered,
	}
}

func (o *Orchestrator) runTickLoop(ctx context.Context) {
	ticker := time.NewTicker(o.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Launches are fire-and-forget across ticks: a slow flow must
			// never stall the next tick's poll. Stop() still waits for them
			// via o.wg.
			o.launchDocuments(ctx, nil)
			o.launchFiles(ctx, nil)
		}
	}
}
