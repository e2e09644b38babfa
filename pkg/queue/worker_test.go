package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/codeready-toolchain/docfiler/pkg/config"
	"github.com/codeready-toolchain/docfiler/pkg/gate"
	"github.com/codeready-toolchain/docfiler/pkg/llmclient"
	"github.com/codeready-toolchain/docfiler/pkg/ocr"
	"github.com/codeready-toolchain/docfiler/pkg/services"
	"github.com/codeready-toolchain/docfiler/pkg/stages"
	"github.com/codeready-toolchain/docfiler/pkg/typelock"
	testdb "github.com/codeready-toolchain/docfiler/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestOrchestrator wires a real Postgres-backed State Store with stub
// external collaborators, mirroring the fixture every stage/flow test in
// this module builds from (see pkg/typelock/typelock_test.go).
func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	client := testdb.NewTestClient(t)

	g, err := gate.New(map[string]int{gate.OCR: 3, gate.LLM: 5, gate.FileGen: 2})
	require.NoError(t, err)

	deps := stages.NewDeps(
		services.NewDocumentService(client.Client),
		services.NewFileService(client.Client),
		services.NewTagService(client.Client),
		services.NewSeriesService(client.Client),
		services.NewPromptService(client.Client),
		llmclient.NewStubClient(nil),
		ocr.NewStubClient("stub text", 0.9),
		g,
		typelock.New(client.DB(), 10*time.Millisecond, time.Second),
		stages.DefaultPromptConfig(),
	)

	cfg := &config.OrchestratorConfig{
		PollInterval:            50 * time.Millisecond,
		DocumentBatchLimit:      10,
		FileBatchLimit:          10,
		StuckThreshold:          time.Minute,
		GracefulShutdownTimeout: time.Second,
		DefaultMaxRetries:       3,
	}

	return NewOrchestrator(client.Client, deps, cfg)
}

func TestOrchestrator_LaunchDeduplicatesInFlightRow(t *testing.T) {
	o := newTestOrchestrator(t)

	release := make(chan struct{})
	var calls int
	var mu sync.Mutex

	fn := func(ctx context.Context) error {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release
		return nil
	}

	var wg sync.WaitGroup
	o.launch(context.Background(), "document", "doc-1", &wg, fn)
	// A second launch for the same row while the first is still running
	// must be a no-op: the pipeline never runs two flows for one id at once.
	o.launch(context.Background(), "document", "doc-1", &wg, fn)

	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls, "launch must deduplicate an already in-flight row")
}

func TestOrchestrator_LaunchTracksActiveFlows(t *testing.T) {
	o := newTestOrchestrator(t)

	release := make(chan struct{})
	started := make(chan struct{})

	var wg sync.WaitGroup
	o.launch(context.Background(), "file", "file-1", &wg, func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})

	<-started
	h := o.Health()
	require.Len(t, h.WorkerStats, 1)
	assert.Equal(t, "file", h.WorkerStats[0].Kind)
	assert.Equal(t, "file-1", h.WorkerStats[0].RowID)

	close(release)
	wg.Wait()

	h = o.Health()
	assert.Empty(t, h.WorkerStats)
}

func TestOrchestrator_LaunchDocumentsRunsEachPendingDocumentOnce(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	d1, err := o.deps.Documents.CreateDocument(ctx, "/inbox/a", 3)
	require.NoError(t, err)
	d2, err := o.deps.Documents.CreateDocument(ctx, "/inbox/b", 3)
	require.NoError(t, err)

	require.NoError(t, o.RunOnce(ctx))

	got1, err := o.deps.Documents.GetByID(ctx, d1.ID)
	require.NoError(t, err)
	got2, err := o.deps.Documents.GetByID(ctx, d2.ID)
	require.NoError(t, err)

	// Each document's status must have advanced past pending: the stub OCR
	// client always succeeds, so OCR at least ran.
	assert.NotEqual(t, "pending", string(got1.Status))
	assert.NotEqual(t, "pending", string(got2.Status))
}
