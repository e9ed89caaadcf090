package usecase_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsPipeline/internal/broadcast"
	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/logging"
	"NewsPipeline/internal/observability"
	"NewsPipeline/internal/ports"
	"NewsPipeline/internal/usecase"
)

func runStatuses(events []any) []domain.RunStatus {
	var out []domain.RunStatus
	for _, ev := range events {
		if update, ok := ev.(usecase.RunUpdateEvent); ok {
			out = append(out, update.Run.Status)
		}
	}
	return out
}

func receive(t *testing.T, sub *broadcast.Subscription) usecase.RunUpdateEvent {
	t.Helper()
	select {
	case msg := <-sub.C():
		update, ok := msg.(usecase.RunUpdateEvent)
		require.True(t, ok, "unexpected message %T", msg)
		return update
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for run update")
		return usecase.RunUpdateEvent{}
	}
}

func TestTriggerBroadcastsLifecycleToEverySubscriber(t *testing.T) {
	e := newEnv(t, testWorkspace("alpha", "@news"), plainItem)
	hub := broadcast.NewHub(16)
	orch := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Store:      e.store,
		Workspaces: newWorkspaces(e.ws),
		Pipeline:   e.pipeline,
		Broker:     hub,
		Logger:     logging.Discard(),
	})
	first := hub.Subscribe(usecase.RunTopic("alpha"))
	second := hub.Subscribe(usecase.RunTopic("alpha"))
	other := hub.Subscribe(usecase.RunTopic("beta"))

	run, err := orch.Trigger(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, domain.RunQueued, run.Status)
	assert.NotEmpty(t, run.TaskID)
	orch.Wait()

	for _, sub := range []*broadcast.Subscription{first, second} {
		var statuses []domain.RunStatus
		for n := 0; n < 3; n++ {
			update := receive(t, sub)
			assert.Equal(t, usecase.EventUpdate, update.Event)
			assert.Equal(t, "alpha", update.Workspace)
			assert.Equal(t, run.ID, update.Run.ID)
			statuses = append(statuses, update.Run.Status)
		}
		assert.Equal(t, []domain.RunStatus{domain.RunQueued, domain.RunRunning, domain.RunSuccess}, statuses)
	}
	assert.Empty(t, other.C())

	stored, err := e.store.Run(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunSuccess, stored.Status)
	assert.Equal(t, "published 1 articles, delivered 1 messages, 0 queued for moderation", stored.Message)
	assert.NotNil(t, stored.StartedAt)
	assert.NotNil(t, stored.FinishedAt)
}

func TestRunNowRetriesThenFails(t *testing.T) {
	e := newEnv(t, testWorkspace("alpha"), plainItem)
	boom := errString("feed unreachable")
	e.source.errs = []error{boom, boom, boom}

	reg := prometheus.NewRegistry()
	orch := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Store:      e.store,
		Workspaces: newWorkspaces(e.ws),
		Pipeline:   e.pipeline,
		Broker:     e.broker,
		Metrics:    observability.NewMetrics(reg, logging.Discard()),
		Alerts:     e.alerts,
		Logger:     logging.Discard(),
	})

	run, _, err := orch.RunNow(context.Background(), "alpha")
	require.Error(t, err)
	assert.Equal(t, domain.RunFailure, run.Status)
	assert.Equal(t, "parse news: feed unreachable", run.Message)
	assert.Equal(t, 3, e.source.Calls())

	events := e.broker.Events(usecase.RunTopic("alpha"))
	assert.Equal(t, []domain.RunStatus{
		domain.RunQueued,
		domain.RunRunning,
		domain.RunRunning,
		domain.RunRunning,
		domain.RunFailure,
	}, runStatuses(events))
	retried := events[2].(usecase.RunUpdateEvent)
	assert.Equal(t, "attempt 1 of 3 failed: parse news: feed unreachable", retried.Run.Message)

	critical := 0
	for _, a := range e.alerts.Events() {
		if a.Severity == ports.SeverityCritical {
			critical++
		}
	}
	assert.Equal(t, 3, critical)

	expected := `
# HELP newspipeline_pipeline_runs_total Total number of pipeline executions by workspace and outcome.
# TYPE newspipeline_pipeline_runs_total counter
newspipeline_pipeline_runs_total{status="failure",workspace="alpha"} 3
newspipeline_pipeline_runs_total{status="success",workspace="alpha"} 0
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "newspipeline_pipeline_runs_total"))

	stored, err := e.store.Run(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailure, stored.Status)
}

func TestRunNowRecoversOnRetry(t *testing.T) {
	e := newEnv(t, testWorkspace("alpha", "@news"), plainItem)
	e.source.errs = []error{errString("temporary outage")}
	orch := e.orchestrator(newWorkspaces(e.ws))

	run, result, err := orch.RunNow(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, domain.RunSuccess, run.Status)
	assert.Equal(t, 1, result.Published)
	assert.Equal(t, 2, e.source.Calls())

	var info []string
	for _, a := range e.alerts.Events() {
		if a.Severity == ports.SeverityInfo {
			info = append(info, a.Message)
		}
	}
	assert.Equal(t, []string{"pipeline published 1 articles"}, info)
}

type panicSource struct{}

func (panicSource) Collect(context.Context, domain.Workspace) ([]domain.RawItem, error) {
	panic("source exploded")
}

func TestRunNowRecoversFromPanic(t *testing.T) {
	ws := testWorkspace("alpha")
	ws.RetryAttempts = 0
	e := newEnv(t, ws)
	pipeline := usecase.NewPipeline(usecase.PipelineDeps{Source: panicSource{}, Store: e.store, Logger: logging.Discard()})
	orch := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Store:      e.store,
		Workspaces: newWorkspaces(ws),
		Pipeline:   pipeline,
		Logger:     logging.Discard(),
	})

	run, _, err := orch.RunNow(context.Background(), "alpha")
	require.Error(t, err)
	assert.Equal(t, domain.RunFailure, run.Status)
	assert.Equal(t, "pipeline panic: source exploded", run.Message)
}

func TestRunNowDisabledWorkspace(t *testing.T) {
	ws := testWorkspace("alpha")
	ws.Enabled = false
	e := newEnv(t, ws, plainItem)
	orch := e.orchestrator(newWorkspaces(ws))

	run, result, err := orch.RunNow(context.Background(), "alpha")
	require.NoError(t, err)
	assert.True(t, result.Disabled)
	assert.Equal(t, domain.RunSuccess, run.Status)
	assert.Equal(t, "workspace disabled", run.Message)
	assert.Empty(t, e.alerts.Events())
}

func TestTriggerValidatesWorkspace(t *testing.T) {
	e := newEnv(t, testWorkspace("alpha"))
	orch := e.orchestrator(newWorkspaces(e.ws))

	_, err := orch.Trigger(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = orch.Trigger(context.Background(), "   ")
	require.ErrorIs(t, err, domain.ErrInvalid)

	count, err := e.store.CountRuns(context.Background(), "missing")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRunsAndSnapshot(t *testing.T) {
	e := newEnv(t, testWorkspace("alpha"))
	orch := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Store:        e.store,
		Workspaces:   newWorkspaces(e.ws),
		Pipeline:     e.pipeline,
		Logger:       logging.Discard(),
		SnapshotSize: 2,
	})
	ctx := context.Background()

	var ids []int64
	for n := 0; n < 3; n++ {
		run, _, err := orch.RunNow(ctx, "alpha")
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	runs, err := orch.Runs(ctx, "alpha", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)

	runs, err = orch.Runs(ctx, "alpha", 500)
	require.NoError(t, err)
	assert.Len(t, runs, 3)

	snapshot, err := orch.Snapshot(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, usecase.EventSnapshot, snapshot.Event)
	assert.Equal(t, "alpha", snapshot.Workspace)
	require.Len(t, snapshot.Runs, 2)
	assert.Equal(t, ids[2], snapshot.Runs[0].ID)
}

func TestShutdownWaitsForRuns(t *testing.T) {
	e := newEnv(t, testWorkspace("alpha"), plainItem)
	orch := e.orchestrator(newWorkspaces(e.ws))

	run, err := orch.Trigger(context.Background(), "alpha")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, orch.Shutdown(ctx))

	stored, err := e.store.Run(context.Background(), run.ID)
	require.NoError(t, err)
	assert.True(t, stored.Status.Terminal())
}

type errString string

func (e errString) Error() string { return string(e) }
