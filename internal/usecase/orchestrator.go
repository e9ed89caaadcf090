package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

const (
	defaultSnapshotSize = 20
	maxRunsLimit        = 100
)

// OrchestratorDeps wires run lifecycle management.
type OrchestratorDeps struct {
	Store        ports.Store
	Workspaces   ports.WorkspaceProvider
	Pipeline     *Pipeline
	SeenSets     ports.SeenSets
	Broker       ports.Broker
	Metrics      ports.Metrics
	Alerts       ports.Alerter
	Logger       *slog.Logger
	SnapshotSize int
}

// Orchestrator creates pipeline runs, executes them in the background and reports their progress.
type Orchestrator struct {
	store        ports.Store
	workspaces   ports.WorkspaceProvider
	pipeline     *Pipeline
	seenSets     ports.SeenSets
	broker       ports.Broker
	metrics      ports.Metrics
	alerts       ports.Alerter
	logger       *slog.Logger
	snapshotSize int

	newTaskID func() string
	now       func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator constructs the orchestrator. Background runs stop when Shutdown is called.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	seenSets := deps.SeenSets
	if seenSets == nil {
		seenSets = MemorySeenSets{}
	}
	snapshot := deps.SnapshotSize
	if snapshot <= 0 {
		snapshot = defaultSnapshotSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		store:        deps.Store,
		workspaces:   deps.Workspaces,
		pipeline:     deps.Pipeline,
		seenSets:     seenSets,
		broker:       deps.Broker,
		metrics:      deps.Metrics,
		alerts:       deps.Alerts,
		logger:       logger,
		snapshotSize: snapshot,
		newTaskID:    uuid.NewString,
		now:          func() time.Time { return time.Now().UTC() },
		baseCtx:      ctx,
		cancel:       cancel,
	}
}

// Trigger records a queued run and executes it in the background.
func (o *Orchestrator) Trigger(ctx context.Context, workspace string) (domain.PipelineRun, error) {
	run, err := o.enqueue(ctx, workspace)
	if err != nil {
		return domain.PipelineRun{}, err
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		_, _, _ = o.execute(o.baseCtx, run)
	}()
	return run, nil
}

// RunNow records a run and executes it synchronously, returning its final state.
func (o *Orchestrator) RunNow(ctx context.Context, workspace string) (domain.PipelineRun, RunResult, error) {
	run, err := o.enqueue(ctx, workspace)
	if err != nil {
		return domain.PipelineRun{}, RunResult{}, err
	}
	run, result, err := o.execute(ctx, run)
	return run, result, err
}

// Runs lists recent runs of a workspace, newest first.
func (o *Orchestrator) Runs(ctx context.Context, workspace string, limit int) ([]domain.PipelineRun, error) {
	switch {
	case limit <= 0:
		limit = o.snapshotSize
	case limit > maxRunsLimit:
		limit = maxRunsLimit
	}
	return o.store.RecentRuns(ctx, workspace, limit)
}

// Snapshot returns the first message sent to a status stream subscriber.
func (o *Orchestrator) Snapshot(ctx context.Context, workspace string) (RunSnapshotEvent, error) {
	runs, err := o.store.RecentRuns(ctx, workspace, o.snapshotSize)
	if err != nil {
		return RunSnapshotEvent{}, fmt.Errorf("load run snapshot: %w", err)
	}
	return RunSnapshotEvent{Event: EventSnapshot, Workspace: workspace, Runs: runs}, nil
}

// Wait blocks until every background run has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Shutdown cancels background runs and waits for them until ctx expires.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.cancel()
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for pipeline runs: %w", ctx.Err())
	}
}

func (o *Orchestrator) enqueue(ctx context.Context, workspace string) (domain.PipelineRun, error) {
	workspace = strings.TrimSpace(workspace)
	if workspace == "" {
		return domain.PipelineRun{}, fmt.Errorf("%w: workspace is required", domain.ErrInvalid)
	}
	if _, err := o.workspaces.Workspace(ctx, workspace); err != nil {
		return domain.PipelineRun{}, err
	}

	run := domain.PipelineRun{
		Workspace: workspace,
		TaskID:    o.newTaskID(),
		Status:    domain.RunQueued,
		CreatedAt: o.now(),
	}
	if err := o.store.CreateRun(ctx, &run); err != nil {
		return domain.PipelineRun{}, fmt.Errorf("create run: %w", err)
	}

	o.logger.Info("pipeline run queued", "workspace", workspace, "task_id", run.TaskID, "run_id", run.ID)
	o.publishRun(run)
	return run, nil
}

// execute drives one run to a terminal state, retrying the whole pipeline on failure.
func (o *Orchestrator) execute(ctx context.Context, run domain.PipelineRun) (domain.PipelineRun, RunResult, error) {
	logger := o.logger.With("workspace", run.Workspace, "task_id", run.TaskID)
	persistCtx := context.WithoutCancel(ctx)

	if err := run.Transition(domain.RunRunning, "", o.now()); err != nil {
		return run, RunResult{}, err
	}
	o.saveRun(persistCtx, logger, run)

	ws, err := o.workspaces.Workspace(ctx, run.Workspace)
	if err != nil {
		o.recordFailure(ctx, run.Workspace, 0, err)
		return o.fail(persistCtx, logger, run, err), RunResult{}, err
	}
	if o.metrics != nil {
		o.metrics.EnsureWorkspace(ws.ID)
	}

	var result RunResult
	policy := retryPolicy{
		name:     "pipeline run",
		attempts: ws.RetryAttempts,
		delay:    ws.RetryDelay,
		logger:   logger,
	}
	err = policy.do(ctx, func(attempt int) error {
		started := time.Now()
		res, err := o.attempt(ctx, ws, run.TaskID, attempt)
		if err == nil {
			result = res
			return nil
		}

		o.recordFailure(ctx, ws.ID, time.Since(started), err)
		if attempt < ws.RetryAttempts {
			run.Message = fmt.Sprintf("attempt %d of %d failed: %v", attempt+1, ws.RetryAttempts+1, err)
			o.saveRun(persistCtx, logger, run)
		}
		return err
	})
	if err != nil {
		return o.fail(persistCtx, logger, run, err), result, err
	}

	if !result.Disabled {
		if o.metrics != nil {
			o.metrics.RecordSuccess(ws.ID, result.Duration, result.Stats())
		}
		o.alert(ctx, ws.ID, fmt.Sprintf("pipeline published %d articles", result.Published), ports.SeverityInfo)
	}

	if err := run.Transition(domain.RunSuccess, result.Summary(), o.now()); err != nil {
		return run, result, err
	}
	o.saveRun(persistCtx, logger, run)
	logger.Info("pipeline run finished", "status", run.Status, "message", run.Message)
	return run, result, nil
}

// attempt executes the stage chain once with a fresh seen set.
func (o *Orchestrator) attempt(ctx context.Context, ws domain.Workspace, taskID string, attempt int) (result RunResult, err error) {
	seen := o.seenSets.Open(ws.ID, fmt.Sprintf("%s:%d", taskID, attempt))
	defer func() {
		if relErr := seen.Release(context.WithoutCancel(ctx)); relErr != nil {
			o.logger.Warn("release seen set failed", "workspace", ws.ID, "task_id", taskID, "error", relErr)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	return o.pipeline.Execute(ctx, ws, seen)
}

func (o *Orchestrator) fail(ctx context.Context, logger *slog.Logger, run domain.PipelineRun, cause error) domain.PipelineRun {
	if err := run.Transition(domain.RunFailure, cause.Error(), o.now()); err != nil {
		logger.Error("cannot mark run failed", "error", err)
		return run
	}
	o.saveRun(ctx, logger, run)
	logger.Error("pipeline run failed", "error", cause)
	return run
}

func (o *Orchestrator) recordFailure(ctx context.Context, workspace string, duration time.Duration, err error) {
	if o.metrics != nil {
		o.metrics.RecordFailure(workspace, duration)
	}
	o.alert(ctx, workspace, err.Error(), ports.SeverityCritical)
}

func (o *Orchestrator) saveRun(ctx context.Context, logger *slog.Logger, run domain.PipelineRun) {
	if err := o.store.UpdateRun(ctx, &run); err != nil {
		logger.Error("persist run state failed", "status", run.Status, "error", err)
	}
	o.publishRun(run)
}

func (o *Orchestrator) publishRun(run domain.PipelineRun) {
	if o.broker == nil {
		return
	}
	o.broker.Publish(RunTopic(run.Workspace), RunUpdateEvent{
		Event:     EventUpdate,
		Workspace: run.Workspace,
		Run:       run,
	})
}

func (o *Orchestrator) alert(ctx context.Context, workspace, message string, severity ports.Severity) {
	if o.alerts != nil {
		o.alerts.Alert(ctx, workspace, message, severity)
	}
}
