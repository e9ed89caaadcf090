package usecase

import (
	"context"
	"log/slog"
	"time"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

// Trigger schedules a run for one workspace.
type Trigger interface {
	Trigger(ctx context.Context, workspace string) (domain.PipelineRun, error)
}

// Scheduler wires the periodic driver with run triggering for every enabled workspace.
type Scheduler struct {
	driver     ports.Scheduler
	workspaces ports.WorkspaceProvider
	trigger    Trigger
	logger     *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring runs.
func NewScheduler(driver ports.Scheduler, workspaces ports.WorkspaceProvider, trigger Trigger, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, workspaces: workspaces, trigger: trigger, logger: logger}
}

// Start registers the periodic job with the driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.trigger == nil {
		return nil
	}

	job := func(tick time.Time) {
		s.TriggerAll(ctx, tick)
	}

	return s.driver.Start(ctx, job)
}

// TriggerAll queues a run for each enabled workspace and returns the queued runs.
func (s *Scheduler) TriggerAll(ctx context.Context, tick time.Time) []domain.PipelineRun {
	workspaces, err := s.workspaces.Workspaces(ctx)
	if err != nil {
		s.logger.Error("load workspaces for scheduled runs failed", "error", err)
		return nil
	}

	var runs []domain.PipelineRun
	for _, ws := range workspaces {
		if !ws.Enabled {
			continue
		}
		run, err := s.trigger.Trigger(ctx, ws.ID)
		if err != nil {
			s.logger.Error("scheduled trigger failed", "workspace", ws.ID, "error", err)
			continue
		}
		runs = append(runs, run)
	}
	s.logger.Info("scheduled runs queued", "tick", tick.UTC().Format(time.RFC3339), "count", len(runs))
	return runs
}

// Stop gracefully tears down the underlying driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
