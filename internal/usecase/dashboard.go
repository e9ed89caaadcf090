package usecase

import (
	"context"
	"fmt"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

// DashboardCounts aggregates the stored state of a workspace.
type DashboardCounts struct {
	Sources           int `json:"sources"`
	ActiveSources     int `json:"active_sources"`
	Proxies           int `json:"proxies"`
	Channels          int `json:"channels"`
	ActiveChannels    int `json:"active_channels"`
	Runs              int `json:"runs"`
	Articles          int `json:"articles"`
	Records           int `json:"records"`
	PendingModeration int `json:"pending_moderation"`
}

// Dashboard is the read-only overview of one workspace.
type Dashboard struct {
	Workspace string                   `json:"workspace"`
	Counts    DashboardCounts          `json:"counts"`
	Sources   []domain.Source          `json:"sources"`
	Proxies   []domain.Proxy           `json:"proxies"`
	Channels  []domain.DeliveryChannel `json:"channels"`
	Runs      []domain.PipelineRun     `json:"runs"`
}

// DashboardService composes workspace overviews from the store.
type DashboardService struct {
	store      ports.Repository
	workspaces ports.WorkspaceProvider
	runLimit   int
}

// NewDashboardService wires the dashboard reader. runLimit bounds the listed runs.
func NewDashboardService(store ports.Repository, workspaces ports.WorkspaceProvider, runLimit int) *DashboardService {
	if runLimit <= 0 {
		runLimit = defaultSnapshotSize
	}
	return &DashboardService{store: store, workspaces: workspaces, runLimit: runLimit}
}

// Snapshot builds the overview of a configured workspace.
func (s *DashboardService) Snapshot(ctx context.Context, workspace string) (Dashboard, error) {
	if _, err := s.workspaces.Workspace(ctx, workspace); err != nil {
		return Dashboard{}, err
	}

	sources, err := s.store.Sources(ctx, workspace)
	if err != nil {
		return Dashboard{}, fmt.Errorf("load sources: %w", err)
	}
	proxies, err := s.store.Proxies(ctx, workspace)
	if err != nil {
		return Dashboard{}, fmt.Errorf("load proxies: %w", err)
	}
	channels, err := s.store.Channels(ctx, workspace)
	if err != nil {
		return Dashboard{}, fmt.Errorf("load channels: %w", err)
	}
	runs, err := s.store.RecentRuns(ctx, workspace, s.runLimit)
	if err != nil {
		return Dashboard{}, fmt.Errorf("load runs: %w", err)
	}
	runCount, err := s.store.CountRuns(ctx, workspace)
	if err != nil {
		return Dashboard{}, fmt.Errorf("count runs: %w", err)
	}
	articles, err := s.store.Articles(ctx, workspace)
	if err != nil {
		return Dashboard{}, fmt.Errorf("load articles: %w", err)
	}
	records, err := s.store.Records(ctx, workspace)
	if err != nil {
		return Dashboard{}, fmt.Errorf("load records: %w", err)
	}
	pending, err := s.store.PendingModeration(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("load pending moderation: %w", err)
	}

	counts := DashboardCounts{
		Sources:  len(sources),
		Proxies:  len(proxies),
		Channels: len(channels),
		Runs:     runCount,
		Articles: len(articles),
		Records:  len(records),
	}
	for _, src := range sources {
		if src.IsActive {
			counts.ActiveSources++
		}
	}
	for _, ch := range channels {
		if ch.IsActive {
			counts.ActiveChannels++
		}
	}
	for _, req := range pending {
		if req.Workspace == workspace {
			counts.PendingModeration++
		}
	}

	return Dashboard{
		Workspace: workspace,
		Counts:    counts,
		Sources:   nonNil(sources),
		Proxies:   nonNil(proxies),
		Channels:  nonNil(channels),
		Runs:      nonNil(runs),
	}, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
