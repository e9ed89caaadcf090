package parser

import (
	"context"
	"fmt"
	"log/slog"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
	"NewsPipeline/internal/scanner"
)

// StrategySource implements ItemSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	logger   *slog.Logger
}

var _ ports.ItemSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry.
func NewStrategySource(reg *scanner.Registry, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		logger:   log,
	}
}

// Collect iterates over the active sources of the workspace and executes their scanners.
func (s *StrategySource) Collect(ctx context.Context, ws domain.Workspace) ([]domain.RawItem, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	s.debug("collect workspace", "workspace", ws.ID, "sources", len(ws.Sources))

	var aggregated []domain.RawItem
	for _, src := range ws.Sources {
		if !src.IsActive {
			s.debug("skip inactive source", "workspace", ws.ID, "source", src.Name)
			continue
		}

		strategy, err := s.registry.Resolve(src.Kind)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Name, err)
		}

		results, err := strategy.Scan(ctx, scanner.Request{Workspace: ws.ID, Source: src})
		if err != nil {
			return nil, fmt.Errorf("scan source %s: %w", src.Name, err)
		}

		for i := range results {
			if results[i].Source == "" {
				results[i].Source = src.Name
			}
		}
		s.debug("source produced items", "workspace", ws.ID, "source", src.Name, "count", len(results))
		aggregated = append(aggregated, results...)
	}

	s.debug("strategy source done", "workspace", ws.ID, "total_items", len(aggregated))
	return aggregated, nil
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
