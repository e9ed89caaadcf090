package parser

import (
	"context"
	"slices"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/scanner"
)

// StaticScanner returns the items declared inline in the workspace configuration.
type StaticScanner struct{}

// Kind identifies the strategy inside the registry.
func (StaticScanner) Kind() domain.SourceKind {
	return domain.SourceStatic
}

// Scan copies the configured items so callers cannot mutate the configuration.
func (StaticScanner) Scan(_ context.Context, req scanner.Request) ([]domain.RawItem, error) {
	return slices.Clone(req.Source.Items), nil
}
