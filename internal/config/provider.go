package config

import (
	"context"
	"fmt"
	"strings"

	"NewsPipeline/internal/domain"
)

// WorkspaceProvider serves workspace configuration, re-reading the config file on every call
// so edits apply to the next run without a restart.
type WorkspaceProvider struct {
	path     string
	fallback []WorkspaceConfig
}

// NewWorkspaceProvider reads workspaces from path, or serves cfg's workspaces when path is empty.
func NewWorkspaceProvider(path string, cfg Config) *WorkspaceProvider {
	return &WorkspaceProvider{path: path, fallback: cfg.Workspaces}
}

// Workspaces returns every configured workspace.
func (p *WorkspaceProvider) Workspaces(ctx context.Context) ([]domain.Workspace, error) {
	configs, err := p.load()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Workspace, 0, len(configs))
	for _, ws := range configs {
		out = append(out, ws.Domain())
	}
	return out, nil
}

// Workspace returns one workspace or domain.ErrNotFound.
func (p *WorkspaceProvider) Workspace(ctx context.Context, id string) (domain.Workspace, error) {
	configs, err := p.load()
	if err != nil {
		return domain.Workspace{}, err
	}
	id = strings.TrimSpace(id)
	for _, ws := range configs {
		if strings.TrimSpace(ws.ID) == id {
			return ws.Domain(), nil
		}
	}
	return domain.Workspace{}, fmt.Errorf("workspace %q: %w", id, domain.ErrNotFound)
}

func (p *WorkspaceProvider) load() ([]WorkspaceConfig, error) {
	if p.path == "" {
		return p.fallback, nil
	}
	fileCfg, err := readFile(p.path)
	if err != nil {
		return nil, err
	}
	if err := validateWorkspaces(fileCfg.Workspaces); err != nil {
		return nil, fmt.Errorf("invalid workspaces in %s: %w", p.path, err)
	}
	return fileCfg.Workspaces, nil
}
