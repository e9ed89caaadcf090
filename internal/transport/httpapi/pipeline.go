package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/usecase"
)

type runsResponse struct {
	Workspace string               `json:"workspace"`
	Runs      []domain.PipelineRun `json:"runs"`
}

// POST /api/workspaces/:workspace/pipeline/trigger
func (s *Server) triggerRun(c echo.Context) error {
	run, err := s.runs.Trigger(c.Request().Context(), c.Param("workspace"))
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusAccepted, run)
}

// GET /api/workspaces/:workspace/pipeline/runs
func (s *Server) listRuns(c echo.Context) error {
	ctx := c.Request().Context()
	workspace := c.Param("workspace")

	limit, err := intQuery(c, "limit")
	if err != nil {
		return mapDomainError(err)
	}
	if _, err := s.workspaces.Workspace(ctx, workspace); err != nil {
		return mapDomainError(err)
	}

	runs, err := s.runs.Runs(ctx, workspace, limit)
	if err != nil {
		return mapDomainError(err)
	}
	if runs == nil {
		runs = []domain.PipelineRun{}
	}
	return c.JSON(http.StatusOK, runsResponse{Workspace: workspace, Runs: runs})
}

// GET /api/workspaces/:workspace/dashboard
func (s *Server) workspaceDashboard(c echo.Context) error {
	dashboard, err := s.dashboard.Snapshot(c.Request().Context(), c.Param("workspace"))
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, dashboard)
}

// GET /api/workspaces/:workspace/pipeline/status (websocket)
func (s *Server) statusStream(c echo.Context) error {
	ctx := c.Request().Context()
	workspace := c.Param("workspace")
	if _, err := s.workspaces.Workspace(ctx, workspace); err != nil {
		return mapDomainError(err)
	}

	return s.stream(c, usecase.RunTopic(workspace), func() (any, error) {
		return s.runs.Snapshot(ctx, workspace)
	})
}

// intQuery parses an optional integer query parameter, returning 0 when absent.
func intQuery(c echo.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrInvalid, name)
	}
	return value, nil
}
