// Package httpapi exposes the pipeline, moderation console and live streams over HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"NewsPipeline/internal/broadcast"
	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
	"NewsPipeline/internal/usecase"
)

// RunService triggers and lists pipeline runs.
type RunService interface {
	Trigger(ctx context.Context, workspace string) (domain.PipelineRun, error)
	Runs(ctx context.Context, workspace string, limit int) ([]domain.PipelineRun, error)
	Snapshot(ctx context.Context, workspace string) (usecase.RunSnapshotEvent, error)
}

// ModerationService answers the moderation console.
type ModerationService interface {
	Queue(ctx context.Context) ([]domain.ModerationRequest, error)
	Request(ctx context.Context, id int64) (domain.ModerationRequest, error)
	Decide(ctx context.Context, id int64, input usecase.DecisionInput) (domain.ModerationDecision, error)
	BulkDecide(ctx context.Context, ids []int64, input usecase.DecisionInput) ([]domain.ModerationDecision, error)
	History(ctx context.Context, query usecase.HistoryQuery) ([]domain.ModerationDecision, error)
}

// DashboardService builds workspace overviews.
type DashboardService interface {
	Snapshot(ctx context.Context, workspace string) (usecase.Dashboard, error)
}

// Subscriber hands out live topic subscriptions.
type Subscriber interface {
	Subscribe(topic string) *broadcast.Subscription
	Unsubscribe(sub *broadcast.Subscription)
}

// Deps wires the API to the use cases.
type Deps struct {
	Runs       RunService
	Moderation ModerationService
	Dashboard  DashboardService
	Workspaces ports.WorkspaceProvider
	Hub        Subscriber
	Gatherer   prometheus.Gatherer
	Logger     *slog.Logger
}

// Server is the HTTP entry point.
type Server struct {
	echo       *echo.Echo
	runs       RunService
	moderation ModerationService
	dashboard  DashboardService
	workspaces ports.WorkspaceProvider
	hub        Subscriber
	logger     *slog.Logger

	// streams ends every open websocket on Shutdown; hijacked connections outlive http.Server.Shutdown.
	streams context.Context
	cancel  context.CancelFunc
}

// New builds the server and registers its routes.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		echo:       echo.New(),
		runs:       deps.Runs,
		moderation: deps.Moderation,
		dashboard:  deps.Dashboard,
		workspaces: deps.Workspaces,
		hub:        deps.Hub,
		logger:     logger,
		streams:    ctx,
		cancel:     cancel,
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/health" || c.Request().URL.Path == "/metrics"
		},
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			rctx := c.Request().Context()
			if v.Error == nil {
				logger.InfoContext(rctx, "request completed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds())
			} else {
				logger.WarnContext(rctx, "request failed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds(),
					"error", v.Error.Error())
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())

	e.GET("/health", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := e.Group("/api")
	workspaces := api.Group("/workspaces/:workspace")
	workspaces.POST("/pipeline/trigger", s.triggerRun)
	workspaces.GET("/pipeline/runs", s.listRuns)
	workspaces.GET("/pipeline/status", s.statusStream)
	workspaces.GET("/dashboard", s.workspaceDashboard)

	moderation := api.Group("/moderation")
	moderation.GET("/queue", s.moderationQueue)
	moderation.GET("/requests/:id", s.moderationRequest)
	moderation.POST("/requests/bulk-decision", s.bulkDecision)
	moderation.POST("/requests/:id/decision", s.decide)
	moderation.GET("/history", s.moderationHistory)
	moderation.GET("/notifications", s.notificationStream)

	return s
}

// Handler returns the routed handler, used by tests and embedding servers.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting http server", "address", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes live streams and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
