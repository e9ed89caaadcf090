package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"NewsPipeline/internal/broadcast"
	"NewsPipeline/internal/config"
	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/infrastructure/dedupcache"
	"NewsPipeline/internal/infrastructure/heuristic"
	"NewsPipeline/internal/infrastructure/llm"
	"NewsPipeline/internal/infrastructure/ml"
	"NewsPipeline/internal/infrastructure/parser"
	"NewsPipeline/internal/infrastructure/sanitize"
	"NewsPipeline/internal/infrastructure/scheduler"
	"NewsPipeline/internal/infrastructure/storage"
	"NewsPipeline/internal/infrastructure/telegram"
	"NewsPipeline/internal/logging"
	"NewsPipeline/internal/observability"
	"NewsPipeline/internal/ports"
	"NewsPipeline/internal/scanner"
	"NewsPipeline/internal/transport/httpapi"
	"NewsPipeline/internal/usecase"
)

const (
	shutdownTimeout = 10 * time.Second
	fetchTimeout    = 30 * time.Second
	dashboardRuns   = 10
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	store        *storage.Store
	seenSets     *dedupcache.RedisSeenSets
	orchestrator *usecase.Orchestrator
	scheduler    *usecase.Scheduler
	server       *httpapi.Server
}

// New opens the store, mirrors configured workspaces into it and builds every service.
// configPath is re-read by the workspace provider so edits apply to the next run.
func New(ctx context.Context, cfg config.Config, configPath string, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	component := func(name string) *slog.Logger {
		return baseLogger.With("component", name)
	}

	store, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, component("storage"))
	if err != nil {
		return nil, err
	}
	for _, ws := range cfg.DomainWorkspaces() {
		if err := store.SyncWorkspace(ctx, ws); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("sync workspace %s: %w", ws.ID, err)
		}
	}

	app := &Application{cfg: cfg, logger: baseLogger, store: store}

	var seenSets ports.SeenSets
	if cfg.Redis.URL != "" {
		redisSets, err := dedupcache.NewRedisSeenSetsWithURL(cfg.Redis.URL, cfg.Redis.TTL())
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		if err := redisSets.Ping(ctx); err != nil {
			_ = redisSets.Close()
			_ = store.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		app.seenSets = redisSets
		seenSets = redisSets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry, component("metrics"))
	alerts := observability.NewAlerts(component("alerts"))
	hub := broadcast.NewHub(cfg.Broadcast.BufferSize)
	sanitizer := sanitize.NewSanitizer()
	workspaces := config.NewWorkspaceProvider(configPath, cfg)

	httpClient := &http.Client{Timeout: fetchTimeout}
	source := parser.NewStrategySource(scanner.NewRegistry(
		parser.StaticScanner{},
		parser.NewFeedScanner(httpClient),
		parser.NewHTMLScanner(httpClient),
	), component("source"))

	var translator ports.Translator = heuristic.NewAdapter(config.DefaultLanguage, component("translator"))
	if cfg.LLM.APIKey != "" {
		translator = llm.NewChatGPTClient(cfg.LLM)
	}
	var (
		detector   ports.ForgeryDetector = heuristic.Detector{}
		classifier ports.Classifier      = heuristic.Classifier{}
	)
	if cfg.ML.InferenceURL != "" {
		client := ml.NewClient(cfg.ML.InferenceURL, cfg.ML.APIKey)
		detector, classifier = client, client
	}

	dispatcher := usecase.NewDispatcher(usecase.DispatcherDeps{
		Store:  store,
		Sender: telegram.NewNotifier(cfg.Telegram, component("telegram")),
		Broker: hub,
		Alerts: alerts,
		Logger: component("dispatcher"),
		Ledger: cfg.Delivery.Ledger,
	})
	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Sanitizer:  sanitizer,
		Store:      store,
		Translator: translator,
		Detector:   detector,
		Classifier: classifier,
		Dispatcher: dispatcher,
		Logger:     component("pipeline"),
	})
	app.orchestrator = usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Store:        store,
		Workspaces:   workspaces,
		Pipeline:     pipeline,
		SeenSets:     seenSets,
		Broker:       hub,
		Metrics:      metrics,
		Alerts:       alerts,
		Logger:       component("orchestrator"),
		SnapshotSize: cfg.Broadcast.SnapshotSize,
	})
	app.scheduler = usecase.NewScheduler(
		scheduler.NewIntervalScheduler(cfg.Scheduler.Interval()),
		workspaces,
		app.orchestrator,
		component("scheduler"),
	)
	app.server = httpapi.New(httpapi.Deps{
		Runs:       app.orchestrator,
		Moderation: usecase.NewModerationService(store, hub, sanitizer, component("moderation")),
		Dashboard:  usecase.NewDashboardService(store, workspaces, dashboardRuns),
		Workspaces: workspaces,
		Hub:        hub,
		Gatherer:   registry,
		Logger:     component("http"),
	})

	return app, nil
}

// Serve runs the HTTP API and the scheduler until ctx is cancelled, then drains both.
func (a *Application) Serve(ctx context.Context) error {
	defer a.Close()

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.server.Start(a.cfg.Server.Addr)
	})

	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := a.scheduler.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
		}
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("stop http server: %w", err))
		}
		if err := a.orchestrator.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("server exited properly")
	return nil
}

// RunOnce executes one synchronous run of a workspace.
func (a *Application) RunOnce(ctx context.Context, workspace string) (domain.PipelineRun, usecase.RunResult, error) {
	defer a.Close()
	return a.orchestrator.RunNow(ctx, workspace)
}

// Close releases the store and the optional Redis connection.
func (a *Application) Close() error {
	var errs []error
	if a.seenSets != nil {
		errs = append(errs, a.seenSets.Close())
		a.seenSets = nil
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	return errors.Join(errs...)
}
