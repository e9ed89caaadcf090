package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

// PipelineDeps wires all driven adapters into the stage chain.
type PipelineDeps struct {
	Source     ports.ItemSource
	Sanitizer  ports.Sanitizer
	Store      ports.Store
	Translator ports.Translator
	Detector   ports.ForgeryDetector
	Classifier ports.Classifier
	Dispatcher *Dispatcher
	Logger     *slog.Logger
}

// Pipeline runs the content stages of one workspace: parse, process, dedupe, translate,
// detect forgery, score, publish and deliver.
type Pipeline struct {
	source       ports.ItemSource
	sanitizer    ports.Sanitizer
	translator   ports.Translator
	detector     ports.ForgeryDetector
	deduplicator *Deduplicator
	router       *Router
	publisher    *Publisher
	dispatcher   *Dispatcher
	logger       *slog.Logger
}

// RunResult summarises one pipeline execution.
type RunResult struct {
	Workspace    string
	Disabled     bool
	Processed    int
	Published    int
	Delivered    int
	Moderated    int
	Rejected     int
	Duplicates   int
	FakeDetected int
	Translated   int
	Duration     time.Duration
}

// Stats converts the result into metric counters.
func (r RunResult) Stats() ports.RunStats {
	return ports.RunStats{
		Published:    r.Published,
		Delivered:    r.Delivered,
		Moderated:    r.Moderated,
		Rejected:     r.Rejected,
		Duplicates:   r.Duplicates,
		FakeDetected: r.FakeDetected,
	}
}

// Summary is the human readable outcome stored on successful runs.
func (r RunResult) Summary() string {
	if r.Disabled {
		return "workspace disabled"
	}
	return fmt.Sprintf("published %d articles, delivered %d messages, %d queued for moderation",
		r.Published, r.Delivered, r.Moderated)
}

// NewPipeline constructs the stage chain.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:       deps.Source,
		sanitizer:    deps.Sanitizer,
		translator:   deps.Translator,
		detector:     deps.Detector,
		deduplicator: NewDeduplicator(deps.Store),
		router:       NewRouter(deps.Store, deps.Classifier),
		publisher:    NewPublisher(deps.Store),
		dispatcher:   deps.Dispatcher,
		logger:       logger,
	}
}

// Execute runs every stage strictly in order, stopping early once a stage yields no items.
// seen must be fresh for each call.
func (p *Pipeline) Execute(ctx context.Context, ws domain.Workspace, seen ports.SeenSet) (RunResult, error) {
	started := time.Now()
	result := RunResult{Workspace: ws.ID}
	logger := p.logger.With("workspace", ws.ID)

	if !ws.Enabled {
		logger.Info("workspace pipeline disabled, skipping run")
		result.Disabled = true
		return result, nil
	}

	raws, err := p.source.Collect(ctx, ws)
	if err != nil {
		return result, fmt.Errorf("parse news: %w", err)
	}
	logger.Debug("collected raw items", "count", len(raws))
	if len(raws) == 0 {
		result.Duration = time.Since(started)
		return result, nil
	}

	processed := NormalizeItems(ws.ID, raws, p.sanitizer)
	if len(processed) == 0 {
		result.Duration = time.Since(started)
		return result, nil
	}

	items, err := p.deduplicator.Deduplicate(ctx, ws.ID, processed, seen)
	if err != nil {
		return result, fmt.Errorf("deduplicate news: %w", err)
	}

	items, result.Translated, err = Translate(ctx, p.translator, items, ws.TargetLanguage)
	if err != nil {
		return result, fmt.Errorf("translate news: %w", err)
	}

	items, result.FakeDetected, err = DetectForgery(ctx, p.detector, items)
	if err != nil {
		return result, fmt.Errorf("detect fake news: %w", err)
	}

	items, routed, err := p.router.Score(ctx, ws.ID, items)
	if err != nil {
		return result, fmt.Errorf("score news: %w", err)
	}
	result.Processed = len(items)
	result.Rejected = routed.Rejected
	for _, item := range items {
		if item.Deduplication.IsDuplicate {
			result.Duplicates++
		}
	}

	result.Published, err = p.publisher.Publish(ctx, ws.ID, items)
	if err != nil {
		return result, fmt.Errorf("publish news: %w", err)
	}

	if p.dispatcher != nil {
		dispatch, err := p.dispatcher.Dispatch(ctx, ws, items)
		result.Delivered = dispatch.Delivered
		result.Moderated = max(dispatch.Moderated, routed.Moderated)
		if err != nil {
			return result, fmt.Errorf("deliver news: %w", err)
		}
	} else {
		result.Moderated = routed.Moderated
	}

	result.Duration = time.Since(started)
	logger.Info("pipeline execution completed",
		"duration_ms", result.Duration.Milliseconds(),
		"processed", result.Processed,
		"published", result.Published,
		"delivered", result.Delivered,
		"moderation", result.Moderated,
		"rejected", result.Rejected,
		"duplicates", result.Duplicates,
		"fake_detected", result.FakeDetected)
	return result, nil
}
