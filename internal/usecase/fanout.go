package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

const maxMessageLength = 4000

// ChannelFailure is one failed send.
type ChannelFailure struct {
	ChatID string
	Err    error
}

func (f ChannelFailure) String() string {
	return fmt.Sprintf("%s: %v", f.ChatID, f.Err)
}

// DeliveryError reports the channel sends that still failed after the last attempt.
type DeliveryError struct {
	Failures []ChannelFailure
}

func (e *DeliveryError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.String()
	}
	return strings.Join(parts, "; ")
}

// Unwrap exposes the underlying send errors.
func (e *DeliveryError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// DispatchResult counts the work done by the fan-out stage across all attempts.
type DispatchResult struct {
	Delivered int
	Moderated int
	Channels  int
}

// BuildMessage renders a chat message: title, summary and author separated by blank lines,
// capped at 4000 characters.
func BuildMessage(title, summary, author string) string {
	sections := make([]string, 0, 5)
	if t := strings.TrimSpace(title); t != "" {
		sections = append(sections, t)
	}
	if s := strings.TrimSpace(summary); s != "" {
		if len(sections) > 0 {
			sections = append(sections, "")
		}
		sections = append(sections, s)
	}
	if a := strings.TrimSpace(author); a != "" {
		sections = append(sections, "", "— "+a)
	}

	message := strings.Join(sections, "\n")
	if len([]rune(message)) > maxMessageLength {
		message = strings.TrimRightFunc(truncateRunes(message, maxMessageLength-3), isSpace) + "..."
	}
	return message
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

// Dispatcher queues moderation requests and delivers published items to chat channels.
type Dispatcher struct {
	store  ports.Store
	sender ports.Sender
	broker ports.Broker
	alerts ports.Alerter
	logger *slog.Logger
	ledger bool
}

// DispatcherDeps wires the fan-out stage.
type DispatcherDeps struct {
	Store  ports.Store
	Sender ports.Sender
	Broker ports.Broker
	Alerts ports.Alerter
	Logger *slog.Logger
	// Ledger skips channel sends already recorded as delivered.
	Ledger bool
}

// NewDispatcher constructs the fan-out stage.
func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:  deps.Store,
		sender: deps.Sender,
		broker: deps.Broker,
		alerts: deps.Alerts,
		logger: logger,
		ledger: deps.Ledger,
	}
}

// Dispatch runs fan-out passes until no channel send fails or the workspace retry budget is spent.
// Moderation enqueues and successful sends from earlier passes are kept. Delivered reports the
// final pass, where channels the ledger already holds count as delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, ws domain.Workspace, items []domain.PipelineItem) (DispatchResult, error) {
	var total DispatchResult
	policy := retryPolicy{
		name:     "delivery",
		attempts: ws.RetryAttempts,
		delay:    ws.RetryDelay,
		retryable: func(err error) bool {
			var derr *DeliveryError
			return errors.As(err, &derr)
		},
		logger: d.logger.With("workspace", ws.ID),
	}

	err := policy.do(ctx, func(int) error {
		pass, err := d.dispatchOnce(ctx, ws, items)
		total.Delivered = pass.Delivered
		total.Moderated += pass.Moderated
		total.Channels = pass.Channels
		return err
	})
	return total, err
}

func (d *Dispatcher) dispatchOnce(ctx context.Context, ws domain.Workspace, items []domain.PipelineItem) (DispatchResult, error) {
	var result DispatchResult

	channels, err := d.store.ActiveChannels(ctx, ws.ID)
	if err != nil {
		return result, fmt.Errorf("load channels: %w", err)
	}
	result.Channels = len(channels)

	enabled := ws.DeliveryEnabled && d.sender != nil && d.sender.Enabled()
	if len(channels) == 0 {
		d.logger.Info("no active delivery channels configured", "workspace", ws.ID)
	}
	if !enabled {
		d.logger.Info("delivery disabled, skipping message sends", "workspace", ws.ID)
	}

	created, err := d.queueModeration(ctx, ws.ID, items)
	if err != nil {
		return result, err
	}
	result.Moderated = len(created)
	for _, req := range created {
		d.logger.Info("queued moderation request", "workspace", ws.ID, "reference", req.Reference)
		d.publish(ModerationTopic, ModerationCreatedEvent{Type: EventModerationCreated, Request: req})
		d.alert(ctx, ws.ID, "content queued for moderation: "+req.Reference, ports.SeverityWarning)
	}

	var failures []ChannelFailure
	for _, item := range items {
		switch item.Action() {
		case domain.OutcomeModerate:
			continue
		case domain.OutcomeReject:
			d.logger.Info("content rejected prior to delivery", "workspace", ws.ID, "slug", item.Slug)
			continue
		}
		if !enabled || len(channels) == 0 {
			continue
		}

		title, summary, _ := item.Content()
		message := BuildMessage(title, summary, item.Author)
		delivered, failed := d.deliver(ctx, ws.ID, item, channels, message)
		result.Delivered += delivered
		failures = append(failures, failed...)
	}

	if len(failures) > 0 {
		return result, &DeliveryError{Failures: failures}
	}
	return result, nil
}

// queueModeration creates pending requests for moderated items in one transaction.
// Items whose reference already has a request are skipped.
func (d *Dispatcher) queueModeration(ctx context.Context, workspace string, items []domain.PipelineItem) ([]domain.ModerationRequest, error) {
	var created []domain.ModerationRequest
	err := d.store.InTx(ctx, func(repo ports.Repository) error {
		created = created[:0]
		for _, item := range items {
			if item.Action() != domain.OutcomeModerate {
				continue
			}
			reference := item.Reference()

			existing, err := repo.ModerationByReference(ctx, workspace, reference)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}

			title, summary, _ := item.Content()
			request := domain.ModerationRequest{
				Workspace:      workspace,
				Reference:      reference,
				Status:         domain.ModerationPending,
				ContentTitle:   title,
				ContentExcerpt: summary,
			}
			if c := item.Classification; c != nil {
				request.Analysis = domain.AIAnalysis{Score: c.Score, Summary: c.Summary, Flags: c.Flags}
			}
			if request.Analysis.Flags == nil {
				request.Analysis.Flags = []string{}
			}

			ok, err := repo.CreateModerationRequest(ctx, &request)
			if err != nil {
				return err
			}
			if ok {
				created = append(created, request)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("queue moderation: %w", err)
	}
	return created, nil
}

// deliver sends message to every channel concurrently and returns the success count and
// the failures in channel order.
func (d *Dispatcher) deliver(ctx context.Context, workspace string, item domain.PipelineItem, channels []domain.DeliveryChannel, message string) (int, []ChannelFailure) {
	var (
		mu        sync.Mutex
		delivered int
		g         errgroup.Group
	)
	failures := make([]error, len(channels))
	reference := item.Reference()

	for i, ch := range channels {
		i, ch := i, ch
		g.Go(func() error {
			if d.ledger {
				done, err := d.store.Delivered(ctx, workspace, reference, ch.ChatID)
				if err != nil {
					d.logger.Warn("delivery ledger lookup failed", "workspace", workspace, "chat_id", ch.ChatID, "error", err)
				} else if done {
					d.logger.Debug("skipping channel already delivered", "workspace", workspace, "slug", item.Slug, "chat_id", ch.ChatID)
					mu.Lock()
					delivered++
					mu.Unlock()
					return nil
				}
			}

			if err := d.sender.Send(ctx, ch.ChatID, message); err != nil {
				failures[i] = err
				d.logger.Warn("delivery failed", "workspace", workspace, "slug", item.Slug, "chat_id", ch.ChatID, "error", err)
				d.alert(ctx, workspace, fmt.Sprintf("delivery failed for %s: %v", ch.ChatID, err), ports.SeverityWarning)
				return nil
			}

			mu.Lock()
			delivered++
			mu.Unlock()
			d.logger.Info("message delivered", "workspace", workspace, "slug", item.Slug, "chat_id", ch.ChatID)

			if d.ledger {
				if err := d.store.MarkDelivered(ctx, workspace, reference, ch.ChatID); err != nil {
					d.logger.Warn("delivery ledger write failed", "workspace", workspace, "chat_id", ch.ChatID, "error", err)
				}
			}
			return nil
		})
	}
	// sends never fail the group; failures are kept per channel
	g.Wait()

	var out []ChannelFailure
	for i, err := range failures {
		if err != nil {
			out = append(out, ChannelFailure{ChatID: channels[i].ChatID, Err: err})
		}
	}
	return delivered, out
}

func (d *Dispatcher) publish(topic string, event any) {
	if d.broker != nil {
		d.broker.Publish(topic, event)
	}
}

func (d *Dispatcher) alert(ctx context.Context, workspace, message string, severity ports.Severity) {
	if d.alerts != nil {
		d.alerts.Alert(ctx, workspace, message, severity)
	}
}
