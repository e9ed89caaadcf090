package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

// History page size bounds.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// DecisionInput is an operator verdict on one or more requests.
type DecisionInput struct {
	Decision string
	Reason   string
	Actor    string
}

// HistoryQuery holds the raw history filters of an operator request.
type HistoryQuery struct {
	Status    string
	Workspace string
	Actor     string
	Limit     int
	Offset    int
}

// ModerationService answers the moderation console and notifies live subscribers of decisions.
type ModerationService struct {
	store     ports.Store
	broker    ports.Broker
	sanitizer ports.Sanitizer
	logger    *slog.Logger
}

// NewModerationService wires the moderation console.
func NewModerationService(store ports.Store, broker ports.Broker, sanitizer ports.Sanitizer, logger *slog.Logger) *ModerationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModerationService{store: store, broker: broker, sanitizer: sanitizer, logger: logger}
}

// Queue lists pending requests, oldest first.
func (s *ModerationService) Queue(ctx context.Context) ([]domain.ModerationRequest, error) {
	return s.store.PendingModeration(ctx)
}

// Request returns one request or domain.ErrNotFound.
func (s *ModerationService) Request(ctx context.Context, id int64) (domain.ModerationRequest, error) {
	request, err := s.store.ModerationRequest(ctx, id)
	if err != nil {
		return domain.ModerationRequest{}, err
	}
	return *request, nil
}

// Decide resolves a pending request and appends the decision.
func (s *ModerationService) Decide(ctx context.Context, id int64, input DecisionInput) (domain.ModerationDecision, error) {
	status, err := domain.ParseDecision(input.Decision)
	if err != nil {
		return domain.ModerationDecision{}, err
	}
	actor, reason := s.actor(input.Actor), s.clean(input.Reason)

	var (
		request  domain.ModerationRequest
		decision domain.ModerationDecision
	)
	err = s.store.InTx(ctx, func(repo ports.Repository) error {
		current, err := repo.ModerationRequest(ctx, id)
		if err != nil {
			return err
		}
		if !current.Pending() {
			return fmt.Errorf("moderation request %d already resolved: %w", id, domain.ErrConflict)
		}

		request, decision, err = resolve(ctx, repo, *current, status, actor, reason)
		return err
	})
	if err != nil {
		return domain.ModerationDecision{}, err
	}

	s.logger.Info("moderation decision recorded",
		"request_id", request.ID,
		"workspace", request.Workspace,
		"decision", status,
		"actor", actor)
	s.publish(ModerationDecisionEvent{Type: EventModerationDecision, Request: request, Decision: decision})
	return decision, nil
}

// BulkDecide applies one verdict to every listed request, or to none of them.
// Duplicate ids are collapsed keeping their first position.
func (s *ModerationService) BulkDecide(ctx context.Context, ids []int64, input DecisionInput) ([]domain.ModerationDecision, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: request_ids must not be empty", domain.ErrInvalid)
	}
	status, err := domain.ParseDecision(input.Decision)
	if err != nil {
		return nil, err
	}
	actor, reason := s.actor(input.Actor), s.clean(input.Reason)

	var (
		requests  []domain.ModerationRequest
		decisions []domain.ModerationDecision
	)
	err = s.store.InTx(ctx, func(repo ports.Repository) error {
		found, err := repo.ModerationRequests(ctx, ids)
		if err != nil {
			return err
		}
		lookup := make(map[int64]domain.ModerationRequest, len(found))
		for _, r := range found {
			lookup[r.ID] = r
		}

		var missing, resolved []int64
		for _, id := range ids {
			r, ok := lookup[id]
			switch {
			case !ok:
				missing = append(missing, id)
			case !r.Pending():
				resolved = append(resolved, id)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("unknown moderation request ids %v: %w", missing, domain.ErrNotFound)
		}
		if len(resolved) > 0 {
			return fmt.Errorf("moderation requests already resolved %v: %w", resolved, domain.ErrConflict)
		}

		requests = make([]domain.ModerationRequest, 0, len(ids))
		decisions = make([]domain.ModerationDecision, 0, len(ids))
		for _, id := range ids {
			request, decision, err := resolve(ctx, repo, lookup[id], status, actor, reason)
			if err != nil {
				return err
			}
			requests = append(requests, request)
			decisions = append(decisions, decision)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("moderation bulk decision recorded",
		"count", len(decisions),
		"decision", status,
		"actor", actor)
	for i := range decisions {
		s.publish(ModerationDecisionEvent{Type: EventModerationDecision, Request: requests[i], Decision: decisions[i]})
	}
	s.publish(ModerationBulkEvent{
		Type:      EventModerationBulk,
		Decision:  status,
		Requests:  requests,
		Decisions: decisions,
	})
	return decisions, nil
}

// History lists decisions newest first.
func (s *ModerationService) History(ctx context.Context, query HistoryQuery) ([]domain.ModerationDecision, error) {
	filter := domain.HistoryFilter{
		Workspace: s.clean(query.Workspace),
		Actor:     s.clean(query.Actor),
		Limit:     query.Limit,
		Offset:    query.Offset,
	}
	if raw := s.clean(query.Status); raw != "" {
		status, err := domain.ParseDecision(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid status filter %q", domain.ErrInvalid, raw)
		}
		filter.Status = status
	}

	switch {
	case filter.Limit == 0:
		filter.Limit = DefaultHistoryLimit
	case filter.Limit < 1 || filter.Limit > MaxHistoryLimit:
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrInvalid, MaxHistoryLimit)
	}
	if filter.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", domain.ErrInvalid)
	}
	return s.store.DecisionHistory(ctx, filter)
}

func resolve(ctx context.Context, repo ports.Repository, request domain.ModerationRequest, status domain.ModerationStatus, actor, reason string) (domain.ModerationRequest, domain.ModerationDecision, error) {
	ok, err := repo.ResolveModeration(ctx, request.ID, status)
	if err != nil {
		return request, domain.ModerationDecision{}, err
	}
	if !ok {
		return request, domain.ModerationDecision{}, fmt.Errorf("moderation request %d already resolved: %w", request.ID, domain.ErrConflict)
	}
	request.Status = status

	decision := domain.ModerationDecision{
		RequestID: request.ID,
		Decision:  status,
		DecidedBy: actor,
		Reason:    reason,
	}
	if err := repo.CreateDecision(ctx, &decision); err != nil {
		return request, decision, err
	}
	return request, decision, nil
}

func uniqueIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func (s *ModerationService) actor(value string) string {
	if actor := s.clean(value); actor != "" {
		return actor
	}
	return domain.DefaultModerator
}

func (s *ModerationService) clean(value string) string {
	if s.sanitizer != nil {
		value = s.sanitizer.Sanitize(value)
	}
	return strings.TrimSpace(value)
}

func (s *ModerationService) publish(event any) {
	if s.broker != nil {
		s.broker.Publish(ModerationTopic, event)
	}
}
