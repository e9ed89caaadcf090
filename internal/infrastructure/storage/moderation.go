package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"NewsPipeline/internal/domain"
)

var moderationColumns = []string{
	"id", "workspace", "reference", "status", "submitted_at", "content_title",
	"content_excerpt", "ai_score", "ai_summary", "ai_flags",
}

var decisionColumns = []string{"d.id", "d.request_id", "d.decision", "d.decided_by", "d.reason", "d.decided_at"}

// ModerationByReference returns the most recent request for a reference, or nil when none exists.
func (q *queries) ModerationByReference(ctx context.Context, workspace, reference string) (*domain.ModerationRequest, error) {
	row, err := q.queryRow(ctx, q.sb.Select(moderationColumns...).
		From("moderation_requests").
		Where(sq.Eq{"workspace": workspace, "reference": reference}).
		OrderBy("id DESC").
		Limit(1))
	if err != nil {
		return nil, err
	}
	request, err := scanModeration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load moderation request %s: %w", reference, err)
	}
	return &request, nil
}

// CreateModerationRequest inserts a pending request unless one is already pending for the reference.
func (q *queries) CreateModerationRequest(ctx context.Context, request *domain.ModerationRequest) (bool, error) {
	if request.Status == "" {
		request.Status = domain.ModerationPending
	}
	if request.SubmittedAt.IsZero() {
		request.SubmittedAt = q.now()
	}
	row, err := q.queryRow(ctx, q.sb.Insert("moderation_requests").
		Columns(moderationColumns[1:]...).
		Values(
			request.Workspace,
			request.Reference,
			string(request.Status),
			request.SubmittedAt.UTC(),
			request.ContentTitle,
			nullString(request.ContentExcerpt),
			request.Analysis.Score,
			nullString(request.Analysis.Summary),
			domain.JoinFlags(request.Analysis.Flags),
		).
		Suffix("ON CONFLICT DO NOTHING RETURNING id"))
	if err != nil {
		return false, err
	}
	if err := row.Scan(&request.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert moderation request %s: %w", request.Reference, err)
	}
	return true, nil
}

// ModerationRequest loads a request by id.
func (q *queries) ModerationRequest(ctx context.Context, id int64) (*domain.ModerationRequest, error) {
	row, err := q.queryRow(ctx, q.sb.Select(moderationColumns...).
		From("moderation_requests").
		Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	request, err := scanModeration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("moderation request %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load moderation request %d: %w", id, err)
	}
	return &request, nil
}

// ModerationRequests loads every existing request among ids, ordered by id.
func (q *queries) ModerationRequests(ctx context.Context, ids []int64) ([]domain.ModerationRequest, error) {
	if len(ids) == 0 {
		return []domain.ModerationRequest{}, nil
	}
	requests, err := queryAll(ctx, q, q.sb.Select(moderationColumns...).
		From("moderation_requests").
		Where(sq.Eq{"id": ids}).
		OrderBy("id ASC"), scanModeration)
	if err != nil {
		return nil, fmt.Errorf("load moderation requests: %w", err)
	}
	return requests, nil
}

// PendingModeration lists pending requests, oldest submission first.
func (q *queries) PendingModeration(ctx context.Context) ([]domain.ModerationRequest, error) {
	requests, err := queryAll(ctx, q, q.sb.Select(moderationColumns...).
		From("moderation_requests").
		Where(sq.Eq{"status": string(domain.ModerationPending)}).
		OrderBy("submitted_at ASC", "id ASC"), scanModeration)
	if err != nil {
		return nil, fmt.Errorf("list pending moderation: %w", err)
	}
	return requests, nil
}

// ResolveModeration moves a pending request to status. It reports false when the request was not pending.
func (q *queries) ResolveModeration(ctx context.Context, id int64, status domain.ModerationStatus) (bool, error) {
	res, err := q.exec(ctx, q.sb.Update("moderation_requests").
		Set("status", string(status)).
		Where(sq.Eq{"id": id, "status": string(domain.ModerationPending)}))
	if err != nil {
		return false, fmt.Errorf("resolve moderation request %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve moderation request %d: %w", id, err)
	}
	return n == 1, nil
}

// CreateDecision appends a decision and fills its id.
func (q *queries) CreateDecision(ctx context.Context, decision *domain.ModerationDecision) error {
	if decision.DecidedAt.IsZero() {
		decision.DecidedAt = q.now()
	}
	row, err := q.queryRow(ctx, q.sb.Insert("moderation_decisions").
		Columns("request_id", "decision", "decided_by", "reason", "decided_at").
		Values(
			decision.RequestID,
			string(decision.Decision),
			decision.DecidedBy,
			nullString(decision.Reason),
			decision.DecidedAt.UTC(),
		).
		Suffix("RETURNING id"))
	if err != nil {
		return err
	}
	if err := row.Scan(&decision.ID); err != nil {
		return fmt.Errorf("insert moderation decision for %d: %w", decision.RequestID, err)
	}
	return nil
}

// DecisionHistory lists decisions newest first.
func (q *queries) DecisionHistory(ctx context.Context, filter domain.HistoryFilter) ([]domain.ModerationDecision, error) {
	builder := q.sb.Select(decisionColumns...).
		From("moderation_decisions d").
		Join("moderation_requests r ON r.id = d.request_id").
		OrderBy("d.decided_at DESC", "d.id DESC")

	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"d.decision": string(filter.Status)})
	}
	if filter.Workspace != "" {
		builder = builder.Where(sq.Eq{"r.workspace": filter.Workspace})
	}
	if filter.Actor != "" {
		builder = builder.Where(sq.Eq{"d.decided_by": filter.Actor})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	decisions, err := queryAll(ctx, q, builder, scanDecision)
	if err != nil {
		return nil, fmt.Errorf("list moderation history: %w", err)
	}
	return decisions, nil
}

func scanModeration(row rowScanner) (domain.ModerationRequest, error) {
	var (
		request          domain.ModerationRequest
		status           string
		excerpt, summary sql.NullString
		flags            sql.NullString
	)
	err := row.Scan(
		&request.ID,
		&request.Workspace,
		&request.Reference,
		&status,
		&request.SubmittedAt,
		&request.ContentTitle,
		&excerpt,
		&request.Analysis.Score,
		&summary,
		&flags,
	)
	if err != nil {
		return domain.ModerationRequest{}, err
	}
	request.Status = domain.ModerationStatus(status)
	request.SubmittedAt = request.SubmittedAt.UTC()
	request.ContentExcerpt = excerpt.String
	request.Analysis.Summary = summary.String
	request.Analysis.Flags = domain.SplitFlags(flags.String)
	return request, nil
}

func scanDecision(row rowScanner) (domain.ModerationDecision, error) {
	var (
		decision domain.ModerationDecision
		verdict  string
		reason   sql.NullString
	)
	err := row.Scan(
		&decision.ID,
		&decision.RequestID,
		&verdict,
		&decision.DecidedBy,
		&reason,
		&decision.DecidedAt,
	)
	if err != nil {
		return domain.ModerationDecision{}, err
	}
	decision.Decision = domain.ModerationStatus(verdict)
	decision.Reason = reason.String
	decision.DecidedAt = decision.DecidedAt.UTC()
	return decision, nil
}
