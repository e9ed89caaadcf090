package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

// RouteStats counts routing outcomes of one stage invocation.
type RouteStats struct {
	Published int
	Moderated int
	Rejected  int
}

// Route decides the outcome of an item. Duplicates outrank fakes, fakes outrank moderation.
func Route(item domain.PipelineItem) (domain.Outcome, string) {
	if item.Deduplication.IsDuplicate {
		if item.Deduplication.Reason != domain.DedupNone {
			return domain.OutcomeReject, string(item.Deduplication.Reason)
		}
		return domain.OutcomeReject, domain.ReasonDuplicate
	}
	if item.Forgery != nil && item.Forgery.IsFake {
		return domain.OutcomeReject, domain.ReasonFakeDetection
	}
	if item.Classification != nil && item.Classification.RequiresModeration {
		return domain.OutcomeModerate, domain.ReasonRequiresModeration
	}
	return domain.OutcomePublish, ""
}

// Router classifies items, decides their outcome and upserts the audit records.
type Router struct {
	store      ports.Store
	classifier ports.Classifier
}

// NewRouter wires the classifier and the store.
func NewRouter(store ports.Store, classifier ports.Classifier) *Router {
	return &Router{store: store, classifier: classifier}
}

// Score classifies every item, routes it and persists one record per reference in a single transaction.
func (r *Router) Score(ctx context.Context, workspace string, items []domain.PipelineItem) ([]domain.PipelineItem, RouteStats, error) {
	var stats RouteStats
	if len(items) == 0 {
		return items, stats, nil
	}

	for i := range items {
		title, summary, body := items[i].Content()
		result, err := r.classifier.Classify(ctx, title, summary, body)
		if err != nil {
			return nil, stats, fmt.Errorf("classify %s: %w", items[i].Slug, err)
		}
		if result.Flags == nil {
			result.Flags = []string{}
		}
		items[i].Classification = &result
	}

	err := r.store.InTx(ctx, func(repo ports.Repository) error {
		for i := range items {
			item := &items[i]
			action, reason := Route(*item)

			record, err := upsertRecord(ctx, repo, workspace, *item, action, reason)
			if err != nil {
				return err
			}

			item.Processing = &domain.ProcessingState{
				Action:    action,
				Reason:    reason,
				RecordID:  record.ID,
				Reference: record.Reference,
			}
		}
		return nil
	})
	if err != nil {
		return nil, RouteStats{}, fmt.Errorf("persist processing records: %w", err)
	}

	for _, item := range items {
		switch item.Processing.Action {
		case domain.OutcomePublish:
			stats.Published++
		case domain.OutcomeModerate:
			stats.Moderated++
		case domain.OutcomeReject:
			stats.Rejected++
		}
	}
	return items, stats, nil
}

// upsertRecord looks the record up by reference, then by matched record id, and inserts when neither exists.
func upsertRecord(ctx context.Context, repo ports.Repository, workspace string, item domain.PipelineItem, action domain.Outcome, reason string) (*domain.ProcessingRecord, error) {
	reference := item.Deduplication.RecordReference
	if reference == "" {
		reference = item.Slug
	}

	record, err := repo.RecordByReference(ctx, workspace, reference)
	if err != nil {
		return nil, err
	}
	if record == nil && item.Deduplication.MatchedRecordID != 0 {
		record, err = repo.Record(ctx, item.Deduplication.MatchedRecordID)
		if err != nil {
			return nil, err
		}
	}

	logs, err := auditLog(item, action, reason)
	if err != nil {
		return nil, err
	}

	fields := domain.ProcessingRecord{
		Workspace:    workspace,
		Reference:    reference,
		Fingerprint:  item.Fingerprint,
		Outcome:      action,
		StatusReason: reason,
		DedupReason:  item.Deduplication.Reason,
		Logs:         logs,
	}
	if item.Translation != nil {
		fields.TranslationLanguage = item.Translation.Language
	}
	if item.Forgery != nil {
		fields.FakeDetected = item.Forgery.IsFake
		fields.FakeConfidence = item.Forgery.Confidence
	}
	if item.Classification != nil {
		fields.ClassificationScore = item.Classification.Score
		fields.ClassificationSummary = item.Classification.Summary
		fields.ClassificationFlags = item.Classification.Flags
	}

	if record == nil {
		if err := repo.CreateRecord(ctx, &fields); err != nil {
			return nil, err
		}
		return &fields, nil
	}

	fields.ID = record.ID
	fields.Reference = record.Reference
	fields.CreatedAt = record.CreatedAt
	if err := repo.UpdateRecord(ctx, &fields); err != nil {
		return nil, err
	}
	return &fields, nil
}

// auditLog renders the stage outputs as a JSON object with sorted keys.
func auditLog(item domain.PipelineItem, action domain.Outcome, reason string) (string, error) {
	var reasonValue any
	if reason != "" {
		reasonValue = reason
	}
	payload := map[string]any{
		"deduplication":  item.Deduplication,
		"translation":    item.Translation,
		"fake_detection": item.Forgery,
		"classification": item.Classification,
		"action":         action,
		"reason":         reasonValue,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode audit log for %s: %w", item.Slug, err)
	}
	return string(raw), nil
}
