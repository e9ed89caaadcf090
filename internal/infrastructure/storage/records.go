package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"NewsPipeline/internal/domain"
)

var recordColumns = []string{
	"id", "workspace", "reference", "fingerprint", "outcome", "status_reason", "dedup_reason",
	"translation_language", "fake_detected", "fake_confidence", "classification_score",
	"classification_summary", "classification_flags", "logs", "created_at", "updated_at",
}

// RecordByFingerprint returns the oldest record with the fingerprint, or nil when none exists.
func (q *queries) RecordByFingerprint(ctx context.Context, workspace, fingerprint string) (*domain.ProcessingRecord, error) {
	return q.findRecord(ctx, sq.Eq{"workspace": workspace, "fingerprint": fingerprint})
}

// RecordByReference returns the record for a reference, or nil when none exists.
func (q *queries) RecordByReference(ctx context.Context, workspace, reference string) (*domain.ProcessingRecord, error) {
	return q.findRecord(ctx, sq.Eq{"workspace": workspace, "reference": reference})
}

// Record loads a record by id.
func (q *queries) Record(ctx context.Context, id int64) (*domain.ProcessingRecord, error) {
	record, err := q.findRecord(ctx, sq.Eq{"id": id})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("processing record %d: %w", id, domain.ErrNotFound)
	}
	return record, nil
}

func (q *queries) findRecord(ctx context.Context, where sq.Eq) (*domain.ProcessingRecord, error) {
	row, err := q.queryRow(ctx, q.sb.Select(recordColumns...).
		From("processing_records").
		Where(where).
		OrderBy("id ASC").
		Limit(1))
	if err != nil {
		return nil, err
	}

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load processing record: %w", err)
	}
	return &record, nil
}

// CreateRecord inserts the record and fills its id and timestamps.
func (q *queries) CreateRecord(ctx context.Context, record *domain.ProcessingRecord) error {
	now := q.now()
	row, err := q.queryRow(ctx, q.sb.Insert("processing_records").
		Columns(recordColumns[1:]...).
		Values(
			record.Workspace,
			record.Reference,
			record.Fingerprint,
			string(record.Outcome),
			nullString(record.StatusReason),
			nullString(string(record.DedupReason)),
			nullString(record.TranslationLanguage),
			record.FakeDetected,
			record.FakeConfidence,
			record.ClassificationScore,
			nullString(record.ClassificationSummary),
			domain.JoinFlags(record.ClassificationFlags),
			record.Logs,
			now,
			now,
		).
		Suffix("RETURNING id"))
	if err != nil {
		return err
	}
	if err := row.Scan(&record.ID); err != nil {
		return fmt.Errorf("insert processing record %s: %w", record.Reference, err)
	}
	record.CreatedAt = now
	record.UpdatedAt = now
	return nil
}

// UpdateRecord overwrites the mutable fields of an existing record.
func (q *queries) UpdateRecord(ctx context.Context, record *domain.ProcessingRecord) error {
	now := q.now()
	res, err := q.exec(ctx, q.sb.Update("processing_records").
		SetMap(map[string]any{
			"reference":              record.Reference,
			"fingerprint":            record.Fingerprint,
			"outcome":                string(record.Outcome),
			"status_reason":          nullString(record.StatusReason),
			"dedup_reason":           nullString(string(record.DedupReason)),
			"translation_language":   nullString(record.TranslationLanguage),
			"fake_detected":          record.FakeDetected,
			"fake_confidence":        record.FakeConfidence,
			"classification_score":   record.ClassificationScore,
			"classification_summary": nullString(record.ClassificationSummary),
			"classification_flags":   domain.JoinFlags(record.ClassificationFlags),
			"logs":                   record.Logs,
			"updated_at":             now,
		}).
		Where(sq.Eq{"id": record.ID}))
	if err != nil {
		return fmt.Errorf("update processing record %d: %w", record.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("processing record %d: %w", record.ID, domain.ErrNotFound)
	}
	record.UpdatedAt = now
	return nil
}

// Records lists every record of a workspace in insertion order.
func (q *queries) Records(ctx context.Context, workspace string) ([]domain.ProcessingRecord, error) {
	records, err := queryAll(ctx, q, q.sb.Select(recordColumns...).
		From("processing_records").
		Where(sq.Eq{"workspace": workspace}).
		OrderBy("id ASC"), scanRecord)
	if err != nil {
		return nil, fmt.Errorf("list processing records: %w", err)
	}
	return records, nil
}

func scanRecord(row rowScanner) (domain.ProcessingRecord, error) {
	var (
		record                             domain.ProcessingRecord
		outcome                            string
		statusReason, dedupReason, lang    sql.NullString
		classificationSummary, flags, logs sql.NullString
	)
	err := row.Scan(
		&record.ID,
		&record.Workspace,
		&record.Reference,
		&record.Fingerprint,
		&outcome,
		&statusReason,
		&dedupReason,
		&lang,
		&record.FakeDetected,
		&record.FakeConfidence,
		&record.ClassificationScore,
		&classificationSummary,
		&flags,
		&logs,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return domain.ProcessingRecord{}, err
	}
	record.Outcome = domain.Outcome(outcome)
	record.StatusReason = statusReason.String
	record.DedupReason = domain.DedupReason(dedupReason.String)
	record.TranslationLanguage = lang.String
	record.ClassificationSummary = classificationSummary.String
	record.ClassificationFlags = domain.SplitFlags(flags.String)
	record.Logs = logs.String
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return record, nil
}
