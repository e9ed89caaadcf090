package storage

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// Delivered reports whether the reference was already sent to the chat.
func (q *queries) Delivered(ctx context.Context, workspace, reference, chatID string) (bool, error) {
	row, err := q.queryRow(ctx, q.sb.Select("COUNT(*)").
		From("delivery_attempts").
		Where(sq.Eq{"workspace": workspace, "reference": reference, "chat_id": chatID}))
	if err != nil {
		return false, err
	}
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("check delivery %s -> %s: %w", reference, chatID, err)
	}
	return count > 0, nil
}

// MarkDelivered records a successful send. Repeated calls are no-ops.
func (q *queries) MarkDelivered(ctx context.Context, workspace, reference, chatID string) error {
	_, err := q.exec(ctx, q.sb.Insert("delivery_attempts").
		Columns("workspace", "reference", "chat_id", "delivered_at").
		Values(workspace, reference, chatID, q.now()).
		Suffix("ON CONFLICT DO NOTHING"))
	if err != nil {
		return fmt.Errorf("record delivery %s -> %s: %w", reference, chatID, err)
	}
	return nil
}
