package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/waypath/internal/model"
)

// AppendInvocation records one execution. Records are never updated.
func (s *Store) AppendInvocation(ctx context.Context, rec model.InvocationRecord) error {
	invokedAt := rec.InvokedAt
	if invokedAt.IsZero() {
		invokedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invocations (id, owner, definition_name, result_address, request_details_address, definition_address, invoked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, rec.ID, rec.Owner, rec.DefinitionName, rec.ResultAddress, rec.RequestDetailsAddress, rec.DefinitionAddress, invokedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("append invocation %s: %w", rec.ID, err)
	}
	return nil
}

// Invocations returns up to limit records for a definition, newest first.
// An empty definition lists every definition; limit <= 0 means no limit.
func (s *Store) Invocations(ctx context.Context, owner, definition string, limit int) ([]model.InvocationRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, definition_name, result_address, request_details_address, definition_address, invoked_at
		FROM invocations
		WHERE owner = ? AND (? = '' OR definition_name = ?)
		ORDER BY invoked_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, owner, definition, definition, limit)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	records := []model.InvocationRecord{}
	for rows.Next() {
		rec := model.InvocationRecord{Owner: owner}
		var invokedAt int64
		if err := rows.Scan(&rec.ID, &rec.DefinitionName, &rec.ResultAddress, &rec.RequestDetailsAddress, &rec.DefinitionAddress, &invokedAt); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		rec.InvokedAt = time.Unix(0, invokedAt).UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}
