package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/scolarite/mailsync/internal/models"
)

// ModificationStore claims and advances modification records.
type ModificationStore struct {
	pool *pgxpool.Pool
}

// NewModificationStore creates a modification store over the given pool.
func NewModificationStore(pool *pgxpool.Pool) *ModificationStore {
	return &ModificationStore{pool: pool}
}

// ClaimPending atomically moves up to limit TODO records to IN_PROGRESS
// and returns them. SKIP LOCKED keeps concurrent claimers from processing
// the same record twice.
func (s *ModificationStore) ClaimPending(ctx context.Context, limit int) ([]models.ModificationRecord, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE modifications
		SET status = 'IN_PROGRESS', updated_at = now()
		WHERE id IN (
			SELECT id FROM modifications
			WHERE status = 'TODO'
			ORDER BY id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, principal_id, unit_id, address, kind, status, created_at, updated_at
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending records: %w", err)
	}
	defer rows.Close()

	var records []models.ModificationRecord
	for rows.Next() {
		var rec models.ModificationRecord
		var kind, status string
		if err := rows.Scan(&rec.ID, &rec.PrincipalID, &rec.UnitID, &rec.Address, &kind, &status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan modification row: %w", err)
		}
		// An unparseable kind stays ModificationUnknown; the synchronizer
		// fails such records as fatally misconfigured rather than dropping
		// them here.
		rec.Kind, _ = models.ParseModificationKind(kind)
		rec.Status, _ = models.ParseRecordStatus(status)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read modification rows: %w", err)
	}
	return records, nil
}

// SetStatus writes the terminal status of one record.
func (s *ModificationStore) SetStatus(ctx context.Context, id int64, status models.RecordStatus) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE modifications
		SET status = $2, updated_at = now()
		WHERE id = $1
	`, id, status.String())
	if err != nil {
		return fmt.Errorf("failed to set status %s on record %d: %w", status, id, err)
	}
	return nil
}

// Insert adds a new TODO record. Directory change detection owns this in
// production; tests and backfills use it directly.
func (s *ModificationStore) Insert(ctx context.Context, rec models.ModificationRecord) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO modifications (principal_id, unit_id, address, kind, status)
		VALUES ($1, $2, $3, $4, 'TODO')
		RETURNING id
	`, rec.PrincipalID, rec.UnitID, rec.Address, rec.Kind.String()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert modification record: %w", err)
	}
	return id, nil
}
