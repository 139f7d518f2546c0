package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/forskardb/researcher-identity-service/internal/domain"
)

// Compile-time interface verification.
var _ MappingRepository = (*PgMappingRepository)(nil)

// PgMappingRepository is a PostgreSQL implementation of MappingRepository.
type PgMappingRepository struct {
	db DBTX
}

// NewPgMappingRepository creates a new PostgreSQL mapping repository.
func NewPgMappingRepository(db DBTX) *PgMappingRepository {
	return &PgMappingRepository{db: db}
}

// Upsert inserts or replaces the mapping for the local record. Keyed on
// local_record_id so a re-match overwrites the canonical identifier,
// confidence, and timestamp in place (last-write-wins).
func (r *PgMappingRepository) Upsert(ctx context.Context, mapping *domain.IdentityMapping) error {
	if mapping == nil {
		return domain.NewValidationError("mapping", "mapping cannot be nil")
	}
	if mapping.LocalRecordID == "" {
		return domain.NewValidationError("local_record_id", "local record id is required")
	}
	if err := domain.ValidateIdentifier(mapping.CanonicalIdentifier); err != nil {
		return err
	}
	if mapping.Confidence < 0 || mapping.Confidence > 1 {
		return domain.NewValidationError("confidence", "confidence must be between 0 and 1")
	}
	if mapping.MatchedAt.IsZero() {
		mapping.MatchedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO identity_mappings (local_record_id, canonical_identifier, confidence, matched_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (local_record_id) DO UPDATE SET
			canonical_identifier = EXCLUDED.canonical_identifier,
			confidence = EXCLUDED.confidence,
			matched_at = EXCLUDED.matched_at`

	_, err := r.db.Exec(ctx, query,
		mapping.LocalRecordID,
		mapping.CanonicalIdentifier,
		mapping.Confidence,
		mapping.MatchedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation {
			return domain.NewValidationError("confidence", "confidence must be between 0 and 1")
		}
		return fmt.Errorf("failed to upsert identity mapping: %w", err)
	}

	return nil
}

// Filter returns mappings matching the filter, most recently matched first.
func (r *PgMappingRepository) Filter(ctx context.Context, filter MappingFilter) ([]*domain.IdentityMapping, error) {
	applyPaginationDefaults(&filter.Limit, &filter.Offset)

	var conditions []string
	var args []interface{}

	if filter.LocalRecordID != "" {
		args = append(args, filter.LocalRecordID)
		conditions = append(conditions, fmt.Sprintf("local_record_id = $%d", len(args)))
	}
	if filter.CanonicalIdentifier != "" {
		args = append(args, filter.CanonicalIdentifier)
		conditions = append(conditions, fmt.Sprintf("canonical_identifier = $%d", len(args)))
	}

	query := `
		SELECT local_record_id, canonical_identifier, confidence, matched_at
		FROM identity_mappings`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY matched_at DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query identity mappings: %w", err)
	}
	defer rows.Close()

	mappings := make([]*domain.IdentityMapping, 0)
	for rows.Next() {
		var m domain.IdentityMapping
		if err := rows.Scan(&m.LocalRecordID, &m.CanonicalIdentifier, &m.Confidence, &m.MatchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan identity mapping: %w", err)
		}
		mappings = append(mappings, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating identity mappings: %w", err)
	}

	return mappings, nil
}
