package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/forskardb/researcher-identity-service/internal/domain"
)

// Compile-time interface verification.
var _ ResearcherRepository = (*PgResearcherRepository)(nil)

const stagedResearcherColumns = `id, given_name, family_name, institution, email,
		identifier, notes, source, status, created_at, updated_at, promoted_at`

// PgResearcherRepository is a PostgreSQL implementation of
// ResearcherRepository.
type PgResearcherRepository struct {
	db DBTX
}

// NewPgResearcherRepository creates a new PostgreSQL researcher repository.
func NewPgResearcherRepository(db DBTX) *PgResearcherRepository {
	return &PgResearcherRepository{db: db}
}

// Create inserts a staged researcher record.
func (r *PgResearcherRepository) Create(ctx context.Context, researcher *domain.StagedResearcher) error {
	if researcher == nil {
		return domain.NewValidationError("researcher", "researcher cannot be nil")
	}
	if researcher.GivenName == "" && researcher.FamilyName == "" {
		return domain.NewValidationError("name", "at least one of given name or family name is required")
	}
	if researcher.Identifier != "" {
		researcher.Identifier = domain.NormalizeIdentifier(researcher.Identifier)
		if err := domain.ValidateIdentifier(researcher.Identifier); err != nil {
			return err
		}
	}

	if researcher.ID == uuid.Nil {
		researcher.ID = uuid.New()
	}
	if researcher.Status == "" {
		researcher.Status = domain.ResearcherStatusStaged
	}
	now := time.Now().UTC()
	if researcher.CreatedAt.IsZero() {
		researcher.CreatedAt = now
	}
	researcher.UpdatedAt = now

	query := `
		INSERT INTO staged_researchers (
			id, given_name, family_name, institution, email,
			identifier, notes, source, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		researcher.ID,
		researcher.GivenName,
		researcher.FamilyName,
		researcher.Institution,
		researcher.Email,
		researcher.Identifier,
		researcher.Notes,
		researcher.Source,
		researcher.Status,
		researcher.CreatedAt,
		researcher.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.NewAlreadyExistsError("researcher", researcher.Identifier)
		}
		return fmt.Errorf("failed to create staged researcher: %w", err)
	}

	return nil
}

// GetByID retrieves a staged researcher by its id.
func (r *PgResearcherRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.StagedResearcher, error) {
	query := `
		SELECT ` + stagedResearcherColumns + `
		FROM staged_researchers
		WHERE id = $1`

	researcher, err := scanStagedResearcher(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("researcher", id.String())
		}
		return nil, fmt.Errorf("failed to get staged researcher: %w", err)
	}

	return researcher, nil
}

// List returns staged researchers matching the filter, newest first.
func (r *PgResearcherRepository) List(ctx context.Context, filter ResearcherFilter) ([]*domain.StagedResearcher, error) {
	applyPaginationDefaults(&filter.Limit, &filter.Offset)

	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Source != "" {
		args = append(args, filter.Source)
		conditions = append(conditions, fmt.Sprintf("source = $%d", len(args)))
	}
	if filter.Identifier != "" {
		args = append(args, filter.Identifier)
		conditions = append(conditions, fmt.Sprintf("identifier = $%d", len(args)))
	}

	query := `
		SELECT ` + stagedResearcherColumns + `
		FROM staged_researchers`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list staged researchers: %w", err)
	}
	defer rows.Close()

	researchers := make([]*domain.StagedResearcher, 0)
	for rows.Next() {
		researcher, err := scanStagedResearcher(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan staged researcher: %w", err)
		}
		researchers = append(researchers, researcher)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating staged researchers: %w", err)
	}

	return researchers, nil
}

// Update overwrites the record's mutable fields. Status and promotion
// timestamps are managed through Promote, not here.
func (r *PgResearcherRepository) Update(ctx context.Context, researcher *domain.StagedResearcher) error {
	if researcher == nil {
		return domain.NewValidationError("researcher", "researcher cannot be nil")
	}
	if researcher.ID == uuid.Nil {
		return domain.NewValidationError("id", "id is required")
	}
	if researcher.Identifier != "" {
		researcher.Identifier = domain.NormalizeIdentifier(researcher.Identifier)
		if err := domain.ValidateIdentifier(researcher.Identifier); err != nil {
			return err
		}
	}

	researcher.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE staged_researchers SET
			given_name = $2,
			family_name = $3,
			institution = $4,
			email = $5,
			identifier = $6,
			notes = $7,
			updated_at = $8
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		researcher.ID,
		researcher.GivenName,
		researcher.FamilyName,
		researcher.Institution,
		researcher.Email,
		researcher.Identifier,
		researcher.Notes,
		researcher.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.NewAlreadyExistsError("researcher", researcher.Identifier)
		}
		return fmt.Errorf("failed to update staged researcher: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("researcher", researcher.ID.String())
	}

	return nil
}

// Delete removes a staged researcher record.
func (r *PgResearcherRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM staged_researchers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete staged researcher: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("researcher", id.String())
	}

	return nil
}

// Promote flips a staged record to promoted and stamps promoted_at. The
// WHERE clause guards the transition so an already-terminal record is never
// promoted twice.
func (r *PgResearcherRepository) Promote(ctx context.Context, id uuid.UUID) (*domain.StagedResearcher, error) {
	now := time.Now().UTC()

	query := `
		UPDATE staged_researchers SET
			status = $2,
			promoted_at = $3,
			updated_at = $3
		WHERE id = $1 AND status = $4
		RETURNING ` + stagedResearcherColumns

	researcher, err := scanStagedResearcher(r.db.QueryRow(ctx, query,
		id, domain.ResearcherStatusPromoted, now, domain.ResearcherStatusStaged))
	if err == nil {
		return researcher, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to promote staged researcher: %w", err)
	}

	// No row transitioned: either the record is missing or already terminal.
	existing, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, domain.NewValidationError("status",
		fmt.Sprintf("researcher is already %s", existing.Status))
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanStagedResearcher(row rowScanner) (*domain.StagedResearcher, error) {
	var researcher domain.StagedResearcher
	err := row.Scan(
		&researcher.ID,
		&researcher.GivenName,
		&researcher.FamilyName,
		&researcher.Institution,
		&researcher.Email,
		&researcher.Identifier,
		&researcher.Notes,
		&researcher.Source,
		&researcher.Status,
		&researcher.CreatedAt,
		&researcher.UpdatedAt,
		&researcher.PromotedAt,
	)
	if err != nil {
		return nil, err
	}
	return &researcher, nil
}
