package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/forskardb/researcher-identity-service/internal/domain"
)

// ResearcherFilter narrows List queries. Zero-valued fields are ignored.
type ResearcherFilter struct {
	// Status restricts results to one lifecycle status.
	Status domain.ResearcherStatus

	// Source restricts results to records ingested from one source.
	Source domain.SourceType

	// Identifier restricts results to one canonical identifier.
	Identifier string

	// Limit caps the result count. Defaults to 100, max 1000.
	Limit int

	// Offset skips that many rows for pagination.
	Offset int
}

// ResearcherRepository manages staged researcher records.
//
// Records enter in status "staged" and are promoted to permanent visibility
// by flipping the status and stamping the promotion time. Promotion is the
// only status transition the repository performs; terminal records are never
// moved back.
type ResearcherRepository interface {
	// Create inserts a staged researcher. A zero ID is assigned, zero
	// timestamps are stamped, and an empty status defaults to staged.
	Create(ctx context.Context, researcher *domain.StagedResearcher) error

	// GetByID returns one record or a not-found error.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.StagedResearcher, error)

	// List returns records matching the filter, newest first.
	List(ctx context.Context, filter ResearcherFilter) ([]*domain.StagedResearcher, error)

	// Update overwrites the record's mutable fields and bumps updated_at.
	Update(ctx context.Context, researcher *domain.StagedResearcher) error

	// Delete removes a record. Deleting a missing record is a not-found
	// error.
	Delete(ctx context.Context, id uuid.UUID) error

	// Promote flips a staged record to promoted and stamps promoted_at.
	// Promoting a record that is already terminal is a validation error.
	Promote(ctx context.Context, id uuid.UUID) (*domain.StagedResearcher, error)
}
