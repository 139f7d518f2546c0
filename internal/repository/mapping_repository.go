package repository

import (
	"context"

	"github.com/forskardb/researcher-identity-service/internal/domain"
)

// MappingFilter narrows Filter queries. Zero-valued fields are ignored.
type MappingFilter struct {
	// LocalRecordID restricts results to one local record.
	LocalRecordID string

	// CanonicalIdentifier restricts results to mappings pointing at one
	// canonical identity.
	CanonicalIdentifier string

	// Limit caps the result count. Defaults to 100, max 1000.
	Limit int

	// Offset skips that many rows for pagination.
	Offset int
}

// MappingRepository persists reconciled identity mappings.
//
// A local record maps to at most one canonical identifier at a time:
// Upsert is keyed on the local record id and a re-match overwrites the
// previous canonical identifier, confidence, and timestamp rather than
// adding a row.
type MappingRepository interface {
	// Upsert inserts or replaces the mapping for mapping.LocalRecordID.
	// Returns a validation error for an empty local record id, a malformed
	// canonical identifier, or a confidence outside [0,1].
	Upsert(ctx context.Context, mapping *domain.IdentityMapping) error

	// Filter returns mappings matching the filter, most recently matched
	// first. An empty result is a valid response, not an error.
	Filter(ctx context.Context, filter MappingFilter) ([]*domain.IdentityMapping, error)
}
