// Package reconcile resolves noisy researcher references to canonical
// registry identities with a confidence score. The engine queries the
// registry adapter, ranks candidates, and persists the winning mapping.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/forskardb/researcher-identity-service/internal/domain"
	"github.com/forskardb/researcher-identity-service/internal/observability"
)

const (
	// maxSearchResults bounds candidates per match attempt. Small on purpose:
	// it keeps the registry call budget predictable and triggers eager
	// candidate enrichment in the registry adapter.
	maxSearchResults = 5

	// singleMatchConfidence is assigned when exactly one candidate comes
	// back. There is no competing evidence to rank against.
	singleMatchConfidence = 0.70
)

// RegistrySearcher is the slice of the registry client the engine needs.
type RegistrySearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]*domain.ResearcherProfile, error)
}

// MappingStore persists reconciled identity mappings.
type MappingStore interface {
	Upsert(ctx context.Context, mapping *domain.IdentityMapping) error
}

// Engine matches identity references against the registry. It holds no state
// across calls beyond its collaborators; every Match is independent.
type Engine struct {
	registry RegistrySearcher
	store    MappingStore
	logger   zerolog.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewEngine creates a reconciliation engine. A nil store disables mapping
// persistence; matches are still computed and returned.
func NewEngine(registry RegistrySearcher, store MappingStore, logger zerolog.Logger) *Engine {
	return &Engine{
		registry: registry,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// SetMetrics attaches match metrics. A nil value disables recording.
func (e *Engine) SetMetrics(m *observability.Metrics) {
	e.metrics = m
}

// Match resolves a reference to its best canonical candidate.
//
// Zero candidates return (nil, nil): no match is a valid empty result, not an
// error. A single candidate gets the fixed single-match confidence. Multiple
// candidates are scored independently and ranked; the top candidate is
// returned even when its score is zero. Upstream failures propagate; the
// engine never masks a search error as a no-match.
//
// On a successful match with a non-empty localRecordID, the mapping is
// upserted through the store before returning.
func (e *Engine) Match(ctx context.Context, localRecordID string, ref *domain.IdentityReference) (*domain.MatchCandidate, error) {
	if ref == nil || ref.DisplayName == "" {
		return nil, domain.NewValidationError("display_name", "display name is required")
	}
	if ref.KnownIdentifier != "" {
		if err := domain.ValidateIdentifier(domain.NormalizeIdentifier(ref.KnownIdentifier)); err != nil {
			return nil, err
		}
	}

	query := buildQuery(ref)

	candidates, err := e.registry.Search(ctx, query, maxSearchResults)
	if err != nil {
		return nil, fmt.Errorf("searching registry: %w", err)
	}

	if e.metrics != nil {
		e.metrics.RecordCandidates(len(candidates))
	}

	if len(candidates) == 0 {
		e.logger.Info().Str("name", ref.DisplayName).Msg("no registry match found")
		return nil, nil
	}

	var match *domain.MatchCandidate
	if len(candidates) == 1 {
		match = &domain.MatchCandidate{
			Reference:  *ref,
			Candidate:  candidates[0],
			Confidence: singleMatchConfidence,
		}
	} else {
		match = rankCandidates(ref, candidates)
	}
	match.CandidateCount = len(candidates)

	e.logger.Info().
		Str("name", ref.DisplayName).
		Str("identifier", match.Candidate.Identifier).
		Float64("confidence", match.Confidence).
		Int("candidates", len(candidates)).
		Msg("reconciled identity reference")

	if e.store != nil && localRecordID != "" {
		mapping := &domain.IdentityMapping{
			LocalRecordID:       localRecordID,
			CanonicalIdentifier: match.Candidate.Identifier,
			Confidence:          match.Confidence,
			MatchedAt:           e.now().UTC(),
		}
		if err := e.store.Upsert(ctx, mapping); err != nil {
			return nil, fmt.Errorf("persisting identity mapping: %w", err)
		}
		if e.metrics != nil {
			e.metrics.RecordMappingPersisted()
		}
	}

	return match, nil
}

// rankCandidates scores every candidate and returns the best. The sort is
// stable: ties keep registry order, so the registry's own relevance ranking
// breaks them.
func rankCandidates(ref *domain.IdentityReference, candidates []*domain.ResearcherProfile) *domain.MatchCandidate {
	best := &domain.MatchCandidate{
		Reference:  *ref,
		Candidate:  candidates[0],
		Confidence: scoreCandidate(ref, candidates[0]),
	}
	for _, candidate := range candidates[1:] {
		score := scoreCandidate(ref, candidate)
		if score > best.Confidence {
			best = &domain.MatchCandidate{
				Reference:  *ref,
				Candidate:  candidate,
				Confidence: score,
			}
		}
	}
	return best
}
