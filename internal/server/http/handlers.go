package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/forskardb/researcher-identity-service/internal/domain"
	"github.com/forskardb/researcher-identity-service/internal/observability"
)

// maxRequestBodySize caps request bodies at 1 MB.
const maxRequestBodySize = 1 << 20

var validate = validator.New()

// decodeJSON reads and decodes a JSON request body into v, then validates
// struct tags.
func decodeJSON(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		return domain.NewValidationError("body", "failed to read request body")
	}
	if len(body) == 0 {
		return domain.NewValidationError("body", "request body is required")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return domain.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return domain.NewValidationError(verrs[0].Field(), "failed validation on '"+verrs[0].Tag()+"'")
		}
		return domain.NewValidationError("body", err.Error())
	}
	return nil
}

// queryInt parses an integer query parameter, falling back to def when the
// parameter is absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// matchIdentity handles POST /api/v1/match. It resolves a local researcher
// reference against the canonical registry and persists the resulting
// mapping when a candidate is found.
func (s *Server) matchIdentity(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	ctx := observability.WithLocalRecordID(r.Context(), req.LocalRecordID)
	logger := observability.WithMatchContext(s.logger, observability.RequestIDFromContext(ctx), req.LocalRecordID)

	if s.metrics != nil {
		s.metrics.RecordMatchStarted()
	}
	start := time.Now()

	candidate, err := s.matcher.Match(ctx, req.LocalRecordID, req.toReference())
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordMatchFailed(time.Since(start).Seconds())
		}
		logger.Error().Err(err).Msg("identity match failed")
		writeDomainError(w, err)
		return
	}

	resp := matchResponse{LocalRecordID: req.LocalRecordID}
	outcome := observability.MatchOutcomeNoMatch
	if candidate != nil {
		resp.Matched = true
		resp.Candidate = candidate.Candidate
		confidence := candidate.Confidence
		resp.Confidence = &confidence
		if candidate.CandidateCount == 1 {
			outcome = observability.MatchOutcomeSingle
		} else {
			outcome = observability.MatchOutcomeScored
		}
	}
	if s.metrics != nil {
		s.metrics.RecordMatchCompleted(outcome, candidateConfidence(candidate), time.Since(start).Seconds())
	}

	logger.Info().
		Bool("matched", resp.Matched).
		Dur("duration", time.Since(start)).
		Msg("identity match completed")
	writeJSON(w, http.StatusOK, resp)
}

func candidateConfidence(c *domain.MatchCandidate) float64 {
	if c == nil {
		return 0
	}
	return c.Confidence
}

// getResearcher handles GET /api/v1/researchers/{identifier}. The details
// query parameter controls whether employment, education, works, and
// funding sections are populated.
func (s *Server) getResearcher(w http.ResponseWriter, r *http.Request) {
	identifier := domain.NormalizeIdentifier(chi.URLParam(r, "identifier"))
	if err := domain.ValidateIdentifier(identifier); err != nil {
		writeDomainError(w, err)
		return
	}

	includeDetails := r.URL.Query().Get("details") == "true"

	profile, err := s.registry.FetchByID(r.Context(), identifier, includeDetails)
	if err != nil {
		s.logger.Error().Err(err).Str("identifier", identifier).Msg("failed to fetch researcher profile")
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// getResearcherPublications handles
// GET /api/v1/researchers/{identifier}/publications.
func (s *Server) getResearcherPublications(w http.ResponseWriter, r *http.Request) {
	identifier := domain.NormalizeIdentifier(chi.URLParam(r, "identifier"))
	if err := domain.ValidateIdentifier(identifier); err != nil {
		writeDomainError(w, err)
		return
	}

	limit := queryInt(r, "limit", 20)
	publications, err := s.bibliography.SearchByIdentifier(r.Context(), identifier, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("identifier", identifier).Msg("failed to fetch publications")
		writeDomainError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordPublicationsFetched(string(domain.SourceTypeBibliography), len(publications))
	}
	writeJSON(w, http.StatusOK, listResponse{Items: publications, Count: len(publications)})
}

// searchPublications handles GET /api/v1/publications/search.
func (s *Server) searchPublications(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeDomainError(w, domain.NewValidationError("q", "query parameter is required"))
		return
	}

	limit := queryInt(r, "limit", 20)
	publications, err := s.bibliography.Search(r.Context(), query, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("query", query).Msg("publication search failed")
		writeDomainError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordPublicationsFetched(string(domain.SourceTypeBibliography), len(publications))
	}
	writeJSON(w, http.StatusOK, listResponse{Items: publications, Count: len(publications)})
}

// searchScholarResults handles GET /api/v1/scholar/search.
func (s *Server) searchScholarResults(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeDomainError(w, domain.NewValidationError("q", "query parameter is required"))
		return
	}

	limit := queryInt(r, "limit", 10)
	results, err := s.scholar.SearchByQuery(r.Context(), query, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("query", query).Msg("scholar search failed")
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: results, Count: len(results)})
}

// getScholarProfile handles GET /api/v1/scholar/profile. The name parameter
// is required; identifier and institution refine the lookup.
func (s *Server) getScholarProfile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("name")
	if name == "" {
		writeDomainError(w, domain.NewValidationError("name", "query parameter is required"))
		return
	}

	ref := &domain.IdentityReference{
		DisplayName:     name,
		Institution:     q.Get("institution"),
		KnownIdentifier: q.Get("identifier"),
	}

	profile, err := s.scholar.SearchByIdentity(r.Context(), ref)
	if err != nil {
		s.logger.Error().Err(err).Str("name", name).Msg("scholar profile lookup failed")
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
