package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/forskardb/researcher-identity-service/internal/domain"
	"github.com/forskardb/researcher-identity-service/internal/repository"
)

// parseUUID parses a URL parameter as a UUID, returning a validation error
// for malformed input.
func parseUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(param, "must be a valid UUID")
	}
	return id, nil
}

// createStagedResearcher handles POST /api/v1/staged-researchers.
func (s *Server) createStagedResearcher(w http.ResponseWriter, r *http.Request) {
	var req stagedResearcherRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	researcher := &domain.StagedResearcher{
		GivenName:   req.GivenName,
		FamilyName:  req.FamilyName,
		Institution: req.Institution,
		Email:       req.Email,
		Identifier:  domain.NormalizeIdentifier(req.Identifier),
		Notes:       req.Notes,
		Source:      domain.SourceType(req.Source),
	}
	if researcher.Source == "" {
		researcher.Source = domain.SourceTypeManual
	}
	if researcher.Identifier != "" {
		if err := domain.ValidateIdentifier(researcher.Identifier); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	if err := s.researcherRepo.Create(r.Context(), researcher); err != nil {
		s.logger.Error().Err(err).Msg("failed to create staged researcher")
		writeDomainError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordResearcherStaged()
	}

	s.logger.Info().
		Str("id", researcher.ID.String()).
		Str("name", researcher.FullName()).
		Msg("staged researcher created")
	writeJSON(w, http.StatusCreated, toStagedResearcherResponse(researcher))
}

// getStagedResearcher handles GET /api/v1/staged-researchers/{id}.
func (s *Server) getStagedResearcher(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(r, "id")
	if err != nil {
		writeDomainError(w, err)
		return
	}

	researcher, err := s.researcherRepo.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStagedResearcherResponse(researcher))
}

// listStagedResearchers handles GET /api/v1/staged-researchers. Supports
// status, source, identifier, limit, and offset query parameters.
func (s *Server) listStagedResearchers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.ResearcherFilter{
		Status:     domain.ResearcherStatus(q.Get("status")),
		Source:     domain.SourceType(q.Get("source")),
		Identifier: domain.NormalizeIdentifier(q.Get("identifier")),
		Limit:      queryInt(r, "limit", 0),
		Offset:     queryInt(r, "offset", 0),
	}

	researchers, err := s.researcherRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list staged researchers")
		writeDomainError(w, err)
		return
	}

	items := make([]*stagedResearcherResponse, 0, len(researchers))
	for _, researcher := range researchers {
		items = append(items, toStagedResearcherResponse(researcher))
	}
	writeJSON(w, http.StatusOK, listResponse{Items: items, Count: len(items)})
}

// updateStagedResearcher handles PUT /api/v1/staged-researchers/{id}.
func (s *Server) updateStagedResearcher(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(r, "id")
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req stagedResearcherRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	researcher, err := s.researcherRepo.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	researcher.GivenName = req.GivenName
	researcher.FamilyName = req.FamilyName
	researcher.Institution = req.Institution
	researcher.Email = req.Email
	researcher.Notes = req.Notes
	if req.Identifier != "" {
		identifier := domain.NormalizeIdentifier(req.Identifier)
		if err := domain.ValidateIdentifier(identifier); err != nil {
			writeDomainError(w, err)
			return
		}
		researcher.Identifier = identifier
	}
	if req.Source != "" {
		researcher.Source = domain.SourceType(req.Source)
	}

	if err := s.researcherRepo.Update(r.Context(), researcher); err != nil {
		s.logger.Error().Err(err).Str("id", id.String()).Msg("failed to update staged researcher")
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStagedResearcherResponse(researcher))
}

// deleteStagedResearcher handles DELETE /api/v1/staged-researchers/{id}.
func (s *Server) deleteStagedResearcher(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(r, "id")
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.researcherRepo.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// promoteStagedResearcher handles POST /api/v1/staged-researchers/{id}/promote.
func (s *Server) promoteStagedResearcher(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(r, "id")
	if err != nil {
		writeDomainError(w, err)
		return
	}

	researcher, err := s.researcherRepo.Promote(r.Context(), id)
	if err != nil {
		s.logger.Error().Err(err).Str("id", id.String()).Msg("failed to promote staged researcher")
		writeDomainError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordResearcherPromoted()
	}

	s.logger.Info().
		Str("id", researcher.ID.String()).
		Str("name", researcher.FullName()).
		Msg("staged researcher promoted")
	writeJSON(w, http.StatusOK, toStagedResearcherResponse(researcher))
}

// listMappings handles GET /api/v1/mappings. Supports local_record_id,
// canonical_identifier, limit, and offset query parameters.
func (s *Server) listMappings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.MappingFilter{
		LocalRecordID:       q.Get("local_record_id"),
		CanonicalIdentifier: domain.NormalizeIdentifier(q.Get("canonical_identifier")),
		Limit:               queryInt(r, "limit", 0),
		Offset:              queryInt(r, "offset", 0),
	}

	mappings, err := s.mappingRepo.Filter(r.Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list identity mappings")
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: mappings, Count: len(mappings)})
}
