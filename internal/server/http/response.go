package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/forskardb/researcher-identity-service/internal/domain"
)

// matchRequest is the body for POST /api/v1/match.
type matchRequest struct {
	LocalRecordID   string   `json:"local_record_id" validate:"required"`
	DisplayName     string   `json:"display_name" validate:"required"`
	GivenName       string   `json:"given_name,omitempty"`
	FamilyName      string   `json:"family_name,omitempty"`
	Institution     string   `json:"institution,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	KnownIdentifier string   `json:"known_identifier,omitempty"`
}

func (r *matchRequest) toReference() *domain.IdentityReference {
	return &domain.IdentityReference{
		DisplayName:     r.DisplayName,
		GivenName:       r.GivenName,
		FamilyName:      r.FamilyName,
		Institution:     r.Institution,
		Keywords:        r.Keywords,
		KnownIdentifier: r.KnownIdentifier,
	}
}

// matchResponse is the body for a successful match. Matched is false when
// the registry returned no candidates, in which case candidate and
// confidence are omitted.
type matchResponse struct {
	LocalRecordID string                    `json:"local_record_id"`
	Matched       bool                      `json:"matched"`
	Candidate     *domain.ResearcherProfile `json:"candidate,omitempty"`
	Confidence    *float64                  `json:"confidence,omitempty"`
}

// stagedResearcherRequest is the body for creating or updating a staged
// researcher record.
type stagedResearcherRequest struct {
	GivenName   string `json:"given_name" validate:"required"`
	FamilyName  string `json:"family_name" validate:"required"`
	Institution string `json:"institution,omitempty"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	Identifier  string `json:"identifier,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Source      string `json:"source,omitempty"`
}

// stagedResearcherResponse is the JSON shape of a staged researcher record.
type stagedResearcherResponse struct {
	ID          string     `json:"id"`
	GivenName   string     `json:"given_name"`
	FamilyName  string     `json:"family_name"`
	Institution string     `json:"institution,omitempty"`
	Email       string     `json:"email,omitempty"`
	Identifier  string     `json:"identifier,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Source      string     `json:"source"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PromotedAt  *time.Time `json:"promoted_at,omitempty"`
}

func toStagedResearcherResponse(r *domain.StagedResearcher) *stagedResearcherResponse {
	return &stagedResearcherResponse{
		ID:          r.ID.String(),
		GivenName:   r.GivenName,
		FamilyName:  r.FamilyName,
		Institution: r.Institution,
		Email:       r.Email,
		Identifier:  r.Identifier,
		Notes:       r.Notes,
		Source:      string(r.Source),
		Status:      string(r.Status),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		PromotedAt:  r.PromotedAt,
	}
}

// listResponse wraps list endpoints with a count for clients that page.
type listResponse struct {
	Items interface{} `json:"items"`
	Count int         `json:"count"`
}

// writeDomainError maps domain errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		writeError(w, http.StatusBadRequest, validationErr.Error())
		return
	}

	var rateLimitErr *domain.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if rateLimitErr.RetryAfter > 0 {
			seconds := int(rateLimitErr.RetryAfter.Round(time.Second).Seconds())
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
		}
		writeError(w, http.StatusTooManyRequests, rateLimitErr.Error())
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "upstream service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
