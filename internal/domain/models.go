// Package domain provides domain models and business logic for the Researcher Identity Service.
package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SourceType represents the upstream source that provided researcher or
// publication data. These values must match the database enum source_type.
type SourceType string

const (
	SourceTypeRegistry     SourceType = "registry"
	SourceTypeBibliography SourceType = "bibliography"
	SourceTypeScholarWeb   SourceType = "scholar_web"
	SourceTypeSpreadsheet  SourceType = "spreadsheet"
	SourceTypeManual       SourceType = "manual"
)

// ResearcherStatus represents the lifecycle state of a staged researcher
// record. These values must match the database enum researcher_status.
type ResearcherStatus string

const (
	ResearcherStatusStaged   ResearcherStatus = "staged"
	ResearcherStatusPromoted ResearcherStatus = "promoted"
	ResearcherStatusRejected ResearcherStatus = "rejected"
)

// IsTerminal returns true if the status represents a final state.
func (s ResearcherStatus) IsTerminal() bool {
	switch s {
	case ResearcherStatusPromoted, ResearcherStatusRejected:
		return true
	default:
		return false
	}
}

// PartialDate is a date with year, year+month, or year+month+day precision.
// A zero component means the component is absent; a zero PartialDate means
// the date itself is absent. Registry payloads routinely omit month and day.
type PartialDate struct {
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`
	Day   int `json:"day,omitempty"`
}

// IsZero returns true when no component is present.
func (d PartialDate) IsZero() bool {
	return d.Year == 0
}

// String formats the date with exactly the precision that is present:
// "2020", "2020-5", or "2020-5-1". The day is only rendered when the month
// is also present. A zero date formats to the empty string.
func (d PartialDate) String() string {
	if d.Year == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(d.Year))
	if d.Month > 0 {
		sb.WriteByte('-')
		sb.WriteString(strconv.Itoa(d.Month))
		if d.Day > 0 {
			sb.WriteByte('-')
			sb.WriteString(strconv.Itoa(d.Day))
		}
	}
	return sb.String()
}

// IdentityReference is the noisy, caller-supplied description of a researcher
// to be resolved. It is constructed per lookup and never mutated.
type IdentityReference struct {
	DisplayName     string   `json:"display_name" validate:"required"`
	GivenName       string   `json:"given_name,omitempty"`
	FamilyName      string   `json:"family_name,omitempty"`
	Institution     string   `json:"institution,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	KnownIdentifier string   `json:"known_identifier,omitempty"`
}

// Location is the place of an affiliation's organization.
type Location struct {
	City    string `json:"city,omitempty"`
	Region  string `json:"region,omitempty"`
	Country string `json:"country,omitempty"`
}

// Affiliation is an employment or education entry on a researcher profile.
type Affiliation struct {
	Organization string      `json:"organization"`
	Department   string      `json:"department,omitempty"`
	Role         string      `json:"role,omitempty"`
	Location     Location    `json:"location"`
	StartDate    PartialDate `json:"start_date,omitempty"`
	EndDate      PartialDate `json:"end_date,omitempty"`
}

// Email is a contact address with registry visibility metadata.
type Email struct {
	Address    string `json:"address"`
	Visibility string `json:"visibility,omitempty"`
	Verified   bool   `json:"verified"`
	Primary    bool   `json:"primary"`
}

// WorkSummary is a single publication on a researcher profile.
type WorkSummary struct {
	Title           string            `json:"title"`
	Type            string            `json:"type,omitempty"`
	PublicationDate PartialDate       `json:"publication_date,omitempty"`
	URL             string            `json:"url,omitempty"`
	Journal         string            `json:"journal,omitempty"`
	ExternalIDs     map[string]string `json:"external_ids,omitempty"`
}

// FundingAmount is a grant amount with its currency code.
type FundingAmount struct {
	Value    string `json:"value,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// FundingSummary is a grant or award on a researcher profile.
type FundingSummary struct {
	Title        string            `json:"title"`
	Type         string            `json:"type,omitempty"`
	Organization string            `json:"organization,omitempty"`
	Amount       FundingAmount     `json:"amount"`
	StartDate    PartialDate       `json:"start_date,omitempty"`
	EndDate      PartialDate       `json:"end_date,omitempty"`
	ExternalIDs  map[string]string `json:"external_ids,omitempty"`
}

// ResearcherProfile is the canonical identity record for one researcher,
// sourced entirely from the registry. It is never locally mutated; a refresh
// replaces the whole record.
type ResearcherProfile struct {
	Identifier        string            `json:"identifier"`
	GivenName         string            `json:"given_name,omitempty"`
	FamilyName        string            `json:"family_name,omitempty"`
	CreditName        string            `json:"credit_name,omitempty"`
	OtherNames        []string          `json:"other_names,omitempty"`
	Biography         string            `json:"biography,omitempty"`
	Keywords          []string          `json:"keywords,omitempty"`
	Emails            []Email           `json:"emails,omitempty"`
	Institution       string            `json:"institution,omitempty"`
	Employments       []Affiliation     `json:"employments,omitempty"`
	Educations        []Affiliation     `json:"educations,omitempty"`
	Works             []WorkSummary     `json:"works,omitempty"`
	WorksTotal        int               `json:"works_total"`
	Fundings          []FundingSummary  `json:"fundings,omitempty"`
	ExternalIDs       map[string]string `json:"external_identifiers,omitempty"`
	DetailsPopulated  bool              `json:"details_populated"`
}

// DisplayName returns the best available human-readable name:
// "given family" when both parts are present, otherwise whichever exists,
// falling back to the credit name.
func (p *ResearcherProfile) DisplayName() string {
	switch {
	case p.GivenName != "" && p.FamilyName != "":
		return p.GivenName + " " + p.FamilyName
	case p.GivenName != "":
		return p.GivenName
	case p.FamilyName != "":
		return p.FamilyName
	default:
		return p.CreditName
	}
}

// ResearcherStub is a minimal registry search hit, returned when the result
// set is too large to enrich with per-hit detail fetches.
type ResearcherStub struct {
	Identifier  string `json:"identifier"`
	DisplayName string `json:"display_name"`
	GivenName   string `json:"given_name,omitempty"`
	FamilyName  string `json:"family_name,omitempty"`
	Institution string `json:"institution,omitempty"`
}

// Publication is a bibliographic record from the publication search adapter.
type Publication struct {
	PMID            string   `json:"pmid,omitempty"`
	DOI             string   `json:"doi,omitempty"`
	Title           string   `json:"title"`
	Abstract        string   `json:"abstract,omitempty"`
	Authors         []string `json:"authors,omitempty"`
	PublicationDate string   `json:"publication_date,omitempty"`
	Journal         string   `json:"journal,omitempty"`
}

// AuthorsString flattens the author list to a single ", "-joined field.
func (p *Publication) AuthorsString() string {
	return strings.Join(p.Authors, ", ")
}

// Scholar profile lookup strategies recorded as provenance tags. The web
// scraper has materially lower precision than the registry, so callers use
// the tag to discount its output.
const (
	ProvenanceDirectID   = "direct_id"
	ProvenanceNameSearch = "name_search"
	ProvenanceNoResults  = "no_results"
	ProvenanceError      = "error"
)

// WebResult is one scraped search-result entry.
type WebResult struct {
	Title     string `json:"title"`
	URL       string `json:"url,omitempty"`
	Authors   string `json:"authors,omitempty"`
	Year      int    `json:"year,omitempty"`
	Snippet   string `json:"snippet,omitempty"`
	Citations int    `json:"citations"`
}

// Coauthor is a linked collaborator on a scraped scholar profile.
type Coauthor struct {
	Name       string `json:"name"`
	ProfileURL string `json:"profile_url,omitempty"`
}

// ScholarProfile holds aggregate citation statistics scraped from a public
// scholar profile page. Best-effort and advisory only.
type ScholarProfile struct {
	Name        string     `json:"name"`
	ProfileURL  string     `json:"profile_url,omitempty"`
	Citations   int        `json:"citations"`
	HIndex      int        `json:"h_index"`
	I10Index    int        `json:"i10_index"`
	Affiliation string     `json:"affiliation,omitempty"`
	Interests   []string   `json:"interests,omitempty"`
	Coauthors   []Coauthor `json:"coauthors,omitempty"`
	Provenance  string     `json:"provenance"`
}

// MatchCandidate pairs a scored registry candidate with the reference it was
// matched against. Transient: produced by the reconciliation engine and
// consumed immediately by the caller.
type MatchCandidate struct {
	Reference  IdentityReference  `json:"reference"`
	Candidate  *ResearcherProfile `json:"candidate"`
	Confidence float64            `json:"confidence"`

	// CandidateCount is how many registry hits were considered.
	CandidateCount int `json:"candidate_count"`
}

// IdentityMapping is a persisted link between a local record and a canonical
// registry identifier. One canonical identifier per local record at a time;
// re-matching updates in place (last-write-wins).
type IdentityMapping struct {
	LocalRecordID       string    `json:"local_record_id"`
	CanonicalIdentifier string    `json:"canonical_identifier"`
	Confidence          float64   `json:"confidence"`
	MatchedAt           time.Time `json:"matched_at"`
}

// StagedResearcher is a mutable researcher record in the staging area,
// awaiting vetting before promotion into the permanent store.
type StagedResearcher struct {
	ID          uuid.UUID        `json:"id"`
	GivenName   string           `json:"given_name,omitempty"`
	FamilyName  string           `json:"family_name,omitempty"`
	Institution string           `json:"institution,omitempty"`
	Email       string           `json:"email,omitempty"`
	Identifier  string           `json:"identifier,omitempty"`
	Notes       string           `json:"notes,omitempty"`
	Source      SourceType       `json:"source"`
	Status      ResearcherStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	PromotedAt  *time.Time       `json:"promoted_at,omitempty"`
}

// FullName returns "given family" trimmed of missing parts.
func (r *StagedResearcher) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(r.GivenName) + " " + strings.TrimSpace(r.FamilyName))
}
