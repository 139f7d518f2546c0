// Package registry provides a client for the researcher registry API.
// It resolves canonical researcher identities by identifier or free-text
// search and normalizes the registry's sparse nested payloads into flat
// domain records.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/forskardb/researcher-identity-service/internal/domain"
	"github.com/forskardb/researcher-identity-service/internal/observability"
	"github.com/forskardb/researcher-identity-service/internal/upstream"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the default public registry API base URL.
	DefaultBaseURL = "https://pub.orcid.org/v3.0"

	// DefaultTokenURL is the default client-credentials token endpoint.
	DefaultTokenURL = "https://orcid.org/oauth/token"

	// DefaultRateLimit is the default rate limit for requests per second.
	// The registry budget is one request every ten seconds.
	DefaultRateLimit = 0.1

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 1

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per search request.
	DefaultMaxResults = 5

	// DefaultDetailThreshold is the result-set size at or below which search
	// hits are eagerly enriched with a per-hit detail fetch. Larger result
	// sets return summary stubs only, bounding total external calls.
	DefaultDetailThreshold = 5

	// worksPreviewLimit caps the works preview on a basic profile fetch.
	worksPreviewLimit = 5
)

// Config holds configuration for the registry client.
type Config struct {
	// BaseURL is the registry API base URL.
	BaseURL string

	// TokenURL is the client-credentials token exchange endpoint.
	TokenURL string

	// ClientID and ClientSecret enable bearer-token auth when both are set.
	// Without credentials requests go out unauthenticated.
	ClientID     string
	ClientSecret string

	// Scope is the token scope requested during the exchange.
	Scope string

	// Timeout is the request timeout. Defaults to 30 seconds.
	Timeout time.Duration

	// RateLimit is the maximum requests per second. Defaults to 0.1.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed. Defaults to 1.
	BurstSize int

	// MaxAttempts is the total request invocations per call, including
	// the first. Defaults to 3.
	MaxAttempts int

	// RetryDelay is the delay before the first retry; it doubles after
	// each failed attempt.
	RetryDelay time.Duration

	// DetailThreshold controls eager enrichment of search hits.
	DetailThreshold int

	// Logger receives client events. Optional.
	Logger zerolog.Logger

	// Metrics receives request and retry counters. Optional.
	Metrics *observability.Metrics
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.TokenURL == "" {
		c.TokenURL = DefaultTokenURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = time.Second
	}
	if c.DetailThreshold == 0 {
		c.DetailThreshold = DefaultDetailThreshold
	}
	if c.Scope == "" {
		c.Scope = "/read-public"
	}
}

// Client queries the researcher registry.
type Client struct {
	config     Config
	httpClient *upstream.HTTPClient
	tokens     *tokenSource
	logger     zerolog.Logger
}

// New creates a new registry client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := upstream.NewHTTPClient(upstream.HTTPClientConfig{
		Timeout:       cfg.Timeout,
		RateLimit:     cfg.RateLimit,
		BurstSize:     cfg.BurstSize,
		MaxAttempts:   cfg.MaxAttempts,
		RetryDelay:    cfg.RetryDelay,
		Logger:        cfg.Logger,
		Metrics:       cfg.Metrics,
		MetricsSource: string(domain.SourceTypeRegistry),
	})

	return newClient(cfg, httpClient)
}

// NewWithHTTPClient creates a new registry client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *upstream.HTTPClient) *Client {
	cfg.applyDefaults()
	return newClient(cfg, httpClient)
}

func newClient(cfg Config, httpClient *upstream.HTTPClient) *Client {
	c := &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		c.tokens = newTokenSource(httpClient, cfg.TokenURL, cfg.ClientID, cfg.ClientSecret, cfg.Scope)
	}
	return c
}

// FetchByID retrieves the canonical profile for a registry identifier.
//
// With includeDetails=false the profile carries the basic person section,
// the first employment as institution, and a capped works preview (first 5)
// plus the total works count. With includeDetails=true every nested
// collection is populated exhaustively.
func (c *Client) FetchByID(ctx context.Context, id string, includeDetails bool) (*domain.ResearcherProfile, error) {
	id = domain.NormalizeIdentifier(id)
	if err := domain.ValidateIdentifier(id); err != nil {
		return nil, err
	}

	fetchURL, err := c.buildURL("/" + id + "/record")
	if err != nil {
		return nil, err
	}

	resp, err := c.get(ctx, fetchURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.NewNotFoundError("researcher", id)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError("registry", resp.StatusCode, string(body), nil)
	}

	// Limit body to 10MB to prevent resource exhaustion.
	var record recordResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&record); err != nil {
		return nil, fmt.Errorf("decoding record response: %w", err)
	}

	return recordToProfile(id, &record, includeDetails), nil
}

// Search queries the registry by free text.
//
// When maxResults is at or below the detail threshold, each hit is eagerly
// enriched with a basic FetchByID call so candidates carry keywords and
// contact data for scoring. Larger requests return summary-level profiles
// built from the search hits alone. Zero hits yield an empty slice, not an
// error.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]*domain.ResearcherProfile, error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	searchURL, err := c.buildSearchURL(query, maxResults)
	if err != nil {
		return nil, err
	}

	resp, err := c.get(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError("registry", resp.StatusCode, string(body), nil)
	}

	var searchResp expandedSearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	stubs := make([]*domain.ResearcherStub, 0, len(searchResp.ExpandedResult))
	for _, hit := range searchResp.ExpandedResult {
		if hit.OrcidID == "" {
			continue
		}
		stubs = append(stubs, hitToStub(&hit))
	}

	if len(stubs) == 0 {
		return []*domain.ResearcherProfile{}, nil
	}

	enrich := maxResults <= c.config.DetailThreshold
	profiles := make([]*domain.ResearcherProfile, 0, len(stubs))
	for _, stub := range stubs {
		if !enrich {
			profiles = append(profiles, stubToProfile(stub))
			continue
		}
		profile, err := c.FetchByID(ctx, stub.Identifier, false)
		if err != nil {
			return nil, fmt.Errorf("enriching search hit %s: %w", stub.Identifier, err)
		}
		// Search hits can carry an affiliation the basic record lacks.
		if profile.Institution == "" {
			profile.Institution = stub.Institution
		}
		profiles = append(profiles, profile)
	}

	c.logger.Debug().
		Str("query", query).
		Int("hits", len(profiles)).
		Bool("enriched", enrich).
		Msg("registry search complete")

	return profiles, nil
}

// get issues an authenticated GET request.
func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("obtaining access token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	return resp, nil
}

func (c *Client) buildURL(path string) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path += path
	return baseURL.String(), nil
}

func (c *Client) buildSearchURL(query string, maxResults int) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path += "/expanded-search/"

	q := url.Values{}
	q.Set("q", query)
	q.Set("rows", strconv.Itoa(maxResults))
	baseURL.RawQuery = q.Encode()

	return baseURL.String(), nil
}

// hitToStub converts an expanded search hit to a minimal stub.
func hitToStub(hit *expandedResult) *domain.ResearcherStub {
	stub := &domain.ResearcherStub{
		Identifier: hit.OrcidID,
		GivenName:  hit.GivenNames,
		FamilyName: hit.FamilyNames,
	}
	switch {
	case hit.GivenNames != "" && hit.FamilyNames != "":
		stub.DisplayName = hit.GivenNames + " " + hit.FamilyNames
	case hit.FamilyNames != "":
		stub.DisplayName = hit.FamilyNames
	case hit.GivenNames != "":
		stub.DisplayName = hit.GivenNames
	default:
		stub.DisplayName = hit.CreditName
	}
	for _, inst := range hit.InstitutionName {
		if inst != "" {
			stub.Institution = inst
			break
		}
	}
	return stub
}

func stubToProfile(stub *domain.ResearcherStub) *domain.ResearcherProfile {
	return &domain.ResearcherProfile{
		Identifier:  stub.Identifier,
		GivenName:   stub.GivenName,
		FamilyName:  stub.FamilyName,
		CreditName:  stub.DisplayName,
		Institution: stub.Institution,
	}
}

// recordToProfile normalizes a sparse registry record into a flat profile.
// Missing optional fields resolve to zero values, never errors.
func recordToProfile(id string, record *recordResponse, includeDetails bool) *domain.ResearcherProfile {
	profile := &domain.ResearcherProfile{
		Identifier:       id,
		DetailsPopulated: includeDetails,
	}

	if p := record.Person; p != nil {
		if p.Name != nil {
			profile.GivenName = stringValue(p.Name.GivenNames)
			profile.FamilyName = stringValue(p.Name.FamilyName)
			profile.CreditName = stringValue(p.Name.CreditName)
		}
		if p.OtherNames != nil {
			for _, n := range p.OtherNames.OtherName {
				if n.Content != "" {
					profile.OtherNames = append(profile.OtherNames, n.Content)
				}
			}
		}
		if p.Biography != nil {
			profile.Biography = p.Biography.Content
		}
		if p.Keywords != nil {
			for _, kw := range p.Keywords.Keyword {
				if kw.Content != "" {
					profile.Keywords = append(profile.Keywords, kw.Content)
				}
			}
		}
		if p.Emails != nil {
			for _, e := range p.Emails.Email {
				if e.Email == "" {
					continue
				}
				profile.Emails = append(profile.Emails, domain.Email{
					Address:    e.Email,
					Visibility: e.Visibility,
					Verified:   e.Verified,
					Primary:    e.Primary,
				})
			}
		}
		if p.ExternalIdentifiers != nil {
			for _, ext := range p.ExternalIdentifiers.ExternalIdentifier {
				if ext.Type == "" || ext.Value == "" {
					continue
				}
				if profile.ExternalIDs == nil {
					profile.ExternalIDs = make(map[string]string)
				}
				profile.ExternalIDs[ext.Type] = ext.Value
			}
		}
	}

	act := record.Activities
	if act == nil {
		return profile
	}

	employments := convertAffiliations(act.Employments)
	educations := convertAffiliations(act.Educations)

	// Institution resolves from the first non-empty candidate path:
	// employment organization, employment department, education organization.
	profile.Institution = firstNonEmpty(
		firstOrganization(employments),
		firstDepartment(employments),
		firstOrganization(educations),
	)

	if act.Works != nil {
		profile.WorksTotal = len(act.Works.Group)
		limit := len(act.Works.Group)
		if !includeDetails && limit > worksPreviewLimit {
			limit = worksPreviewLimit
		}
		for _, group := range act.Works.Group[:limit] {
			if len(group.WorkSummary) == 0 {
				continue
			}
			profile.Works = append(profile.Works, convertWork(&group.WorkSummary[0]))
		}
	}

	if includeDetails {
		profile.Employments = employments
		profile.Educations = educations
		if act.Fundings != nil {
			for _, group := range act.Fundings.Group {
				if len(group.FundingSummary) == 0 {
					continue
				}
				profile.Fundings = append(profile.Fundings, convertFunding(&group.FundingSummary[0]))
			}
		}
	} else if len(employments) > 0 {
		profile.Employments = employments[:1]
	}

	return profile
}

func convertAffiliations(container *affiliations) []domain.Affiliation {
	if container == nil {
		return nil
	}
	var result []domain.Affiliation
	for _, group := range container.AffiliationGroup {
		for _, wrapper := range group.Summaries {
			summary := wrapper.EmploymentSummary
			if summary == nil {
				summary = wrapper.EducationSummary
			}
			if summary == nil {
				continue
			}
			aff := domain.Affiliation{
				Department: summary.DepartmentName,
				Role:       summary.RoleTitle,
				StartDate:  convertDate(summary.StartDate),
				EndDate:    convertDate(summary.EndDate),
			}
			if org := summary.Organization; org != nil {
				aff.Organization = org.Name
				if org.Address != nil {
					aff.Location = domain.Location{
						City:    org.Address.City,
						Region:  org.Address.Region,
						Country: org.Address.Country,
					}
				}
			}
			result = append(result, aff)
		}
	}
	return result
}

func convertWork(summary *workSummary) domain.WorkSummary {
	work := domain.WorkSummary{
		Type:            summary.Type,
		PublicationDate: convertDate(summary.PublicationDate),
		URL:             stringValue(summary.URL),
		Journal:         stringValue(summary.JournalTitle),
	}
	if summary.Title != nil {
		work.Title = stringValue(summary.Title.Title)
	}
	work.ExternalIDs = convertExternalIDs(summary.ExternalIDs)
	return work
}

func convertFunding(summary *fundingSummary) domain.FundingSummary {
	funding := domain.FundingSummary{
		Type:      summary.Type,
		StartDate: convertDate(summary.StartDate),
		EndDate:   convertDate(summary.EndDate),
	}
	if summary.Title != nil {
		funding.Title = stringValue(summary.Title.Title)
	}
	if summary.Organization != nil {
		funding.Organization = summary.Organization.Name
	}
	if summary.Amount != nil {
		funding.Amount = domain.FundingAmount{
			Value:    summary.Amount.Value,
			Currency: summary.Amount.CurrencyCode,
		}
	}
	funding.ExternalIDs = convertExternalIDs(summary.ExternalIDs)
	return funding
}

func convertExternalIDs(ids *externalIDs) map[string]string {
	if ids == nil || len(ids.ExternalID) == 0 {
		return nil
	}
	result := make(map[string]string, len(ids.ExternalID))
	for _, ext := range ids.ExternalID {
		if ext.Type == "" || ext.Value == "" {
			continue
		}
		result[ext.Type] = ext.Value
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// convertDate maps a registry partial date to a domain date. A day with no
// month is dropped, keeping the year-month-day precision ladder intact.
func convertDate(d *partialDate) domain.PartialDate {
	if d == nil {
		return domain.PartialDate{}
	}
	date := domain.PartialDate{
		Year:  intValue(d.Year),
		Month: intValue(d.Month),
	}
	if date.Year == 0 {
		return domain.PartialDate{}
	}
	if date.Month > 0 {
		date.Day = intValue(d.Day)
	}
	return date
}

func stringValue(v *value) string {
	if v == nil {
		return ""
	}
	return v.Value
}

func intValue(v *value) int {
	if v == nil {
		return 0
	}
	n, err := strconv.Atoi(v.Value)
	if err != nil {
		return 0
	}
	return n
}

func firstOrganization(affs []domain.Affiliation) string {
	for _, aff := range affs {
		if aff.Organization != "" {
			return aff.Organization
		}
	}
	return ""
}

func firstDepartment(affs []domain.Affiliation) string {
	for _, aff := range affs {
		if aff.Department != "" {
			return aff.Department
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
