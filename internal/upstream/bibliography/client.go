// Package bibliography provides a client for the bibliographic publication
// API. Queries run in two phases: an id-search call returning matching
// publication ids as JSON, then a single batch-fetch call returning full
// article metadata as XML.
package bibliography

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/forskardb/researcher-identity-service/internal/domain"
	"github.com/forskardb/researcher-identity-service/internal/observability"
	"github.com/forskardb/researcher-identity-service/internal/upstream"
)

const (
	// DefaultBaseURL is the base URL for the E-utilities style API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the rate limit without an API key (3 requests/second).
	// With an API key the upstream allows 10 requests/second.
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per search.
	DefaultMaxResults = 20

	// sourceName identifies this upstream in errors and logs.
	sourceName = "bibliography"
)

// Config holds the configuration for the bibliography client.
type Config struct {
	// BaseURL is the API base URL. Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is sent as a query parameter when set. Optional.
	APIKey string

	// Timeout is the request timeout. Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit (3 req/sec) if zero.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxResults is the default maximum results per search.
	MaxResults int

	// Logger receives client events. Optional.
	Logger zerolog.Logger

	// Metrics receives request and retry counters. Optional.
	Metrics *observability.Metrics
}

// applyDefaults applies default values to the config.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
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
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client queries the bibliographic publication API.
type Client struct {
	config     Config
	httpClient *upstream.HTTPClient
	logger     zerolog.Logger
}

// New creates a new bibliography client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := upstream.NewHTTPClient(upstream.HTTPClientConfig{
		Timeout:       cfg.Timeout,
		RateLimit:     cfg.RateLimit,
		BurstSize:     cfg.BurstSize,
		Logger:        cfg.Logger,
		Metrics:       cfg.Metrics,
		MetricsSource: sourceName,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// NewWithHTTPClient creates a new bibliography client with a custom HTTP
// client. This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *upstream.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Search queries for publications matching the given free-text query.
// Zero matching ids short-circuit to an empty result without a fetch phase.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]*domain.Publication, error) {
	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}

	ids, err := c.searchIDs(ctx, query, maxResults)
	if err != nil {
		return nil, fmt.Errorf("id search failed: %w", err)
	}

	if len(ids) == 0 {
		return []*domain.Publication{}, nil
	}

	articles, err := c.fetchArticles(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("article fetch failed: %w", err)
	}

	publications := make([]*domain.Publication, 0, len(articles.Articles))
	for _, art := range articles.Articles {
		publications = append(publications, articleToPublication(&art))
	}

	c.logger.Debug().
		Str("query", query).
		Int("results", len(publications)).
		Msg("bibliography search complete")

	return publications, nil
}

// SearchByIdentifier queries for publications whose author metadata carries
// the given registry identifier, using the author-id query filter.
func (c *Client) SearchByIdentifier(ctx context.Context, identifier string, maxResults int) ([]*domain.Publication, error) {
	identifier = domain.NormalizeIdentifier(identifier)
	if err := domain.ValidateIdentifier(identifier); err != nil {
		return nil, err
	}
	return c.Search(ctx, identifier+"[auid]", maxResults)
}

// searchIDs runs the id-search phase and returns matching publication ids.
func (c *Client) searchIDs(ctx context.Context, query string, maxResults int) ([]string, error) {
	u, err := url.Parse(c.config.BaseURL + "/esearch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("term", query)
	q.Set("retmode", "json")
	q.Set("retmax", strconv.Itoa(maxResults))
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	var result idSearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing id search response: %w", err)
	}

	return result.Result.IDList, nil
}

// fetchArticles runs the batch-fetch phase for all ids in a single call.
func (c *Client) fetchArticles(ctx context.Context, ids []string) (*articleSet, error) {
	u, err := url.Parse(c.config.BaseURL + "/efetch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(ids, ","))
	q.Set("retmode", "xml")
	q.Set("rettype", "abstract")
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	var result articleSet
	if err := xml.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing article response: %w", err)
	}

	return &result, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}

// articleToPublication converts a fetched article to a domain publication.
func articleToPublication(art *pubmedArticle) *domain.Publication {
	citation := &art.MedlineCitation

	journal := citation.Article.Journal.Title
	if journal == "" {
		journal = citation.Article.Journal.ISOAbbreviation
	}

	return &domain.Publication{
		PMID:            citation.PMID.Value,
		DOI:             extractDOI(&citation.Article, &art.PubmedData),
		Title:           citation.Article.Title,
		Abstract:        extractAbstract(citation.Article.Abstract),
		Authors:         extractAuthors(citation.Article.AuthorList),
		PublicationDate: formatPubDate(&citation.Article.Journal.JournalIssue.PubDate),
		Journal:         journal,
	}
}

// extractDOI checks the location elements first, then the article id list.
func extractDOI(art *article, data *pubmedData) string {
	for _, eloc := range art.ELocationID {
		if eloc.EIdType == "doi" && (eloc.Valid == "" || eloc.Valid == "Y") {
			return strings.TrimSpace(eloc.Value)
		}
	}
	for _, aid := range data.ArticleIdList.ArticleIds {
		if aid.IdType == "doi" {
			return strings.TrimSpace(aid.Value)
		}
	}
	return ""
}

// extractAbstract concatenates labeled abstract sections into one string.
func extractAbstract(abs *abstract) string {
	if abs == nil || len(abs.Sections) == 0 {
		return ""
	}

	if len(abs.Sections) == 1 && abs.Sections[0].Label == "" {
		return strings.TrimSpace(abs.Sections[0].Value)
	}

	var parts []string
	for _, section := range abs.Sections {
		text := strings.TrimSpace(section.Value)
		if text == "" {
			continue
		}
		if section.Label != "" {
			parts = append(parts, section.Label+": "+text)
		} else {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// extractAuthors flattens each author to "given family". Collective names
// pass through as-is. Authors flagged invalid are skipped.
func extractAuthors(list *authorList) []string {
	if list == nil || len(list.Authors) == 0 {
		return nil
	}

	authors := make([]string, 0, len(list.Authors))
	for _, a := range list.Authors {
		if a.ValidYN == "N" {
			continue
		}

		var name string
		if a.CollectiveName != "" {
			name = a.CollectiveName
		} else {
			parts := make([]string, 0, 2)
			if a.ForeName != "" {
				parts = append(parts, a.ForeName)
			}
			if a.LastName != "" {
				parts = append(parts, a.LastName)
			}
			name = strings.Join(parts, " ")
		}

		if name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}

// formatPubDate renders a publication date at whatever precision the article
// carries. MedlineDate ranges like "2020 Jan-Feb" keep the leading year only.
func formatPubDate(d *pubDate) string {
	if d.MedlineDate != "" {
		if year := yearFromMedlineDate(d.MedlineDate); year > 0 {
			return domain.PartialDate{Year: year}.String()
		}
		return ""
	}

	year, err := strconv.Atoi(d.Year)
	if err != nil {
		return ""
	}
	date := domain.PartialDate{Year: year, Month: int(parseMonth(d.Month))}
	if d.Month == "" {
		date.Month = 0
	}
	if date.Month > 0 {
		if day, err := strconv.Atoi(d.Day); err == nil {
			date.Day = day
		}
	}
	return date.String()
}

// monthNames maps lowercase month name strings (abbreviation and full) to
// time.Month. Package-level to avoid re-allocating per call.
var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// parseMonth parses a month string (numeric or name) into time.Month.
func parseMonth(month string) time.Month {
	if m, err := strconv.Atoi(month); err == nil && m >= 1 && m <= 12 {
		return time.Month(m)
	}
	if m, ok := monthNames[strings.ToLower(month)]; ok {
		return m
	}
	return 0
}

// yearFromMedlineDate extracts the year from a free-form date string such as
// "2020 Jan-Feb", "2020 Spring", or "2020-2021".
func yearFromMedlineDate(medlineDate string) int {
	parts := strings.Fields(medlineDate)
	if len(parts) == 0 {
		return 0
	}
	yearStr := strings.Split(parts[0], "-")[0]
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return 0
	}
	return year
}
