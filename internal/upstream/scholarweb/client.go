// Package scholarweb scrapes a scholar-style web search page for publication
// hits and researcher profile statistics. The upstream has no API, so results
// come from parsing served HTML. The adapter is best-effort: a missing
// selector yields an absent field, and profile lookup failures yield a
// zero-valued profile tagged with its provenance instead of an error.
package scholarweb

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/forskardb/researcher-identity-service/internal/domain"
	"github.com/forskardb/researcher-identity-service/internal/observability"
	"github.com/forskardb/researcher-identity-service/internal/upstream"
)

const (
	// DefaultBaseURL is the scholar search site root.
	DefaultBaseURL = "https://scholar.google.com"

	// DefaultRateLimit keeps requests slow enough to avoid blocking
	// (one request every five seconds).
	DefaultRateLimit = 0.2

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 1

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxAttempts bounds per-page fetch attempts under throttling.
	DefaultMaxAttempts = 3

	// DefaultUserAgent is a browser-like User-Agent. The upstream serves
	// different markup (or a block page) to non-browser agents.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	// pageSize is the fixed number of results the upstream serves per page.
	pageSize = 10

	// throttleBaseDelay is the base sleep after a 429, escalating per attempt.
	throttleBaseDelay = 5 * time.Second
)

var (
	yearExpr   = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	numberExpr = regexp.MustCompile(`\d+`)
)

// Config holds the configuration for the scholar web client.
type Config struct {
	// BaseURL is the site root. Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Timeout is the request timeout. Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit (0.2 req/sec) if zero.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxAttempts bounds fetch attempts for a single page.
	MaxAttempts int

	// UserAgent overrides the browser-like default.
	UserAgent string

	// Logger receives client events. Optional.
	Logger zerolog.Logger

	// Metrics receives throttle and retry counters. Optional.
	Metrics *observability.Metrics
}

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
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
}

// Client scrapes the scholar search site.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *upstream.RateLimiter
	logger     zerolog.Logger

	// sleep is swappable so throttling tests run fast.
	sleep func(time.Duration)
}

// New creates a new scholar web client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    upstream.NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		logger:     cfg.Logger,
		sleep:      time.Sleep,
	}
}

// SearchByQuery scrapes search result pages for the query, paging in
// ten-result steps until maxResults hits are collected or a page comes up
// short.
func (c *Client) SearchByQuery(ctx context.Context, query string, maxResults int) ([]*domain.WebResult, error) {
	if maxResults <= 0 {
		maxResults = pageSize
	}

	results := make([]*domain.WebResult, 0, maxResults)
	pages := (maxResults + pageSize - 1) / pageSize

	for page := 0; page < pages; page++ {
		doc, err := c.fetchDocument(ctx, c.searchURL(query, page*pageSize))
		if err != nil {
			return nil, fmt.Errorf("fetching results page %d: %w", page, err)
		}

		pageResults := parseSearchResults(doc)
		for _, r := range pageResults {
			results = append(results, r)
			if len(results) >= maxResults {
				return results, nil
			}
		}

		// A short page means the upstream ran out of hits.
		if len(pageResults) < pageSize {
			break
		}
	}

	return results, nil
}

// SearchByIdentity looks up a researcher profile for the given reference.
//
// When the reference carries a known identifier, a direct search on name plus
// identifier runs first (provenance "direct_id"); otherwise, or when the
// direct strategy finds nothing or fails, a plain name search runs
// (provenance "name_search"). A lookup that finds no profile returns a
// zero-valued profile tagged "no_results"; a failure of the final strategy
// returns one tagged "error". The returned error is always nil.
func (c *Client) SearchByIdentity(ctx context.Context, ref *domain.IdentityReference) (*domain.ScholarProfile, error) {
	name := ref.DisplayName

	if ref.KnownIdentifier != "" {
		profile, err := c.lookupProfile(ctx, name+" "+ref.KnownIdentifier, domain.ProvenanceDirectID)
		if err != nil {
			c.logger.Warn().Err(err).Str("name", name).Msg("direct profile lookup failed, falling back to name search")
		}
		if profile != nil {
			return profile, nil
		}
	}

	profile, err := c.lookupProfile(ctx, name, domain.ProvenanceNameSearch)
	if err != nil {
		c.logger.Warn().Err(err).Str("name", name).Msg("profile lookup failed")
		return emptyProfile(name, domain.ProvenanceError), nil
	}
	if profile == nil {
		return emptyProfile(name, domain.ProvenanceNoResults), nil
	}
	return profile, nil
}

// lookupProfile runs one search strategy: find a profile link in the search
// results, then scrape the profile page. A nil profile with nil error means
// the strategy found no profile link.
func (c *Client) lookupProfile(ctx context.Context, query, provenance string) (*domain.ScholarProfile, error) {
	doc, err := c.fetchDocument(ctx, c.searchURL(query, 0))
	if err != nil {
		return nil, err
	}

	link := doc.Find(".gs_ai_name a").First()
	href, ok := link.Attr("href")
	if !ok || href == "" {
		return nil, nil
	}

	profileURL := href
	if !strings.HasPrefix(profileURL, "http") {
		profileURL = strings.TrimSuffix(c.config.BaseURL, "/") + href
	}

	profileDoc, err := c.fetchDocument(ctx, profileURL)
	if err != nil {
		return nil, err
	}

	return parseProfile(profileDoc, profileURL, provenance, c.config.BaseURL), nil
}

// fetchDocument retrieves and parses a page. A 429 response triggers an
// escalating sleep (5s, 10s, 15s) rather than the generic retry backoff,
// since the upstream throttles scrapers aggressively.
func (c *Client) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	for attempt := 0; attempt < c.config.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("User-Agent", c.config.UserAgent)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if c.config.Metrics != nil {
				c.config.Metrics.RecordUpstreamRequestFailed(string(domain.SourceTypeScholarWeb), req.URL.Path, "network")
			}
			return nil, fmt.Errorf("executing request: %w", err)
		}
		if c.config.Metrics != nil {
			c.config.Metrics.RecordUpstreamRequest(string(domain.SourceTypeScholarWeb), req.URL.Path, time.Since(start).Seconds())
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			if c.config.Metrics != nil {
				c.config.Metrics.RecordUpstreamRateLimited(string(domain.SourceTypeScholarWeb))
				c.config.Metrics.RecordUpstreamRetry(string(domain.SourceTypeScholarWeb))
			}
			delay := throttleBaseDelay * time.Duration(attempt+1)
			c.logger.Warn().
				Str("url", pageURL).
				Dur("delay", delay).
				Int("attempt", attempt+1).
				Msg("throttled by upstream, backing off")
			c.sleep(delay)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, domain.NewExternalAPIError("scholar_web", resp.StatusCode, "unexpected status", nil)
		}

		doc, err := goquery.NewDocumentFromReader(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("parsing page: %w", err)
		}
		return doc, nil
	}

	return nil, domain.NewRateLimitError("scholar_web", throttleBaseDelay)
}

func (c *Client) searchURL(query string, start int) string {
	q := url.Values{}
	q.Set("q", query)
	q.Set("hl", "en")
	if start > 0 {
		q.Set("start", strconv.Itoa(start))
	}
	return strings.TrimSuffix(c.config.BaseURL, "/") + "/scholar?" + q.Encode()
}

// parseSearchResults extracts publication hits from a results page. Any
// selector that misses leaves its field at the zero value.
func parseSearchResults(doc *goquery.Document) []*domain.WebResult {
	var results []*domain.WebResult

	doc.Find(".gs_r.gs_or.gs_scl").Each(func(_ int, sel *goquery.Selection) {
		result := &domain.WebResult{}

		title := sel.Find(".gs_rt a").First()
		result.Title = strings.TrimSpace(title.Text())
		result.URL, _ = title.Attr("href")

		if meta := strings.TrimSpace(sel.Find(".gs_a").First().Text()); meta != "" {
			if idx := strings.Index(meta, " - "); idx > 0 {
				result.Authors = strings.TrimSpace(meta[:idx])
			}
			if match := yearExpr.FindString(meta); match != "" {
				result.Year, _ = strconv.Atoi(match)
			}
		}

		result.Snippet = strings.TrimSpace(sel.Find(".gs_rs").First().Text())

		sel.Find(".gs_fl a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			text := a.Text()
			if !strings.Contains(text, "Cited by") {
				return true
			}
			if match := numberExpr.FindString(text); match != "" {
				result.Citations, _ = strconv.Atoi(match)
			}
			return false
		})

		if result.Title != "" {
			results = append(results, result)
		}
	})

	return results
}

// parseProfile extracts researcher statistics from a profile page. The stats
// table lists all-time and recent columns interleaved; indexes 0, 2, and 4
// are the all-time citation count, h-index, and i10-index.
func parseProfile(doc *goquery.Document, profileURL, provenance, baseURL string) *domain.ScholarProfile {
	profile := &domain.ScholarProfile{
		Name:       strings.TrimSpace(doc.Find("#gsc_prf_in").First().Text()),
		ProfileURL: profileURL,
		Provenance: provenance,
	}

	stats := doc.Find(".gsc_rsb_std")
	profile.Citations = statAt(stats, 0)
	profile.HIndex = statAt(stats, 2)
	profile.I10Index = statAt(stats, 4)

	profile.Affiliation = strings.TrimSpace(doc.Find(".gsc_prf_il").First().Text())

	doc.Find(".gsc_prf_inta").Each(func(_ int, sel *goquery.Selection) {
		if interest := strings.TrimSpace(sel.Text()); interest != "" {
			profile.Interests = append(profile.Interests, interest)
		}
	})

	doc.Find(".gsc_rsb_aa").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find(".gsc_rsb_a_desc a").First()
		name := strings.TrimSpace(link.Text())
		if name == "" {
			return
		}
		coauthor := domain.Coauthor{Name: name}
		if href, ok := link.Attr("href"); ok && href != "" {
			if strings.HasPrefix(href, "http") {
				coauthor.ProfileURL = href
			} else {
				coauthor.ProfileURL = strings.TrimSuffix(baseURL, "/") + href
			}
		}
		profile.Coauthors = append(profile.Coauthors, coauthor)
	})

	return profile
}

func statAt(stats *goquery.Selection, idx int) int {
	if idx >= stats.Length() {
		return 0
	}
	text := strings.ReplaceAll(strings.TrimSpace(stats.Eq(idx).Text()), ",", "")
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0
	}
	return n
}

func emptyProfile(name, provenance string) *domain.ScholarProfile {
	return &domain.ScholarProfile{Name: name, Provenance: provenance}
}
