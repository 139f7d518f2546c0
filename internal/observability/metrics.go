package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the researcher identity service.
// Metrics are organized by subsystem: matches, upstream requests, publications,
// and persistence. All counters and histograms are registered via promauto
// for automatic registration with the default Prometheus registry.
type Metrics struct {
	// MatchesStarted counts the total number of reconciliation attempts initiated.
	MatchesStarted prometheus.Counter

	// MatchesCompleted counts completed reconciliations, labeled by outcome
	// (scored, single, no_match).
	MatchesCompleted *prometheus.CounterVec

	// MatchesFailed counts reconciliations that ended in failure.
	MatchesFailed prometheus.Counter

	// MatchDuration observes the end-to-end duration of reconciliations in seconds.
	MatchDuration prometheus.Histogram

	// MatchConfidence observes the confidence score of completed matches.
	MatchConfidence prometheus.Histogram

	// CandidatesPerMatch observes the number of candidates considered per match.
	CandidatesPerMatch prometheus.Histogram

	// UpstreamRequestsTotal counts requests to upstream sources, labeled by source and endpoint.
	UpstreamRequestsTotal *prometheus.CounterVec

	// UpstreamRequestsFailed counts failed upstream requests, labeled by source, endpoint, and error type.
	UpstreamRequestsFailed *prometheus.CounterVec

	// UpstreamRequestDuration observes upstream request duration in seconds.
	UpstreamRequestDuration *prometheus.HistogramVec

	// UpstreamRateLimited counts rate-limited responses from upstream sources, labeled by source.
	UpstreamRateLimited *prometheus.CounterVec

	// UpstreamRetries counts retry attempts against upstream sources, labeled by source.
	UpstreamRetries *prometheus.CounterVec

	// PublicationsFetched counts publications fetched, labeled by source.
	PublicationsFetched *prometheus.CounterVec

	// MappingsPersisted counts identity mappings written to storage.
	MappingsPersisted prometheus.Counter

	// ResearchersStaged counts researchers created in the staging area.
	ResearchersStaged prometheus.Counter

	// ResearchersPromoted counts staged researchers promoted to the canonical set.
	ResearchersPromoted prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Matches
		MatchesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_started_total",
			Help:      "Total number of reconciliation attempts started",
		}),
		MatchesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_completed_total",
			Help:      "Total number of reconciliations completed by outcome",
		}, []string{"outcome"}),
		MatchesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_failed_total",
			Help:      "Total number of reconciliations that failed",
		}),
		MatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_duration_seconds",
			Help:      "Duration of reconciliations in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		MatchConfidence: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_confidence",
			Help:      "Confidence score of completed matches",
			Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}),
		CandidatesPerMatch: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidates_per_match",
			Help:      "Number of candidates considered per reconciliation",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
		}),

		// Upstream sources
		UpstreamRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total number of requests to upstream sources",
		}, []string{"source", "endpoint"}),
		UpstreamRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_failed_total",
			Help:      "Total number of failed requests to upstream sources",
		}, []string{"source", "endpoint", "error_type"}),
		UpstreamRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Duration of requests to upstream sources in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source", "endpoint"}),
		UpstreamRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_rate_limited_total",
			Help:      "Total number of rate limit responses from upstream sources",
		}, []string{"source"}),
		UpstreamRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_retries_total",
			Help:      "Total number of retry attempts against upstream sources",
		}, []string{"source"}),

		// Publications
		PublicationsFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publications_fetched_total",
			Help:      "Total number of publications fetched by source",
		}, []string{"source"}),

		// Persistence
		MappingsPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mappings_persisted_total",
			Help:      "Total number of identity mappings persisted",
		}),
		ResearchersStaged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "researchers_staged_total",
			Help:      "Total number of researchers staged",
		}),
		ResearchersPromoted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "researchers_promoted_total",
			Help:      "Total number of staged researchers promoted",
		}),
	}
}

// Match outcome labels for MatchesCompleted.
const (
	MatchOutcomeScored  = "scored"
	MatchOutcomeSingle  = "single"
	MatchOutcomeNoMatch = "no_match"
)

// RecordMatchStarted records that a reconciliation has started.
func (m *Metrics) RecordMatchStarted() {
	m.MatchesStarted.Inc()
}

// RecordMatchCompleted records a completed reconciliation.
func (m *Metrics) RecordMatchCompleted(outcome string, confidence, durationSeconds float64) {
	m.MatchesCompleted.WithLabelValues(outcome).Inc()
	m.MatchDuration.Observe(durationSeconds)
	if outcome != MatchOutcomeNoMatch {
		m.MatchConfidence.Observe(confidence)
	}
}

// RecordMatchFailed records that a reconciliation has failed.
func (m *Metrics) RecordMatchFailed(durationSeconds float64) {
	m.MatchesFailed.Inc()
	m.MatchDuration.Observe(durationSeconds)
}

// RecordCandidates records the number of candidates considered for a match.
func (m *Metrics) RecordCandidates(count int) {
	m.CandidatesPerMatch.Observe(float64(count))
}

// RecordUpstreamRequest records a request to an upstream source.
func (m *Metrics) RecordUpstreamRequest(source, endpoint string, durationSeconds float64) {
	m.UpstreamRequestsTotal.WithLabelValues(source, endpoint).Inc()
	m.UpstreamRequestDuration.WithLabelValues(source, endpoint).Observe(durationSeconds)
}

// RecordUpstreamRequestFailed records a failed request to an upstream source.
func (m *Metrics) RecordUpstreamRequestFailed(source, endpoint, errorType string) {
	m.UpstreamRequestsFailed.WithLabelValues(source, endpoint, errorType).Inc()
}

// RecordUpstreamRateLimited records a rate limit response from a source.
func (m *Metrics) RecordUpstreamRateLimited(source string) {
	m.UpstreamRateLimited.WithLabelValues(source).Inc()
}

// RecordUpstreamRetry records a retry attempt against a source.
func (m *Metrics) RecordUpstreamRetry(source string) {
	m.UpstreamRetries.WithLabelValues(source).Inc()
}

// RecordPublicationsFetched records publications fetched from a source.
func (m *Metrics) RecordPublicationsFetched(source string, count int) {
	m.PublicationsFetched.WithLabelValues(source).Add(float64(count))
}

// RecordMappingPersisted records an identity mapping written to storage.
func (m *Metrics) RecordMappingPersisted() {
	m.MappingsPersisted.Inc()
}

// RecordResearcherStaged records a researcher created in the staging area.
func (m *Metrics) RecordResearcherStaged() {
	m.ResearchersStaged.Inc()
}

// RecordResearcherPromoted records a staged researcher promotion.
func (m *Metrics) RecordResearcherPromoted() {
	m.ResearchersPromoted.Inc()
}
