package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: prometheus/promauto registers metrics globally, so we need to use
// unique namespaces per test to avoid registration conflicts.

func TestNewMetrics(t *testing.T) {
	// Use unique namespace to avoid conflicts with other tests
	m := NewMetrics("test_researcher_identity_new")

	assert.NotNil(t, m.MatchesStarted)
	assert.NotNil(t, m.MatchesCompleted)
	assert.NotNil(t, m.MatchesFailed)
	assert.NotNil(t, m.MatchDuration)
	assert.NotNil(t, m.MatchConfidence)
	assert.NotNil(t, m.CandidatesPerMatch)
	assert.NotNil(t, m.UpstreamRequestsTotal)
	assert.NotNil(t, m.UpstreamRequestsFailed)
	assert.NotNil(t, m.UpstreamRequestDuration)
	assert.NotNil(t, m.UpstreamRateLimited)
	assert.NotNil(t, m.UpstreamRetries)
	assert.NotNil(t, m.PublicationsFetched)
	assert.NotNil(t, m.MappingsPersisted)
	assert.NotNil(t, m.ResearchersStaged)
	assert.NotNil(t, m.ResearchersPromoted)
}

func TestRecordMatchStarted(t *testing.T) {
	m := NewMetrics("test_match_started")

	initial := testutil.ToFloat64(m.MatchesStarted)
	m.RecordMatchStarted()
	assert.Equal(t, initial+1, testutil.ToFloat64(m.MatchesStarted))
}

func TestRecordMatchCompleted(t *testing.T) {
	m := NewMetrics("test_match_completed")

	m.RecordMatchCompleted(MatchOutcomeScored, 0.8, 1.5)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MatchesCompleted.WithLabelValues(MatchOutcomeScored)))

	// Check duration histogram
	histCount, err := getHistogramSampleCount(m.MatchDuration)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), histCount)

	// Confidence is observed for scored outcomes
	confCount, err := getHistogramSampleCount(m.MatchConfidence)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), confCount)
}

func TestRecordMatchCompleted_NoMatchSkipsConfidence(t *testing.T) {
	m := NewMetrics("test_match_no_match")

	m.RecordMatchCompleted(MatchOutcomeNoMatch, 0, 0.5)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MatchesCompleted.WithLabelValues(MatchOutcomeNoMatch)))

	confCount, err := getHistogramSampleCount(m.MatchConfidence)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), confCount)
}

func TestRecordMatchFailed(t *testing.T) {
	m := NewMetrics("test_match_failed")

	initial := testutil.ToFloat64(m.MatchesFailed)
	m.RecordMatchFailed(3.0)
	assert.Equal(t, initial+1, testutil.ToFloat64(m.MatchesFailed))
}

func TestRecordCandidates(t *testing.T) {
	m := NewMetrics("test_candidates")

	m.RecordCandidates(3)
	histCount, err := getHistogramSampleCount(m.CandidatesPerMatch)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), histCount)
}

func TestRecordUpstreamRequest(t *testing.T) {
	m := NewMetrics("test_upstream_request")

	m.RecordUpstreamRequest("registry", "record", 0.5)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UpstreamRequestsTotal.WithLabelValues("registry", "record")))
}

func TestRecordUpstreamRequestFailed(t *testing.T) {
	m := NewMetrics("test_upstream_request_failed")

	m.RecordUpstreamRequestFailed("bibliography", "search", "timeout")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UpstreamRequestsFailed.WithLabelValues("bibliography", "search", "timeout")))
}

func TestRecordUpstreamRateLimited(t *testing.T) {
	m := NewMetrics("test_upstream_rate_limited")

	m.RecordUpstreamRateLimited("scholar_web")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UpstreamRateLimited.WithLabelValues("scholar_web")))
}

func TestRecordUpstreamRetry(t *testing.T) {
	m := NewMetrics("test_upstream_retry")

	m.RecordUpstreamRetry("registry")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UpstreamRetries.WithLabelValues("registry")))
}

func TestRecordPublicationsFetched(t *testing.T) {
	m := NewMetrics("test_publications_fetched")

	m.RecordPublicationsFetched("bibliography", 25)
	assert.Equal(t, float64(25), testutil.ToFloat64(m.PublicationsFetched.WithLabelValues("bibliography")))
}

func TestRecordMappingPersisted(t *testing.T) {
	m := NewMetrics("test_mapping_persisted")

	initial := testutil.ToFloat64(m.MappingsPersisted)
	m.RecordMappingPersisted()
	assert.Equal(t, initial+1, testutil.ToFloat64(m.MappingsPersisted))
}

func TestRecordResearcherStaged(t *testing.T) {
	m := NewMetrics("test_researcher_staged")

	initial := testutil.ToFloat64(m.ResearchersStaged)
	m.RecordResearcherStaged()
	assert.Equal(t, initial+1, testutil.ToFloat64(m.ResearchersStaged))
}

func TestRecordResearcherPromoted(t *testing.T) {
	m := NewMetrics("test_researcher_promoted")

	initial := testutil.ToFloat64(m.ResearchersPromoted)
	m.RecordResearcherPromoted()
	assert.Equal(t, initial+1, testutil.ToFloat64(m.ResearchersPromoted))
}

// Helper to get histogram sample count
func getHistogramSampleCount(h prometheus.Histogram) (uint64, error) {
	ch := make(chan prometheus.Metric, 1)
	h.Collect(ch)
	close(ch)

	var m prometheus.Metric
	for m = range ch {
		break
	}

	var dto = &dto.Metric{}
	if err := m.Write(dto); err != nil {
		return 0, err
	}

	return dto.Histogram.GetSampleCount(), nil
}
