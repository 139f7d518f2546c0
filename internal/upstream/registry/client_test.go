package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forskardb/researcher-identity-service/internal/domain"
	"github.com/forskardb/researcher-identity-service/internal/upstream"
)

const fullRecordJSON = `{
  "person": {
    "name": {
      "given-names": {"value": "Anna"},
      "family-name": {"value": "Lindqvist"},
      "credit-name": {"value": "A. Lindqvist"}
    },
    "other-names": {"other-name": [{"content": "Anna L."}]},
    "biography": {"content": "Quantum materials researcher."},
    "emails": {"email": [
      {"email": "anna@example.edu", "visibility": "public", "verified": true, "primary": true}
    ]},
    "keywords": {"keyword": [{"content": "physics"}, {"content": "quantum"}]},
    "external-identifiers": {"external-identifier": [
      {"external-id-type": "Scopus Author ID", "external-id-value": "7004567890"}
    ]}
  },
  "activities-summary": {
    "employments": {"affiliation-group": [
      {"summaries": [{"employment-summary": {
        "organization": {"name": "Uppsala University", "address": {"city": "Uppsala", "country": "SE"}},
        "department-name": "Physics",
        "role-title": "Professor",
        "start-date": {"year": {"value": "2015"}, "month": {"value": "9"}},
        "end-date": null
      }}]}
    ]},
    "educations": {"affiliation-group": [
      {"summaries": [{"education-summary": {
        "organization": {"name": "KTH"},
        "role-title": "PhD",
        "start-date": {"year": {"value": "2008"}},
        "end-date": {"year": {"value": "2013"}, "month": {"value": "6"}, "day": {"value": "12"}}
      }}]}
    ]},
    "works": {"group": [
      {"work-summary": [{
        "title": {"title": {"value": "Paper One"}},
        "type": "journal-article",
        "publication-date": {"year": {"value": "2020"}, "month": {"value": "5"}},
        "journal-title": {"value": "Phys Rev B"},
        "external-ids": {"external-id": [
          {"external-id-type": "doi", "external-id-value": "10.1000/p1"}
        ]}
      }]},
      {"work-summary": [{"title": {"title": {"value": "Paper Two"}}, "type": "journal-article"}]},
      {"work-summary": [{"title": {"title": {"value": "Paper Three"}}}]},
      {"work-summary": [{"title": {"title": {"value": "Paper Four"}}}]},
      {"work-summary": [{"title": {"title": {"value": "Paper Five"}}}]},
      {"work-summary": [{"title": {"title": {"value": "Paper Six"}}}]},
      {"work-summary": [{"title": {"title": {"value": "Paper Seven"}}}]}
    ]},
    "fundings": {"group": [
      {"funding-summary": [{
        "title": {"title": {"value": "Quantum Grant"}},
        "type": "grant",
        "organization": {"name": "Research Council"},
        "amount": {"value": "500000", "currency-code": "SEK"},
        "start-date": {"year": {"value": "2021"}}
      }]}
    ]}
  }
}`

const sparseRecordJSON = `{
  "person": {
    "name": {"family-name": {"value": "Svensson"}}
  },
  "activities-summary": {}
}`

const searchResultsJSON = `{
  "expanded-result": [
    {
      "orcid-id": "0000-0002-1825-0097",
      "given-names": "Anna",
      "family-names": "Lindqvist",
      "institution-name": ["", "Uppsala University"]
    },
    {
      "orcid-id": "0000-0001-5109-3700",
      "given-names": "Erik",
      "family-names": "Svensson",
      "institution-name": []
    }
  ],
  "num-found": 2
}`

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	httpClient := upstream.NewHTTPClient(upstream.HTTPClientConfig{
		RateLimit:   1000,
		BurstSize:   100,
		MaxAttempts: 2,
		RetryDelay:  time.Millisecond,
	})
	return NewWithHTTPClient(cfg, httpClient)
}

func TestClient_FetchByID(t *testing.T) {
	t.Run("full record with details", func(t *testing.T) {
		var requestedPath string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestedPath = r.URL.Path
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(fullRecordJSON))
		}))
		defer server.Close()

		client := newTestClient(t, Config{BaseURL: server.URL})

		profile, err := client.FetchByID(context.Background(), "0000-0002-1825-0097", true)
		require.NoError(t, err)
		require.NotNil(t, profile)

		assert.Equal(t, "/0000-0002-1825-0097/record", requestedPath)
		assert.Equal(t, "0000-0002-1825-0097", profile.Identifier)
		assert.Equal(t, "Anna", profile.GivenName)
		assert.Equal(t, "Lindqvist", profile.FamilyName)
		assert.Equal(t, "A. Lindqvist", profile.CreditName)
		assert.Equal(t, []string{"Anna L."}, profile.OtherNames)
		assert.Equal(t, "Quantum materials researcher.", profile.Biography)
		assert.Equal(t, []string{"physics", "quantum"}, profile.Keywords)
		assert.True(t, profile.DetailsPopulated)

		require.Len(t, profile.Emails, 1)
		assert.Equal(t, "anna@example.edu", profile.Emails[0].Address)
		assert.True(t, profile.Emails[0].Primary)

		assert.Equal(t, "7004567890", profile.ExternalIDs["Scopus Author ID"])

		assert.Equal(t, "Uppsala University", profile.Institution)
		require.Len(t, profile.Employments, 1)
		assert.Equal(t, "Physics", profile.Employments[0].Department)
		assert.Equal(t, "Professor", profile.Employments[0].Role)
		assert.Equal(t, "Uppsala", profile.Employments[0].Location.City)
		assert.Equal(t, "2015-9", profile.Employments[0].StartDate.String())
		assert.True(t, profile.Employments[0].EndDate.IsZero())

		require.Len(t, profile.Educations, 1)
		assert.Equal(t, "KTH", profile.Educations[0].Organization)
		assert.Equal(t, "2013-6-12", profile.Educations[0].EndDate.String())

		// details=true returns every work, not just the preview
		assert.Equal(t, 7, profile.WorksTotal)
		require.Len(t, profile.Works, 7)
		assert.Equal(t, "Paper One", profile.Works[0].Title)
		assert.Equal(t, "2020-5", profile.Works[0].PublicationDate.String())
		assert.Equal(t, "Phys Rev B", profile.Works[0].Journal)
		assert.Equal(t, "10.1000/p1", profile.Works[0].ExternalIDs["doi"])

		require.Len(t, profile.Fundings, 1)
		assert.Equal(t, "Quantum Grant", profile.Fundings[0].Title)
		assert.Equal(t, "Research Council", profile.Fundings[0].Organization)
		assert.Equal(t, "SEK", profile.Fundings[0].Amount.Currency)
		assert.Equal(t, "2021", profile.Fundings[0].StartDate.String())
	})

	t.Run("basic fetch caps works and drops detail collections", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(fullRecordJSON))
		}))
		defer server.Close()

		client := newTestClient(t, Config{BaseURL: server.URL})

		profile, err := client.FetchByID(context.Background(), "0000-0002-1825-0097", false)
		require.NoError(t, err)

		assert.False(t, profile.DetailsPopulated)
		assert.Equal(t, 7, profile.WorksTotal)
		assert.Len(t, profile.Works, 5, "works preview capped at 5")
		assert.Nil(t, profile.Educations)
		assert.Nil(t, profile.Fundings)
		// Institution still resolved, with one employment kept as context
		assert.Equal(t, "Uppsala University", profile.Institution)
		assert.Len(t, profile.Employments, 1)
	})

	t.Run("sparse record resolves to zero values", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(sparseRecordJSON))
		}))
		defer server.Close()

		client := newTestClient(t, Config{BaseURL: server.URL})

		profile, err := client.FetchByID(context.Background(), "0000-0001-5109-3700", true)
		require.NoError(t, err)

		assert.Equal(t, "", profile.GivenName)
		assert.Equal(t, "Svensson", profile.FamilyName)
		assert.Empty(t, profile.Keywords)
		assert.Empty(t, profile.Emails)
		assert.Equal(t, "", profile.Institution)
		assert.Empty(t, profile.Works)
		assert.Zero(t, profile.WorksTotal)
	})

	t.Run("invalid identifier rejected before any network call", func(t *testing.T) {
		var called atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called.Add(1)
		}))
		defer server.Close()

		client := newTestClient(t, Config{BaseURL: server.URL})

		_, err := client.FetchByID(context.Background(), "not-an-identifier", true)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Equal(t, int32(0), called.Load())
	})

	t.Run("identifier normalized from url form", func(t *testing.T) {
		var requestedPath string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestedPath = r.URL.Path
			w.Write([]byte(sparseRecordJSON))
		}))
		defer server.Close()

		client := newTestClient(t, Config{BaseURL: server.URL})

		_, err := client.FetchByID(context.Background(), "https://orcid.org/0000-0002-1825-0097", false)
		require.NoError(t, err)
		assert.Equal(t, "/0000-0002-1825-0097/record", requestedPath)
	})

	t.Run("returns NotFoundError on 404", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := newTestClient(t, Config{BaseURL: server.URL})

		_, err := client.FetchByID(context.Background(), "0000-0002-1825-0097", true)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("returns ExternalAPIError on non-retryable failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		client := newTestClient(t, Config{BaseURL: server.URL})

		_, err := client.FetchByID(context.Background(), "0000-0002-1825-0097", true)
		require.Error(t, err)

		var apiErr *domain.ExternalAPIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "registry", apiErr.Source)
		assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	})
}

func TestClient_Search(t *testing.T) {
	t.Run("large requests return summary profiles without enrichment", func(t *testing.T) {
		var recordFetches atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/expanded-search/" {
				assert.Equal(t, "anna lindqvist", r.URL.Query().Get("q"))
				assert.Equal(t, "20", r.URL.Query().Get("rows"))
				w.Write([]byte(searchResultsJSON))
				return
			}
			recordFetches.Add(1)
			w.Write([]byte(fullRecordJSON))
		}))
		defer server.Close()

		client := newTestClient(t, Config{BaseURL: server.URL})

		profiles, err := client.Search(context.Background(), "anna lindqvist", 20)
		require.NoError(t, err)
		require.Len(t, profiles, 2)

		assert.Equal(t, int32(0), recordFetches.Load(), "no per-hit fetches above threshold")
		assert.Equal(t, "0000-0002-1825-0097", profiles[0].Identifier)
		assert.Equal(t, "Anna", profiles[0].GivenName)
		assert.Equal(t, "Uppsala University", profiles[0].Institution, "first non-empty institution wins")
		assert.Equal(t, "", profiles[1].Institution)
		assert.False(t, profiles[0].DetailsPopulated)
		assert.Empty(t, profiles[0].Keywords)
	})

	t.Run("small requests enrich each hit", func(t *testing.T) {
		var recordFetches atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/expanded-search/" {
				w.Write([]byte(searchResultsJSON))
				return
			}
			recordFetches.Add(1)
			w.Write([]byte(fullRecordJSON))
		}))
		defer server.Close()

		client := newTestClient(t, Config{BaseURL: server.URL})

		profiles, err := client.Search(context.Background(), "anna lindqvist", 5)
		require.NoError(t, err)
		require.Len(t, profiles, 2)

		assert.Equal(t, int32(2), recordFetches.Load(), "one record fetch per hit")
		assert.Equal(t, []string{"physics", "quantum"}, profiles[0].Keywords)
		assert.Equal(t, "Uppsala University", profiles[0].Institution)
	})

	t.Run("zero hits return empty slice and nil error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"expanded-result": [], "num-found": 0}`))
		}))
		defer server.Close()

		client := newTestClient(t, Config{BaseURL: server.URL})

		profiles, err := client.Search(context.Background(), "nobody at all", 5)
		require.NoError(t, err)
		assert.NotNil(t, profiles)
		assert.Empty(t, profiles)
	})

	t.Run("null result list tolerated", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"num-found": 0}`))
		}))
		defer server.Close()

		client := newTestClient(t, Config{BaseURL: server.URL})

		profiles, err := client.Search(context.Background(), "nobody", 5)
		require.NoError(t, err)
		assert.Empty(t, profiles)
	})

	t.Run("upstream error propagates", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		client := newTestClient(t, Config{BaseURL: server.URL})

		_, err := client.Search(context.Background(), "query", 5)
		require.Error(t, err)

		var apiErr *domain.ExternalAPIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	})
}

func TestClient_BearerAuth(t *testing.T) {
	t.Run("exchanges credentials once and sends bearer token", func(t *testing.T) {
		var tokenExchanges atomic.Int32
		var authHeaders []string

		mux := http.NewServeMux()
		mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
			tokenExchanges.Add(1)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
			assert.Equal(t, "client-1", r.PostForm.Get("client_id"))
			assert.Equal(t, "secret-1", r.PostForm.Get("client_secret"))
			w.Write([]byte(`{"access_token": "tok-abc", "token_type": "bearer", "expires_in": 3600}`))
		})
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			authHeaders = append(authHeaders, r.Header.Get("Authorization"))
			w.Write([]byte(sparseRecordJSON))
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		client := newTestClient(t, Config{
			BaseURL:      server.URL,
			TokenURL:     server.URL + "/oauth/token",
			ClientID:     "client-1",
			ClientSecret: "secret-1",
		})

		_, err := client.FetchByID(context.Background(), "0000-0002-1825-0097", false)
		require.NoError(t, err)
		_, err = client.FetchByID(context.Background(), "0000-0001-5109-3700", false)
		require.NoError(t, err)

		assert.Equal(t, int32(1), tokenExchanges.Load(), "cached token reused")
		require.Len(t, authHeaders, 2)
		assert.Equal(t, "Bearer tok-abc", authHeaders[0])
		assert.Equal(t, "Bearer tok-abc", authHeaders[1])
	})

	t.Run("no auth header without credentials", func(t *testing.T) {
		var authHeader string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader = r.Header.Get("Authorization")
			w.Write([]byte(sparseRecordJSON))
		}))
		defer server.Close()

		client := newTestClient(t, Config{BaseURL: server.URL})

		_, err := client.FetchByID(context.Background(), "0000-0002-1825-0097", false)
		require.NoError(t, err)
		assert.Empty(t, authHeader)
	})
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultTokenURL, cfg.TokenURL)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimit)
	assert.Equal(t, DefaultBurstSize, cfg.BurstSize)
	assert.Equal(t, DefaultDetailThreshold, cfg.DetailThreshold)
	assert.Equal(t, "/read-public", cfg.Scope)
}
