package reconcile

import (
	"math"
	"strings"

	"github.com/forskardb/researcher-identity-service/internal/domain"
)

// maxQueryKeywords caps the keywords folded into the search query. More than
// three over-constrains the conjunctive query and starves the candidate set.
const maxQueryKeywords = 3

// Scoring weights. All evidence is additive and non-negative; the total is
// capped at 1.0.
const (
	nameContainmentWeight = 0.5
	nameExactWeight       = 0.3
	keywordWeight         = 0.1
	institutionWeight     = 0.2
)

// buildQuery assembles the conjunctive registry query: quoted display name,
// up to three quoted keywords, and the quoted institution, AND-joined.
func buildQuery(ref *domain.IdentityReference) string {
	parts := make([]string, 0, 2+maxQueryKeywords)
	parts = append(parts, `"`+ref.DisplayName+`"`)

	keywords := ref.Keywords
	if len(keywords) > maxQueryKeywords {
		keywords = keywords[:maxQueryKeywords]
	}
	for _, kw := range keywords {
		parts = append(parts, `"`+kw+`"`)
	}

	if ref.Institution != "" {
		parts = append(parts, `"`+ref.Institution+`"`)
	}

	return strings.Join(parts, " AND ")
}

// scoreCandidate computes the match confidence for one candidate.
//
// Name containment of the query name in the candidate's display name earns
// 0.5, with 0.3 more for exact case-insensitive equality. Each reference
// keyword present in the candidate's keyword set earns 0.1. Institution
// overlap earns 0.2 once, when any whitespace token of the candidate's
// institution contains the reference institution. The sum is capped at 1.0
// and rounded to two decimals.
func scoreCandidate(ref *domain.IdentityReference, candidate *domain.ResearcherProfile) float64 {
	var confidence float64

	queryName := strings.ToLower(ref.DisplayName)
	candidateName := strings.ToLower(candidate.DisplayName())
	if candidateName != "" && strings.Contains(candidateName, queryName) {
		confidence += nameContainmentWeight
		if queryName == candidateName {
			confidence += nameExactWeight
		}
	}

	if len(ref.Keywords) > 0 && len(candidate.Keywords) > 0 {
		candidateKeywords := make(map[string]struct{}, len(candidate.Keywords))
		for _, kw := range candidate.Keywords {
			candidateKeywords[strings.ToLower(kw)] = struct{}{}
		}
		for _, kw := range ref.Keywords {
			if _, ok := candidateKeywords[strings.ToLower(kw)]; ok {
				confidence += keywordWeight
			}
		}
	}

	if ref.Institution != "" && candidate.Institution != "" {
		refInstitution := strings.ToLower(ref.Institution)
		for _, token := range strings.Fields(strings.ToLower(candidate.Institution)) {
			if strings.Contains(token, refInstitution) {
				confidence += institutionWeight
				break
			}
		}
	}

	return math.Round(math.Min(confidence, 1.0)*100) / 100
}
