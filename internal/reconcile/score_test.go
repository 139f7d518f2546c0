package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/forskardb/researcher-identity-service/internal/domain"
)

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name string
		ref  domain.IdentityReference
		want string
	}{
		{
			name: "name only",
			ref:  domain.IdentityReference{DisplayName: "Anna Lindqvist"},
			want: `"Anna Lindqvist"`,
		},
		{
			name: "name and institution",
			ref:  domain.IdentityReference{DisplayName: "Anna Lindqvist", Institution: "Uppsala University"},
			want: `"Anna Lindqvist" AND "Uppsala University"`,
		},
		{
			name: "keywords capped at three",
			ref: domain.IdentityReference{
				DisplayName: "Anna Lindqvist",
				Keywords:    []string{"one", "two", "three", "four"},
			},
			want: `"Anna Lindqvist" AND "one" AND "two" AND "three"`,
		},
		{
			name: "full reference",
			ref: domain.IdentityReference{
				DisplayName: "Anna Lindqvist",
				Institution: "Uppsala",
				Keywords:    []string{"physics"},
			},
			want: `"Anna Lindqvist" AND "physics" AND "Uppsala"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildQuery(&tt.ref))
		})
	}
}

func TestScoreCandidate(t *testing.T) {
	tests := []struct {
		name      string
		ref       domain.IdentityReference
		candidate domain.ResearcherProfile
		want      float64
	}{
		{
			name:      "exact name equality scores 0.80",
			ref:       domain.IdentityReference{DisplayName: "Anna Lindqvist"},
			candidate: domain.ResearcherProfile{GivenName: "Anna", FamilyName: "Lindqvist"},
			want:      0.80,
		},
		{
			name:      "exact equality is case insensitive",
			ref:       domain.IdentityReference{DisplayName: "ANNA LINDQVIST"},
			candidate: domain.ResearcherProfile{GivenName: "anna", FamilyName: "lindqvist"},
			want:      0.80,
		},
		{
			name:      "containment without equality scores 0.50",
			ref:       domain.IdentityReference{DisplayName: "Anna Lindqvist"},
			candidate: domain.ResearcherProfile{GivenName: "Anna", FamilyName: "Lindqvist-Berg"},
			want:      0.50,
		},
		{
			name:      "no name evidence scores zero",
			ref:       domain.IdentityReference{DisplayName: "Anna Lindqvist"},
			candidate: domain.ResearcherProfile{GivenName: "Erik", FamilyName: "Svensson"},
			want:      0.0,
		},
		{
			name: "each matching keyword adds 0.1",
			ref: domain.IdentityReference{
				DisplayName: "Anna Lindqvist",
				Keywords:    []string{"Physics", "quantum", "missing"},
			},
			candidate: domain.ResearcherProfile{
				GivenName:  "Anna",
				FamilyName: "Lindqvist",
				Keywords:   []string{"physics", "Quantum", "materials"},
			},
			want: 1.0,
		},
		{
			name: "institution token overlap adds 0.2 once",
			ref: domain.IdentityReference{
				DisplayName: "Anna Lindqvist",
				Institution: "MIT",
			},
			candidate: domain.ResearcherProfile{
				GivenName:   "Anna",
				FamilyName:  "Lindqvist-Berg",
				Institution: "MIT Media Lab at MIT",
			},
			want: 0.70,
		},
		{
			name: "institution mismatch adds nothing",
			ref: domain.IdentityReference{
				DisplayName: "Anna Lindqvist",
				Institution: "Uppsala",
			},
			candidate: domain.ResearcherProfile{
				GivenName:   "Anna",
				FamilyName:  "Lindqvist",
				Institution: "Lund University",
			},
			want: 0.80,
		},
		{
			name: "sum above 1.0 is capped",
			ref: domain.IdentityReference{
				DisplayName: "Anna Lindqvist",
				Institution: "Uppsala",
				Keywords:    []string{"a", "b", "c"},
			},
			candidate: domain.ResearcherProfile{
				GivenName:   "Anna",
				FamilyName:  "Lindqvist",
				Institution: "Uppsala University",
				Keywords:    []string{"a", "b", "c"},
			},
			want: 1.0,
		},
		{
			name:      "keyword only match without name evidence",
			ref:       domain.IdentityReference{DisplayName: "Anna", Keywords: []string{"physics"}},
			candidate: domain.ResearcherProfile{GivenName: "Erik", FamilyName: "Svensson", Keywords: []string{"physics"}},
			want:      0.10,
		},
		{
			name:      "rounded to two decimals",
			ref:       domain.IdentityReference{DisplayName: "Anna", Keywords: []string{"physics"}},
			candidate: domain.ResearcherProfile{GivenName: "Anna", Keywords: []string{"physics"}},
			want:      0.90,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scoreCandidate(&tt.ref, &tt.candidate))
		})
	}
}
