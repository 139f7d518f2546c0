package registry

// Registry payloads are sparse: any nested object can be absent or null at
// any depth. Every container is pointer-typed so a missing branch decodes to
// nil and normalization falls through to zero values.

// value is the registry's ubiquitous single-field string wrapper.
type value struct {
	Value string `json:"value"`
}

// partialDate carries year/month/day as string-wrapped values, any of which
// may be absent.
type partialDate struct {
	Year  *value `json:"year"`
	Month *value `json:"month"`
	Day   *value `json:"day"`
}

type recordResponse struct {
	Person     *person     `json:"person"`
	Activities *activities `json:"activities-summary"`
}

type person struct {
	Name                *personName          `json:"name"`
	OtherNames          *otherNames          `json:"other-names"`
	Biography           *biography           `json:"biography"`
	Emails              *emails              `json:"emails"`
	Keywords            *keywords            `json:"keywords"`
	ExternalIdentifiers *externalIdentifiers `json:"external-identifiers"`
}

type personName struct {
	GivenNames *value `json:"given-names"`
	FamilyName *value `json:"family-name"`
	CreditName *value `json:"credit-name"`
}

type otherNames struct {
	OtherName []otherName `json:"other-name"`
}

type otherName struct {
	Content string `json:"content"`
}

type biography struct {
	Content string `json:"content"`
}

type emails struct {
	Email []email `json:"email"`
}

type email struct {
	Email      string `json:"email"`
	Visibility string `json:"visibility"`
	Verified   bool   `json:"verified"`
	Primary    bool   `json:"primary"`
}

type keywords struct {
	Keyword []keyword `json:"keyword"`
}

type keyword struct {
	Content string `json:"content"`
}

type externalIdentifiers struct {
	ExternalIdentifier []externalID `json:"external-identifier"`
}

type externalID struct {
	Type  string `json:"external-id-type"`
	Value string `json:"external-id-value"`
}

type activities struct {
	Employments *affiliations `json:"employments"`
	Educations  *affiliations `json:"educations"`
	Works       *works        `json:"works"`
	Fundings    *fundings     `json:"fundings"`
}

type affiliations struct {
	AffiliationGroup []affiliationGroup `json:"affiliation-group"`
}

type affiliationGroup struct {
	Summaries []affiliationSummaryWrapper `json:"summaries"`
}

// affiliationSummaryWrapper holds whichever affiliation kind the group
// carries; exactly one of the fields is expected to be set.
type affiliationSummaryWrapper struct {
	EmploymentSummary *affiliationSummary `json:"employment-summary"`
	EducationSummary  *affiliationSummary `json:"education-summary"`
}

type affiliationSummary struct {
	Organization   *organization `json:"organization"`
	DepartmentName string        `json:"department-name"`
	RoleTitle      string        `json:"role-title"`
	StartDate      *partialDate  `json:"start-date"`
	EndDate        *partialDate  `json:"end-date"`
}

type organization struct {
	Name    string   `json:"name"`
	Address *address `json:"address"`
}

type address struct {
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
}

type works struct {
	Group []workGroup `json:"group"`
}

type workGroup struct {
	WorkSummary []workSummary `json:"work-summary"`
}

type workSummary struct {
	Title           *workTitle   `json:"title"`
	Type            string       `json:"type"`
	PublicationDate *partialDate `json:"publication-date"`
	URL             *value       `json:"url"`
	JournalTitle    *value       `json:"journal-title"`
	ExternalIDs     *externalIDs `json:"external-ids"`
}

type workTitle struct {
	Title *value `json:"title"`
}

type externalIDs struct {
	ExternalID []externalID `json:"external-id"`
}

type fundings struct {
	Group []fundingGroup `json:"group"`
}

type fundingGroup struct {
	FundingSummary []fundingSummary `json:"funding-summary"`
}

type fundingSummary struct {
	Title        *workTitle    `json:"title"`
	Type         string        `json:"type"`
	Organization *organization `json:"organization"`
	Amount       *amount       `json:"amount"`
	StartDate    *partialDate  `json:"start-date"`
	EndDate      *partialDate  `json:"end-date"`
	ExternalIDs  *externalIDs  `json:"external-ids"`
}

type amount struct {
	Value        string `json:"value"`
	CurrencyCode string `json:"currency-code"`
}

// expandedSearchResponse is the shape of the expanded search endpoint, which
// includes enough per-hit detail to build stubs without follow-up fetches.
type expandedSearchResponse struct {
	ExpandedResult []expandedResult `json:"expanded-result"`
	NumFound       int              `json:"num-found"`
}

type expandedResult struct {
	OrcidID         string   `json:"orcid-id"`
	GivenNames      string   `json:"given-names"`
	FamilyNames     string   `json:"family-names"`
	CreditName      string   `json:"credit-name"`
	InstitutionName []string `json:"institution-name"`
}

// tokenResponse is the client-credentials token exchange response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}
