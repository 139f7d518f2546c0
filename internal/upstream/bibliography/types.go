package bibliography

import "encoding/xml"

// idSearchResponse is the JSON envelope returned by the id-search endpoint.
type idSearchResponse struct {
	Result idSearchResult `json:"esearchresult"`
}

type idSearchResult struct {
	Count  string   `json:"count"`
	IDList []string `json:"idlist"`
}

// articleSet is the XML envelope returned by the batch-fetch endpoint.
// Every optional element tolerates absence; missing data decodes to zero
// values rather than errors.
type articleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	MedlineCitation medlineCitation `xml:"MedlineCitation"`
	PubmedData      pubmedData      `xml:"PubmedData"`
}

type medlineCitation struct {
	PMID    pmid    `xml:"PMID"`
	Article article `xml:"Article"`
}

type pmid struct {
	Value string `xml:",chardata"`
}

type article struct {
	Title       string        `xml:"ArticleTitle"`
	Abstract    *abstract     `xml:"Abstract"`
	AuthorList  *authorList   `xml:"AuthorList"`
	Journal     journal       `xml:"Journal"`
	ELocationID []eLocationID `xml:"ELocationID"`
}

type abstract struct {
	Sections []abstractText `xml:"AbstractText"`
}

type abstractText struct {
	Label string `xml:"Label,attr"`
	Value string `xml:",chardata"`
}

type authorList struct {
	Authors []author `xml:"Author"`
}

type author struct {
	LastName       string `xml:"LastName"`
	ForeName       string `xml:"ForeName"`
	CollectiveName string `xml:"CollectiveName"`
	ValidYN        string `xml:"ValidYN,attr"`
}

type journal struct {
	Title           string       `xml:"Title"`
	ISOAbbreviation string       `xml:"ISOAbbreviation"`
	JournalIssue    journalIssue `xml:"JournalIssue"`
}

type journalIssue struct {
	PubDate pubDate `xml:"PubDate"`
}

type pubDate struct {
	Year        string `xml:"Year"`
	Month       string `xml:"Month"`
	Day         string `xml:"Day"`
	MedlineDate string `xml:"MedlineDate"`
}

type eLocationID struct {
	EIdType string `xml:"EIdType,attr"`
	Valid   string `xml:"ValidYN,attr"`
	Value   string `xml:",chardata"`
}

type pubmedData struct {
	ArticleIdList articleIdList `xml:"ArticleIdList"`
}

type articleIdList struct {
	ArticleIds []articleID `xml:"ArticleId"`
}

type articleID struct {
	IdType string `xml:"IdType,attr"`
	Value  string `xml:",chardata"`
}
