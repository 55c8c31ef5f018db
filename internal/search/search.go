package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultResearch ResultType = "research"
	ResultProduct  ResultType = "product"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type       ResultType `json:"type"`
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Snippet    string     `json:"snippet"`
	ResearchID string     `json:"researchId"`
}

// Query describes a search request. UserID is mandatory: history search
// never crosses user boundaries.
type Query struct {
	Text       string
	UserID     string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// ResearchRecord is the data we index for a saved research session.
type ResearchRecord struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Title  string `json:"title"`
}

// ProductRecord is the data we index for one product-analysis record
// inside a research session. ID is researchID plus the record index so
// re-saving a session overwrites its product entries.
type ProductRecord struct {
	ID          string `json:"id"`
	ResearchID  string `json:"researchId"`
	UserID      string `json:"userId"`
	ProductName string `json:"productName"`
	CompanyName string `json:"companyName"`
	Description string `json:"description"`
}
