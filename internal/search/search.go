package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultDocument ResultType = "document"
	ResultSample   ResultType = "sample"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	OwnerID string     `json:"-"`
}

// Query describes a search request. OwnerID is mandatory: results never
// cross account boundaries.
type Query struct {
	Text       string
	OwnerID    string
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

// Indexer can push entities into a search index.
type Indexer interface {
	IndexDocument(doc DocumentRecord) error
	IndexSample(s SampleRecord) error
	DeleteDocument(id string) error
	DeleteSample(id string) error
}

// DocumentRecord is the data we index for a document. Body is the plain
// text projection of the editor content.
type DocumentRecord struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	OwnerID string `json:"ownerId"`
}

// SampleRecord is the data we index for a writing sample.
type SampleRecord struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	OwnerID string `json:"ownerId"`
}
