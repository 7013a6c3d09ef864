package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultChannel ResultType = "channel"
	ResultMessage ResultType = "message"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
	ChannelID string     `json:"channelId"`
}

// Query describes a search request.
type Query struct {
	Text            string
	FilterType      ResultType // empty = all types
	FilterChannelID string
	Limit           int
	Offset          int
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
	IndexChannel(c ChannelRecord) error
	IndexMessage(m MessageRecord) error
	DeleteChannel(id string) error
	DeleteMessage(id string) error
}

// ChannelRecord is the data we index for a channel.
type ChannelRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// MessageRecord is the data we index for a published message.
// Drafts are never indexed.
type MessageRecord struct {
	ID         string `json:"id"`
	ChannelID  string `json:"channelId"`
	AuthorName string `json:"authorName"`
	Content    string `json:"content"`
}
