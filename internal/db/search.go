package db

// DefaultVectorField is the HASH field holding the passage embedding.
const DefaultVectorField = "vector"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string // defaults to DefaultVectorField
	Vector       []float32
	K            int
	ReturnFields []string

	// Filter is a query-syntax pre-filter such as "@lang:{en}". Empty matches all passages.
	Filter string
	// EFRuntime widens the HNSW candidate list for better recall. 0 keeps the index default.
	EFRuntime int
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
// Score is cosine similarity clamped to [0,1].
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
