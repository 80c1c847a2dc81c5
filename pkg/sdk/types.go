package lectern

// Timestamp is a matching passage inside a video.
type Timestamp struct {
	Start int     // seconds from the video start, floored
	Text  string  // passage text, truncated
	Score float64 // similarity in [0,1]
}

// Video groups the matching passages of one video.
type Video struct {
	ID         string
	VideoID    string
	Title      string
	Thumbnail  string
	Timestamps []Timestamp
}

// SearchResult is the outcome of Client.Search.
// Message is set only when no passage passed the score floor.
type SearchResult struct {
	Videos          []Video
	Total           int
	Message         string
	EmbeddingTokens int64
}
