// Package video groups passage matches into per-video results.
package video

import (
	"math"
	"strings"

	"github.com/kailas-cloud/lectern/internal/domain/passage"
)

// Defaults for aggregation.
const (
	UnknownTitle      = "Unknown Video"
	DefaultThumbnail  = "https://img.youtube.com/vi/{video_id}/hqdefault.jpg"
	DefaultPassageLen = 200

	// NoResultsMessage is the advisory returned when nothing passes the score floor.
	NoResultsMessage = "No relevant results found. Try rephrasing your search."

	thumbnailPlaceholder = "{video_id}"
)

// Timestamp is a passage inside a video.
type Timestamp struct {
	Start int
	Text  string
	Score float64
}

// Result is the aggregation of matches for one video.
// Timestamps keep the order in which matches were encountered.
type Result struct {
	ID         string
	VideoID    string
	Title      string
	Thumbnail  string
	Timestamps []Timestamp
}

// Aggregator builds video results from passage matches.
type Aggregator struct {
	thumbnailTemplate string
	passageLen        int
}

// NewAggregator creates an Aggregator. Empty template and non-positive length use defaults.
func NewAggregator(thumbnailTemplate string, passageLen int) *Aggregator {
	if thumbnailTemplate == "" {
		thumbnailTemplate = DefaultThumbnail
	}
	if passageLen <= 0 {
		passageLen = DefaultPassageLen
	}
	return &Aggregator{thumbnailTemplate: thumbnailTemplate, passageLen: passageLen}
}

// Thumbnail derives the thumbnail URL for a video.
func (a *Aggregator) Thumbnail(videoID string) string {
	return strings.ReplaceAll(a.thumbnailTemplate, thumbnailPlaceholder, videoID)
}

// Aggregate groups matches by video in first-seen order. The input is not modified.
func (a *Aggregator) Aggregate(matches []passage.Match) []Result {
	results := make([]Result, 0)
	index := make(map[string]int)

	for _, m := range matches {
		md := m.Metadata
		i, ok := index[md.VideoID]
		if !ok {
			title := md.Title
			if title == "" {
				title = UnknownTitle
			}
			results = append(results, Result{
				ID:         md.VideoID,
				VideoID:    md.VideoID,
				Title:      title,
				Thumbnail:  a.Thumbnail(md.VideoID),
				Timestamps: make([]Timestamp, 0, 1),
			})
			i = len(results) - 1
			index[md.VideoID] = i
		}
		results[i].Timestamps = append(results[i].Timestamps, Timestamp{
			Start: floorSeconds(md.TimestampStart),
			Text:  Truncate(md.Text, a.passageLen),
			Score: m.Score,
		})
	}
	return results
}

// FilterByScore keeps matches whose score is at least minScore, preserving order.
func FilterByScore(matches []passage.Match, minScore float64) []passage.Match {
	kept := make([]passage.Match, 0, len(matches))
	for _, m := range matches {
		if m.Score >= minScore {
			kept = append(kept, m)
		}
	}
	return kept
}

// Truncate returns at most n characters of s.
func Truncate(s string, n int) string {
	if n < 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func floorSeconds(s float64) int {
	if s <= 0 || math.IsNaN(s) {
		return 0
	}
	return int(math.Floor(s))
}
