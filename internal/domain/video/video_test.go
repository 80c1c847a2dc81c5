package video

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/lectern/internal/domain/passage"
)

func match(videoID, title string, start, score float64, text string) passage.Match {
	return passage.Match{
		Score:    score,
		Metadata: passage.Metadata{VideoID: videoID, Title: title, TimestampStart: start, Text: text},
	}
}

func TestFilterByScore_Boundary(t *testing.T) {
	matches := []passage.Match{
		match("a", "A", 0, 0.9, ""),
		match("b", "B", 0, 0.35, ""),
		match("c", "C", 0, 0.3499999, ""),
		match("d", "D", 0, 0.2, ""),
	}
	kept := FilterByScore(matches, 0.35)
	if len(kept) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(kept))
	}
	if kept[0].Metadata.VideoID != "a" || kept[1].Metadata.VideoID != "b" {
		t.Errorf("unexpected order: %+v", kept)
	}
	if len(matches) != 4 {
		t.Error("input must not be modified")
	}
}

func TestAggregate_GroupsInFirstSeenOrder(t *testing.T) {
	agg := NewAggregator("", 0)
	matches := []passage.Match{
		match("abc123", "Closures", 61.9, 0.8, "first"),
		match("zzz", "Other", 5, 0.7, "other"),
		match("abc123", "Closures", 10, 0.6, "second"),
	}

	results := agg.Aggregate(matches)
	if len(results) != 2 {
		t.Fatalf("expected 2 videos, got %d", len(results))
	}
	r := results[0]
	if r.ID != "abc123" || r.VideoID != "abc123" || r.Title != "Closures" {
		t.Errorf("unexpected first result: %+v", r)
	}
	if r.Thumbnail != "https://img.youtube.com/vi/abc123/hqdefault.jpg" {
		t.Errorf("unexpected thumbnail %q", r.Thumbnail)
	}
	if len(r.Timestamps) != 2 {
		t.Fatalf("expected 2 timestamps, got %d", len(r.Timestamps))
	}
	if r.Timestamps[0].Score != 0.8 || r.Timestamps[1].Score != 0.6 {
		t.Errorf("timestamps not in arrival order: %+v", r.Timestamps)
	}
	if r.Timestamps[0].Start != 61 {
		t.Errorf("expected floored start 61, got %d", r.Timestamps[0].Start)
	}
	if results[1].VideoID != "zzz" {
		t.Errorf("expected second video zzz, got %q", results[1].VideoID)
	}
}

func TestAggregate_KeepsDuplicateOffsets(t *testing.T) {
	agg := NewAggregator("", 0)
	results := agg.Aggregate([]passage.Match{
		match("v", "T", 30, 0.9, "x"),
		match("v", "T", 30, 0.5, "x"),
	})
	if len(results) != 1 || len(results[0].Timestamps) != 2 {
		t.Fatalf("expected duplicates kept, got %+v", results)
	}
}

func TestAggregate_Defaults(t *testing.T) {
	agg := NewAggregator("https://cdn.example/{video_id}.jpg", 5)
	results := agg.Aggregate([]passage.Match{match("v1", "", -3, 0.5, "ábcdefgh")})

	r := results[0]
	if r.Title != UnknownTitle {
		t.Errorf("expected %q, got %q", UnknownTitle, r.Title)
	}
	if r.Thumbnail != "https://cdn.example/v1.jpg" {
		t.Errorf("unexpected thumbnail %q", r.Thumbnail)
	}
	if r.Timestamps[0].Text != "ábcde" {
		t.Errorf("expected 5 characters, got %q", r.Timestamps[0].Text)
	}
	if r.Timestamps[0].Start != 0 {
		t.Errorf("expected start 0, got %d", r.Timestamps[0].Start)
	}
}

func TestAggregate_Empty(t *testing.T) {
	results := NewAggregator("", 0).Aggregate(nil)
	if results == nil || len(results) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", results)
	}
}

func TestAggregate_Deterministic(t *testing.T) {
	agg := NewAggregator("", 0)
	matches := []passage.Match{
		match("a", "A", 1, 0.9, "one"),
		match("b", "B", 2, 0.8, "two"),
		match("a", "A", 3, 0.7, "three"),
	}
	first := agg.Aggregate(matches)
	second := agg.Aggregate(matches)
	if len(first) != len(second) {
		t.Fatal("length differs between runs")
	}
	for i := range first {
		if first[i].VideoID != second[i].VideoID || len(first[i].Timestamps) != len(second[i].Timestamps) {
			t.Errorf("run mismatch at %d", i)
		}
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", 250)
	if got := Truncate(long, 200); len(got) != 200 {
		t.Errorf("expected 200 chars, got %d", len(got))
	}
	if got := Truncate("short", 200); got != "short" {
		t.Errorf("expected unchanged, got %q", got)
	}
	if got := Truncate("héllo", 2); got != "hé" {
		t.Errorf("expected rune-safe cut, got %q", got)
	}
}
