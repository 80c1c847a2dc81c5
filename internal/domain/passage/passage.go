// Package passage models transcript passages returned by a vector index.
package passage

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Metadata keys stored alongside each indexed passage.
const (
	KeyVideoID        = "video_id"
	KeyTitle          = "title"
	KeyTimestampStart = "timestamp_start"
	KeyText           = "text"
)

// ErrMissingVideoID is returned for index metadata without a video identifier.
var ErrMissingVideoID = errors.New("passage metadata: missing video_id")

// Metadata is the validated payload of an indexed passage.
// TimestampStart is seconds from the start of the video.
type Metadata struct {
	VideoID        string
	Title          string
	TimestampStart float64
	Text           string
}

// Match is a single nearest-neighbour hit. Score is similarity in [0,1], higher is closer.
type Match struct {
	ID       string
	Score    float64
	Metadata Metadata
}

// RawMatch is a hit as returned by an index backend, before metadata validation.
type RawMatch struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Decode validates the payload and produces a Match.
func (r RawMatch) Decode() (Match, error) {
	md, err := DecodeMetadata(r.Payload)
	if err != nil {
		return Match{}, fmt.Errorf("match %s: %w", r.ID, err)
	}
	return Match{ID: r.ID, Score: r.Score, Metadata: md}, nil
}

// DecodeMetadata validates a loosely typed index payload.
// Numbers may arrive as float, int or numeric string depending on the backend.
func DecodeMetadata(raw map[string]any) (Metadata, error) {
	m := Metadata{
		VideoID: stringValue(raw[KeyVideoID]),
		Title:   stringValue(raw[KeyTitle]),
		Text:    stringValue(raw[KeyText]),
	}
	if m.VideoID == "" {
		return Metadata{}, ErrMissingVideoID
	}
	start, err := floatValue(raw[KeyTimestampStart])
	if err != nil {
		return Metadata{}, fmt.Errorf("passage metadata %s: %w", KeyTimestampStart, err)
	}
	m.TimestampStart = start
	return m, nil
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func floatValue(v any) (float64, error) {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0, nil
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		if t == "" {
			return 0, nil
		}
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("parse %q: %w", t, err)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, nil
	}
	return f, nil
}
