package passage

import (
	"errors"
	"testing"
)

func TestDecodeMetadata(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]any
		want    Metadata
		wantErr bool
	}{
		{
			name: "float start",
			raw:  map[string]any{"video_id": "abc123", "title": "Intro", "timestamp_start": 125.7, "text": "hello"},
			want: Metadata{VideoID: "abc123", Title: "Intro", TimestampStart: 125.7, Text: "hello"},
		},
		{
			name: "int start",
			raw:  map[string]any{"video_id": "v", "timestamp_start": int64(42)},
			want: Metadata{VideoID: "v", TimestampStart: 42},
		},
		{
			name: "string start from hash field",
			raw:  map[string]any{"video_id": "v", "timestamp_start": "61.5"},
			want: Metadata{VideoID: "v", TimestampStart: 61.5},
		},
		{
			name: "missing start",
			raw:  map[string]any{"video_id": "v", "title": "T"},
			want: Metadata{VideoID: "v", Title: "T"},
		},
		{
			name:    "missing video id",
			raw:     map[string]any{"title": "T"},
			wantErr: true,
		},
		{
			name:    "garbage start",
			raw:     map[string]any{"video_id": "v", "timestamp_start": "soon"},
			wantErr: true,
		},
		{
			name:    "unsupported start type",
			raw:     map[string]any{"video_id": "v", "timestamp_start": []int{1}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeMetadata(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeMetadata_MissingVideoIDSentinel(t *testing.T) {
	_, err := DecodeMetadata(map[string]any{"video_id": ""})
	if !errors.Is(err, ErrMissingVideoID) {
		t.Errorf("expected ErrMissingVideoID, got %v", err)
	}
}

func TestRawMatch_Decode(t *testing.T) {
	m, err := RawMatch{
		ID:      "p1",
		Score:   0.8,
		Payload: map[string]any{"video_id": "abc", "timestamp_start": 12.0},
	}.Decode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ID != "p1" || m.Score != 0.8 || m.Metadata.VideoID != "abc" || m.Metadata.TimestampStart != 12 {
		t.Errorf("unexpected match %+v", m)
	}

	_, err = RawMatch{ID: "p2", Payload: map[string]any{}}.Decode()
	if !errors.Is(err, ErrMissingVideoID) {
		t.Errorf("expected ErrMissingVideoID, got %v", err)
	}
}
