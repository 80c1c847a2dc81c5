// Package path models ordered learning curricula built from search results.
package path

import (
	"fmt"
	"strings"
)

// Requested size bounds of a learning path and its steps.
const (
	MinSteps     = 5
	MaxSteps     = 7
	MinKeyTopics = 3
	MaxKeyTopics = 5
)

// Candidate is a video the learner may be routed through.
type Candidate struct {
	VideoID string
	Title   string
}

// Step is one video in the path.
type Step struct {
	VideoID   string   `json:"videoId" description:"videoId of a provided candidate"`
	Title     string   `json:"title"`
	Reason    string   `json:"reason" description:"Why this video comes at this point in the path"`
	KeyTopics []string `json:"keyTopics" description:"3-5 key topics covered by the video"`
}

// LearningPath is the structured curriculum requested from the model.
type LearningPath struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	EstimatedTime string `json:"estimatedTime" description:"Estimated total time, e.g. 2-3 hours"`
	Videos        []Step `json:"videos"`
}

// Shortfall describes a path that conforms to the schema but misses the requested bounds.
// It is advisory only.
type Shortfall struct {
	Steps             int
	StepsOffTopicBounds int // steps with fewer than MinKeyTopics or more than MaxKeyTopics
}

// Check reports how a path deviates from the requested bounds. ok is true when it doesn't.
func (p LearningPath) Check() (Shortfall, bool) {
	s := Shortfall{Steps: len(p.Videos)}
	for _, v := range p.Videos {
		if n := len(v.KeyTopics); n < MinKeyTopics || n > MaxKeyTopics {
			s.StepsOffTopicBounds++
		}
	}
	ok := s.Steps >= MinSteps && s.Steps <= MaxSteps && s.StepsOffTopicBounds == 0
	return s, ok
}

// Context renders candidates as the prompt listing, one `- "title" (videoId)` per line.
func Context(candidates []Candidate) string {
	lines := make([]string, 0, len(candidates))
	for _, c := range candidates {
		lines = append(lines, fmt.Sprintf("- %q (%s)", c.Title, c.VideoID))
	}
	return strings.Join(lines, "\n")
}
