// Package topic models follow-up query suggestions.
package topic

import "strings"

// Related is a suggested follow-up query with a one-line justification.
type Related struct {
	Query  string `json:"query" description:"A search query the learner could run next"`
	Reason string `json:"reason" description:"One line on why this query helps"`
}

// List is the structured output shape requested from the model.
type List struct {
	Topics []Related `json:"topics"`
}

// MaxTopics caps how many suggestions are returned.
const MaxTopics = 5

// Clean trims entries, drops suggestions without a query and keeps at most MaxTopics.
func (l List) Clean() []Related {
	out := make([]Related, 0, len(l.Topics))
	for _, t := range l.Topics {
		t.Query = strings.TrimSpace(t.Query)
		t.Reason = strings.TrimSpace(t.Reason)
		if t.Query == "" {
			continue
		}
		out = append(out, t)
		if len(out) == MaxTopics {
			break
		}
	}
	return out
}
