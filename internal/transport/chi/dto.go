package chi

import (
	"time"

	"github.com/kailas-cloud/lectern/internal/domain"
	"github.com/kailas-cloud/lectern/internal/domain/path"
	"github.com/kailas-cloud/lectern/internal/domain/topic"
	domusage "github.com/kailas-cloud/lectern/internal/domain/usage"
	"github.com/kailas-cloud/lectern/internal/domain/video"
	"github.com/kailas-cloud/lectern/internal/usecase/retrieval"
	"github.com/kailas-cloud/lectern/internal/version"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type queryRequest struct {
	Query string `json:"query"`
}

type timestampDTO struct {
	Start int     `json:"start"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type videoDTO struct {
	ID         string         `json:"id"`
	VideoID    string         `json:"videoId"`
	Title      string         `json:"title"`
	Thumbnail  string         `json:"thumbnail"`
	Timestamps []timestampDTO `json:"timestamps"`
}

type searchResponse struct {
	Results []videoDTO `json:"results"`
	Total   int        `json:"total"`
	Message string     `json:"message,omitempty"`
}

type expandResponse struct {
	ExpandedQuery string `json:"expandedQuery"`
}

type summarizeRequest struct {
	Query   string     `json:"query"`
	Results []videoDTO `json:"results"`
}

type relatedResponse struct {
	Topics []topic.Related `json:"topics"`
}

type candidateDTO struct {
	VideoID string `json:"videoId"`
	Title   string `json:"title"`
}

type learningPathRequest struct {
	Goal            string         `json:"goal"`
	AvailableVideos []candidateDTO `json:"availableVideos"`
}

type discoverResponse struct {
	ExpandedQuery string          `json:"expandedQuery"`
	Results       []videoDTO      `json:"results"`
	Total         int             `json:"total"`
	Message       string          `json:"message,omitempty"`
	Topics        []topic.Related `json:"topics"`
}

type messageDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages []messageDTO `json:"messages"`
	Context  string       `json:"context,omitempty"`
}

type budgetDTO struct {
	TokensLimit     int64      `json:"tokensLimit"`
	TokensRemaining int64      `json:"tokensRemaining"`
	IsExhausted     bool       `json:"isExhausted"`
	ResetsAt        *time.Time `json:"resetsAt,omitempty"`
}

type usageReportDTO struct {
	Provider      string     `json:"provider"`
	TokensUsed    int64      `json:"tokensUsed"`
	PeriodStartAt *time.Time `json:"periodStartAt,omitempty"`
	PeriodEndAt   *time.Time `json:"periodEndAt,omitempty"`
	Budget        budgetDTO  `json:"budget"`
}

type usageResponse struct {
	Period    string           `json:"period"`
	Providers []usageReportDTO `json:"providers"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Build  version.Build     `json:"build"`
}

func videosToDTO(results []video.Result) []videoDTO {
	out := make([]videoDTO, len(results))
	for i, r := range results {
		ts := make([]timestampDTO, len(r.Timestamps))
		for j, t := range r.Timestamps {
			ts[j] = timestampDTO(t)
		}
		out[i] = videoDTO{
			ID:         r.ID,
			VideoID:    r.VideoID,
			Title:      r.Title,
			Thumbnail:  r.Thumbnail,
			Timestamps: ts,
		}
	}
	return out
}

func videosFromDTO(in []videoDTO) []video.Result {
	out := make([]video.Result, len(in))
	for i, v := range in {
		ts := make([]video.Timestamp, len(v.Timestamps))
		for j, t := range v.Timestamps {
			ts[j] = video.Timestamp(t)
		}
		out[i] = video.Result{
			ID:         v.ID,
			VideoID:    v.VideoID,
			Title:      v.Title,
			Thumbnail:  v.Thumbnail,
			Timestamps: ts,
		}
	}
	return out
}

func searchToDTO(resp retrieval.Response) searchResponse {
	return searchResponse{
		Results: videosToDTO(resp.Results),
		Total:   resp.Total,
		Message: resp.Message,
	}
}

func candidatesFromDTO(in []candidateDTO) []path.Candidate {
	out := make([]path.Candidate, len(in))
	for i, c := range in {
		out[i] = path.Candidate(c)
	}
	return out
}

func messagesFromDTO(in []messageDTO) []domain.Message {
	out := make([]domain.Message, len(in))
	for i, m := range in {
		out[i] = domain.Message{Role: domain.Role(m.Role), Content: m.Content}
	}
	return out
}

func usageToDTO(period domusage.Period, reports []domusage.Report) usageResponse {
	resp := usageResponse{Period: string(period), Providers: make([]usageReportDTO, 0, len(reports))}
	for _, r := range reports {
		b := r.Budget()
		item := usageReportDTO{
			Provider:   r.Provider(),
			TokensUsed: r.TokensUsed(),
			Budget: budgetDTO{
				TokensLimit:     b.TokensLimit(),
				TokensRemaining: b.TokensRemaining(),
				IsExhausted:     b.IsExhausted(),
			},
		}
		if r.PeriodStart() > 0 {
			start := time.UnixMilli(r.PeriodStart()).UTC()
			end := time.UnixMilli(r.PeriodEnd()).UTC()
			item.PeriodStartAt = &start
			item.PeriodEndAt = &end
		}
		if b.ResetsAt() > 0 {
			resetsAt := time.UnixMilli(b.ResetsAt()).UTC()
			item.Budget.ResetsAt = &resetsAt
		}
		resp.Providers = append(resp.Providers, item)
	}
	return resp
}
