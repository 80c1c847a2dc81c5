package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lectern/internal/domain"
	domusage "github.com/kailas-cloud/lectern/internal/domain/usage"
	"github.com/kailas-cloud/lectern/internal/logger"
	healthuc "github.com/kailas-cloud/lectern/internal/usecase/health"
	"github.com/kailas-cloud/lectern/internal/version"
)

const maxBodyBytes = 1 << 20

// Client-facing messages. Internals never leak beyond details of retrieval and generation failures.
const (
	msgSearchFailed     = "Search failed"
	msgGenerationFailed = "Failed to generate response"
	msgBudgetExceeded   = "Token budget exceeded"
	msgInvalidRequest   = "Invalid request"
	msgUpstream         = "Upstream service unavailable. Please try again."
	msgInternal         = "Something went wrong. Please try again."
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Services bundles the use cases served over HTTP.
type Services struct {
	Search   Searcher
	Expand   Expander
	Summary  Summarizer
	Related  RelatedGenerator
	Path     PathGenerator
	Discover Discoverer
	Chat     ChatResponder
	Usage    UsageReporter
	Health   HealthChecker
}

// Server serves the lectern HTTP API.
type Server struct {
	svc           Services
	logger        *zap.Logger
	errorHandlers []errorHandler
	upgrader      websocket.Upgrader
}

// NewServer creates an HTTP API server.
func NewServer(svc Services, logger *zap.Logger) *Server {
	s := &Server{svc: svc, logger: logger}
	s.WithAllowedOrigins(nil)
	// Order matters: a budget rejection inside retrieval is still a 402.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrBudgetExceeded, http.StatusPaymentRequired, msgBudgetExceeded, false),
		sentinelHandler(domain.ErrRetrievalFailed, http.StatusBadGateway, msgSearchFailed, true),
		generationHandler,
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, msgInvalidRequest, true),
		sentinelHandler(domain.ErrUpstream, http.StatusBadGateway, msgUpstream, false),
	}
	return s
}

// handleSearch handles POST /api/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !s.decode(w, r, &req) {
		return
	}
	ctx, usage := domain.NewContextWithUsage(r.Context())
	resp, err := s.svc.Search.Search(ctx, req.Query)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, searchToDTO(resp))
}

// handleExpand handles POST /api/expand-query.
func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !s.decode(w, r, &req) {
		return
	}
	ctx, usage := domain.NewContextWithUsage(r.Context())
	expanded, err := s.svc.Expand.Expand(ctx, req.Query)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, expandResponse{ExpandedQuery: expanded})
}

// handleSummarize handles POST /api/summarize.
func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if !s.decode(w, r, &req) {
		return
	}
	ctx, _ := domain.NewContextWithUsage(r.Context())
	ts, err := s.svc.Summary.Summarize(ctx, req.Query, videosFromDTO(req.Results))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.writeStream(w, r, ts)
}

// handleRelated handles POST /api/related-topics.
func (s *Server) handleRelated(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !s.decode(w, r, &req) {
		return
	}
	ctx, usage := domain.NewContextWithUsage(r.Context())
	topics, err := s.svc.Related.Related(ctx, req.Query)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, relatedResponse{Topics: topics})
}

// handleLearningPath handles POST /api/learning-path.
func (s *Server) handleLearningPath(w http.ResponseWriter, r *http.Request) {
	var req learningPathRequest
	if !s.decode(w, r, &req) {
		return
	}
	ctx, usage := domain.NewContextWithUsage(r.Context())
	lp, err := s.svc.Path.Generate(ctx, req.Goal, candidatesFromDTO(req.AvailableVideos))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, lp)
}

// handleDiscover handles POST /api/discover.
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !s.decode(w, r, &req) {
		return
	}
	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.svc.Discover.Discover(ctx, req.Query)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, discoverResponse{
		ExpandedQuery: res.ExpandedQuery,
		Results:       videosToDTO(res.Search.Results),
		Total:         res.Search.Total,
		Message:       res.Search.Message,
		Topics:        res.Topics,
	})
}

// handleChat handles POST /api/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !s.decode(w, r, &req) {
		return
	}
	ctx, _ := domain.NewContextWithUsage(r.Context())
	ts, err := s.svc.Chat.Reply(ctx, messagesFromDTO(req.Messages), req.Context)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.writeStream(w, r, ts)
}

// handleUsage handles GET /api/usage?period=day|month.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	period, ok := domusage.ParsePeriod(r.URL.Query().Get("period"))
	if !ok {
		writeError(w, http.StatusBadRequest, msgInvalidRequest, "period must be day or month")
		return
	}
	reports := s.svc.Usage.GetReports(r.Context(), period)
	writeJSON(w, http.StatusOK, usageToDTO(period, reports))
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.svc.Health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
		Build:  version.Current(),
	})
}

// decode reads a JSON body into v. On failure it writes a 400 and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		logger.FromContext(r.Context()).Debug("Malformed request body", zap.Error(err))
		writeError(w, http.StatusBadRequest, msgInvalidRequest, "malformed JSON body")
		return false
	}
	return true
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.Usage) {
	if !usage.Used() {
		return
	}
	w.Header().Set("X-Embedding-Tokens", strconv.FormatInt(usage.EmbeddingTokens(), 10))
	w.Header().Set("X-Completion-Tokens", strconv.FormatInt(usage.CompletionTokens(), 10))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{Error: message, Details: details})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// withDetails exposes the error chain as details.
func sentinelHandler(sentinel error, status int, message string, withDetails bool) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		details := ""
		if withDetails {
			details = err.Error()
		}
		writeError(w, status, message, details)
		return true
	}
}

// generationHandler reports the raw upstream detail of a failed structured generation.
func generationHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrGenerationFailed) {
		return false
	}
	details := err.Error()
	var ge *domain.GenerationError
	if errors.As(err, &ge) {
		details = ge.Detail
	}
	writeError(w, http.StatusInternalServerError, msgGenerationFailed, details)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, msgInternal, "")
}
