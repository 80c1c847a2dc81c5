package chi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lectern/internal/domain/stream"
	"github.com/kailas-cloud/lectern/internal/logger"
)

const completionTokensTrailer = "X-Completion-Tokens"

// writeStream relays ts as a chunked text/plain body, flushing every chunk.
// Token usage is sent as a trailer. A stream that fails midway aborts the
// connection so the client sees a truncated body instead of a clean end.
func (s *Server) writeStream(w http.ResponseWriter, r *http.Request, ts *stream.TextStream) {
	defer ts.Close()
	log := logger.FromContext(r.Context())

	rc := http.NewResponseController(w)
	h := w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Trailer", completionTokensTrailer)
	w.WriteHeader(http.StatusOK)

	for {
		chunk, ok := ts.Next()
		if !ok {
			break
		}
		if _, err := w.Write([]byte(chunk)); err != nil {
			log.Debug("Client went away during stream", zap.Error(err))
			return
		}
		if err := rc.Flush(); err != nil {
			log.Debug("Flush failed", zap.Error(err))
			return
		}
	}

	if err := ts.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Error("Stream ended with error", zap.Error(err))
		panic(http.ErrAbortHandler)
	}
	h.Set(completionTokensTrailer, strconv.Itoa(ts.Usage().Total()))
}
