package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lectern/internal/domain"
	"github.com/kailas-cloud/lectern/internal/logger"
	"github.com/kailas-cloud/lectern/internal/metrics"
)

const wsWriteTimeout = 10 * time.Second

// Frame types of the chat socket.
const (
	wsTypeMessage    = "message"
	wsTypeStop       = "stop"
	wsTypeCompletion = "completion"
	wsTypeError      = "error"
)

// Completion statuses.
const (
	wsStatusFinished = "finished"
	wsStatusStopped  = "stopped"
	wsStatusError    = "error"
)

// wsInbound is a client frame: a chat turn or {"type":"stop"}.
type wsInbound struct {
	Type     string       `json:"type"`
	Messages []messageDTO `json:"messages"`
	Context  string       `json:"context"`
}

// wsOutbound is a server frame. Text arrives as {"chunk":"..."}.
type wsOutbound struct {
	Type             string `json:"type,omitempty"`
	Chunk            string `json:"chunk,omitempty"`
	Status           string `json:"status,omitempty"`
	Error            string `json:"error,omitempty"`
	CompletionTokens int64  `json:"completionTokens,omitempty"`
}

// chatSession serializes writes on one socket and tracks the in-flight reply.
type chatSession struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (c *chatSession) send(f wsOutbound) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(f) //nolint:wrapcheck // caller only logs
}

// start runs reply in the background unless one is already in flight.
func (c *chatSession) start(parent context.Context, reply func(ctx context.Context)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.release()
		reply(ctx)
	}()
	return true
}

func (c *chatSession) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// stop cancels the in-flight reply. The slot stays taken until the reply returns.
func (c *chatSession) stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return false
	}
	c.cancel()
	return true
}

// WithAllowedOrigins restricts chat socket upgrades to the given origins.
// Empty or "*" allows any origin.
func (s *Server) WithAllowedOrigins(origins []string) *Server {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowed = nil
			break
		}
		allowed[o] = struct{}{}
	}
	s.upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if len(allowed) == 0 || origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
	return s
}

// handleChatSocket handles GET /api/chat/ws.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	metrics.ChatSessionsActive.Inc()
	log.Info("Chat session opened")

	sess := &chatSession{conn: conn}
	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		sess.wg.Wait()
		_ = conn.Close()
		metrics.ChatSessionsActive.Dec()
		log.Info("Chat session closed")
	}()

	conn.SetReadLimit(maxBodyBytes)
	turn := 0
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("Chat socket read failed", zap.Error(err))
			}
			return
		}

		var in wsInbound
		if err := json.Unmarshal(data, &in); err != nil {
			_ = sess.send(wsOutbound{Type: wsTypeError, Error: "malformed JSON frame"})
			continue
		}

		switch in.Type {
		case wsTypeStop:
			if sess.stop() {
				log.Info("Chat reply stopped by client")
			}
			_ = sess.send(wsOutbound{Type: wsTypeStop})
		case "", wsTypeMessage:
			turn++
			turnCtx := logger.With(ctx, zap.Int("turn", turn))
			if !sess.start(turnCtx, func(ctx context.Context) { s.relayReply(ctx, sess, in) }) {
				_ = sess.send(wsOutbound{Type: wsTypeError, Error: "a reply is already in progress"})
			}
		default:
			_ = sess.send(wsOutbound{Type: wsTypeError, Error: "unknown frame type"})
		}
	}
}

// relayReply streams one assistant reply as chunk frames followed by a completion frame.
func (s *Server) relayReply(ctx context.Context, sess *chatSession, in wsInbound) {
	log := logger.FromContext(ctx)
	ctx, usage := domain.NewContextWithUsage(ctx)

	ts, err := s.svc.Chat.Reply(ctx, messagesFromDTO(in.Messages), in.Context)
	if err != nil {
		log.Warn("Chat reply failed to start", zap.Error(err))
		_ = sess.send(wsOutbound{Type: wsTypeError, Error: socketErrorMessage(err)})
		_ = sess.send(wsOutbound{Type: wsTypeCompletion, Status: wsStatusError})
		return
	}
	defer ts.Close()

	for {
		chunk, ok := ts.Next()
		if !ok {
			break
		}
		if err := sess.send(wsOutbound{Chunk: chunk}); err != nil {
			log.Debug("Chat socket write failed", zap.Error(err))
			return
		}
	}

	status := wsStatusFinished
	switch {
	case ctx.Err() != nil:
		status = wsStatusStopped
	case ts.Err() != nil:
		status = wsStatusError
		log.Error("Chat stream ended with error", zap.Error(ts.Err()))
	}
	_ = sess.send(wsOutbound{
		Type:             wsTypeCompletion,
		Status:           status,
		CompletionTokens: usage.CompletionTokens(),
	})
}

// socketErrorMessage maps a domain error to the text sent in an error frame.
func socketErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrBudgetExceeded):
		return msgBudgetExceeded
	case errors.Is(err, domain.ErrValidation):
		return err.Error()
	case errors.Is(err, domain.ErrUpstream):
		return msgUpstream
	}
	return msgInternal
}
