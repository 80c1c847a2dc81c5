package chi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/lectern/internal/domain"
	"github.com/kailas-cloud/lectern/internal/domain/stream"
	"github.com/kailas-cloud/lectern/internal/metrics"
)

func dialChat(t *testing.T, serverURL string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(serverURL, "http") + "/api/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil) //nolint:bodyclose // upgrade response
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsOutbound {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var f wsOutbound
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

// readUntilCompletion collects chunk text and returns it with the completion frame.
func readUntilCompletion(t *testing.T, conn *websocket.Conn) (string, wsOutbound) {
	t.Helper()
	var b strings.Builder
	for {
		f := readFrame(t, conn)
		if f.Type == wsTypeCompletion {
			return b.String(), f
		}
		b.WriteString(f.Chunk)
	}
}

func TestChatSocket_StreamsReply(t *testing.T) {
	ts, m := newTestServer(t, RouterConfig{})
	m.replyFn = func(ctx context.Context, messages []domain.Message, transcript string) (*stream.TextStream, error) {
		if len(messages) != 1 || messages[0].Content != "what is a closure?" || transcript != "[1:05] closures" {
			t.Errorf("unexpected input %+v %q", messages, transcript)
		}
		return stream.New(ctx, func(_ context.Context, emit stream.EmitFunc) (stream.Usage, error) {
			for _, c := range []string{"A closure ", "captures scope."} {
				if err := emit(c); err != nil {
					return stream.Usage{}, err
				}
			}
			domain.UsageFromContext(ctx).AddCompletionTokens(12)
			return stream.Usage{CompletionTokens: 12}, nil
		}), nil
	}

	conn := dialChat(t, ts.URL)
	err := conn.WriteJSON(wsInbound{
		Type:     wsTypeMessage,
		Messages: []messageDTO{{Role: "user", Content: "what is a closure?"}},
		Context:  "[1:05] closures",
	})
	if err != nil {
		t.Fatal(err)
	}

	text, done := readUntilCompletion(t, conn)
	if text != "A closure captures scope." {
		t.Errorf("text = %q", text)
	}
	if done.Status != wsStatusFinished || done.CompletionTokens != 12 {
		t.Errorf("completion = %+v", done)
	}
}

func TestChatSocket_StopCancelsReply(t *testing.T) {
	ts, m := newTestServer(t, RouterConfig{})
	m.replyFn = func(ctx context.Context, _ []domain.Message, _ string) (*stream.TextStream, error) {
		return stream.New(ctx, func(ctx context.Context, emit stream.EmitFunc) (stream.Usage, error) {
			if err := emit("first"); err != nil {
				return stream.Usage{}, err
			}
			<-ctx.Done()
			return stream.Usage{}, ctx.Err()
		}), nil
	}

	conn := dialChat(t, ts.URL)
	if err := conn.WriteJSON(wsInbound{Messages: []messageDTO{{Role: "user", Content: "hi"}}}); err != nil {
		t.Fatal(err)
	}
	if f := readFrame(t, conn); f.Chunk != "first" {
		t.Fatalf("first frame = %+v", f)
	}
	if err := conn.WriteJSON(wsInbound{Type: wsTypeStop}); err != nil {
		t.Fatal(err)
	}

	var acked, stopped bool
	for range 2 {
		f := readFrame(t, conn)
		switch {
		case f.Type == wsTypeStop:
			acked = true
		case f.Type == wsTypeCompletion && f.Status == wsStatusStopped:
			stopped = true
		default:
			t.Errorf("unexpected frame %+v", f)
		}
	}
	if !acked || !stopped {
		t.Errorf("acked=%v stopped=%v", acked, stopped)
	}
}

func TestChatSocket_InvalidRequest(t *testing.T) {
	ts, m := newTestServer(t, RouterConfig{})
	m.replyFn = func(context.Context, []domain.Message, string) (*stream.TextStream, error) {
		return nil, fmt.Errorf("last message must come from the user: %w", domain.ErrInvalidInput)
	}

	conn := dialChat(t, ts.URL)
	if err := conn.WriteJSON(wsInbound{Messages: []messageDTO{{Role: "assistant", Content: "hi"}}}); err != nil {
		t.Fatal(err)
	}
	f := readFrame(t, conn)
	if f.Type != wsTypeError || !strings.Contains(f.Error, "last message must come from the user") {
		t.Errorf("error frame = %+v", f)
	}
	if f := readFrame(t, conn); f.Type != wsTypeCompletion || f.Status != wsStatusError {
		t.Errorf("completion frame = %+v", f)
	}
}

func TestChatSocket_MalformedFrameKeepsSession(t *testing.T) {
	ts, m := newTestServer(t, RouterConfig{})
	m.replyFn = func(ctx context.Context, _ []domain.Message, _ string) (*stream.TextStream, error) {
		return stream.FromChunks(ctx, "ok"), nil
	}

	conn := dialChat(t, ts.URL)
	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	if f := readFrame(t, conn); f.Type != wsTypeError {
		t.Fatalf("frame = %+v", f)
	}

	if err := conn.WriteJSON(wsInbound{Messages: []messageDTO{{Role: "user", Content: "hi"}}}); err != nil {
		t.Fatal(err)
	}
	text, done := readUntilCompletion(t, conn)
	if text != "ok" || done.Status != wsStatusFinished {
		t.Errorf("text=%q completion=%+v", text, done)
	}
}

func TestChatSocket_SessionGauge(t *testing.T) {
	ts, _ := newTestServer(t, RouterConfig{})
	// Sessions of earlier tests close asynchronously.
	waitGauge(t, 0)

	conn := dialChat(t, ts.URL)
	waitGauge(t, 1)

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	waitGauge(t, 0)
}

func waitGauge(t *testing.T, want float64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if testutil.ToFloat64(metrics.ChatSessionsActive) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("chat sessions gauge = %v, want %v", testutil.ToFloat64(metrics.ChatSessionsActive), want)
}

func TestWithAllowedOrigins(t *testing.T) {
	s := NewServer(Services{}, nil).WithAllowedOrigins([]string{"https://lectern.dev"})
	for origin, want := range map[string]bool{
		"https://lectern.dev": true,
		"https://evil.test":   false,
		"":                    true,
	} {
		r := httptest.NewRequest(http.MethodGet, "/api/chat/ws", http.NoBody)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		if got := s.upgrader.CheckOrigin(r); got != want {
			t.Errorf("origin %q: got %v, want %v", origin, got, want)
		}
	}
}
