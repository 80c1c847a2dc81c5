// Package stream provides a single-producer text chunk sequence with explicit
// end-of-stream and error-terminal states. The consumer may stop early.
package stream

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// EmitFunc delivers one chunk to the consumer. It blocks until the chunk is
// taken or the stream is closed, in which case it returns the context error.
type EmitFunc func(chunk string) error

// Usage is the token accounting reported by a producer once it finishes.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Total returns prompt plus completion tokens.
func (u Usage) Total() int { return u.PromptTokens + u.CompletionTokens }

// ProduceFunc writes chunks through emit and returns nil on a clean end.
// The returned Usage is kept even when err is non-nil.
type ProduceFunc func(ctx context.Context, emit EmitFunc) (Usage, error)

// TextStream is a pull-based sequence of text chunks.
// Next and Err are for a single consumer goroutine; Close is safe from any goroutine.
type TextStream struct {
	ch     chan string
	cancel context.CancelFunc
	closed atomic.Bool
	once   sync.Once
	err    error
	usage  Usage
}

// New starts produce in its own goroutine and returns the consuming side.
func New(ctx context.Context, produce ProduceFunc) *TextStream {
	ctx, cancel := context.WithCancel(ctx)
	s := &TextStream{ch: make(chan string), cancel: cancel}

	emit := func(chunk string) error {
		if chunk == "" {
			return nil
		}
		select {
		case s.ch <- chunk:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	go func() {
		defer close(s.ch)
		defer cancel()
		usage, err := produce(ctx, emit)
		s.usage = usage
		if err != nil && !s.closed.Load() {
			s.err = err
		}
	}()
	return s
}

// FromChunks returns a stream that yields chunks and ends cleanly.
func FromChunks(ctx context.Context, chunks ...string) *TextStream {
	return New(ctx, func(_ context.Context, emit EmitFunc) (Usage, error) {
		for _, c := range chunks {
			if err := emit(c); err != nil {
				return Usage{}, err
			}
		}
		return Usage{}, nil
	})
}

// Failed returns a stream that ends with err before producing anything.
func Failed(ctx context.Context, err error) *TextStream {
	return New(ctx, func(context.Context, EmitFunc) (Usage, error) { return Usage{}, err })
}

// Next blocks for the next chunk. ok is false once the stream has ended;
// Err then reports whether it ended with an error.
func (s *TextStream) Next() (chunk string, ok bool) {
	chunk, ok = <-s.ch
	return chunk, ok
}

// Err returns the terminal error. Only meaningful after Next returned false.
func (s *TextStream) Err() error {
	return s.err
}

// Usage returns the producer's token accounting. Only meaningful after Next returned false.
func (s *TextStream) Usage() Usage {
	return s.usage
}

// Close stops the producer and waits for it to finish.
// A stream closed early ends without error.
func (s *TextStream) Close() {
	s.once.Do(func() {
		s.closed.Store(true)
		s.cancel()
		for range s.ch {
		}
	})
}

// Collect drains the stream into a single string.
func Collect(s *TextStream) (string, error) {
	defer s.Close()
	var b strings.Builder
	for {
		chunk, ok := s.Next()
		if !ok {
			break
		}
		b.WriteString(chunk)
	}
	return b.String(), s.Err()
}
