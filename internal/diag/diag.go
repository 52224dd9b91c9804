// Package diag exposes the application's structured log records as a
// subscribable event stream, so a collaborator (e.g. a debug panel)
// can observe refresh cycles without being part of the core contract.
package diag

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Event is one diagnostic record delivered to subscribers.
type Event struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   map[string]string
}

// Stream fans diagnostic events out to any number of subscribers.
// Slow subscribers drop events rather than blocking the producer.
type Stream struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
}

// NewStream creates an empty diagnostic stream.
func NewStream() *Stream {
	return &Stream{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener. The returned cancel function must be
// called to release the subscription.
func (s *Stream) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 64
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan Event, buffer)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// publish delivers an event to every subscriber without blocking.
func (s *Stream) publish(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
			// Drop for slow subscribers to keep the refresh actor moving.
		}
	}
}

// Handler returns a slog.Handler that mirrors every record onto the
// stream before delegating to next.
func (s *Stream) Handler(next slog.Handler) slog.Handler {
	if next == nil {
		next = slog.NewTextHandler(io.Discard, nil)
	}
	return &streamHandler{next: next, stream: s}
}

// Logger is a convenience wrapper producing a logger whose records
// reach both the stream and the given handler.
func (s *Stream) Logger(next slog.Handler) *slog.Logger {
	return slog.New(s.Handler(next))
}

type streamHandler struct {
	next   slog.Handler
	stream *Stream
	attrs  []slog.Attr
}

func (h *streamHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *streamHandler) Handle(ctx context.Context, record slog.Record) error {
	attrs := make(map[string]string, record.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.String()
	}
	record.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.String()
		return true
	})

	h.stream.publish(Event{
		Time:    record.Time,
		Level:   record.Level,
		Message: record.Message,
		Attrs:   attrs,
	})

	return h.next.Handle(ctx, record)
}

func (h *streamHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &streamHandler{next: h.next.WithAttrs(attrs), stream: h.stream, attrs: merged}
}

func (h *streamHandler) WithGroup(name string) slog.Handler {
	return &streamHandler{next: h.next.WithGroup(name), stream: h.stream, attrs: h.attrs}
}
