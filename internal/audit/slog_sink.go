package audit

import (
	"context"
	"log/slog"
	"sync"
)

// SlogSink appends events to a structured logger. Event payloads never contain
// key material or record plaintext, so the full event is safe to log.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a SlogSink writing through the given logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

// Append logs the event at info level.
func (s *SlogSink) Append(ctx context.Context, event Event) error {
	attrs := []any{
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", string(event.Type)),
		slog.Time("occurred_at", event.OccurredAt),
	}
	if event.DeviceID != "" {
		attrs = append(attrs, slog.String("device_id", event.DeviceID))
	}
	if event.DocumentID != "" {
		attrs = append(attrs, slog.String("document_id", event.DocumentID))
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}
	for key, value := range event.Details {
		attrs = append(attrs, slog.String(key, value))
	}

	s.logger.InfoContext(ctx, "audit event", attrs...)
	return nil
}

// MemorySink buffers events in memory. Intended for tests and for embedders
// that drain events into their own pipeline.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Append stores the event.
func (s *MemorySink) Append(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of the appended events in order.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// EventsOfType returns the appended events matching the given type.
func (s *MemorySink) EventsOfType(eventType EventType) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, event := range s.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

// NoOpSink discards every event.
type NoOpSink struct{}

// Append discards the event.
func (NoOpSink) Append(ctx context.Context, event Event) error {
	return nil
}
