package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event is one audit record. Subject is the stable user id as a string; it
// is never the email or password.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Subject   string            `json:"subject,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink is where the dispatcher delivers events. Emit runs on the dispatcher
// goroutine, one event at a time.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(ctx context.Context, event Event)

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

// NoOpSink discards every event.
type NoOpSink struct{}

// Emit does nothing.
func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink hands events to a reader through a buffered channel. Emit
// waits for room unless ctx ends first.
type ChannelSink struct {
	out chan Event
}

// NewChannelSink buffers up to capacity events; values below 1 mean 1.
func NewChannelSink(capacity int) *ChannelSink {
	return &ChannelSink{out: make(chan Event, max(capacity, 1))}
}

// Emit blocks until the buffer has room or ctx is done.
func (c *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case <-ctx.Done():
	case c.out <- event:
	}
}

// Events is the channel readers drain.
func (c *ChannelSink) Events() <-chan Event { return c.out }

// JSONWriterSink encodes each event as a single JSON line on w.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONWriterSink writes to w. A nil w yields a sink that discards.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		return &JSONWriterSink{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONWriterSink{enc: enc}
}

// Emit writes one JSON object per line.
func (j *JSONWriterSink) Emit(_ context.Context, event Event) {
	if j == nil || j.enc == nil {
		return
	}
	j.mu.Lock()
	// Encoder terminates every value with a newline.
	_ = j.enc.Encode(event)
	j.mu.Unlock()
}

// LoggerSink writes events through zerolog: info for successes, warn for
// failures.
type LoggerSink struct {
	log zerolog.Logger
}

// NewLoggerSink tags every line with component=audit.
func NewLoggerSink(logger zerolog.Logger) *LoggerSink {
	return &LoggerSink{log: logger.With().Str("component", "audit").Logger()}
}

// Emit logs successes at info level and failures at warn.
func (l *LoggerSink) Emit(_ context.Context, event Event) {
	if l == nil {
		return
	}

	level := zerolog.InfoLevel
	if !event.Success {
		level = zerolog.WarnLevel
	}

	entry := l.log.WithLevel(level).
		Time("at", event.Timestamp).
		Str("event_type", event.EventType).
		Bool("success", event.Success)

	for _, f := range [...]struct{ key, val string }{
		{"subject", event.Subject},
		{"request_id", event.RequestID},
		{"ip", event.IP},
		{"error", event.Error},
	} {
		if f.val != "" {
			entry = entry.Str(f.key, f.val)
		}
	}

	if len(event.Metadata) != 0 {
		meta := zerolog.Dict()
		for k, v := range event.Metadata {
			meta.Str(k, v)
		}
		entry = entry.Dict("metadata", meta)
	}

	entry.Msg("audit")
}
