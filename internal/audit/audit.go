// Package audit records gate decisions and system events in an append-only
// trail. Events are written, listed, and summarized; nothing updates or
// deletes them.
package audit

import (
	"errors"
	"log/slog"

	"github.com/starford/tiwaz/internal/models"
)

// Sink consumes audit events. Implementations must treat events as
// append-only and must tolerate concurrent Append calls.
type Sink interface {
	Append(ev models.AuditEvent) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev models.AuditEvent) error

// Append implements Sink.
func (f SinkFunc) Append(ev models.AuditEvent) error { return f(ev) }

// Fanout forwards each event to every sink. All sinks see every event
// even when an earlier one fails; errors are joined.
type Fanout []Sink

// Append implements Sink.
func (f Fanout) Append(ev models.AuditEvent) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Append(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink mirrors events into the structured log.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink builds a sink writing to logger at info level.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{log: logger}
}

// Append implements Sink.
func (s *LogSink) Append(ev models.AuditEvent) error {
	s.log.Info("audit event",
		slog.String("event_type", ev.EventType),
		slog.String("actor", ev.Actor),
		slog.Any("details", ev.Details))
	return nil
}

var _ Sink = (Fanout)(nil)
var _ Sink = (*LogSink)(nil)
