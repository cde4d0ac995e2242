package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Counter event names. Events carrying one of these names increment the
// matching per-run counter when emitted.
const (
	EventProcessed = "processed"
	EventBooked    = "booked"
	EventSuggested = "suggested"
	EventDrafted   = "drafted"
)

// Counters tracks per-run event totals across all processed emails.
type Counters struct {
	Processed int `json:"processed"`
	Booked    int `json:"booked"`
	Suggested int `json:"suggested"`
	Drafted   int `json:"drafted"`
}

// bump increments the counter matching the event name, if any.
func (c *Counters) bump(event string) {
	switch event {
	case EventProcessed:
		c.Processed++
	case EventBooked:
		c.Booked++
	case EventSuggested:
		c.Suggested++
	case EventDrafted:
		c.Drafted++
	}
}

// group renders the counters as structured attributes.
func (c *Counters) group() slog.Attr {
	return slog.Group("counters",
		slog.Int("processed", c.Processed),
		slog.Int("booked", c.Booked),
		slog.Int("suggested", c.Suggested),
		slog.Int("drafted", c.Drafted),
	)
}

// EventLogger emits structured JSON log events. Each event carries the node
// that produced it, a node-scoped message id ("node-seq"), the per-run
// counters and a details group. Not safe for concurrent use; the pipeline is
// single-threaded.
type EventLogger struct {
	log     *slog.Logger
	mainSeq int
}

// New creates an EventLogger writing JSON lines to w.
func New(w io.Writer) *EventLogger {
	return &EventLogger{log: slog.New(slog.NewJSONHandler(w, nil))}
}

// NewStdout creates an EventLogger writing to standard output.
func NewStdout() *EventLogger {
	return New(os.Stdout)
}

// Event emits an info-level event for a workflow node, incrementing the
// sequence number and any matching counter.
func (l *EventLogger) Event(node string, seq *int, counters *Counters, event string, details ...slog.Attr) {
	l.emit(slog.LevelInfo, node, seq, counters, event, details...)
}

// Error emits an error-level event for a workflow node.
func (l *EventLogger) Error(node string, seq *int, counters *Counters, event string, details ...slog.Attr) {
	l.emit(slog.LevelError, node, seq, counters, event, details...)
}

// Warn emits a warning-level event for a workflow node.
func (l *EventLogger) Warn(node string, seq *int, counters *Counters, event string, details ...slog.Attr) {
	l.emit(slog.LevelWarn, node, seq, counters, event, details...)
}

func (l *EventLogger) emit(level slog.Level, node string, seq *int, counters *Counters, event string, details ...slog.Attr) {
	*seq++
	counters.bump(event)

	attrs := []any{
		slog.String("msg_id", fmt.Sprintf("%s-%d", node, *seq)),
		slog.String("node", node),
		counters.group(),
	}
	if len(details) > 0 {
		group := make([]any, 0, len(details))
		for _, d := range details {
			group = append(group, d)
		}
		attrs = append(attrs, slog.Group("details", group...))
	}
	l.log.Log(nil, level, event, attrs...)
}

// Main emits a run-level event outside any per-email context. It keeps its
// own sequence and carries no counters.
func (l *EventLogger) Main(event string, details ...slog.Attr) {
	l.mainLevel(slog.LevelInfo, event, details...)
}

// MainError emits an error-level run-level event.
func (l *EventLogger) MainError(event string, details ...slog.Attr) {
	l.mainLevel(slog.LevelError, event, details...)
}

func (l *EventLogger) mainLevel(level slog.Level, event string, details ...slog.Attr) {
	l.mainSeq++

	attrs := []any{
		slog.String("msg_id", fmt.Sprintf("main-%d", l.mainSeq)),
		slog.String("node", "main"),
	}
	if len(details) > 0 {
		group := make([]any, 0, len(details))
		for _, d := range details {
			group = append(group, d)
		}
		attrs = append(attrs, slog.Group("details", group...))
	}
	l.log.Log(nil, level, event, attrs...)
}
