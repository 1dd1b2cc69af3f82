// Package metrics defines the write-only sink every top-level run
// reports into. Durable storage lives outside this module; the
// in-repo sink just logs. Sink failures must never abort the run that
// triggered them -- the pipeline enforces that.
package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Dee-Codez/BrowseGEN/internal/plan"
)

// Entry is one command-run record.
type Entry struct {
	Command        string     `json:"command"`
	URL            string     `json:"url,omitempty"`
	SessionID      string     `json:"sessionId,omitempty"`
	Interpretation *plan.Plan `json:"interpretation,omitempty"`
	Success        bool       `json:"success"`
	Error          string     `json:"error,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
}

// Sink receives entries after every top-level run.
type Sink interface {
	Record(ctx context.Context, e Entry) error
}

// LogSink writes entries to the structured log.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(_ context.Context, e Entry) error {
	evt := s.logger.Info().
		Str("command", e.Command).
		Bool("success", e.Success).
		Time("timestamp", e.Timestamp)
	if e.URL != "" {
		evt = evt.Str("url", e.URL)
	}
	if e.SessionID != "" {
		evt = evt.Str("session", e.SessionID)
	}
	if e.Interpretation != nil {
		evt = evt.Str("action", string(e.Interpretation.Action))
	}
	if e.Error != "" {
		evt = evt.Str("error", e.Error)
	}
	evt.Msg("command metric")
	return nil
}

// Nop discards everything. Useful in tests and when metric logging is
// disabled.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }
