// Package pipeline wires interpret -> execute -> metrics into the one
// entry point shared by the CLI and the overlay command channel.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Dee-Codez/BrowseGEN/internal/executor"
	"github.com/Dee-Codez/BrowseGEN/internal/interpreter"
	"github.com/Dee-Codez/BrowseGEN/internal/metrics"
	"github.com/Dee-Codez/BrowseGEN/internal/plan"
)

// Interpreter resolves a command to a plan without ever failing.
type Interpreter interface {
	Interpret(ctx context.Context, command, url string, pc *interpreter.PageContext) plan.Plan
}

// Executor runs an executable plan against a session.
type Executor interface {
	Execute(ctx context.Context, sessionID string, p plan.Plan) (*executor.Result, error)
}

// ContextProvider supplies page context to enrich interpretation.
type ContextProvider interface {
	PageContext(ctx context.Context, sessionID string) (*interpreter.PageContext, error)
}

// Config toggles metric recording, mirroring the service's env knobs.
type Config struct {
	LogMetrics      bool
	LogErrorMetrics bool
}

// Request is one natural-language command run.
type Request struct {
	Command    string `json:"command"`
	URL        string `json:"url,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
	UseContext bool   `json:"useContext,omitempty"`
}

// Response carries the interpretation and, when the plan was
// executable, the execution result. On a multi-step failure Result
// still holds the partial results of the steps that completed.
type Response struct {
	Interpretation plan.Plan                `json:"interpretation"`
	Result         *executor.Result         `json:"result,omitempty"`
	Success        bool                     `json:"success"`
	Context        *interpreter.PageContext `json:"context,omitempty"`
}

// Runner is the top-level command pipeline.
type Runner struct {
	cfg      Config
	interp   Interpreter
	exec     Executor
	contexts ContextProvider
	sink     metrics.Sink
	logger   zerolog.Logger
}

func NewRunner(cfg Config, interp Interpreter, exec Executor, contexts ContextProvider, sink metrics.Sink, logger zerolog.Logger) *Runner {
	if sink == nil {
		sink = metrics.Nop{}
	}
	return &Runner{
		cfg:      cfg,
		interp:   interp,
		exec:     exec,
		contexts: contexts,
		sink:     sink,
		logger:   logger,
	}
}

// Run interprets the command and, when executable, runs it. Plans the
// interpreter marked non-executable never reach the executor.
func (r *Runner) Run(ctx context.Context, req Request) (*Response, error) {
	if req.Command == "" {
		return nil, errors.New("command is required")
	}

	var pc *interpreter.PageContext
	if req.UseContext && req.SessionID != "" && r.contexts != nil {
		got, err := r.contexts.PageContext(ctx, req.SessionID)
		if err != nil {
			// Context only enriches prompts; losing it is not fatal.
			r.logger.Warn().Err(err).Str("session", req.SessionID).Msg("could not retrieve page context")
		} else {
			pc = got
		}
	}

	p := r.interp.Interpret(ctx, req.Command, req.URL, pc)
	resp := &Response{Interpretation: p, Context: pc}

	if p.Executable {
		res, err := r.exec.Execute(ctx, req.SessionID, p)
		if err != nil {
			resp.Result = res
			r.record(ctx, req, &p, false, err)
			return resp, err
		}
		resp.Result = res
	}

	resp.Success = true
	r.record(ctx, req, &p, true, nil)
	return resp, nil
}

// record ships a metrics entry. Sink failures are logged and
// swallowed: they must never mask the command's own outcome.
func (r *Runner) record(ctx context.Context, req Request, p *plan.Plan, success bool, runErr error) {
	if !r.cfg.LogMetrics {
		return
	}
	if !success && !r.cfg.LogErrorMetrics {
		return
	}
	entry := metrics.Entry{
		Command:        req.Command,
		URL:            req.URL,
		SessionID:      req.SessionID,
		Interpretation: p,
		Success:        success,
		Timestamp:      time.Now().UTC(),
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}
	if err := r.sink.Record(ctx, entry); err != nil {
		r.logger.Warn().Err(err).Msg("metrics sink failed")
	}
}
