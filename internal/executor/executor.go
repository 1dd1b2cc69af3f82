// Package executor runs action plans against live browser pages. It
// resolves targets through ordered locator strategies, sequences
// multi-step plans, and reports progress through the event
// broadcaster.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"

	"github.com/Dee-Codez/BrowseGEN/internal/events"
	"github.com/Dee-Codez/BrowseGEN/internal/plan"
	"github.com/Dee-Codez/BrowseGEN/internal/session"
)

// ErrNotExecutable guards the interpreter/executor boundary: plans the
// interpreter marked non-executable must never run.
var ErrNotExecutable = errors.New("plan is not executable")

const defaultSettleDelay = 500 * time.Millisecond

// Result is what one execution (leaf or multi-step) produces. Only the
// fields relevant to the action are populated.
type Result struct {
	Action     plan.Action `json:"action,omitempty"`
	Success    bool        `json:"success"`
	URL        string      `json:"url,omitempty"`
	Selector   string      `json:"selector,omitempty"`
	Value      string      `json:"value,omitempty"`
	Data       []string    `json:"data,omitempty"`
	Count      int         `json:"count,omitempty"`
	Direction  string      `json:"direction,omitempty"`
	Key        string      `json:"key,omitempty"`
	WaitedMs   int         `json:"waitedMs,omitempty"`
	Screenshot string      `json:"screenshot,omitempty"`
	Steps      []Result    `json:"steps,omitempty"`
	FailedStep int         `json:"failedStep,omitempty"`
}

// stepFunc executes one leaf plan against a page. Swappable so the
// sequencing machinery is testable without a browser.
type stepFunc func(ctx context.Context, page playwright.Page, p plan.Plan) (Result, error)

// Executor drives plans against sessions.
type Executor struct {
	registry      *session.Registry
	events        *events.Broadcaster
	logger        zerolog.Logger
	screenshotDir string
	settleDelay   time.Duration
	runStep       stepFunc
}

func New(registry *session.Registry, broadcaster *events.Broadcaster, logger zerolog.Logger) *Executor {
	e := &Executor{
		registry:      registry,
		events:        broadcaster,
		logger:        logger,
		screenshotDir: "screenshots",
		settleDelay:   defaultSettleDelay,
	}
	e.runStep = e.performAction
	return e
}

// Execute runs the plan against the session's page, or against a
// throwaway context when sessionID is empty. Throwaway contexts are
// closed on every path. For multi-step plans a failure aborts the
// remaining steps; the returned Result still carries the results of
// the steps that completed.
func (e *Executor) Execute(ctx context.Context, sessionID string, p plan.Plan) (*Result, error) {
	p = p.Normalize()
	if !p.Executable {
		return nil, ErrNotExecutable
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}

	var page playwright.Page
	if sessionID != "" {
		sess, ok := e.registry.Get(sessionID)
		if !ok {
			err := fmt.Errorf("%w: %s", session.ErrSessionNotFound, sessionID)
			e.events.PublishError(sessionID, err.Error())
			return nil, err
		}
		page = sess.Page
	} else {
		sess, cleanup, err := e.registry.NewScratchSession(ctx)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		page = sess.Page
	}

	if p.IsMultiStep() {
		return e.executeSteps(ctx, sessionID, page, p.Steps)
	}

	res, err := e.executeOne(ctx, sessionID, page, p, 1, 1)
	if err != nil {
		return nil, err
	}
	e.events.PublishComplete(sessionID, res)
	return &res, nil
}

// executeSteps runs steps strictly in array order with a settle delay
// between them. Step i+1 never starts before step i's handler has
// returned; the first failure halts everything after it.
func (e *Executor) executeSteps(ctx context.Context, sessionID string, page playwright.Page, steps []plan.Plan) (*Result, error) {
	agg := &Result{}
	total := len(steps)
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return agg, err
		}
		// The top-level executable gate does not vouch for children;
		// each step carries its own flag.
		if !step.Executable {
			agg.FailedStep = i + 1
			err := fmt.Errorf("step %d/%d (%s): %w", i+1, total, step.Action, ErrNotExecutable)
			e.events.PublishError(sessionID, err.Error())
			return agg, err
		}

		res, err := e.executeOne(ctx, sessionID, page, step, i+1, total)
		if err != nil {
			agg.FailedStep = i + 1
			return agg, fmt.Errorf("step %d/%d (%s): %w", i+1, total, step.Action, err)
		}
		agg.Steps = append(agg.Steps, res)

		if i < total-1 {
			select {
			case <-ctx.Done():
				return agg, ctx.Err()
			case <-time.After(e.settleDelay):
			}
		}
	}
	agg.Success = true
	e.events.PublishComplete(sessionID, agg)
	return agg, nil
}

func (e *Executor) executeOne(ctx context.Context, sessionID string, page playwright.Page, p plan.Plan, step, total int) (Result, error) {
	e.events.PublishAction(sessionID, map[string]any{
		"action": p.Action,
		"target": p.Target,
		"value":  p.Value,
		"step":   step,
		"of":     total,
	})
	e.logger.Info().
		Str("session", sessionID).
		Str("action", string(p.Action)).
		Str("target", p.Target).
		Int("step", step).
		Int("of", total).
		Msg("executing action")

	res, err := e.runStep(ctx, page, p)
	if err != nil {
		e.events.PublishError(sessionID, err.Error())
		return Result{}, err
	}
	if res.Screenshot != "" {
		e.events.PublishScreenshot(sessionID, res.Screenshot)
	}
	return res, nil
}
