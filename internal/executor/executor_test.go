package executor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dee-Codez/BrowseGEN/internal/events"
	"github.com/Dee-Codez/BrowseGEN/internal/plan"
	"github.com/Dee-Codez/BrowseGEN/internal/session"
)

type captureSub struct {
	mu   sync.Mutex
	recs []events.Record
}

func (c *captureSub) Send(payload []byte) error {
	var rec events.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return err
	}
	c.mu.Lock()
	c.recs = append(c.recs, rec)
	c.mu.Unlock()
	return nil
}

func (c *captureSub) types() []events.Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]events.Type, len(c.recs))
	for i, rec := range c.recs {
		out[i] = rec.Type
	}
	return out
}

func testExecutor(run stepFunc) (*Executor, *events.Broadcaster) {
	b := events.NewBroadcaster(zerolog.Nop())
	e := New(session.NewRegistry(zerolog.Nop()), b, zerolog.Nop())
	e.settleDelay = time.Millisecond
	if run != nil {
		e.runStep = run
	}
	return e, b
}

func TestExecuteRejectsNonExecutablePlan(t *testing.T) {
	e, _ := testExecutor(nil)

	_, err := e.Execute(context.Background(), "s1", plan.Plan{
		Action:     plan.ActionUnknown,
		Executable: false,
	})

	assert.ErrorIs(t, err, ErrNotExecutable)
}

func TestExecuteRejectsInvalidPlan(t *testing.T) {
	e, _ := testExecutor(nil)

	_, err := e.Execute(context.Background(), "s1", plan.Plan{
		Action:     "teleport",
		Executable: true,
		Confidence: 0.9,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid plan")
}

func TestExecuteUnknownSession(t *testing.T) {
	e, b := testExecutor(nil)
	sub := &captureSub{}
	b.Subscribe("ghost", sub)

	_, err := e.Execute(context.Background(), "ghost", plan.Plan{
		Action:     plan.ActionClick,
		Target:     "ok",
		Executable: true,
		Confidence: 0.9,
	})

	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	require.Equal(t, []events.Type{events.TypeError}, sub.types())
}

func TestExecuteStepsRunInOrder(t *testing.T) {
	var order []plan.Action
	run := func(_ context.Context, _ playwright.Page, p plan.Plan) (Result, error) {
		order = append(order, p.Action)
		return Result{Action: p.Action, Success: true}, nil
	}
	e, b := testExecutor(run)
	sub := &captureSub{}
	b.Subscribe("s1", sub)

	steps := []plan.Plan{
		{Action: plan.ActionNavigate, Value: "https://example.com", Executable: true, Confidence: 0.9},
		{Action: plan.ActionFill, Target: "search", Value: "laptops", Executable: true, Confidence: 0.9},
		{Action: plan.ActionPress, Value: "Enter", Executable: true, Confidence: 0.9},
	}
	res, err := e.executeSteps(context.Background(), "s1", nil, steps)

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Len(t, res.Steps, 3)
	assert.Equal(t, []plan.Action{plan.ActionNavigate, plan.ActionFill, plan.ActionPress}, order)
	assert.Equal(t, []events.Type{
		events.TypeAction, events.TypeAction, events.TypeAction, events.TypeComplete,
	}, sub.types())
}

func TestExecuteStepsAbortOnFirstFailure(t *testing.T) {
	var calls int
	run := func(_ context.Context, _ playwright.Page, p plan.Plan) (Result, error) {
		calls++
		if p.Action == plan.ActionClick {
			return Result{}, errors.New("element not found")
		}
		return Result{Action: p.Action, Success: true}, nil
	}
	e, b := testExecutor(run)
	sub := &captureSub{}
	b.Subscribe("s1", sub)

	steps := []plan.Plan{
		{Action: plan.ActionNavigate, Value: "https://example.com", Executable: true, Confidence: 0.9},
		{Action: plan.ActionClick, Target: "missing", Executable: true, Confidence: 0.9},
		{Action: plan.ActionFill, Target: "never", Value: "runs", Executable: true, Confidence: 0.9},
	}
	res, err := e.executeSteps(context.Background(), "s1", nil, steps)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 2/3")
	assert.Contains(t, err.Error(), "element not found")
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, res.FailedStep)
	assert.False(t, res.Success)
	// Partial results for the steps that did complete.
	require.Len(t, res.Steps, 1)
	assert.Equal(t, plan.ActionNavigate, res.Steps[0].Action)
	assert.Equal(t, []events.Type{
		events.TypeAction, events.TypeAction, events.TypeError,
	}, sub.types())
}

func TestExecuteStepsStopOnCancelledContext(t *testing.T) {
	run := func(ctx context.Context, _ playwright.Page, p plan.Plan) (Result, error) {
		return Result{Action: p.Action, Success: true}, nil
	}
	e, _ := testExecutor(run)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	steps := []plan.Plan{{Action: plan.ActionWait, Executable: true, Confidence: 0.9}}
	_, err := e.executeSteps(ctx, "s1", nil, steps)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecuteStepsRejectNonExecutableStep(t *testing.T) {
	var calls int
	run := func(_ context.Context, _ playwright.Page, p plan.Plan) (Result, error) {
		calls++
		return Result{Action: p.Action, Success: true}, nil
	}
	e, b := testExecutor(run)
	sub := &captureSub{}
	b.Subscribe("s1", sub)

	steps := []plan.Plan{
		{Action: plan.ActionNavigate, Value: "https://example.com", Executable: true, Confidence: 0.9},
		// The flag is absent, so the zero value must block the step.
		{Action: plan.ActionClick, Target: "maybe", Confidence: 0.3},
		{Action: plan.ActionFill, Target: "never", Value: "runs", Executable: true, Confidence: 0.9},
	}
	res, err := e.executeSteps(context.Background(), "s1", nil, steps)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotExecutable)
	assert.Contains(t, err.Error(), "step 2/3")
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, res.FailedStep)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, []events.Type{events.TypeAction, events.TypeError}, sub.types())
}

func TestExecuteOnePublishesScreenshotEvent(t *testing.T) {
	run := func(_ context.Context, _ playwright.Page, p plan.Plan) (Result, error) {
		return Result{Action: p.Action, Success: true, Screenshot: "screenshots/shot-1.png"}, nil
	}
	e, b := testExecutor(run)
	sub := &captureSub{}
	b.Subscribe("s1", sub)

	res, err := e.executeOne(context.Background(), "s1", nil, plan.Plan{
		Action:     plan.ActionScreenshot,
		Confidence: 0.9,
	}, 1, 1)

	require.NoError(t, err)
	assert.Equal(t, "screenshots/shot-1.png", res.Screenshot)
	assert.Equal(t, []events.Type{events.TypeAction, events.TypeScreenshot}, sub.types())
}

func TestPerformActionFieldValidation(t *testing.T) {
	e, _ := testExecutor(nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		plan    plan.Plan
		wantErr string
	}{
		{"navigate without url", plan.Plan{Action: plan.ActionNavigate}, "missing destination url"},
		{"click without target", plan.Plan{Action: plan.ActionClick}, "neither selector nor target"},
		{"fill without value", plan.Plan{Action: plan.ActionFill, Target: "name"}, "missing value"},
		{"fill without target", plan.Plan{Action: plan.ActionFill, Value: "John"}, "neither selector nor target"},
		{"extract without selector", plan.Plan{Action: plan.ActionExtract}, "missing selector"},
		{"select without fields", plan.Plan{Action: plan.ActionSelect}, "selector and value are both required"},
		{"hover without target", plan.Plan{Action: plan.ActionHover}, "neither selector nor target"},
		{"unsupported action", plan.Plan{Action: "unknown"}, "not supported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.performAction(ctx, nil, tt.plan)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPerformActionChecksContextFirst(t *testing.T) {
	e, _ := testExecutor(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.performAction(ctx, nil, plan.Plan{Action: plan.ActionNavigate, Value: "https://example.com"})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestHandleWait(t *testing.T) {
	e, _ := testExecutor(nil)

	res, err := e.handleWait(context.Background(), plan.Plan{Action: plan.ActionWait, Value: "20"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 20, res.WaitedMs)

	// Non-numeric and empty values use the default.
	res, err = e.handleWait(context.Background(), plan.Plan{Action: plan.ActionWait, Value: "soon"})
	require.NoError(t, err)
	assert.Equal(t, defaultWaitMs, res.WaitedMs)
}

func TestHandleWaitCancellable(t *testing.T) {
	e, _ := testExecutor(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := e.handleWait(ctx, plan.Plan{Action: plan.ActionWait, Value: "30000"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}
