package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/Dee-Codez/BrowseGEN/internal/plan"
	"github.com/Dee-Codez/BrowseGEN/internal/session"
)

const (
	actionTimeout   = 5 * time.Second
	submitTimeout   = 2 * time.Second
	defaultWaitMs   = 1000
	defaultPressKey = "Enter"
)

// performAction dispatches one leaf plan to its handler. Handlers
// validate their required fields before touching the page.
func (e *Executor) performAction(ctx context.Context, page playwright.Page, p plan.Plan) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	switch p.Action {
	case plan.ActionNavigate:
		return e.handleNavigate(page, p)
	case plan.ActionClick:
		return e.handleClick(page, p)
	case plan.ActionFill:
		return e.handleFill(page, p)
	case plan.ActionExtract:
		return e.handleExtract(page, p)
	case plan.ActionScroll:
		return e.handleScroll(page, p)
	case plan.ActionSelect:
		return e.handleSelect(page, p)
	case plan.ActionHover:
		return e.handleHover(page, p)
	case plan.ActionPress:
		return e.handlePress(page, p)
	case plan.ActionWait:
		return e.handleWait(ctx, p)
	case plan.ActionScreenshot:
		return e.handleScreenshot(page, p)
	default:
		return Result{}, fmt.Errorf("action %q not supported", p.Action)
	}
}

func (e *Executor) handleNavigate(page playwright.Page, p plan.Plan) (Result, error) {
	if strings.TrimSpace(p.Value) == "" {
		return Result{}, fmt.Errorf("navigate: missing destination url")
	}
	url := session.NormalizeURL(p.Value)
	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	}); err != nil {
		return Result{}, fmt.Errorf("navigate to %s: %w", url, err)
	}
	return Result{Action: p.Action, Success: true, URL: page.URL()}, nil
}

func (e *Executor) handleClick(page playwright.Page, p plan.Plan) (Result, error) {
	sel := p.Selector
	if sel == "" {
		if strings.TrimSpace(p.Target) == "" {
			return Result{}, fmt.Errorf("click: neither selector nor target given")
		}
		resolved, err := resolve(pageCount(page), p.Target, clickStrategies(p.Target))
		if err != nil {
			return Result{}, fmt.Errorf("click: %w", err)
		}
		sel = resolved
	}

	e.highlight(page, sel)
	if err := page.Locator(sel).First().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(actionTimeout.Milliseconds())),
	}); err != nil {
		return Result{}, fmt.Errorf("click %s: %w", sel, err)
	}
	return Result{Action: p.Action, Success: true, Selector: sel}, nil
}

func (e *Executor) handleFill(page playwright.Page, p plan.Plan) (Result, error) {
	if p.Value == "" {
		return Result{}, fmt.Errorf("fill: missing value")
	}

	search := isSearchIntent(p.Target, p.Selector)
	sel := p.Selector
	if sel == "" {
		if strings.TrimSpace(p.Target) == "" {
			return Result{}, fmt.Errorf("fill: neither selector nor target given")
		}
		var resolved string
		var err error
		if search {
			// Search boxes get their own heuristics before the generic
			// fill path.
			resolved, err = resolve(pageCount(page), p.Target, searchStrategies())
			if err != nil {
				resolved, err = resolve(pageCount(page), p.Target, fillStrategies(p.Target))
			}
		} else {
			resolved, err = resolve(pageCount(page), p.Target, fillStrategies(p.Target))
		}
		if err != nil {
			return Result{}, fmt.Errorf("fill: %w", err)
		}
		sel = resolved
	}

	e.highlight(page, sel)
	if err := page.Locator(sel).First().Fill(p.Value, playwright.LocatorFillOptions{
		Timeout: playwright.Float(float64(actionTimeout.Milliseconds())),
	}); err != nil {
		return Result{}, fmt.Errorf("fill %s: %w", sel, err)
	}

	if search {
		e.submitSearch(page, sel)
	}
	return Result{Action: p.Action, Success: true, Selector: sel, Value: p.Value}, nil
}

// submitSearch tries to submit a just-filled search box by pressing
// Enter on a few candidate selectors. Submission failure is non-fatal:
// the fill itself already succeeded.
func (e *Executor) submitSearch(page playwright.Page, filledSelector string) {
	for _, sel := range submitCandidates(filledSelector) {
		err := page.Locator(sel).First().Press("Enter", playwright.LocatorPressOptions{
			Timeout: playwright.Float(float64(submitTimeout.Milliseconds())),
		})
		if err == nil {
			return
		}
		e.logger.Debug().Err(err).Str("selector", sel).Msg("search submit candidate failed")
	}
}

func (e *Executor) handleExtract(page playwright.Page, p plan.Plan) (Result, error) {
	// Extraction takes the selector verbatim: free-text resolution is
	// too lossy when the caller wants structured data back.
	if p.Selector == "" {
		return Result{}, fmt.Errorf("extract: missing selector")
	}
	texts, err := page.Locator(p.Selector).AllInnerTexts()
	if err != nil {
		return Result{}, fmt.Errorf("extract %s: %w", p.Selector, err)
	}
	return Result{Action: p.Action, Success: true, Selector: p.Selector, Data: texts, Count: len(texts)}, nil
}

const scrollScript = `(dir) => {
	switch (dir) {
	case "up":
	case "top":
		window.scrollTo(0, 0);
		break;
	case "page":
		window.scrollBy(0, window.innerHeight);
		break;
	default:
		window.scrollTo(0, document.body.scrollHeight);
	}
}`

func (e *Executor) handleScroll(page playwright.Page, p plan.Plan) (Result, error) {
	dir := strings.ToLower(strings.TrimSpace(p.Value))
	switch dir {
	case "up", "top":
		dir = "up"
	case "page":
	default:
		dir = "down"
	}
	// Best-effort: a scroll that goes nowhere is still a success.
	if _, err := page.Evaluate(scrollScript, dir); err != nil {
		e.logger.Debug().Err(err).Msg("scroll evaluate failed")
	}
	return Result{Action: p.Action, Success: true, Direction: dir}, nil
}

func (e *Executor) handleSelect(page playwright.Page, p plan.Plan) (Result, error) {
	if p.Selector == "" || p.Value == "" {
		return Result{}, fmt.Errorf("select: selector and value are both required")
	}
	values := []string{p.Value}
	if _, err := page.Locator(p.Selector).First().SelectOption(playwright.SelectOptionValues{
		Values: &values,
	}); err != nil {
		return Result{}, fmt.Errorf("select %s: %w", p.Selector, err)
	}
	return Result{Action: p.Action, Success: true, Selector: p.Selector, Value: p.Value}, nil
}

func (e *Executor) handleHover(page playwright.Page, p plan.Plan) (Result, error) {
	sel := p.Selector
	if sel == "" {
		if strings.TrimSpace(p.Target) == "" {
			return Result{}, fmt.Errorf("hover: neither selector nor target given")
		}
		resolved, err := resolve(pageCount(page), p.Target, clickStrategies(p.Target))
		if err != nil {
			return Result{}, fmt.Errorf("hover: %w", err)
		}
		sel = resolved
	}

	e.highlight(page, sel)
	if err := page.Locator(sel).First().Hover(playwright.LocatorHoverOptions{
		Timeout: playwright.Float(float64(actionTimeout.Milliseconds())),
	}); err != nil {
		return Result{}, fmt.Errorf("hover %s: %w", sel, err)
	}
	return Result{Action: p.Action, Success: true, Selector: sel}, nil
}

func (e *Executor) handlePress(page playwright.Page, p plan.Plan) (Result, error) {
	key := strings.TrimSpace(p.Value)
	if key == "" {
		key = defaultPressKey
	}
	if err := page.Keyboard().Press(key); err != nil {
		e.logger.Debug().Err(err).Str("key", key).Msg("key press failed")
	}
	return Result{Action: p.Action, Success: true, Key: key}, nil
}

func (e *Executor) handleWait(ctx context.Context, p plan.Plan) (Result, error) {
	ms := defaultWaitMs
	if v := strings.TrimSpace(p.Value); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			ms = parsed
		}
	}
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-time.After(time.Duration(ms) * time.Millisecond):
	}
	return Result{Action: p.Action, Success: true, WaitedMs: ms}, nil
}

func (e *Executor) handleScreenshot(page playwright.Page, p plan.Plan) (Result, error) {
	if err := os.MkdirAll(e.screenshotDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("screenshot dir: %w", err)
	}
	path := filepath.Join(e.screenshotDir, fmt.Sprintf("shot-%d.png", time.Now().UnixNano()))
	fullPage := strings.EqualFold(strings.TrimSpace(p.Value), "full")
	if _, err := page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(fullPage),
	}); err != nil {
		// Filesystem and capture failures surface as-is; nothing here
		// is safe to swallow.
		return Result{}, fmt.Errorf("screenshot: %w", err)
	}
	return Result{Action: p.Action, Success: true, Screenshot: path}, nil
}

// highlight outlines the target element briefly before acting on it.
// Purely a UX aid for observers watching the session; failures are
// logged and never fatal.
func (e *Executor) highlight(page playwright.Page, sel string) {
	_, err := page.Locator(sel).First().Evaluate(`el => {
		const prev = el.style.outline;
		el.style.outline = "3px solid #ff4f8b";
		setTimeout(() => { el.style.outline = prev; }, 800);
	}`, nil)
	if err != nil {
		e.logger.Debug().Err(err).Str("selector", sel).Msg("highlight failed")
	}
}

func pageCount(page playwright.Page) countFunc {
	return func(selector string) (int, error) {
		return page.Locator(selector).Count()
	}
}
