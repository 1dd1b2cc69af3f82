// Package session owns the shared browser process and the mapping from
// session id to a live browsing context. The browser is launched
// lazily, health-checked on every acquisition, and never handed out as
// ambient state: everything goes through the Registry.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"
)

const (
	headlessEnv = "BROWSEGEN_HEADLESS"

	viewportWidth  = 1280
	viewportHeight = 720

	navTimeout = 30 * time.Second
)

// ErrSessionNotFound is returned when a caller references a session id
// absent from the registry. It is distinct from action failures so the
// caller can tell "bad session" from "bad page state".
var ErrSessionNotFound = errors.New("session not found")

// Session is one caller-visible browsing context with its single
// active page.
type Session struct {
	ID        string
	Context   playwright.BrowserContext
	Page      playwright.Page
	CreatedAt time.Time
}

// Options configure session creation.
type Options struct {
	// InitialURL is loaded into the fresh page when set; bare domains
	// get https:// prefixed. Empty means the page stays on about:blank.
	InitialURL string
}

// Registry is the single source of truth for live sessions.
type Registry struct {
	mu       sync.Mutex
	pw       *playwright.Playwright
	browser  playwright.Browser
	sessions map[string]*Session
	pending  map[string]struct{}
	headless bool
	logger   zerolog.Logger

	// Swappable so lifecycle invariants are testable without a
	// browser. acquire is called with mu held.
	acquire    func() (playwright.Browser, error)
	newSession func(playwright.Browser) (playwright.BrowserContext, playwright.Page, error)
}

func NewRegistry(logger zerolog.Logger) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		pending:  make(map[string]struct{}),
		headless: parseBoolEnv(headlessEnv, true),
		logger:   logger,
	}
	r.acquire = r.acquireBrowserLocked
	r.newSession = newContextAndPage
	return r
}

// NewID returns a collision-resistant session identifier.
func NewID() string {
	return uuid.NewString()
}

// Create allocates an isolated browsing context and one page under the
// given id. The id must not already be registered. The context build
// and the initial navigation run outside the registry lock: a slow
// page load in one create must not stall Get, Close, or other creates.
func (r *Registry) Create(ctx context.Context, id string, opts Options) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("empty session id")
	}

	r.mu.Lock()
	if _, exists := r.sessions[id]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("session %q already exists", id)
	}
	if _, exists := r.pending[id]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("session %q already exists", id)
	}
	// Reserve the id so a concurrent Create cannot claim it while the
	// context is built unlocked.
	r.pending[id] = struct{}{}
	browser, err := r.acquire()
	r.mu.Unlock()
	if err != nil {
		r.unreserve(id)
		return nil, err
	}

	browserCtx, page, err := r.newSession(browser)
	if err != nil {
		r.unreserve(id)
		return nil, err
	}

	if opts.InitialURL != "" {
		url := NormalizeURL(opts.InitialURL)
		if _, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateLoad,
			Timeout:   playwright.Float(float64(navTimeout.Milliseconds())),
		}); err != nil {
			_ = browserCtx.Close()
			r.unreserve(id)
			return nil, fmt.Errorf("load initial url %s: %w", url, err)
		}
	}

	sess := &Session{
		ID:        id,
		Context:   browserCtx,
		Page:      page,
		CreatedAt: time.Now(),
	}
	r.mu.Lock()
	delete(r.pending, id)
	r.sessions[id] = sess
	r.mu.Unlock()

	r.logger.Info().
		Str("session", id).
		Str("initial_url", opts.InitialURL).
		Msg("session created")
	return sess, nil
}

func (r *Registry) unreserve(id string) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

// Get returns the live session for id, if any.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// Close tears down the session's context and removes it from the
// registry. Closing an unknown id is a no-op.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return nil
	}
	delete(r.sessions, id)

	if err := sess.Context.Close(); err != nil {
		return fmt.Errorf("close context: %w", err)
	}
	r.logger.Info().Str("session", id).Msg("session closed")
	return nil
}

// NewScratchSession allocates a throwaway context for a one-shot
// execution. The returned cleanup must be called on every path so no
// browser resources leak.
func (r *Registry) NewScratchSession(ctx context.Context) (*Session, func(), error) {
	r.mu.Lock()
	browser, err := r.acquire()
	r.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}

	browserCtx, page, err := r.newSession(browser)
	if err != nil {
		return nil, nil, err
	}

	sess := &Session{Context: browserCtx, Page: page, CreatedAt: time.Now()}
	cleanup := func() {
		if err := browserCtx.Close(); err != nil {
			r.logger.Debug().Err(err).Msg("close scratch context")
		}
	}
	return sess, cleanup, nil
}

// Shutdown closes every session and stops the browser process.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, sess := range r.sessions {
		_ = sess.Context.Close()
		delete(r.sessions, id)
	}
	if r.browser != nil {
		_ = r.browser.Close()
		r.browser = nil
	}
	if r.pw != nil {
		err := r.pw.Stop()
		r.pw = nil
		if err != nil {
			return fmt.Errorf("stop playwright: %w", err)
		}
	}
	return nil
}

// acquireBrowserLocked lazily starts the shared browser and relaunches
// it when a liveness probe shows it has died. Callers must hold r.mu.
func (r *Registry) acquireBrowserLocked() (playwright.Browser, error) {
	if r.pw == nil {
		pw, err := playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("start playwright: %w", err)
		}
		r.pw = pw
	}

	if r.browser != nil && !r.browser.IsConnected() {
		r.logger.Warn().Msg("browser process died, relaunching")
		_ = r.browser.Close()
		r.browser = nil
	}

	if r.browser == nil {
		browser, err := r.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(r.headless),
			Args: []string{
				"--disable-dev-shm-usage",
				"--no-sandbox",
			},
		})
		if err != nil {
			return nil, fmt.Errorf("launch chromium: %w", err)
		}
		r.browser = browser
	}
	return r.browser, nil
}

func newContextAndPage(browser playwright.Browser) (playwright.BrowserContext, playwright.Page, error) {
	browserCtx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  viewportWidth,
			Height: viewportHeight,
		},
		IgnoreHttpsErrors: playwright.Bool(true),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("new context: %w", err)
	}
	page, err := browserCtx.NewPage()
	if err != nil {
		_ = browserCtx.Close()
		return nil, nil, fmt.Errorf("new page: %w", err)
	}
	page.SetDefaultTimeout(float64(navTimeout.Milliseconds()))
	return browserCtx, page, nil
}

// NormalizeURL prefixes https:// for bare domains so "google.com" from
// the fallback parser navigates.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") || strings.HasPrefix(raw, "about:") {
		return raw
	}
	return "https://" + raw
}

func parseBoolEnv(name string, def bool) bool {
	val := strings.TrimSpace(os.Getenv(name))
	if val == "" {
		return def
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
