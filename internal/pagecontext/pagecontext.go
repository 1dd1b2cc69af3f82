// Package pagecontext collects a compact description of a session's
// current page: title, URL, and up to 50 interactive element
// descriptors. The interpreter uses it to ground oracle prompts; it is
// never required for correctness, so every failure here degrades to
// "interpret without context".
package pagecontext

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Dee-Codez/BrowseGEN/internal/interpreter"
	"github.com/Dee-Codez/BrowseGEN/internal/session"
)

const maxElements = 50

const collectScript = `(limit) => {
	const pick = [];
	const nodes = document.querySelectorAll("a,button,input,select,textarea,[role='button'],[role='link'],[role='searchbox'],[role='textbox']");
	for (const el of nodes) {
		if (pick.length >= limit) break;
		const rect = el.getBoundingClientRect();
		if (rect.width === 0 && rect.height === 0) continue;
		const text = (el.innerText || el.value || "").trim().slice(0, 80);
		const info = {
			type: (el.getAttribute("type") || el.tagName).toLowerCase(),
			text: text,
			placeholder: el.getAttribute("placeholder") || "",
			ariaLabel: el.getAttribute("aria-label") || "",
			id: el.id || "",
			className: (typeof el.className === "string" ? el.className : "").slice(0, 80),
		};
		if (!info.text && !info.placeholder && !info.ariaLabel && !info.id) continue;
		pick.push(info);
	}
	return pick;
}`

// Provider reads page context for live sessions.
type Provider struct {
	registry *session.Registry
	logger   zerolog.Logger
}

func New(registry *session.Registry, logger zerolog.Logger) *Provider {
	return &Provider{registry: registry, logger: logger}
}

// PageContext returns the current context for the session's page.
func (p *Provider) PageContext(ctx context.Context, sessionID string) (*interpreter.PageContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sess, ok := p.registry.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", session.ErrSessionNotFound, sessionID)
	}

	page := sess.Page
	title, _ := page.Title()
	pc := &interpreter.PageContext{
		URL:   page.URL(),
		Title: title,
	}

	val, err := page.Evaluate(collectScript, maxElements)
	if err != nil {
		p.logger.Debug().Err(err).Str("session", sessionID).Msg("element collection failed")
		return pc, nil
	}

	// Round-trip through JSON to get typed element infos out of the
	// evaluate result.
	raw, err := json.Marshal(val)
	if err != nil {
		return pc, nil
	}
	var elems []interpreter.ElementInfo
	if err := json.Unmarshal(raw, &elems); err != nil {
		p.logger.Debug().Err(err).Msg("element decode failed")
		return pc, nil
	}
	pc.AvailableElements = elems
	return pc, nil
}
