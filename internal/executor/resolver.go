package executor

import (
	"fmt"
	"strings"
)

// countFunc reports how many elements a selector currently matches on
// the live page. It is the only page dependency the resolver has,
// which keeps strategy ordering testable without a browser.
type countFunc func(selector string) (int, error)

// strategy is one way of locating an element, tried in a fixed
// priority order. Real pages vary too much for a single selector
// syntax; an ordered cheap-to-expensive list gives bounded-cost
// best-effort grounding.
type strategy struct {
	name     string
	selector string
}

func clickStrategies(target string) []strategy {
	t := escapeTarget(target)
	return []strategy{
		{"exact text", fmt.Sprintf(`text="%s"`, t)},
		{"button with text", fmt.Sprintf(`button:has-text("%s")`, t)},
		{"link with text", fmt.Sprintf(`a:has-text("%s")`, t)},
		{"aria-label contains", fmt.Sprintf(`[aria-label*="%s" i]`, t)},
		{"title contains", fmt.Sprintf(`[title*="%s" i]`, t)},
		{"input value contains", fmt.Sprintf(`input[value*="%s" i]`, t)},
	}
}

func fillStrategies(target string) []strategy {
	t := escapeTarget(target)
	return []strategy{
		{"placeholder contains", fmt.Sprintf(`input[placeholder*="%s" i]`, t)},
		{"name contains", fmt.Sprintf(`input[name*="%s" i]`, t)},
		{"id contains", fmt.Sprintf(`input[id*="%s" i]`, t)},
		{"textarea placeholder contains", fmt.Sprintf(`textarea[placeholder*="%s" i]`, t)},
		{"aria-label contains", fmt.Sprintf(`input[aria-label*="%s" i]`, t)},
		{"generic text input", `input[type="text"]`},
		{"generic search input", `input[type="search"]`},
		{"any textarea", `textarea`},
	}
}

// searchStrategies is the dedicated list for search boxes, tried
// before the generic fill path when the intent hints at "search".
func searchStrategies() []strategy {
	return []strategy{
		{"search placeholder", `input[placeholder*="search" i]`},
		{"search input type", `input[type="search"]`},
		{"search aria-label", `[aria-label*="search" i]`},
		{"query name", `input[name="q"]`},
		{"searchbox role", `[role="searchbox"]`},
		{"generic text input", `input[type="text"]`},
		{"any textarea", `textarea`},
	}
}

// isSearchIntent reports whether the fill target or selector hint at a
// search box.
func isSearchIntent(target, selector string) bool {
	return strings.Contains(strings.ToLower(target), "search") ||
		strings.Contains(strings.ToLower(selector), "search")
}

// resolve walks the strategies in order and accepts the first one that
// matches at least one live element. First match wins; it never keeps
// looking for a "better" one. When nothing matches the error
// enumerates every attempted strategy.
func resolve(count countFunc, target string, strategies []strategy) (string, error) {
	tried := make([]string, 0, len(strategies))
	for _, s := range strategies {
		tried = append(tried, s.name)
		n, err := count(s.selector)
		if err != nil {
			continue
		}
		if n >= 1 {
			return s.selector, nil
		}
	}
	return "", fmt.Errorf("no element matched %q; tried strategies: %s", target, strings.Join(tried, ", "))
}

// submitCandidates are pressed with Enter after a search fill,
// best-effort. The filled selector itself goes first.
func submitCandidates(filledSelector string) []string {
	return []string{
		filledSelector,
		`input[type="search"]`,
		`[role="searchbox"]`,
	}
}

func escapeTarget(target string) string {
	target = strings.ReplaceAll(target, `\`, ``)
	return strings.ReplaceAll(target, `"`, `\"`)
}
