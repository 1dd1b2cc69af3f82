package interpreter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Dee-Codez/BrowseGEN/internal/plan"
)

// Oracle is the external language-model service. It takes a prompt and
// returns raw text that should contain a JSON object. Any failure mode
// (transport, API error, garbage output) is treated the same by the
// interpreter: fall back to the heuristic parser.
type Oracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// PageContext is optional structured hint data about the current page,
// used only to ground the oracle prompt. It is never required for
// correctness.
type PageContext struct {
	URL               string        `json:"url"`
	Title             string        `json:"title,omitempty"`
	AvailableElements []ElementInfo `json:"availableElements,omitempty"`
}

// ElementInfo describes one interactive element on the page.
type ElementInfo struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	AriaLabel   string `json:"ariaLabel,omitempty"`
	ID          string `json:"id,omitempty"`
	ClassName   string `json:"className,omitempty"`
}

const maxPromptElements = 20

// Interpreter turns free-text commands into action plans.
type Interpreter struct {
	oracle Oracle
	logger zerolog.Logger
}

func New(oracle Oracle, logger zerolog.Logger) *Interpreter {
	return &Interpreter{oracle: oracle, logger: logger}
}

// Interpret resolves a command to a plan. It never fails: when the
// oracle is unavailable or returns something unusable the deterministic
// fallback parser answers instead, possibly with an unknown,
// non-executable plan.
func (i *Interpreter) Interpret(ctx context.Context, command, url string, pc *PageContext) plan.Plan {
	if i.oracle == nil {
		return Fallback(command)
	}

	prompt := buildPrompt(command, url, pc)
	text, err := i.oracle.Complete(ctx, prompt)
	if err != nil {
		i.logger.Warn().Err(err).Msg("oracle call failed, using fallback parser")
		return Fallback(command)
	}

	jsonStr, err := extractJSON(text)
	if err != nil {
		i.logger.Warn().Err(err).Str("raw", truncate(text, 200)).Msg("no JSON in oracle reply, using fallback parser")
		return Fallback(command)
	}

	var p plan.Plan
	if err := json.Unmarshal([]byte(jsonStr), &p); err != nil {
		i.logger.Warn().Err(err).Str("raw", truncate(jsonStr, 200)).Msg("oracle JSON malformed, using fallback parser")
		return Fallback(command)
	}

	p = p.Normalize()
	if err := p.Validate(); err != nil {
		i.logger.Warn().Err(err).Msg("oracle plan invalid, using fallback parser")
		return Fallback(command)
	}

	i.logger.Debug().
		Str("action", string(p.Action)).
		Float64("confidence", p.Confidence).
		Int("steps", len(p.Steps)).
		Msg("command interpreted")
	return p
}

func buildPrompt(command, url string, pc *PageContext) string {
	contextInfo := ""
	if pc != nil {
		elems := pc.AvailableElements
		if len(elems) > maxPromptElements {
			elems = elems[:maxPromptElements]
		}
		encoded, err := json.Marshal(elems)
		if err != nil {
			encoded = []byte("[]")
		}
		contextInfo = fmt.Sprintf("\nCurrent Page Title: %q\nAvailable Interactive Elements: %s", pc.Title, encoded)
	}

	return fmt.Sprintf(`You are an expert web automation assistant. Interpret natural language commands into precise automation actions.

Command: %q
Current URL: %q%s

Analyze the command and respond with a JSON object containing:
- action: one of [click, fill, navigate, extract, scroll, wait, screenshot, select, hover, press, unknown]
- target: description of the element to interact with
- value: any value to input (for fill, select actions) or key to press
- selector: CSS selector if inferrable (use text=, placeholder=, or aria-label= for text-based matching)
- elementDescription: detailed description of what element to find (e.g., "blue button with text Submit")
- executable: boolean indicating if this can be automated
- confidence: 0-1 score of interpretation confidence
- reasoning: brief explanation of your interpretation
- steps: array of sub-commands if this requires multiple steps (each with same structure)

Examples:
- "click login" -> {"action":"click","target":"login","selector":"text=login","executable":true,"confidence":0.9}
- "search for laptops" -> {"action":"fill","target":"search box","value":"laptops","selector":"[placeholder*=search], input[type=search]","executable":true,"confidence":0.85}
- "go to google.com" -> {"action":"navigate","value":"https://google.com","executable":true,"confidence":1.0}

Respond only with the JSON object, no additional text.`, command, url, contextInfo)
}

// extractJSON returns the first balanced top-level JSON object in text.
// Oracle replies sometimes wrap the object in prose or code fences.
func extractJSON(text string) (string, error) {
	depth := 0
	start := -1
	inStr := false
	esc := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if esc {
			esc = false
			continue
		}
		switch ch {
		case '\\':
			if inStr {
				esc = true
			}
		case '"':
			inStr = !inStr
		case '{':
			if !inStr {
				if depth == 0 {
					start = i
				}
				depth++
			}
		case '}':
			if !inStr && depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					return text[start : i+1], nil
				}
			}
		}
	}
	return "", fmt.Errorf("json not found")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
