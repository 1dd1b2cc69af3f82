package plan

import (
	"fmt"
	"strings"
)

// Action is one browser action kind the executor knows how to perform.
type Action string

const (
	ActionNavigate   Action = "navigate"
	ActionClick      Action = "click"
	ActionFill       Action = "fill"
	ActionExtract    Action = "extract"
	ActionScroll     Action = "scroll"
	ActionSelect     Action = "select"
	ActionHover      Action = "hover"
	ActionPress      Action = "press"
	ActionWait       Action = "wait"
	ActionScreenshot Action = "screenshot"
	ActionUnknown    Action = "unknown"
)

var knownActions = map[Action]bool{
	ActionNavigate:   true,
	ActionClick:      true,
	ActionFill:       true,
	ActionExtract:    true,
	ActionScroll:     true,
	ActionSelect:     true,
	ActionHover:      true,
	ActionPress:      true,
	ActionWait:       true,
	ActionScreenshot: true,
	ActionUnknown:    true,
}

// Plan is the interpreter's output: a structured, confidence-scored
// description of one browser action, or an ordered list of sub-plans
// for multi-step commands. The JSON shape matches what the oracle is
// prompted to produce.
type Plan struct {
	Action             Action  `json:"action"`
	Target             string  `json:"target,omitempty"`
	Value              string  `json:"value,omitempty"`
	Selector           string  `json:"selector,omitempty"`
	Executable         bool    `json:"executable"`
	Confidence         float64 `json:"confidence"`
	Steps              []Plan  `json:"steps,omitempty"`
	ElementDescription string  `json:"elementDescription,omitempty"`
	Reasoning          string  `json:"reasoning,omitempty"`
}

// IsMultiStep reports whether Steps takes precedence over the
// top-level action for execution.
func (p Plan) IsMultiStep() bool {
	return len(p.Steps) > 0
}

// Validate checks the invariants the executor relies on. It does not
// check per-action required fields; handlers validate those at the
// execution boundary.
func (p Plan) Validate() error {
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0,1]", p.Confidence)
	}
	action := Action(strings.ToLower(string(p.Action)))
	if action == "" {
		return fmt.Errorf("missing action")
	}
	if !knownActions[action] {
		return fmt.Errorf("unknown action %q", p.Action)
	}
	for i, step := range p.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

// Normalize lower-cases the action and clamps confidence into [0,1],
// recursively over steps. Oracle output is not trusted to be tidy.
func (p Plan) Normalize() Plan {
	p.Action = Action(strings.ToLower(strings.TrimSpace(string(p.Action))))
	if p.Action == "" {
		p.Action = ActionUnknown
	}
	if p.Confidence < 0 {
		p.Confidence = 0
	}
	if p.Confidence > 1 {
		p.Confidence = 1
	}
	for i := range p.Steps {
		p.Steps[i] = p.Steps[i].Normalize()
	}
	return p
}
