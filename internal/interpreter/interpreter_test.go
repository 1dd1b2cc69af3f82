package interpreter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dee-Codez/BrowseGEN/internal/plan"
)

type stubOracle struct {
	reply  string
	err    error
	prompt string
}

func (s *stubOracle) Complete(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.reply, s.err
}

func TestInterpretOracleReply(t *testing.T) {
	oracle := &stubOracle{
		reply: `{"action":"click","target":"login","selector":"text=login","executable":true,"confidence":0.9}`,
	}
	interp := New(oracle, zerolog.Nop())

	p := interp.Interpret(context.Background(), "click login", "https://example.com", nil)

	assert.Equal(t, plan.ActionClick, p.Action)
	assert.Equal(t, "login", p.Target)
	assert.True(t, p.Executable)
	assert.Equal(t, 0.9, p.Confidence)
}

func TestInterpretExtractsJSONFromProse(t *testing.T) {
	oracle := &stubOracle{
		reply: "Sure, here is the plan:\n```json\n{\"action\":\"navigate\",\"value\":\"https://google.com\",\"executable\":true,\"confidence\":1.0}\n```\nLet me know if you need more.",
	}
	interp := New(oracle, zerolog.Nop())

	p := interp.Interpret(context.Background(), "go to google", "", nil)

	assert.Equal(t, plan.ActionNavigate, p.Action)
	assert.Equal(t, "https://google.com", p.Value)
	assert.Equal(t, 1.0, p.Confidence)
}

func TestInterpretClampsConfidence(t *testing.T) {
	oracle := &stubOracle{
		reply: `{"action":"Click","target":"ok","executable":true,"confidence":1.7}`,
	}
	interp := New(oracle, zerolog.Nop())

	p := interp.Interpret(context.Background(), "click ok", "", nil)

	assert.Equal(t, plan.ActionClick, p.Action)
	assert.Equal(t, 1.0, p.Confidence)
}

func TestInterpretFallsBack(t *testing.T) {
	tests := []struct {
		name   string
		oracle *stubOracle
	}{
		{"oracle error", &stubOracle{err: errors.New("rate limited")}},
		{"no json in reply", &stubOracle{reply: "I cannot help with that."}},
		{"malformed json", &stubOracle{reply: `{"action":"click","confidence":}`}},
		{"unknown action", &stubOracle{reply: `{"action":"teleport","executable":true,"confidence":0.9}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interp := New(tt.oracle, zerolog.Nop())
			p := interp.Interpret(context.Background(), "click the login button", "", nil)

			assert.Equal(t, plan.ActionClick, p.Action)
			assert.Equal(t, "the login button", p.Target)
			assert.Equal(t, 0.5, p.Confidence)
		})
	}
}

func TestInterpretNilOracleUsesFallback(t *testing.T) {
	interp := New(nil, zerolog.Nop())

	p := interp.Interpret(context.Background(), "do a backflip", "", nil)

	assert.Equal(t, plan.ActionUnknown, p.Action)
	assert.False(t, p.Executable)
	assert.Equal(t, 0.0, p.Confidence)
}

func TestBuildPromptIncludesContext(t *testing.T) {
	oracle := &stubOracle{reply: `{"action":"click","executable":true,"confidence":0.9}`}
	interp := New(oracle, zerolog.Nop())

	pc := &PageContext{
		URL:   "https://shop.example.com",
		Title: "Checkout",
		AvailableElements: []ElementInfo{
			{Type: "button", Text: "Pay now"},
		},
	}
	interp.Interpret(context.Background(), "click pay", "https://shop.example.com", pc)

	assert.Contains(t, oracle.prompt, `"click pay"`)
	assert.Contains(t, oracle.prompt, "Checkout")
	assert.Contains(t, oracle.prompt, "Pay now")
}

func TestBuildPromptCapsElements(t *testing.T) {
	oracle := &stubOracle{reply: `{"action":"click","executable":true,"confidence":0.9}`}
	interp := New(oracle, zerolog.Nop())

	pc := &PageContext{URL: "https://example.com"}
	for i := 0; i < 40; i++ {
		pc.AvailableElements = append(pc.AvailableElements, ElementInfo{Type: "button", Text: "b"})
	}
	interp.Interpret(context.Background(), "click b", "", pc)

	assert.Equal(t, maxPromptElements, strings.Count(oracle.prompt, `"type":"button"`))
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, false},
		{"nested braces", `ok {"a":{"b":2}} done`, `{"a":{"b":2}}`, false},
		{"brace inside string", `{"a":"}"}`, `{"a":"}"}`, false},
		{"escaped quote inside string", `{"a":"say \"hi\""}`, `{"a":"say \"hi\""}`, false},
		{"no object", "just words", "", true},
		{"unbalanced", `{"a":1`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.text)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
