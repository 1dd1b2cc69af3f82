package interpreter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Dee-Codez/BrowseGEN/internal/plan"
)

func TestFallback(t *testing.T) {
	tests := []struct {
		command string
		want    plan.Plan
	}{
		{
			command: "click the login button",
			want: plan.Plan{
				Action:     plan.ActionClick,
				Target:     "the login button",
				Executable: true,
				Confidence: 0.5,
			},
		},
		{
			command: "go to google.com",
			want: plan.Plan{
				Action:     plan.ActionNavigate,
				Value:      "google.com",
				Executable: true,
				Confidence: 0.5,
			},
		},
		{
			command: "fill name with John",
			want: plan.Plan{
				Action:     plan.ActionFill,
				Target:     "name",
				Value:      "John",
				Executable: true,
				Confidence: 0.5,
			},
		},
		{
			command: "do a backflip",
			want: plan.Plan{
				Action:     plan.ActionUnknown,
				Executable: false,
				Confidence: 0,
			},
		},
		{
			command: "type hello with world",
			want: plan.Plan{
				Action:     plan.ActionFill,
				Target:     "hello",
				Value:      "world",
				Executable: true,
				Confidence: 0.5,
			},
		},
		{
			command: "navigate to https://example.com/path?q=1",
			want: plan.Plan{
				Action:     plan.ActionNavigate,
				Value:      "https://example.com/path?q=1",
				Executable: true,
				Confidence: 0.5,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			assert.Equal(t, tt.want, Fallback(tt.command))
		})
	}
}

func TestExtractURL(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    string
	}{
		{"full url wins", "open https://docs.example.org/guide now", "https://docs.example.org/guide"},
		{"go-to phrase", "navigate to wikipedia.org", "wikipedia.org"},
		{"visit phrase", "visit news.ycombinator.com", "news.ycombinator.com"},
		{"bare domain", "check example.io please", "example.io"},
		{"nothing url-like", "navigate somewhere nice", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractURL(tt.command))
		})
	}
}

func TestExtractTarget(t *testing.T) {
	assert.Equal(t, "submit", extractTarget("click submit", "click"))
	assert.Equal(t, "email field", extractTarget("fill email field with a@b.com", "fill"))
	assert.Equal(t, "", extractTarget("no keyword here", "click"))
}
