package prompts

import (
	"strings"
	"testing"
	"text/template"

	"github.com/stretchr/testify/assert"
)

func TestBuildInboundPrompt(t *testing.T) {
	prompt := BuildInboundPrompt("Bright Smile Dental", "dental")

	assert.True(t, strings.HasPrefix(prompt, "You are a friendly and professional AI receptionist for Bright Smile Dental, a dental practice."))
	assert.GreaterOrEqual(t, strings.Count(prompt, "Bright Smile Dental"), 2)
	assert.Contains(t, prompt, "Remember: You represent Bright Smile Dental.")
	assert.Contains(t, prompt, "preferred date/time")
	assert.NotContains(t, prompt, "{{")
	assert.NotContains(t, prompt, "}}")
}

func TestBuildInboundPromptKeepsSpecialCharacters(t *testing.T) {
	prompt := BuildInboundPrompt("O'Brien & Sons <Clinic>", "veterinary")

	assert.Contains(t, prompt, "O'Brien & Sons <Clinic>, a veterinary practice")
}

func TestFirstMessage(t *testing.T) {
	assert.Equal(t, "Hi, thanks for calling Bright Smile Dental! How can I help you today?", FirstMessage("Bright Smile Dental"))
}

func TestAssistantName(t *testing.T) {
	tests := []struct {
		name     string
		business string
		expected string
	}{
		{"short", "Bright Smile Dental", "Bright Smile Dental - Inbound"},
		{"exactly thirty", strings.Repeat("a", 30), strings.Repeat("a", 30) + " - Inbound"},
		{"truncated", "The Extremely Long Named Family Dental Practice", "The Extremely Long Named Famil - Inbound"},
		{"multibyte", strings.Repeat("é", 40), strings.Repeat("é", 30) + " - Inbound"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AssistantName(tt.business))
		})
	}
}

func TestRenderFailureYieldsPartialOutput(t *testing.T) {
	broken := template.Must(template.New("broken").Parse("Hello {{.BusinessName}}{{.Missing}}"))
	assert.NotPanics(t, func() {
		assert.Equal(t, "Hello Bright Smile", render(broken, "Bright Smile", ""))
	})
}
