package prompts

import (
	"strings"
	"text/template"

	"github.com/sylonai/sylon-voice-service/pkg/logger"
	"go.uber.org/zap"
)

type receptionistData struct {
	BusinessName string
	BusinessType string
}

var (
	inboundTemplate = template.Must(template.New("inbound").Parse(joinBlocks(
		PromptReceptionistIdentity,
		PromptReceptionistGoals,
		PromptReceptionistGuidelines,
		PromptReceptionistClosing,
	)))
	firstMessageTemplate = template.Must(template.New("first_message").Parse(FirstMessageTemplate))
)

// BuildInboundPrompt renders the system prompt of an inbound receptionist assistant.
// Empty inputs render as-is; callers apply their own defaults first.
func BuildInboundPrompt(businessName, businessType string) string {
	return render(inboundTemplate, businessName, businessType)
}

// FirstMessage renders the greeting the assistant speaks when it picks up.
func FirstMessage(businessName string) string {
	return render(firstMessageTemplate, businessName, "")
}

// AssistantName returns the provider-side display name: the business name cut to 30 runes
// plus the inbound suffix.
func AssistantName(businessName string) string {
	runes := []rune(businessName)
	if len(runes) > assistantNameMaxBusinessRunes {
		runes = runes[:assistantNameMaxBusinessRunes]
	}
	return string(runes) + assistantNameSuffix
}

func render(tmpl *template.Template, businessName, businessType string) string {
	var sb strings.Builder
	data := receptionistData{BusinessName: businessName, BusinessType: businessType}
	if err := tmpl.Execute(&sb, data); err != nil {
		logger.Base().Error("failed to render prompt template",
			zap.String("template", tmpl.Name()),
			zap.Error(err))
	}
	return strings.TrimSpace(sb.String())
}

func joinBlocks(blocks ...string) string {
	var validBlocks []string
	for _, b := range blocks {
		trimmed := strings.TrimSpace(b)
		if trimmed != "" {
			validBlocks = append(validBlocks, trimmed)
		}
	}
	return strings.Join(validBlocks, "\n\n")
}
