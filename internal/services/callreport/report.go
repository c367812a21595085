package callreport

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sylonai/sylon-voice-service/internal/domain"
	"github.com/sylonai/sylon-voice-service/pkg/vapi"
)

// EventTypeEndOfCallReport is the only provider event that is processed.
const EventTypeEndOfCallReport = "end-of-call-report"

const (
	endedReasonCustomerHangup  = "customer-ended-call"
	endedReasonAssistantHangup = "assistant-ended-call"
	callTypeInboundPhone       = "inboundPhoneCall"
)

type rawEvent struct {
	Type         string      `json:"type"`
	Message      *rawMessage `json:"message"`
	Call         *rawCall    `json:"call"`
	Transcript   string      `json:"transcript"`
	Summary      string      `json:"summary"`
	RecordingURL string      `json:"recordingUrl"`
}

type rawMessage struct {
	Type            string                 `json:"type"`
	Call            *rawCall               `json:"call"`
	Assistant       *rawAssistant          `json:"assistant"`
	DurationSeconds *float64               `json:"durationSeconds"`
	Cost            *float64               `json:"cost"`
	EndedReason     string                 `json:"endedReason"`
	Transcript      string                 `json:"transcript"`
	Summary         string                 `json:"summary"`
	RecordingURL    string                 `json:"recordingUrl"`
	StartedAt       *time.Time             `json:"startedAt"`
	EndedAt         *time.Time             `json:"endedAt"`
	Analysis        map[string]interface{} `json:"analysis"`
}

type rawCall struct {
	ID          string                 `json:"id"`
	AssistantID string                 `json:"assistantId"`
	Type        string                 `json:"type"`
	EndedReason string                 `json:"endedReason"`
	Duration    *float64               `json:"duration"`
	Cost        *float64               `json:"cost"`
	StartedAt   *time.Time             `json:"startedAt"`
	EndedAt     *time.Time             `json:"endedAt"`
	Customer    *rawCustomer           `json:"customer"`
	Metadata    map[string]interface{} `json:"metadata"`
}

type rawAssistant struct {
	ID       string                 `json:"id"`
	Metadata map[string]interface{} `json:"metadata"`
}

type rawCustomer struct {
	Number string `json:"number"`
}

// CallReport is a normalized end-of-call report.
type CallReport struct {
	CallID          string                 `json:"callId"`
	AssistantID     string                 `json:"assistantId,omitempty"`
	CallType        string                 `json:"callType,omitempty"`
	CustomerNumber  string                 `json:"customerNumber,omitempty"`
	EndedReason     string                 `json:"endedReason,omitempty"`
	DurationSeconds int                    `json:"durationSeconds"`
	CostCents       int64                  `json:"costCents"`
	Transcript      string                 `json:"transcript,omitempty"`
	Summary         string                 `json:"summary,omitempty"`
	RecordingURL    string                 `json:"recordingUrl,omitempty"`
	Sentiment       string                 `json:"sentiment,omitempty"`
	Analysis        map[string]interface{} `json:"analysis,omitempty"`
	Metadata        map[string]string      `json:"metadata,omitempty"`
	StartedAt       *time.Time             `json:"startedAt,omitempty"`
	EndedAt         *time.Time             `json:"endedAt,omitempty"`
}

// EventType returns message.type, falling back to the top-level type.
func EventType(body []byte) (string, error) {
	var evt rawEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return "", fmt.Errorf("failed to decode webhook event: %w", err)
	}
	return evt.eventType(), nil
}

func (e *rawEvent) eventType() string {
	if e.Message != nil && e.Message.Type != "" {
		return e.Message.Type
	}
	return e.Type
}

// ParseCallReport normalizes an end-of-call-report body. Each field resolves in a fixed order;
// the first present value wins:
//
//	call:         message.call, call
//	assistantId:  call.assistantId, message.assistant.id
//	duration:     message.durationSeconds, call.duration, endedAt - startedAt
//	cost:         message.cost, call.cost (dollars, stored as cents)
//	endedReason:  message.endedReason, call.endedReason
//	transcript, summary, recordingUrl: message, top level
//	sentiment:    message.analysis.sentiment
//	metadata:     message.assistant.metadata, call.metadata
//	startedAt, endedAt: message, call
//
// A report without a call id is a *vapi.SchemaError.
func ParseCallReport(body []byte) (*CallReport, error) {
	var evt rawEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("failed to decode call report: %w", err)
	}

	msg := evt.Message
	if msg == nil {
		msg = &rawMessage{}
	}
	call := msg.Call
	if call == nil {
		call = evt.Call
	}
	if call == nil || strings.TrimSpace(call.ID) == "" {
		return nil, &vapi.SchemaError{Operation: EventTypeEndOfCallReport, Field: "call.id"}
	}

	report := &CallReport{
		CallID:       call.ID,
		AssistantID:  call.AssistantID,
		CallType:     call.Type,
		EndedReason:  firstNonEmpty(msg.EndedReason, call.EndedReason),
		Transcript:   firstNonEmpty(msg.Transcript, evt.Transcript),
		Summary:      firstNonEmpty(msg.Summary, evt.Summary),
		RecordingURL: firstNonEmpty(msg.RecordingURL, evt.RecordingURL),
		Analysis:     msg.Analysis,
		StartedAt:    firstTime(msg.StartedAt, call.StartedAt),
		EndedAt:      firstTime(msg.EndedAt, call.EndedAt),
	}
	if report.AssistantID == "" && msg.Assistant != nil {
		report.AssistantID = msg.Assistant.ID
	}
	if call.Customer != nil {
		report.CustomerNumber = call.Customer.Number
	}
	if sentiment, ok := msg.Analysis["sentiment"].(string); ok {
		report.Sentiment = sentiment
	}

	switch {
	case msg.DurationSeconds != nil:
		report.DurationSeconds = roundNonNegative(*msg.DurationSeconds)
	case call.Duration != nil:
		report.DurationSeconds = roundNonNegative(*call.Duration)
	case report.StartedAt != nil && report.EndedAt != nil:
		report.DurationSeconds = roundNonNegative(report.EndedAt.Sub(*report.StartedAt).Seconds())
	}

	switch {
	case msg.Cost != nil:
		report.CostCents = int64(roundNonNegative(*msg.Cost * 100))
	case call.Cost != nil:
		report.CostCents = int64(roundNonNegative(*call.Cost * 100))
	}

	if msg.Assistant != nil && len(msg.Assistant.Metadata) > 0 {
		report.Metadata = stringValues(msg.Assistant.Metadata)
	} else if len(call.Metadata) > 0 {
		report.Metadata = stringValues(call.Metadata)
	}

	return report, nil
}

// Status is "completed" for normal hang-ups and the ended reason otherwise.
func (r *CallReport) Status() string {
	switch r.EndedReason {
	case "", endedReasonCustomerHangup, endedReasonAssistantHangup:
		return domain.CallStatusCompleted
	default:
		return r.EndedReason
	}
}

// Direction maps the provider call type to inbound/outbound.
func (r *CallReport) Direction() string {
	if r.CallType == callTypeInboundPhone {
		return domain.CallDirectionInbound
	}
	return domain.CallDirectionOutbound
}

// BilledMinutes rounds the duration up to whole minutes.
func (r *CallReport) BilledMinutes() int {
	return int(math.Ceil(float64(r.DurationSeconds) / 60))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstTime(values ...*time.Time) *time.Time {
	for _, v := range values {
		if v != nil && !v.IsZero() {
			return v
		}
	}
	return nil
}

func roundNonNegative(v float64) int {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(math.Round(v))
}

func stringValues(in map[string]interface{}) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
