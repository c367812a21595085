package provisioning

import (
	"context"

	"github.com/sylonai/sylon-voice-service/pkg/logger"
	"go.uber.org/zap"
)

// StepKind names one step of an activation or deactivation run.
type StepKind string

const (
	// Activation
	StepCreateSubAccount StepKind = "create_subaccount"
	StepBuyNumber        StepKind = "buy_number"
	StepImportNumber     StepKind = "import_to_vapi"
	StepCreateAssistant  StepKind = "create_assistant"
	StepLinkNumber       StepKind = "link_number_to_assistant"
	StepSaveToDatabase   StepKind = "save_to_database"

	// Deactivation and compensation
	StepDeleteAssistant   StepKind = "delete_assistant"
	StepDeleteVoiceNumber StepKind = "delete_vapi_number"
	StepReleaseNumber     StepKind = "release_twilio_number"
	StepClearDatabase     StepKind = "clear_database"
)

var knownStepKinds = map[StepKind]struct{}{
	StepCreateSubAccount:  {},
	StepBuyNumber:         {},
	StepImportNumber:      {},
	StepCreateAssistant:   {},
	StepLinkNumber:        {},
	StepSaveToDatabase:    {},
	StepDeleteAssistant:   {},
	StepDeleteVoiceNumber: {},
	StepReleaseNumber:     {},
	StepClearDatabase:     {},
}

// Valid reports whether k is one of the known step kinds.
func (k StepKind) Valid() bool {
	_, ok := knownStepKinds[k]
	return ok
}

// StepStatus is the outcome of a step.
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// Step is one entry of a run's step log.
type Step struct {
	Kind   StepKind          `json:"step"`
	Status StepStatus        `json:"status"`
	Error  string            `json:"error,omitempty"`
	Reason string            `json:"reason,omitempty"`
	Data   map[string]string `json:"data,omitempty"`
}

// Succeeded reports whether the step completed.
func (s Step) Succeeded() bool {
	return s.Status == StepSuccess
}

// stepLog accumulates steps in order and logs each one as it is recorded.
type stepLog struct {
	steps []Step
}

func newStepLog() *stepLog {
	return &stepLog{steps: make([]Step, 0, 6)}
}

func (l *stepLog) success(ctx context.Context, kind StepKind, data map[string]string) {
	l.steps = append(l.steps, Step{Kind: kind, Status: StepSuccess, Data: data})
	logger.Info(ctx, "Provisioning step succeeded",
		zap.String("step", string(kind)),
		zap.String("status", string(StepSuccess)))
}

func (l *stepLog) fail(ctx context.Context, kind StepKind, err error) {
	l.steps = append(l.steps, Step{Kind: kind, Status: StepFailed, Error: err.Error()})
	logger.Warn(ctx, "Provisioning step failed",
		zap.String("step", string(kind)),
		zap.String("status", string(StepFailed)),
		zap.Error(err))
}

func (l *stepLog) skip(ctx context.Context, kind StepKind, reason string) {
	l.steps = append(l.steps, Step{Kind: kind, Status: StepSkipped, Reason: reason})
	logger.Info(ctx, "Provisioning step skipped",
		zap.String("step", string(kind)),
		zap.String("status", string(StepSkipped)),
		zap.String("reason", reason))
}

// Steps returns the recorded steps.
func (l *stepLog) Steps() []Step {
	return l.steps
}

// FindStep returns the first step of the given kind.
func FindStep(steps []Step, kind StepKind) (Step, bool) {
	for _, s := range steps {
		if s.Kind == kind {
			return s, true
		}
	}
	return Step{}, false
}
