package provisioning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sylonai/sylon-voice-service/internal/config"
	"github.com/sylonai/sylon-voice-service/internal/domain"
	"github.com/sylonai/sylon-voice-service/internal/repository"
	"github.com/sylonai/sylon-voice-service/pkg/logger"
	"go.uber.org/zap"
)

// DeactivationRequest asks to tear down a location's provisioned resources.
type DeactivationRequest struct {
	LocationID string `json:"locationId"`
}

// DeactivationResult is the outcome of one deactivation run.
type DeactivationResult struct {
	RunID   string `json:"runId"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Steps   []Step `json:"steps"`
}

// Deactivate deletes the assistant, deletes the imported number, releases the telephony
// number and clears the stored state. Provider steps are best-effort and only attempted for
// identifiers that are present. The stored state is cleared even when every provider step
// fails; a failure to clear it returns the result together with an error.
//
// The run is detached from ctx cancellation: a caller that goes away does not stop it.
func (s *Service) Deactivate(ctx context.Context, req DeactivationRequest) (*DeactivationResult, error) {
	ctx = context.WithoutCancel(ctx)
	locationID := strings.TrimSpace(req.LocationID)
	if locationID == "" {
		return nil, &ValidationError{Field: "locationId", Message: "is required"}
	}

	runID := uuid.New().String()
	ctx = logger.WithFields(ctx,
		zap.String("run_id", runID),
		zap.String("location_id", locationID))

	unlock, err := s.locker.Lock(ctx, locationID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	conn, err := s.repos.LocationConnection().GetByLocationID(ctx, locationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{LocationID: locationID}
		}
		return nil, fmt.Errorf("failed to load location: %w", err)
	}
	ctx = logger.WithFields(ctx, zap.String("tenant_id", conn.TenantID))

	logger.Info(ctx, "Starting location deactivation", zap.Bool("is_activated", conn.IsActivated))

	steps, clearErr := s.teardown(ctx, conn)

	result := &DeactivationResult{
		RunID:   runID,
		Success: clearErr == nil,
		Steps:   steps,
	}

	failed := failedProviderSteps(result.Steps)
	if len(failed) > 0 {
		logger.Error(ctx, "Deactivation left provider resources for manual cleanup",
			zap.Strings("failed_steps", failed),
			zap.String("assistant_id", domain.StringValue(conn.VoiceAssistantID)),
			zap.String("import_id", domain.StringValue(conn.VoiceNumberImportID)),
			zap.String("number_sid", domain.StringValue(conn.TelephonyNumberID)))
	}

	if clearErr != nil {
		result.Error = fmt.Sprintf("location state could not be cleared: %v", clearErr)
		s.publish(ctx, EventLocationDeactivated, conn.TenantID, locationID, result)
		return result, fmt.Errorf("failed to clear location state: %w", clearErr)
	}

	if len(failed) > 0 {
		result.Message = fmt.Sprintf("Location deactivated. %d provider cleanup step(s) failed and need manual reconciliation.", len(failed))
	} else {
		result.Message = "Location deactivated. Phone number released."
	}
	logger.Info(ctx, "Location deactivated")

	s.publish(ctx, EventLocationDeactivated, conn.TenantID, locationID, result)
	return result, nil
}

// teardown deletes the stored provider resources of conn, then clears its stored state under a
// row lock. Provider failures are recorded and do not stop the clear.
func (s *Service) teardown(ctx context.Context, conn *domain.LocationConnection) ([]Step, error) {
	log := newStepLog()
	profile := s.releaseProfile(conn)

	if assistantID := domain.StringValue(conn.VoiceAssistantID); assistantID != "" {
		if err := s.voice.DeleteAssistant(ctx, assistantID); err != nil {
			log.fail(ctx, StepDeleteAssistant, err)
		} else {
			log.success(ctx, StepDeleteAssistant, map[string]string{"assistantId": assistantID})
		}
	}

	if importID := domain.StringValue(conn.VoiceNumberImportID); importID != "" {
		if err := s.voice.DeleteImportedNumber(ctx, importID); err != nil {
			log.fail(ctx, StepDeleteVoiceNumber, err)
		} else {
			log.success(ctx, StepDeleteVoiceNumber, map[string]string{"importId": importID})
		}
	}

	if numberSid := domain.StringValue(conn.TelephonyNumberID); numberSid != "" {
		if err := s.telephony.ReleaseNumber(ctx, profile, numberSid); err != nil {
			log.fail(ctx, StepReleaseNumber, err)
		} else {
			log.success(ctx, StepReleaseNumber, map[string]string{"sid": numberSid})
		}
	}

	locationID := conn.LocationID
	clearErr := s.repos.WithTx(ctx, func(ctx context.Context, repos repository.RepositoryManager) error {
		if _, err := repos.LocationConnection().LockByLocationID(ctx, locationID); err != nil {
			return err
		}
		if err := repos.LocationConnection().ClearActivation(ctx, locationID); err != nil {
			return err
		}
		return repos.AgentPrompt().SetActive(ctx, locationID, false)
	})
	if clearErr != nil {
		log.fail(ctx, StepClearDatabase, clearErr)
	} else {
		log.success(ctx, StepClearDatabase, nil)
	}

	return log.Steps(), clearErr
}

// releaseProfile picks the credentials that own the location's number: its stored
// sub-account when present, otherwise the default profile.
func (s *Service) releaseProfile(conn *domain.LocationConnection) config.TelephonyProfile {
	sid := domain.StringValue(conn.TelephonyAccountSID)
	token := domain.StringValue(conn.TelephonyAuthToken)
	if sid != "" && token != "" {
		return config.TelephonyProfile{Name: conn.TenantID, AccountSID: sid, AuthToken: token}
	}
	return s.telephony.DefaultProfile()
}

func failedProviderSteps(steps []Step) []string {
	var failed []string
	for _, step := range steps {
		if step.Kind != StepClearDatabase && step.Status == StepFailed {
			failed = append(failed, string(step.Kind))
		}
	}
	return failed
}
