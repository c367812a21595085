package provisioning

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sylonai/sylon-voice-service/internal/config"
	"github.com/sylonai/sylon-voice-service/internal/domain"
	"github.com/sylonai/sylon-voice-service/internal/prompts"
	"github.com/sylonai/sylon-voice-service/internal/repository"
	"github.com/sylonai/sylon-voice-service/pkg/logger"
	"github.com/sylonai/sylon-voice-service/pkg/twilio"
	"github.com/sylonai/sylon-voice-service/pkg/vapi"
	"go.uber.org/zap"
)

var (
	areaCodePattern    = regexp.MustCompile(`^[2-9][0-9]{2}$`)
	phoneNumberPattern = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)
)

// ActivationRequest asks to provision a number and assistant for one location.
type ActivationRequest struct {
	TenantID     string `json:"tenantId"`
	LocationID   string `json:"locationId"`
	LocationName string `json:"locationName"`
	BusinessName string `json:"businessName,omitempty"`
	BusinessType string `json:"businessType,omitempty"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
	AreaCode     string `json:"areaCode,omitempty"`
	// Force provisions fresh resources even when the location is already activated.
	Force bool `json:"force,omitempty"`
}

// Normalize trims every field.
func (r *ActivationRequest) Normalize() {
	r.TenantID = strings.TrimSpace(r.TenantID)
	r.LocationID = strings.TrimSpace(r.LocationID)
	r.LocationName = strings.TrimSpace(r.LocationName)
	r.BusinessName = strings.TrimSpace(r.BusinessName)
	r.BusinessType = strings.TrimSpace(r.BusinessType)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	r.AreaCode = strings.TrimSpace(r.AreaCode)
}

// Validate checks required identifiers and the shape of optional number inputs.
func (r *ActivationRequest) Validate() error {
	if r.TenantID == "" {
		return &ValidationError{Field: "tenantId", Message: "is required"}
	}
	if r.LocationID == "" {
		return &ValidationError{Field: "locationId", Message: "is required"}
	}
	if r.PhoneNumber != "" && !phoneNumberPattern.MatchString(r.PhoneNumber) {
		return &ValidationError{Field: "phoneNumber", Message: "must be in E.164 format"}
	}
	if r.AreaCode != "" && !areaCodePattern.MatchString(r.AreaCode) {
		return &ValidationError{Field: "areaCode", Message: "must be a 3-digit area code"}
	}
	return nil
}

// ActivationResult is the outcome of one activation run.
type ActivationResult struct {
	RunID               string `json:"runId"`
	Success             bool   `json:"success"`
	AlreadyActive       bool   `json:"alreadyActive,omitempty"`
	Message             string `json:"message,omitempty"`
	Error               string `json:"error,omitempty"`
	PhoneNumber         string `json:"phoneNumber,omitempty"`
	TelephonyNumberID   string `json:"telephonyNumberId,omitempty"`
	VoiceAssistantID    string `json:"voiceAssistantId,omitempty"`
	VoiceNumberImportID string `json:"voiceNumberImportId,omitempty"`
	Steps               []Step `json:"steps"`
	// Compensation lists the cleanup performed after a hard stop.
	Compensation []Step `json:"compensation,omitempty"`
	// Replaced lists the teardown of the previous resources of a forced re-activation.
	Replaced []Step `json:"replaced,omitempty"`
}

// activationRun holds what one run has acquired so far.
type activationRun struct {
	req          *ActivationRequest
	profile      config.TelephonyProfile
	businessName string
	businessType string

	number      *twilio.PurchasedNumber
	importID    string
	assistantID string

	// Set when the identifier was read from an incomplete earlier activation. Reused
	// resources stay recorded on the location and are never compensated.
	numberReused    bool
	importReused    bool
	assistantReused bool

	log *stepLog
}

// resumeFrom takes over the provider identifiers saved by an incomplete activation.
func (run *activationRun) resumeFrom(conn *domain.LocationConnection) {
	sid := domain.StringValue(conn.TelephonyNumberID)
	phone := domain.StringValue(conn.TelephonyNumber)
	if sid != "" && phone != "" {
		run.number = &twilio.PurchasedNumber{Sid: sid, PhoneNumber: phone}
		run.numberReused = true
	}
	if importID := domain.StringValue(conn.VoiceNumberImportID); importID != "" && run.numberReused {
		run.importID = importID
		run.importReused = true
	}
	if assistantID := domain.StringValue(conn.VoiceAssistantID); assistantID != "" {
		run.assistantID = assistantID
		run.assistantReused = true
	}
}

// Activate provisions a telephony number and voice assistant for a location and links them.
//
// A hard stop (sub-account, number purchase or assistant creation failure) returns the
// partial result together with a *HardStopError. Soft failures (import, link, save) are
// recorded in the step log and returned with a nil error.
//
// A location left incomplete by an earlier run is resumed with its stored number and
// assistant. A forced re-activation first tears down the stored resources. The run is
// detached from ctx cancellation: a caller that goes away does not stop it.
func (s *Service) Activate(ctx context.Context, req ActivationRequest) (*ActivationResult, error) {
	ctx = context.WithoutCancel(ctx)
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	ctx = logger.WithFields(ctx,
		zap.String("run_id", runID),
		zap.String("tenant_id", req.TenantID),
		zap.String("location_id", req.LocationID))

	unlock, err := s.locker.Lock(ctx, req.LocationID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.repos.LocationConnection().GetByLocationID(ctx, req.LocationID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load location: %w", err)
	}

	// Tenant and location name are fixed by the first activation.
	if existing != nil {
		if existing.TenantID != req.TenantID {
			logger.Warn(ctx, "Activation rejected, location belongs to another tenant",
				zap.String("owner_tenant_id", existing.TenantID))
			return nil, &ValidationError{Field: "tenantId", Message: "does not own this location"}
		}
		if existing.LocationName != "" {
			req.LocationName = existing.LocationName
		}
	}
	if req.LocationName == "" {
		req.LocationName = req.LocationID
	}

	var replaced []Step
	switch {
	case existing == nil:
	case existing.IsActivated && !req.Force:
		logger.Info(ctx, "Location already activated, returning existing state")
		return alreadyActiveResult(runID, existing), nil
	case req.Force && hasProviderIDs(existing):
		logger.Warn(ctx, "Force re-activation, releasing previous resources",
			zap.String("previous_number_sid", domain.StringValue(existing.TelephonyNumberID)),
			zap.String("previous_assistant_id", domain.StringValue(existing.VoiceAssistantID)),
			zap.String("previous_import_id", domain.StringValue(existing.VoiceNumberImportID)))
		steps, clearErr := s.teardown(ctx, existing)
		replaced = steps
		if failed := failedProviderSteps(steps); len(failed) > 0 {
			logger.Error(ctx, "Previous resources need manual cleanup", zap.Strings("failed_steps", failed))
		}
		if clearErr != nil {
			result := &ActivationResult{
				RunID:    runID,
				Error:    fmt.Sprintf("previous activation could not be cleared: %v", clearErr),
				Steps:    []Step{},
				Replaced: replaced,
			}
			s.publish(ctx, EventLocationActivationFailed, req.TenantID, req.LocationID, result)
			return result, fmt.Errorf("failed to clear previous activation: %w", clearErr)
		}
		existing = nil
	}

	run := &activationRun{
		req:          &req,
		profile:      s.telephony.DefaultProfile(),
		businessName: req.BusinessName,
		businessType: req.BusinessType,
		log:          newStepLog(),
	}
	if run.businessName == "" {
		run.businessName = req.LocationName
	}
	if run.businessType == "" {
		run.businessType = s.provisioning.DefaultBusinessType
	}
	if existing != nil && hasProviderIDs(existing) {
		run.resumeFrom(existing)
		logger.Info(ctx, "Resuming incomplete activation",
			zap.String("number_sid", numberSid(run)),
			zap.String("assistant_id", run.assistantID),
			zap.String("import_id", run.importID))
	}

	logger.Info(ctx, "Starting location activation", zap.Bool("force", req.Force))

	result, err := s.runActivation(ctx, runID, run)
	result.Replaced = replaced
	if err != nil {
		s.publish(ctx, EventLocationActivationFailed, req.TenantID, req.LocationID, result)
		return result, err
	}

	eventType := EventLocationActivated
	if !result.Success {
		eventType = EventLocationActivationFailed
	}
	s.publish(ctx, eventType, req.TenantID, req.LocationID, result)
	return result, nil
}

func (s *Service) runActivation(ctx context.Context, runID string, run *activationRun) (*ActivationResult, error) {
	req := run.req

	if s.subAccountsEnabled {
		profile, reused, err := s.resolveSubAccount(ctx, run)
		if err != nil {
			run.log.fail(ctx, StepCreateSubAccount, err)
			return s.hardStop(ctx, runID, run, StepCreateSubAccount, err)
		}
		run.profile = profile
		run.log.success(ctx, StepCreateSubAccount, map[string]string{
			"accountSid": profile.AccountSID,
			"reused":     strconv.FormatBool(reused),
		})
	}

	// Step 1: acquire a number. Hard stop.
	if run.numberReused {
		run.log.success(ctx, StepBuyNumber, reusedData("number", run.number.PhoneNumber, "sid", run.number.Sid))
	} else {
		number, err := s.acquireNumber(ctx, run)
		if err != nil {
			run.log.fail(ctx, StepBuyNumber, err)
			return s.hardStop(ctx, runID, run, StepBuyNumber, err)
		}
		run.number = number
		run.log.success(ctx, StepBuyNumber, map[string]string{"number": number.PhoneNumber, "sid": number.Sid})
	}
	number := run.number

	// Step 2: import into the voice-AI provider. Soft fail.
	if run.importReused {
		run.log.success(ctx, StepImportNumber, reusedData("importId", run.importID))
	} else if imported, err := s.voice.ImportNumber(ctx, number.PhoneNumber, run.profile, req.LocationName); err != nil {
		run.log.fail(ctx, StepImportNumber, err)
	} else {
		run.importID = imported.ID
		run.log.success(ctx, StepImportNumber, map[string]string{"importId": imported.ID})
	}

	// Step 3: create the assistant. Hard stop.
	systemPrompt := prompts.BuildInboundPrompt(run.businessName, run.businessType)
	if run.assistantReused {
		run.log.success(ctx, StepCreateAssistant, reusedData("assistantId", run.assistantID))
	} else {
		assistant, err := s.voice.CreateAssistant(ctx, s.assistantConfig(run, systemPrompt))
		if err != nil {
			run.log.fail(ctx, StepCreateAssistant, err)
			return s.hardStop(ctx, runID, run, StepCreateAssistant, err)
		}
		run.assistantID = assistant.ID
		run.log.success(ctx, StepCreateAssistant, map[string]string{"assistantId": assistant.ID})
	}

	// Step 4: link. Soft fail, only attempted with both identifiers.
	if run.importID == "" {
		run.log.skip(ctx, StepLinkNumber, "number was not imported")
	} else if err := s.voice.LinkNumberToAssistant(ctx, run.importID, run.assistantID); err != nil {
		run.log.fail(ctx, StepLinkNumber, err)
	} else {
		run.log.success(ctx, StepLinkNumber, nil)
	}

	// Step 5: persist. Soft fail, provider resources are kept.
	saveErr := s.saveActivation(ctx, run, systemPrompt)
	if saveErr != nil {
		run.log.fail(ctx, StepSaveToDatabase, saveErr)
	} else {
		run.log.success(ctx, StepSaveToDatabase, nil)
	}

	result := run.result(runID)
	importStep, _ := FindStep(result.Steps, StepImportNumber)
	result.Success = saveErr == nil && importStep.Succeeded()

	switch {
	case result.Success:
		result.Message = fmt.Sprintf("%s is now activated with AI calling!", req.LocationName)
		logger.Info(ctx, "Location activated", zap.String("phone_number", number.PhoneNumber))
	case saveErr != nil:
		result.Error = fmt.Sprintf("provisioned resources could not be saved: %v", saveErr)
		logger.Error(ctx, "Activation provisioned resources but could not persist them",
			zap.String("number_sid", number.Sid),
			zap.String("assistant_id", run.assistantID),
			zap.String("import_id", run.importID),
			zap.Error(saveErr))
	default:
		result.Error = "number could not be imported into the voice-AI provider; location is not activated"
		logger.Warn(ctx, "Activation finished without a voice-AI number import")
	}
	return result, nil
}

func (s *Service) resolveSubAccount(ctx context.Context, run *activationRun) (config.TelephonyProfile, bool, error) {
	conn, err := s.repos.LocationConnection().FindTenantSubAccount(ctx, run.req.TenantID)
	switch {
	case err == nil:
		return config.TelephonyProfile{
			Name:       run.req.TenantID,
			AccountSID: domain.StringValue(conn.TelephonyAccountSID),
			AuthToken:  domain.StringValue(conn.TelephonyAuthToken),
		}, true, nil
	case !errors.Is(err, repository.ErrNotFound):
		return config.TelephonyProfile{}, false, err
	}

	profile, err := s.telephony.CreateSubAccount(ctx, "Sylon - "+run.businessName)
	if err != nil {
		return config.TelephonyProfile{}, false, err
	}
	return profile, false, nil
}

func (s *Service) acquireNumber(ctx context.Context, run *activationRun) (*twilio.PurchasedNumber, error) {
	friendlyName := "Sylon - " + run.req.LocationName

	phoneNumber := run.req.PhoneNumber
	if phoneNumber == "" {
		areaCode := run.req.AreaCode
		if areaCode == "" {
			areaCode = s.provisioning.DefaultAreaCode
		}
		available, err := s.telephony.SearchNumbers(ctx, run.profile, areaCode, 1)
		if err != nil {
			return nil, err
		}
		if len(available) == 0 || available[0].PhoneNumber == "" {
			return nil, fmt.Errorf("area code %s: %w", areaCode, ErrNoNumbersAvailable)
		}
		phoneNumber = available[0].PhoneNumber
	}

	return s.telephony.PurchaseNumber(ctx, run.profile, phoneNumber, friendlyName)
}

func (s *Service) assistantConfig(run *activationRun, systemPrompt string) *vapi.AssistantConfig {
	return &vapi.AssistantConfig{
		Name: prompts.AssistantName(run.businessName),
		Model: vapi.ModelConfig{
			Provider: s.assistant.ModelProvider,
			Model:    s.assistant.Model,
			Messages: []vapi.Message{{Role: "system", Content: systemPrompt}},
		},
		Voice: vapi.VoiceConfig{
			Provider: s.assistant.VoiceProvider,
			VoiceID:  s.assistant.VoiceID,
		},
		Transcriber: vapi.TranscriberConfig{
			Provider: s.assistant.TranscriberProvider,
			Model:    s.assistant.TranscriberModel,
		},
		FirstMessage:   prompts.FirstMessage(run.businessName),
		EndCallMessage: prompts.EndCallMessage,
		ServerURL:      s.assistant.CallReportURL,
		Metadata: map[string]string{
			vapi.MetadataTenantID:     run.req.TenantID,
			vapi.MetadataLocationID:   run.req.LocationID,
			vapi.MetadataLocationName: run.req.LocationName,
		},
	}
}

func (s *Service) saveActivation(ctx context.Context, run *activationRun, systemPrompt string) error {
	rec := &domain.ActivationRecord{
		TenantID:            run.req.TenantID,
		LocationID:          run.req.LocationID,
		LocationName:        run.req.LocationName,
		TelephonyNumber:     run.number.PhoneNumber,
		TelephonyNumberID:   run.number.Sid,
		VoiceAssistantID:    run.assistantID,
		VoiceNumberImportID: run.importID,
		ActivatedAt:         s.now(),
	}
	if s.subAccountsEnabled {
		rec.TelephonyAccountSID = run.profile.AccountSID
		rec.TelephonyAuthToken = run.profile.AuthToken
	}

	prompt := &domain.AgentPromptRecord{
		LocationID:    run.req.LocationID,
		CallType:      domain.CallTypeInbound,
		SystemPrompt:  systemPrompt,
		FirstMessage:  prompts.FirstMessage(run.businessName),
		VoiceProvider: s.assistant.VoiceProvider,
		VoiceID:       s.assistant.VoiceID,
		ModelProvider: s.assistant.ModelProvider,
		Model:         s.assistant.Model,
		BusinessName:  run.businessName,
		BusinessType:  run.businessType,
	}

	return s.repos.WithTx(ctx, func(ctx context.Context, repos repository.RepositoryManager) error {
		if _, err := repos.LocationConnection().SaveActivation(ctx, rec); err != nil {
			return err
		}
		return repos.AgentPrompt().Upsert(ctx, prompt)
	})
}

// hardStop ends the run, compensating for acquired resources when configured.
func (s *Service) hardStop(ctx context.Context, runID string, run *activationRun, kind StepKind, cause error) (*ActivationResult, error) {
	result := run.result(runID)
	result.Success = false
	result.Error = fmt.Sprintf("%s failed: %v", kind, cause)

	if s.provisioning.CompensateOnHardStop {
		result.Compensation = s.compensate(ctx, run)
	} else if run.number != nil || run.importID != "" {
		logger.Error(ctx, "Activation aborted, acquired resources left in place",
			zap.String("number_sid", numberSid(run)),
			zap.String("import_id", run.importID))
	}

	logger.Error(ctx, "Activation hard stop", zap.String("step", string(kind)), zap.Error(cause))
	return result, &HardStopError{Step: kind, Err: cause}
}

// compensate undoes acquired resources in reverse order of acquisition.
func (s *Service) compensate(ctx context.Context, run *activationRun) []Step {
	log := newStepLog()

	if run.assistantID != "" && !run.assistantReused {
		if err := s.voice.DeleteAssistant(ctx, run.assistantID); err != nil {
			log.fail(ctx, StepDeleteAssistant, err)
			logger.Error(ctx, "Compensation failed, assistant needs manual cleanup",
				zap.String("assistant_id", run.assistantID), zap.Error(err))
		} else {
			log.success(ctx, StepDeleteAssistant, map[string]string{"assistantId": run.assistantID})
		}
	}

	if run.importID != "" && !run.importReused {
		if err := s.voice.DeleteImportedNumber(ctx, run.importID); err != nil {
			log.fail(ctx, StepDeleteVoiceNumber, err)
			logger.Error(ctx, "Compensation failed, imported number needs manual cleanup",
				zap.String("import_id", run.importID), zap.Error(err))
		} else {
			log.success(ctx, StepDeleteVoiceNumber, map[string]string{"importId": run.importID})
		}
	}

	if run.number != nil && !run.numberReused {
		if err := s.telephony.ReleaseNumber(ctx, run.profile, run.number.Sid); err != nil {
			log.fail(ctx, StepReleaseNumber, err)
			logger.Error(ctx, "Compensation failed, telephony number needs manual release",
				zap.String("number_sid", run.number.Sid),
				zap.String("phone_number", run.number.PhoneNumber),
				zap.Error(err))
		} else {
			log.success(ctx, StepReleaseNumber, map[string]string{"sid": run.number.Sid})
		}
	}

	return log.Steps()
}

func (run *activationRun) result(runID string) *ActivationResult {
	result := &ActivationResult{
		RunID:               runID,
		Steps:               run.log.Steps(),
		VoiceAssistantID:    run.assistantID,
		VoiceNumberImportID: run.importID,
	}
	if run.number != nil {
		result.PhoneNumber = run.number.PhoneNumber
		result.TelephonyNumberID = run.number.Sid
	}
	return result
}

func alreadyActiveResult(runID string, conn *domain.LocationConnection) *ActivationResult {
	return &ActivationResult{
		RunID:               runID,
		Success:             true,
		AlreadyActive:       true,
		Message:             fmt.Sprintf("%s is already activated", conn.LocationName),
		PhoneNumber:         domain.StringValue(conn.TelephonyNumber),
		TelephonyNumberID:   domain.StringValue(conn.TelephonyNumberID),
		VoiceAssistantID:    domain.StringValue(conn.VoiceAssistantID),
		VoiceNumberImportID: domain.StringValue(conn.VoiceNumberImportID),
		Steps:               []Step{},
	}
}

func hasProviderIDs(conn *domain.LocationConnection) bool {
	return domain.StringValue(conn.TelephonyNumberID) != "" ||
		domain.StringValue(conn.VoiceNumberImportID) != "" ||
		domain.StringValue(conn.VoiceAssistantID) != ""
}

// reusedData builds step data from key/value pairs and marks the step as reused.
func reusedData(kv ...string) map[string]string {
	data := map[string]string{"reused": "true"}
	for i := 0; i+1 < len(kv); i += 2 {
		data[kv[i]] = kv[i+1]
	}
	return data
}

func numberSid(run *activationRun) string {
	if run.number == nil {
		return ""
	}
	return run.number.Sid
}

// SearchNumbers lists purchasable numbers in an area code with the default profile.
func (s *Service) SearchNumbers(ctx context.Context, areaCode string, limit int) ([]twilio.AvailableNumber, error) {
	areaCode = strings.TrimSpace(areaCode)
	if areaCode == "" {
		areaCode = s.provisioning.DefaultAreaCode
	}
	if !areaCodePattern.MatchString(areaCode) {
		return nil, &ValidationError{Field: "areaCode", Message: "must be a 3-digit area code"}
	}
	if limit <= 0 || limit > 10 {
		limit = 10
	}
	return s.telephony.SearchNumbers(ctx, s.telephony.DefaultProfile(), areaCode, limit)
}
