package callreport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sylonai/sylon-voice-service/internal/domain"
	"github.com/sylonai/sylon-voice-service/internal/repository"
	"github.com/sylonai/sylon-voice-service/pkg/logger"
	"github.com/sylonai/sylon-voice-service/pkg/pubsub"
	"github.com/sylonai/sylon-voice-service/pkg/redis"
	"github.com/sylonai/sylon-voice-service/pkg/vapi"
	"go.uber.org/zap"
)

// EventCallCompleted is published for every newly logged call.
const EventCallCompleted = "call.completed"

const assistantCacheTTL = 10 * time.Minute

// AssistantCache caches assistant id to location attribution.
type AssistantCache interface {
	GenerateKey(keyType redis.KeyType, identifier string) string
	GetJSON(ctx context.Context, key string, out interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Archiver stores full call reports.
type Archiver interface {
	Upload(ctx context.Context, objectPath, contentType string, content io.Reader) (string, error)
	Delete(ctx context.Context, uri string) error
}

// EventPublisher publishes call events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, evt pubsub.Event) error
}

// Attribution ties a call to a tenant location.
type Attribution struct {
	TenantID   string `json:"tenant_id"`
	LocationID string `json:"location_id"`
	// Source is "cache", "database" or "metadata".
	Source string `json:"-"`
}

// Outcome describes what processing a report did.
type Outcome struct {
	CallID     string `json:"callId"`
	Duplicate  bool   `json:"duplicate,omitempty"`
	TenantID   string `json:"tenantId,omitempty"`
	LocationID string `json:"locationId,omitempty"`
	Archive    string `json:"archive,omitempty"`
}

// Options holds the optional collaborators.
type Options struct {
	Cache    AssistantCache
	Archiver Archiver
	Events   EventPublisher
}

// Service records end-of-call reports as call logs and monthly usage.
type Service struct {
	repos    repository.RepositoryManager
	cache    AssistantCache
	archiver Archiver
	events   EventPublisher
	now      func() time.Time
}

// NewService creates a call report service
func NewService(repos repository.RepositoryManager, opts Options) *Service {
	return &Service{
		repos:    repos,
		cache:    opts.Cache,
		archiver: opts.Archiver,
		events:   opts.Events,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Process logs a call and adds it to its tenant's usage. Replays of the same provider call id
// are detected and leave usage untouched.
func (s *Service) Process(ctx context.Context, report *CallReport) (*Outcome, error) {
	ctx = logger.WithFields(ctx,
		zap.String("call_id", report.CallID),
		zap.String("assistant_id", report.AssistantID))

	attribution := s.resolveAttribution(ctx, report)
	if attribution.TenantID == "" {
		logger.Warn(ctx, "Call report could not be attributed to a tenant")
	}

	outcome := &Outcome{
		CallID:     report.CallID,
		TenantID:   attribution.TenantID,
		LocationID: attribution.LocationID,
	}

	archiveURI := s.archive(ctx, report, attribution)
	outcome.Archive = archiveURI

	callLog := s.buildCallLog(report, attribution, archiveURI)
	created := false
	err := s.repos.WithTx(ctx, func(ctx context.Context, repos repository.RepositoryManager) error {
		var err error
		created, err = repos.CallLog().Create(ctx, callLog)
		if err != nil || !created || attribution.TenantID == "" {
			return err
		}
		return repos.UsageRecord().Increment(ctx, s.usageDelta(report, attribution.TenantID))
	})
	if err != nil {
		if archiveURI != "" {
			if delErr := s.archiver.Delete(ctx, archiveURI); delErr != nil {
				logger.Warn(ctx, "Failed to remove archive of unrecorded call", zap.String("archive", archiveURI), zap.Error(delErr))
			}
		}
		return nil, fmt.Errorf("failed to record call: %w", err)
	}

	if !created {
		outcome.Duplicate = true
		logger.Info(ctx, "Call report already recorded")
		return outcome, nil
	}

	logger.Info(ctx, "Call report recorded",
		zap.String("tenant_id", attribution.TenantID),
		zap.String("location_id", attribution.LocationID),
		zap.Int("duration_seconds", report.DurationSeconds),
		zap.Int64("cost_cents", report.CostCents),
		zap.String("status", report.Status()))

	s.publish(ctx, report, attribution)
	return outcome, nil
}

// resolveAttribution looks the assistant up in the cache, then the database, then falls back
// to the metadata set at assistant creation.
func (s *Service) resolveAttribution(ctx context.Context, report *CallReport) Attribution {
	if report.AssistantID != "" {
		if s.cache != nil {
			var cached Attribution
			key := s.cache.GenerateKey(redis.ASSISTANT_LOCATION, report.AssistantID)
			found, err := s.cache.GetJSON(ctx, key, &cached)
			if err != nil {
				logger.Warn(ctx, "Assistant cache lookup failed", zap.Error(err))
			} else if found && cached.TenantID != "" {
				cached.Source = "cache"
				return cached
			}
		}

		conn, err := s.repos.LocationConnection().GetByAssistantID(ctx, report.AssistantID)
		switch {
		case err == nil:
			attribution := Attribution{TenantID: conn.TenantID, LocationID: conn.LocationID, Source: "database"}
			s.cacheAttribution(ctx, report.AssistantID, attribution)
			return attribution
		case !errors.Is(err, repository.ErrNotFound):
			logger.Warn(ctx, "Assistant lookup failed, falling back to metadata", zap.Error(err))
		}
	}

	return Attribution{
		TenantID:   report.Metadata[vapi.MetadataTenantID],
		LocationID: report.Metadata[vapi.MetadataLocationID],
		Source:     "metadata",
	}
}

func (s *Service) cacheAttribution(ctx context.Context, assistantID string, attribution Attribution) {
	if s.cache == nil {
		return
	}
	key := s.cache.GenerateKey(redis.ASSISTANT_LOCATION, assistantID)
	if err := s.cache.SetJSON(ctx, key, attribution, assistantCacheTTL); err != nil {
		logger.Warn(ctx, "Failed to cache assistant attribution", zap.Error(err))
	}
}

// archive uploads the normalized report and returns its URI, or "" when archiving is off or fails.
func (s *Service) archive(ctx context.Context, report *CallReport, attribution Attribution) string {
	if s.archiver == nil {
		return ""
	}
	data, err := json.Marshal(report)
	if err != nil {
		logger.Warn(ctx, "Failed to encode call report for archive", zap.Error(err))
		return ""
	}
	uri, err := s.archiver.Upload(ctx, ArchivePath(attribution.TenantID, report.CallID, s.callTime(report)), "application/json", bytes.NewReader(data))
	if err != nil {
		logger.Warn(ctx, "Failed to archive call report", zap.Error(err))
		return ""
	}
	return uri
}

// ArchivePath is the object path of a call report: call-reports/<tenant>/<yyyy>/<mm>/<call id>.json.
func ArchivePath(tenantID, callID string, at time.Time) string {
	if tenantID == "" {
		tenantID = "unattributed"
	}
	return fmt.Sprintf("call-reports/%s/%s/%s.json", tenantID, at.UTC().Format("2006/01"), callID)
}

func (s *Service) buildCallLog(report *CallReport, attribution Attribution, archiveURI string) *domain.CallLog {
	metadata := domain.JSONB{
		"endedReason": report.EndedReason,
		"assistantId": report.AssistantID,
		"analysis":    report.Analysis,
	}
	if report.Analysis == nil {
		metadata["analysis"] = map[string]interface{}{}
	}

	return &domain.CallLog{
		TenantID:          domain.StringPtr(attribution.TenantID),
		LocationID:        domain.StringPtr(attribution.LocationID),
		ProviderCallID:    report.CallID,
		AssistantID:       report.AssistantID,
		ContactPhone:      report.CustomerNumber,
		Direction:         report.Direction(),
		Status:            report.Status(),
		DurationSeconds:   report.DurationSeconds,
		CostCents:         report.CostCents,
		Transcript:        report.Transcript,
		Summary:           report.Summary,
		RecordingURL:      report.RecordingURL,
		TranscriptArchive: archiveURI,
		Sentiment:         domain.StringPtr(report.Sentiment),
		AppointmentBooked: false,
		Metadata:          metadata,
	}
}

func (s *Service) usageDelta(report *CallReport, tenantID string) domain.UsageDelta {
	start, end := domain.MonthPeriod(s.callTime(report))
	return domain.UsageDelta{
		TenantID:    tenantID,
		PeriodStart: start,
		PeriodEnd:   end,
		Calls:       1,
		Minutes:     report.BilledMinutes(),
		CostCents:   report.CostCents,
	}
}

// callTime is when the call ended, or now when the report carries no timestamp.
func (s *Service) callTime(report *CallReport) time.Time {
	if report.EndedAt != nil {
		return report.EndedAt.UTC()
	}
	return s.now()
}

func (s *Service) publish(ctx context.Context, report *CallReport, attribution Attribution) {
	if s.events == nil {
		return
	}
	err := s.events.PublishEvent(ctx, pubsub.Event{
		Type:       EventCallCompleted,
		TenantID:   attribution.TenantID,
		LocationID: attribution.LocationID,
		OccurredAt: s.now(),
		Payload: map[string]interface{}{
			"callId":          report.CallID,
			"assistantId":     report.AssistantID,
			"status":          report.Status(),
			"direction":       report.Direction(),
			"durationSeconds": report.DurationSeconds,
			"costCents":       report.CostCents,
		},
	})
	if err != nil {
		logger.Warn(ctx, "Failed to publish call event", zap.Error(err))
	}
}
