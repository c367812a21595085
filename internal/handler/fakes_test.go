package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/sylonai/sylon-voice-service/internal/domain"
	"github.com/sylonai/sylon-voice-service/internal/repository"
	"github.com/sylonai/sylon-voice-service/internal/services/callreport"
	"github.com/sylonai/sylon-voice-service/internal/services/provisioning"
	"github.com/sylonai/sylon-voice-service/pkg/twilio"
)

type fakeProvisioner struct {
	activateResult   *provisioning.ActivationResult
	activateErr      error
	deactivateResult *provisioning.DeactivationResult
	deactivateErr    error
	numbers          []twilio.AvailableNumber
	searchErr        error

	lastActivate provisioning.ActivationRequest
	lastAreaCode string
	lastLimit    int
}

func (f *fakeProvisioner) Activate(_ context.Context, req provisioning.ActivationRequest) (*provisioning.ActivationResult, error) {
	f.lastActivate = req
	return f.activateResult, f.activateErr
}

func (f *fakeProvisioner) Deactivate(_ context.Context, _ provisioning.DeactivationRequest) (*provisioning.DeactivationResult, error) {
	return f.deactivateResult, f.deactivateErr
}

func (f *fakeProvisioner) SearchNumbers(_ context.Context, areaCode string, limit int) ([]twilio.AvailableNumber, error) {
	f.lastAreaCode = areaCode
	f.lastLimit = limit
	return f.numbers, f.searchErr
}

type fakeProcessor struct {
	reports []*callreport.CallReport
	outcome *callreport.Outcome
	err     error
}

func (f *fakeProcessor) Process(_ context.Context, report *callreport.CallReport) (*callreport.Outcome, error) {
	f.reports = append(f.reports, report)
	if f.err != nil {
		return nil, f.err
	}
	if f.outcome != nil {
		return f.outcome, nil
	}
	return &callreport.Outcome{CallID: report.CallID}, nil
}

type fakeRepos struct {
	conns   map[string]*domain.LocationConnection
	logs    []*domain.CallLog
	usage   []*domain.UsageRecord
	listErr error
	pingErr error

	lastLimit int
}

func (r *fakeRepos) LocationConnection() repository.LocationConnectionRepository { return r }
func (r *fakeRepos) AgentPrompt() repository.AgentPromptRepository               { return nil }
func (r *fakeRepos) CallLog() repository.CallLogRepository                       { return r }
func (r *fakeRepos) UsageRecord() repository.UsageRecordRepository               { return r }
func (r *fakeRepos) Ping(context.Context) error                                  { return r.pingErr }
func (r *fakeRepos) Close() error                                                { return nil }

func (r *fakeRepos) WithTx(ctx context.Context, fn func(ctx context.Context, repos repository.RepositoryManager) error) error {
	return fn(ctx, r)
}

func (r *fakeRepos) GetByLocationID(_ context.Context, locationID string) (*domain.LocationConnection, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	if c, ok := r.conns[locationID]; ok {
		return c, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeRepos) GetByAssistantID(context.Context, string) (*domain.LocationConnection, error) {
	return nil, repository.ErrNotFound
}

func (r *fakeRepos) FindTenantSubAccount(context.Context, string) (*domain.LocationConnection, error) {
	return nil, repository.ErrNotFound
}

func (r *fakeRepos) LockByLocationID(context.Context, string) (*domain.LocationConnection, error) {
	return nil, repository.ErrNotFound
}

func (r *fakeRepos) SaveActivation(context.Context, *domain.ActivationRecord) (*domain.LocationConnection, error) {
	return nil, errors.New("not implemented")
}

func (r *fakeRepos) ClearActivation(context.Context, string) error { return nil }

func (r *fakeRepos) Create(context.Context, *domain.CallLog) (bool, error) { return true, nil }

func (r *fakeRepos) ListByLocation(_ context.Context, _ string, limit int) ([]*domain.CallLog, error) {
	r.lastLimit = limit
	return r.logs, r.listErr
}

func (r *fakeRepos) Increment(context.Context, domain.UsageDelta) error { return nil }

func (r *fakeRepos) ListByTenant(context.Context, string) ([]*domain.UsageRecord, error) {
	return r.usage, r.listErr
}

func doRequest(t *testing.T, h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}
