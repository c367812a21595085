package provisioning

import (
	"context"
	"fmt"
	"sync"

	"github.com/sylonai/sylon-voice-service/internal/config"
	"github.com/sylonai/sylon-voice-service/internal/domain"
	"github.com/sylonai/sylon-voice-service/internal/repository"
	"github.com/sylonai/sylon-voice-service/pkg/pubsub"
	"github.com/sylonai/sylon-voice-service/pkg/twilio"
	"github.com/sylonai/sylon-voice-service/pkg/vapi"
)

// fakeRepos is an in-memory RepositoryManager that also implements every repository.
type fakeRepos struct {
	mu      sync.Mutex
	conns   map[string]*domain.LocationConnection
	prompts map[string]*domain.AgentPromptRecord

	saveErr  error
	clearErr error
	getErr   error

	saveCalls int
}

func newFakeRepos() *fakeRepos {
	return &fakeRepos{
		conns:   map[string]*domain.LocationConnection{},
		prompts: map[string]*domain.AgentPromptRecord{},
	}
}

func (r *fakeRepos) LocationConnection() repository.LocationConnectionRepository { return r }
func (r *fakeRepos) AgentPrompt() repository.AgentPromptRepository               { return r }
func (r *fakeRepos) CallLog() repository.CallLogRepository                       { return r }
func (r *fakeRepos) UsageRecord() repository.UsageRecordRepository               { return r }

func (r *fakeRepos) WithTx(ctx context.Context, fn func(ctx context.Context, repos repository.RepositoryManager) error) error {
	return fn(ctx, r)
}

func (r *fakeRepos) Ping(context.Context) error { return nil }
func (r *fakeRepos) Close() error               { return nil }

func (r *fakeRepos) GetByLocationID(_ context.Context, locationID string) (*domain.LocationConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	conn, ok := r.conns[locationID]
	if !ok {
		return nil, fmt.Errorf("location connection %s: %w", locationID, repository.ErrNotFound)
	}
	cp := *conn
	return &cp, nil
}

func (r *fakeRepos) GetByAssistantID(_ context.Context, assistantID string) (*domain.LocationConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conn := range r.conns {
		if domain.StringValue(conn.VoiceAssistantID) == assistantID {
			cp := *conn
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeRepos) FindTenantSubAccount(_ context.Context, tenantID string) (*domain.LocationConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conn := range r.conns {
		if conn.TenantID == tenantID && conn.TelephonyAccountSID != nil && conn.TelephonyAuthToken != nil {
			cp := *conn
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeRepos) LockByLocationID(ctx context.Context, locationID string) (*domain.LocationConnection, error) {
	return r.GetByLocationID(ctx, locationID)
}

func (r *fakeRepos) SaveActivation(ctx context.Context, rec *domain.ActivationRecord) (*domain.LocationConnection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveCalls++
	if r.saveErr != nil {
		return nil, r.saveErr
	}

	conn, ok := r.conns[rec.LocationID]
	if !ok {
		conn = &domain.LocationConnection{
			ID:           "conn-" + rec.LocationID,
			TenantID:     rec.TenantID,
			LocationID:   rec.LocationID,
			LocationName: rec.LocationName,
		}
		r.conns[rec.LocationID] = conn
	}
	conn.TelephonyNumber = domain.StringPtr(rec.TelephonyNumber)
	conn.TelephonyNumberID = domain.StringPtr(rec.TelephonyNumberID)
	conn.VoiceAssistantID = domain.StringPtr(rec.VoiceAssistantID)
	conn.VoiceNumberImportID = domain.StringPtr(rec.VoiceNumberImportID)
	conn.TelephonyAccountSID = domain.StringPtr(rec.TelephonyAccountSID)
	conn.TelephonyAuthToken = domain.StringPtr(rec.TelephonyAuthToken)
	conn.IsActivated = rec.Complete()
	conn.ActivatedAt = nil
	if conn.IsActivated {
		at := rec.ActivatedAt
		conn.ActivatedAt = &at
	}
	cp := *conn
	return &cp, nil
}

func (r *fakeRepos) ClearActivation(_ context.Context, locationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clearErr != nil {
		return r.clearErr
	}
	conn, ok := r.conns[locationID]
	if !ok {
		return repository.ErrNotFound
	}
	conn.TelephonyNumber = nil
	conn.TelephonyNumberID = nil
	conn.VoiceAssistantID = nil
	conn.VoiceNumberImportID = nil
	conn.IsActivated = false
	conn.ActivatedAt = nil
	return nil
}

func (r *fakeRepos) Upsert(_ context.Context, rec *domain.AgentPromptRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	cp.Active = true
	r.prompts[rec.LocationID+"|"+string(rec.CallType)] = &cp
	return nil
}

func (r *fakeRepos) SetActive(_ context.Context, locationID string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.prompts {
		if p.LocationID == locationID {
			p.Active = active
		}
	}
	return nil
}

func (r *fakeRepos) GetByLocation(_ context.Context, locationID string, callType domain.CallType) (*domain.AgentPromptRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prompts[locationID+"|"+string(callType)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeRepos) Create(context.Context, *domain.CallLog) (bool, error) { return true, nil }

func (r *fakeRepos) ListByLocation(context.Context, string, int) ([]*domain.CallLog, error) {
	return nil, nil
}

func (r *fakeRepos) Increment(context.Context, domain.UsageDelta) error { return nil }

func (r *fakeRepos) ListByTenant(context.Context, string) ([]*domain.UsageRecord, error) {
	return nil, nil
}

func (r *fakeRepos) conn(locationID string) *domain.LocationConnection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[locationID]
}

type fakeTelephony struct {
	mu sync.Mutex

	defaultProfile config.TelephonyProfile
	available      []twilio.AvailableNumber
	nextSid        int

	searchErr     error
	purchaseErr   error
	releaseErr    error
	subAccountErr error
	subAccount    config.TelephonyProfile

	// afterPurchase runs once a purchase has succeeded.
	afterPurchase func()

	searches         []string
	purchases        []string
	purchaseProfiles []config.TelephonyProfile
	releases         []string
	releaseProfiles  []config.TelephonyProfile
	subAccountNames  []string
}

func newFakeTelephony(available ...string) *fakeTelephony {
	t := &fakeTelephony{
		defaultProfile: config.TelephonyProfile{Name: config.DefaultProfileName, AccountSID: "AC_default", AuthToken: "default_token"},
		subAccount:     config.TelephonyProfile{Name: "sub", AccountSID: "AC_sub", AuthToken: "sub_token"},
	}
	for _, n := range available {
		t.available = append(t.available, twilio.AvailableNumber{PhoneNumber: n})
	}
	return t
}

func (t *fakeTelephony) DefaultProfile() config.TelephonyProfile { return t.defaultProfile }

func (t *fakeTelephony) SearchNumbers(_ context.Context, _ config.TelephonyProfile, areaCode string, limit int) ([]twilio.AvailableNumber, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.searches = append(t.searches, areaCode)
	if t.searchErr != nil {
		return nil, t.searchErr
	}
	if limit < len(t.available) {
		return t.available[:limit], nil
	}
	return t.available, nil
}

func (t *fakeTelephony) PurchaseNumber(ctx context.Context, profile config.TelephonyProfile, phoneNumber, _ string) (*twilio.PurchasedNumber, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.purchases = append(t.purchases, phoneNumber)
	t.purchaseProfiles = append(t.purchaseProfiles, profile)
	if t.purchaseErr != nil {
		t.mu.Unlock()
		return nil, t.purchaseErr
	}
	t.nextSid++
	number := &twilio.PurchasedNumber{Sid: fmt.Sprintf("PN%d", t.nextSid), PhoneNumber: phoneNumber}
	hook := t.afterPurchase
	t.mu.Unlock()

	if hook != nil {
		hook()
	}
	return number, nil
}

func (t *fakeTelephony) ReleaseNumber(ctx context.Context, profile config.TelephonyProfile, numberSid string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.releases = append(t.releases, numberSid)
	t.releaseProfiles = append(t.releaseProfiles, profile)
	return t.releaseErr
}

func (t *fakeTelephony) CreateSubAccount(_ context.Context, friendlyName string) (config.TelephonyProfile, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subAccountNames = append(t.subAccountNames, friendlyName)
	if t.subAccountErr != nil {
		return config.TelephonyProfile{}, t.subAccountErr
	}
	return t.subAccount, nil
}

type fakeVoiceAI struct {
	mu sync.Mutex

	importErr          error
	createErr          error
	linkErr            error
	deleteAssistantErr error
	deleteNumberErr    error

	imports           []string
	importCreds       []config.TelephonyProfile
	created           []*vapi.AssistantConfig
	links             [][2]string
	deletedAssistants []string
	deletedNumbers    []string
}

func (v *fakeVoiceAI) ImportNumber(ctx context.Context, number string, creds config.TelephonyProfile, _ string) (*vapi.PhoneNumber, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.imports = append(v.imports, number)
	v.importCreds = append(v.importCreds, creds)
	if v.importErr != nil {
		return nil, v.importErr
	}
	return &vapi.PhoneNumber{ID: fmt.Sprintf("import_%d", len(v.imports)), Number: number}, nil
}

func (v *fakeVoiceAI) DeleteImportedNumber(ctx context.Context, importID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.deletedNumbers = append(v.deletedNumbers, importID)
	return v.deleteNumberErr
}

func (v *fakeVoiceAI) CreateAssistant(ctx context.Context, cfg *vapi.AssistantConfig) (*vapi.Assistant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.created = append(v.created, cfg)
	if v.createErr != nil {
		return nil, v.createErr
	}
	return &vapi.Assistant{ID: fmt.Sprintf("asst_%d", len(v.created)), Name: cfg.Name}, nil
}

func (v *fakeVoiceAI) DeleteAssistant(ctx context.Context, assistantID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.deletedAssistants = append(v.deletedAssistants, assistantID)
	return v.deleteAssistantErr
}

func (v *fakeVoiceAI) LinkNumberToAssistant(ctx context.Context, importID, assistantID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.links = append(v.links, [2]string{importID, assistantID})
	return v.linkErr
}

type fakeEvents struct {
	mu     sync.Mutex
	events []pubsub.Event
	err    error
}

func (e *fakeEvents) PublishEvent(_ context.Context, evt pubsub.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
	return e.err
}

func (e *fakeEvents) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, evt := range e.events {
		out = append(out, evt.Type)
	}
	return out
}

type testEnv struct {
	repos     *fakeRepos
	telephony *fakeTelephony
	voice     *fakeVoiceAI
	events    *fakeEvents
	locker    *LocalLocker
	cfg       config.ServiceConfig
}

func newTestEnv(available ...string) *testEnv {
	cfg := config.DefaultServiceConfig()
	cfg.VoiceAI.CallReportURL = "https://hooks.example.com/vapi-call-end"
	return &testEnv{
		repos:     newFakeRepos(),
		telephony: newFakeTelephony(available...),
		voice:     &fakeVoiceAI{},
		events:    &fakeEvents{},
		locker:    NewLocalLocker(),
		cfg:       cfg,
	}
}

func (e *testEnv) service() *Service {
	return NewService(Dependencies{
		Repos:     e.repos,
		Telephony: e.telephony,
		VoiceAI:   e.voice,
		Locker:    e.locker,
		Events:    e.events,
	}, &e.cfg)
}

func stepKinds(steps []Step) []StepKind {
	out := make([]StepKind, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Kind)
	}
	return out
}

func stepStatuses(steps []Step) []StepStatus {
	out := make([]StepStatus, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Status)
	}
	return out
}
