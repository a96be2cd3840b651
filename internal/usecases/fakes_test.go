package usecases

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"revenda_bot/internal/entities"
	"revenda_bot/internal/interfaces"
)

type fakeTenants struct {
	mu      sync.Mutex
	tenants []entities.Tenant
	states  map[string]string
	blocked map[string]string
}

func (f *fakeTenants) FindByInstanceName(_ context.Context, instance string) (*entities.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tenants {
		if strings.EqualFold(f.tenants[i].InstanceName, instance) {
			t := f.tenants[i]
			return &t, nil
		}
	}
	return nil, nil
}

func (f *fakeTenants) ListSellers(context.Context) ([]entities.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entities.Tenant
	for _, t := range f.tenants {
		if t.Kind == entities.TenantSeller {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTenants) UpdateConnectionState(_ context.Context, tenantID, state string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.states == nil {
		f.states = map[string]string{}
	}
	f.states[tenantID] = state
	return nil
}

func (f *fakeTenants) Block(_ context.Context, tenantID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blocked == nil {
		f.blocked = map[string]string{}
	}
	f.blocked[tenantID] = reason
	return nil
}

type fakeUsers struct{ admins []string }

func (f fakeUsers) ListAdminInstanceNames(context.Context) ([]string, error) { return f.admins, nil }

type fakeSettings map[string]string

func (f fakeSettings) GetSetting(_ context.Context, key string) (string, error) { return f[key], nil }

type fakeContacts struct {
	mu       sync.Mutex
	nextID   int64
	contacts map[string]*entities.Contact
	marks    []entities.ResponseMark
}

func newFakeContacts() *fakeContacts {
	return &fakeContacts{contacts: map[string]*entities.Contact{}}
}

func (f *fakeContacts) GetOrCreate(_ context.Context, tenantID, phone, name string) (*entities.Contact, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := tenantID + "|" + phone
	if c, ok := f.contacts[key]; ok {
		cp := *c
		return &cp, false, nil
	}
	f.nextID++
	c := &entities.Contact{ID: f.nextID, TenantID: tenantID, Phone: phone, Name: name, Status: entities.ContactNew}
	f.contacts[key] = c
	cp := *c
	return &cp, true, nil
}

func (f *fakeContacts) byID(id int64) *entities.Contact {
	for _, c := range f.contacts {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (f *fakeContacts) TouchInteraction(_ context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c := f.byID(id); c != nil {
		c.LastInteractionAt = &at
	}
	return nil
}

func (f *fakeContacts) RecordResponse(_ context.Context, id int64, mark entities.ResponseMark) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks = append(f.marks, mark)
	c := f.byID(id)
	if c == nil {
		return fmt.Errorf("contact %d not found", id)
	}
	at := mark.At
	c.LastResponseAt = &at
	c.LastInteractionAt = &at
	c.InteractionCount++
	switch mark.Interactive {
	case entities.InteractiveButtons:
		c.LastButtonsSentAt = &at
	case entities.InteractiveList:
		c.LastListSentAt = &at
	}
	if c.Status == entities.ContactNew {
		c.Status = entities.ContactKnown
	}
	return nil
}

func (f *fakeContacts) get(tenantID, phone string) *entities.Contact {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.contacts[tenantID+"|"+phone]
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

type fakeRules struct{ rules map[string][]entities.Rule }

func (f fakeRules) ActiveRules(_ context.Context, tenantID string) ([]entities.Rule, error) {
	return f.rules[tenantID], nil
}

type fakeFlows struct {
	mu       sync.Mutex
	flows    []entities.Flow
	nodes    map[int64][]entities.FlowNode
	sessions map[string]*entities.FlowSession
	nextID   int64
	saves    int
}

func newFakeFlows() *fakeFlows {
	return &fakeFlows{nodes: map[int64][]entities.FlowNode{}, sessions: map[string]*entities.FlowSession{}}
}

func (f *fakeFlows) MainFlow(_ context.Context, tenantID string) (*entities.Flow, error) {
	for i := range f.flows {
		if f.flows[i].TenantID == tenantID && f.flows[i].IsMainMenu && f.flows[i].IsActive {
			fl := f.flows[i]
			return &fl, nil
		}
	}
	return nil, nil
}

func (f *fakeFlows) FlowByID(_ context.Context, tenantID string, id int64) (*entities.Flow, error) {
	for i := range f.flows {
		if f.flows[i].TenantID == tenantID && f.flows[i].ID == id {
			fl := f.flows[i]
			return &fl, nil
		}
	}
	return nil, nil
}

func (f *fakeFlows) Nodes(_ context.Context, flowID int64) ([]entities.FlowNode, error) {
	return f.nodes[flowID], nil
}

func (f *fakeFlows) ActiveSession(_ context.Context, tenantID, phone string) (*entities.FlowSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[tenantID+"|"+phone]
	if s == nil || !s.IsActive {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeFlows) SaveSession(_ context.Context, s *entities.FlowSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if s.ID == 0 {
		f.nextID++
		s.ID = f.nextID
	}
	cp := *s
	f.sessions[s.TenantID+"|"+s.ContactPhone] = &cp
	return nil
}

func (f *fakeFlows) session(tenantID, phone string) *entities.FlowSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[tenantID+"|"+phone]
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

type fakeTemplates map[int64]entities.Template

func (f fakeTemplates) GetTemplate(_ context.Context, _ string, id int64) (*entities.Template, error) {
	t, ok := f[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

type fakeAdmin struct {
	mu       sync.Mutex
	nodes    []entities.AdminNode
	keywords []entities.Keyword
	contacts map[string]*entities.AdminContact
}

func newFakeAdmin(nodes []entities.AdminNode) *fakeAdmin {
	return &fakeAdmin{nodes: nodes, contacts: map[string]*entities.AdminContact{}}
}

func (f *fakeAdmin) Nodes(context.Context) ([]entities.AdminNode, error) { return f.nodes, nil }

func (f *fakeAdmin) Keywords(context.Context) ([]entities.Keyword, error) { return f.keywords, nil }

func (f *fakeAdmin) GetOrCreateContact(_ context.Context, phone, name string) (*entities.AdminContact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[phone]
	if !ok {
		c = &entities.AdminContact{ID: int64(len(f.contacts) + 1), Phone: phone, Name: name, CurrentNodeKey: entities.AdminRootNode}
		f.contacts[phone] = c
	}
	cp := *c
	return &cp, nil
}

func (f *fakeAdmin) SaveContactState(_ context.Context, id int64, nodeKey string, respondedAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.contacts {
		if c.ID == id {
			c.CurrentNodeKey = nodeKey
			c.InteractionCount++
			if respondedAt != nil {
				c.LastResponseAt = respondedAt
			}
		}
	}
	return nil
}

type fakeSendLog struct {
	mu      sync.Mutex
	entries []entities.SendLogEntry
	err     error
}

func (f *fakeSendLog) Insert(_ context.Context, e entities.SendLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeSendLog) all() []entities.SendLogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entities.SendLogEntry(nil), f.entries...)
}

type fakeInteractions struct {
	mu   sync.Mutex
	logs []entities.InteractionLog
}

func (f *fakeInteractions) Insert(_ context.Context, l entities.InteractionLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, l)
	return nil
}

func (f *fakeInteractions) last() entities.InteractionLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.logs) == 0 {
		return entities.InteractionLog{}
	}
	return f.logs[len(f.logs)-1]
}

type providerCall struct {
	Endpoint string
	Instance string
	Payload  any
}

// fakeProvider answers each endpoint with a fixed status; 200 when unset.
type fakeProvider struct {
	mu        sync.Mutex
	state     string
	stateErr  error
	statuses  map[string]int
	errs      map[string]error
	calls     []providerCall
	presences int
}

func (f *fakeProvider) Send(_ context.Context, endpoint, instance string, payload any) (interfaces.ProviderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, providerCall{Endpoint: endpoint, Instance: instance, Payload: payload})
	if err := f.errs[endpoint]; err != nil {
		return interfaces.ProviderResponse{}, err
	}
	status := 200
	if s, ok := f.statuses[endpoint]; ok {
		status = s
	}
	resp := interfaces.ProviderResponse{StatusCode: status, Body: fmt.Sprintf(`{"endpoint":%q}`, endpoint)}
	if status >= 300 {
		return resp, fmt.Errorf("provider status %d", status)
	}
	return resp, nil
}

func (f *fakeProvider) ConnectionState(context.Context, string) (string, interfaces.ProviderResponse, error) {
	if f.stateErr != nil {
		return "", interfaces.ProviderResponse{}, f.stateErr
	}
	state := f.state
	if state == "" {
		state = entities.ConnectionOpen
	}
	return state, interfaces.ProviderResponse{StatusCode: 200, Body: `{"instance":{"state":"` + state + `"}}`}, nil
}

func (f *fakeProvider) SendPresence(context.Context, string, string, time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presences++
	return nil
}

func (f *fakeProvider) endpoints() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Endpoint)
	}
	return out
}

func (f *fakeProvider) lastCall() providerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return providerCall{}
	}
	return f.calls[len(f.calls)-1]
}

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []string
}

func (f *fakeAlerter) Alert(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, text)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (f *fakePublisher) Publish(_ context.Context, key string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, key)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func fixedClock(t time.Time) Clock { return func() time.Time { return t } }

func ptrTime(t time.Time) *time.Time { return &t }

func ptrInt(v int64) *int64 { return &v }
