package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	appErrors "github.com/unclebandit/leadpilot-backend/internal/errors"
	"github.com/unclebandit/leadpilot-backend/internal/gateway"
	"github.com/unclebandit/leadpilot-backend/internal/generator"
	"github.com/unclebandit/leadpilot-backend/internal/model"
)

// MockLeadRepo is an in-memory lead store honouring filter, cursor and limit.
type MockLeadRepo struct {
	mu        sync.Mutex
	leads     map[int64]*model.Lead
	cursors   []int64
	batchLens []int
	failNext  int
	failAll   bool
	promoted  []promotion
}

type promotion struct {
	LeadID int64
	Name   string
	Value  *float64
}

func NewMockLeadRepo(leads ...model.Lead) *MockLeadRepo {
	m := &MockLeadRepo{leads: make(map[int64]*model.Lead)}
	for i := range leads {
		l := leads[i]
		if l.ContactStatus == "" {
			l.ContactStatus = model.ContactStatusUntouched
		}
		m.leads[l.ID] = &l
	}
	return m
}

func matches(f model.LeadFilter, l *model.Lead) bool {
	if f.Category != "" && f.Category != l.Category {
		return false
	}
	if f.City != "" && f.City != l.City {
		return false
	}
	if f.State != "" && f.State != l.State {
		return false
	}
	switch f.Strategy {
	case model.StrategyNewOnly:
		return l.ContactStatus == model.ContactStatusUntouched
	case model.StrategyFollowUpOnly:
		return l.ContactStatus == model.ContactStatusContacted
	}
	return true
}

func (m *MockLeadRepo) Query(ctx context.Context, filter model.LeadFilter, cursor int64, limit int) ([]model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cursors = append(m.cursors, cursor)
	if m.failAll {
		return nil, errors.New("connection refused")
	}
	if m.failNext > 0 {
		m.failNext--
		return nil, errors.New("connection reset")
	}

	var ids []int64
	for id, l := range m.leads {
		if id > cursor && matches(filter, l) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]model.Lead, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.leads[id])
	}
	m.batchLens = append(m.batchLens, len(out))
	return out, nil
}

func (m *MockLeadRepo) CountEligible(ctx context.Context, filter model.LeadFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.leads {
		if matches(filter, l) {
			n++
		}
	}
	return n, nil
}

func (m *MockLeadRepo) UpdateStatus(ctx context.Context, leadID int64, status model.ContactStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.leads[leadID]; ok {
		l.ContactStatus = status
	}
	return nil
}

func (m *MockLeadRepo) FindByAddress(ctx context.Context, address string) (*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *model.Lead
	for _, l := range m.leads {
		if l.Address == address && (found == nil || l.ID < found.ID) {
			found = l
		}
	}
	if found == nil {
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

func (m *MockLeadRepo) PromoteToCustomer(ctx context.Context, leadID int64, name string, value *float64) (*model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[leadID]
	if !ok {
		return nil, appErrors.ErrLeadNotFound
	}
	delete(m.leads, leadID)
	m.promoted = append(m.promoted, promotion{LeadID: leadID, Name: name, Value: value})
	return &model.Customer{ID: 1, Address: l.Address, Name: name, DealValue: value}, nil
}

func (m *MockLeadRepo) Status(id int64) model.ContactStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.leads[id]; ok {
		return l.ContactStatus
	}
	return ""
}

func (m *MockLeadRepo) Cursors() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.cursors...)
}

func (m *MockLeadRepo) BatchLens() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.batchLens...)
}

// MockRunRepo keeps runs in memory.
type MockRunRepo struct {
	mu   sync.Mutex
	runs map[string]*model.CampaignRun
}

func NewMockRunRepo() *MockRunRepo {
	return &MockRunRepo{runs: make(map[string]*model.CampaignRun)}
}

func (m *MockRunRepo) Create(ctx context.Context, run *model.CampaignRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.Status == "" {
		run.Status = model.RunStatusRunning
	}
	run.CreatedAt = time.Now()
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *MockRunRepo) GetByID(ctx context.Context, id string) (*model.CampaignRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, appErrors.NewRunNotFound(id)
	}
	cp := *r
	return &cp, nil
}

func (m *MockRunRepo) List(ctx context.Context, limit int) ([]*model.CampaignRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.CampaignRun{}
	for _, r := range m.runs {
		cp := *r
		out = append(out, &cp)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockRunRepo) ListUnfinished(ctx context.Context) ([]*model.CampaignRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.CampaignRun{}
	for _, r := range m.runs {
		if r.Status == model.RunStatusRunning || r.Status == model.RunStatusStopping {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockRunRepo) SaveProgress(ctx context.Context, id string, cursor int64, success, failed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[id]; ok {
		r.Cursor, r.SuccessCount, r.FailedCount = cursor, success, failed
	}
	return nil
}

func (m *MockRunRepo) MarkStopping(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[id]; ok && r.Status == model.RunStatusRunning {
		r.Status = model.RunStatusStopping
	}
	return nil
}

func (m *MockRunRepo) Finish(ctx context.Context, id string, status model.RunStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[id]; ok {
		now := time.Now()
		r.Status, r.Error, r.FinishedAt = status, errMsg, &now
	}
	return nil
}

func (m *MockRunRepo) Reopen(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok || (r.Status != model.RunStatusStopped && r.Status != model.RunStatusFailed) {
		return false, nil
	}
	r.Status, r.Error, r.FinishedAt = model.RunStatusRunning, "", nil
	return true, nil
}

// MockLogRepo collects campaign log entries.
type MockLogRepo struct {
	mu      sync.Mutex
	entries []model.CampaignLogEntry
}

func (m *MockLogRepo) Append(ctx context.Context, entry *model.CampaignLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *MockLogRepo) ListByRun(ctx context.Context, runID string) ([]model.CampaignLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.CampaignLogEntry{}
	for _, e := range m.entries {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, nil
}

// MockGateway records every call in order. fail maps an address to the error
// its sends return; onSend runs before a send is recorded.
type MockGateway struct {
	mu     sync.Mutex
	calls  []string
	sends  []sentMessage
	fail   map[string]error
	onSend func(destination string)
}

type sentMessage struct {
	To      string
	Payload gateway.Payload
	At      time.Time
}

func NewMockGateway() *MockGateway {
	return &MockGateway{fail: make(map[string]error)}
}

func (g *MockGateway) Send(ctx context.Context, destination string, p gateway.Payload) (string, error) {
	if g.onSend != nil {
		g.onSend(destination)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail[destination]; err != nil {
		g.calls = append(g.calls, "send-failed:"+destination)
		return "", err
	}
	g.calls = append(g.calls, "send:"+p.Text)
	g.sends = append(g.sends, sentMessage{To: destination, Payload: p, At: time.Now()})
	return "gw-id", nil
}

func (g *MockGateway) SetTyping(ctx context.Context, destination string, on bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if on {
		g.calls = append(g.calls, "typing-on")
	} else {
		g.calls = append(g.calls, "typing-off")
	}
	return nil
}

func (g *MockGateway) MarkSeen(ctx context.Context, destination string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "seen")
	return nil
}

func (g *MockGateway) Sends() []sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sentMessage(nil), g.sends...)
}

func (g *MockGateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

// MockConversationRepo stores messages per conversation in arrival order.
type MockConversationRepo struct {
	mu       sync.Mutex
	messages map[string][]model.Message
}

func NewMockConversationRepo() *MockConversationRepo {
	return &MockConversationRepo{messages: make(map[string][]model.Message)}
}

func (m *MockConversationRepo) AppendMessage(ctx context.Context, conversationID string, direction model.Direction, body string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[conversationID] = append(m.messages[conversationID], model.Message{
		ConversationID: conversationID,
		Direction:      direction,
		Body:           body,
		CreatedAt:      at,
	})
	return nil
}

func (m *MockConversationRepo) RecentHistory(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.messages[conversationID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]model.Message(nil), all...), nil
}

func (m *MockConversationRepo) Messages(conversationID string) []model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Message(nil), m.messages[conversationID]...)
}

// MockAgentRepo resolves agents by category with the generic fallback.
type MockAgentRepo struct {
	agents map[string]*model.Agent
}

func (m *MockAgentRepo) FindActiveByCategory(ctx context.Context, category string) (*model.Agent, error) {
	if a, ok := m.agents[category]; ok && a.Active {
		return a, nil
	}
	if a, ok := m.agents[model.GenericCategory]; ok && a.Active {
		return a, nil
	}
	return nil, nil
}

func (m *MockAgentRepo) Upsert(ctx context.Context, a *model.Agent) error {
	if m.agents == nil {
		m.agents = make(map[string]*model.Agent)
	}
	m.agents[a.Category] = a
	return nil
}

// MockGenerator returns a fixed reply and records prompts.
type MockGenerator struct {
	mu      sync.Mutex
	reply   model.Reply
	err     error
	prompts []generator.Prompt
}

func (g *MockGenerator) Generate(ctx context.Context, p generator.Prompt) (*model.Reply, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, p)
	if g.err != nil {
		return nil, g.err
	}
	r := g.reply
	return &r, nil
}

func (g *MockGenerator) Prompts() []generator.Prompt {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]generator.Prompt(nil), g.prompts...)
}

// recordingHandler collects turns; block, when set, runs before recording.
type recordingHandler struct {
	mu    sync.Mutex
	turns []model.Turn
	block func(model.Turn)
}

func (h *recordingHandler) HandleTurn(ctx context.Context, turn model.Turn) error {
	if h.block != nil {
		h.block(turn)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turn)
	return nil
}

func (h *recordingHandler) Turns() []model.Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.Turn(nil), h.turns...)
}
