package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Strob0t/clickbridge/internal/domain"
	"github.com/Strob0t/clickbridge/internal/domain/installation"
	"github.com/Strob0t/clickbridge/internal/domain/webhook"
	"github.com/Strob0t/clickbridge/internal/port/kvstore"
	"github.com/Strob0t/clickbridge/internal/port/messagequeue"
	"github.com/Strob0t/clickbridge/internal/port/remoteapi"
	"github.com/Strob0t/clickbridge/internal/port/subscriber"
)

var errBoom = errors.New("boom")

// memKV is an in-memory kvstore.Store.
type memKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr    error
	deleteErr error
	writes    int
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	m.data[key] = value
	return nil
}

func (m *memKV) SetMany(ctx context.Context, entries []kvstore.Entry) error {
	for _, e := range entries {
		if err := m.Set(ctx, e.Key, e.Value, e.TTL); err != nil {
			return err
		}
	}
	return nil
}

func (m *memKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.writes++
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memKV) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

// memSignals is an in-memory signalstore.Store.
type memSignals struct {
	mu      sync.Mutex
	signals installation.Signals
	status  *installation.StatusRecord
	applies int
	saves   int
	loadErr error
}

func (m *memSignals) Load(context.Context, string) (installation.Signals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return installation.Signals{}, m.loadErr
	}
	return m.signals, nil
}

func (m *memSignals) Apply(_ context.Context, _ string, u installation.SignalUpdates) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applies++
	m.signals = u.Apply(m.signals)
	return nil
}

func (m *memSignals) SaveStatus(_ context.Context, _ string, rec installation.StatusRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.status = &rec
	return nil
}

func (m *memSignals) Status(context.Context, string) (installation.StatusRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == nil {
		return installation.StatusRecord{}, domain.ErrNotFound
	}
	return *m.status, nil
}

// memPrompts is an in-memory promptstore.Store.
type memPrompts struct {
	mu      sync.Mutex
	prompts map[string]installation.Prompt
	deletes int
}

func newMemPrompts() *memPrompts { return &memPrompts{prompts: make(map[string]installation.Prompt)} }

func (m *memPrompts) List(context.Context, string) ([]installation.Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]installation.Prompt, 0, len(m.prompts))
	for _, p := range m.prompts {
		out = append(out, p)
	}
	return out, nil
}

func (m *memPrompts) Exists(_ context.Context, _, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.prompts[key]
	return ok, nil
}

func (m *memPrompts) Create(_ context.Context, _ string, p installation.Prompt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts[p.Key] = p
	return nil
}

func (m *memPrompts) Delete(_ context.Context, _, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.prompts, key)
	return nil
}

func (m *memPrompts) get(key string) (installation.Prompt, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prompts[key]
	return p, ok
}

// fakeAPI is a scripted remoteapi.Client.
type fakeAPI struct {
	mu          sync.Mutex
	teams       []remoteapi.Team
	teamsErr    error
	hooks       []remoteapi.Webhook
	createErr   error
	created     []createCall
	deleted     []string
	deleteErr   error
	token       remoteapi.Token
	exchangeErr error
	exchanges   []string
	// gate, when set, blocks CreateWebhook until closed.
	gate chan struct{}
}

type createCall struct {
	token, teamID, endpoint string
	events                  []string
}

func (f *fakeAPI) ListTeams(context.Context, string) ([]remoteapi.Team, error) {
	return f.teams, f.teamsErr
}

func (f *fakeAPI) CreateWebhook(_ context.Context, token, teamID, endpoint string, events []string) (remoteapi.Webhook, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return remoteapi.Webhook{}, f.createErr
	}
	f.created = append(f.created, createCall{token, teamID, endpoint, events})
	return remoteapi.Webhook{ID: "wh-1", Endpoint: endpoint, Secret: "whsec"}, nil
}

func (f *fakeAPI) ListWebhooks(context.Context, string, string) ([]remoteapi.Webhook, error) {
	return f.hooks, nil
}

func (f *fakeAPI) DeleteWebhook(_ context.Context, _, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func (f *fakeAPI) ExchangeCode(_ context.Context, _, secret, code string) (remoteapi.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanges = append(f.exchanges, secret+":"+code)
	return f.token, f.exchangeErr
}

func (f *fakeAPI) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

// memRegistry is an in-memory subscriber.Registry.
type memRegistry struct {
	blocks []subscriber.Block
	err    error
}

func (m *memRegistry) ListByEventType(_ context.Context, _, eventType string) ([]subscriber.Block, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []subscriber.Block
	for _, b := range m.blocks {
		if b.EventType == eventType {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memRegistry) List(context.Context, string) ([]subscriber.Block, error) { return m.blocks, m.err }

func (m *memRegistry) Add(_ context.Context, _ string, b subscriber.Block) error {
	m.blocks = append(m.blocks, b)
	return nil
}

func (m *memRegistry) Remove(context.Context, string, string) error { return nil }

// recordingDeliverer records every Deliver call.
type recordingDeliverer struct {
	calls []deliverCall
	err   error
}

type deliverCall struct {
	eventType string
	blockIDs  []string
	delivery  webhook.Delivery
}

func (d *recordingDeliverer) Deliver(_ context.Context, eventType string, ids []string, del webhook.Delivery) error {
	d.calls = append(d.calls, deliverCall{eventType, ids, del})
	return d.err
}

// memQueue is a messagequeue.Queue that records publishes.
type memQueue struct {
	mu        sync.Mutex
	published []published
	handlers  map[string]messagequeue.Handler
	pubErr    error
}

type published struct {
	subject string
	data    json.RawMessage
}

func (q *memQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pubErr != nil {
		return q.pubErr
	}
	q.published = append(q.published, published{subject, data})
	return nil
}

func (q *memQueue) Subscribe(_ context.Context, durable, _ string, h messagequeue.Handler) (func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.handlers == nil {
		q.handlers = make(map[string]messagequeue.Handler)
	}
	q.handlers[durable] = h
	return func() {}, nil
}

func (q *memQueue) Drain() error      { return nil }
func (q *memQueue) Close() error      { return nil }
func (q *memQueue) IsConnected() bool { return true }
