package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/botdeck/botdeck/internal/biz/domain"
	"github.com/botdeck/botdeck/internal/biz/repo"
)

// Mock implementations

type mockCommandRepo struct {
	mu   sync.Mutex
	rows map[string]*domain.Command
}

func newMockCommandRepo() *mockCommandRepo {
	return &mockCommandRepo{rows: make(map[string]*domain.Command)}
}

func (m *mockCommandRepo) GetByName(ctx context.Context, name string) (*domain.Command, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.rows[name]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockCommandRepo) GetByID(ctx context.Context, id string) (*domain.Command, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockCommandRepo) List(ctx context.Context) ([]*domain.Command, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Command, 0, len(m.rows))
	for _, c := range m.rows {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockCommandRepo) CreateIfAbsent(ctx context.Context, meta domain.CommandMeta) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[meta.Name]; ok {
		return false, nil
	}
	m.rows[meta.Name] = &domain.Command{
		ID:          "id-" + meta.Name,
		Name:        meta.Name,
		Description: meta.Description,
		Category:    meta.Category,
		Usage:       meta.Usage,
		Cooldown:    meta.Cooldown,
		IsEnabled:   true,
	}
	return true, nil
}

func (m *mockCommandRepo) IncrementUsage(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.rows[name]; ok {
		c.UsageCount++
	}
	return nil
}

func (m *mockCommandRepo) Update(ctx context.Context, id string, patch domain.CommandPatch) (*domain.Command, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.ID == id {
			patch.Apply(c)
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

type mockLogRepo struct {
	entries []*domain.ActivityLog
}

func (m *mockLogRepo) Add(ctx context.Context, e *domain.ActivityLog) error {
	m.entries = append([]*domain.ActivityLog{e}, m.entries...)
	return nil
}

func (m *mockLogRepo) List(ctx context.Context, f repo.LogFilter) ([]*domain.ActivityLog, error) {
	return m.entries, nil
}

func (m *mockLogRepo) Clear(ctx context.Context) error {
	m.entries = nil
	return nil
}

func (m *mockLogRepo) Count(ctx context.Context) (int, error) {
	return len(m.entries), nil
}

type mockStatsRepo struct {
	counters domain.Counters
}

func (m *mockStatsRepo) Counters(ctx context.Context) (*domain.Counters, error) {
	c := m.counters
	return &c, nil
}

func (m *mockStatsRepo) Increment(ctx context.Context, c domain.Counter) error {
	switch c {
	case domain.CounterMessagesReceived:
		m.counters.MessagesReceived++
	case domain.CounterMessagesSent:
		m.counters.MessagesSent++
	case domain.CounterCommandsExecuted:
		m.counters.CommandsExecuted++
	}
	return nil
}

func (m *mockStatsRepo) SetStartTime(ctx context.Context, t time.Time) error {
	m.counters.StartTime = t
	return nil
}

type countRepo struct{ n int }

func (c countRepo) Count(ctx context.Context) (int, error) { return c.n, nil }

type mockUserRepo struct {
	repo.UserRepo
	countRepo
}

func (m mockUserRepo) Count(ctx context.Context) (int, error) { return m.countRepo.Count(ctx) }

type mockThreadRepo struct {
	repo.ThreadRepo
	countRepo
}

func (m mockThreadRepo) Count(ctx context.Context) (int, error) { return m.countRepo.Count(ctx) }

type mockSessionRepo struct {
	session domain.Session
}

func (m *mockSessionRepo) Get(ctx context.Context) (*domain.Session, error) {
	s := m.session
	return &s, nil
}

func (m *mockSessionRepo) Update(ctx context.Context, p domain.SessionPatch) (*domain.Session, error) {
	p.Apply(&m.session)
	s := m.session
	return &s, nil
}

// mockSender records replies
type mockSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

type sentMessage struct {
	ThreadID string
	Text     string
}

func (m *mockSender) SendMessage(ctx context.Context, threadID, text string) (*domain.SendReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.sent = append(m.sent, sentMessage{ThreadID: threadID, Text: text})
	return &domain.SendReceipt{ThreadID: threadID}, nil
}

func (m *mockSender) last() sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMessage{}
	}
	return m.sent[len(m.sent)-1]
}

type fixedStats struct {
	stats domain.Stats
}

func (f fixedStats) Stats(ctx context.Context) (*domain.Stats, error) {
	s := f.stats
	return &s, nil
}
