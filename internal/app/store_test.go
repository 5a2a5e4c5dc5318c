package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"bladi-assistant/internal/chatbot"
	"bladi-assistant/internal/model"
)

// memStore implements every store interface over maps for service tests.
type memStore struct {
	mu        sync.Mutex
	sessions  []*model.Session
	messages  []model.Message
	feedback  []model.Feedback
	analytics map[string]*model.DailyAnalytics
	users     []model.User

	failMessages  error
	failAnalytics error
}

func newMemStore() *memStore {
	return &memStore{analytics: make(map[string]*model.DailyAnalytics)}
}

func (s *memStore) Create(_ context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.ID = uint(len(s.sessions) + 1)
	cp := *session
	s.sessions = append(s.sessions, &cp)
	return nil
}

func (s *memStore) GetActiveByKey(_ context.Context, key string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.SessionKey == key && session.IsActive {
			cp := *session
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetByKey(_ context.Context, key string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.SessionKey == key {
			cp := *session
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) Touch(_ context.Context, session *model.Session, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stored := range s.sessions {
		if stored.ID == session.ID {
			stored.UpdatedAt = at
		}
	}
	return nil
}

func (s *memStore) ListByUserID(_ context.Context, userID uint, offset, limit int) ([]model.Session, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var owned []model.Session
	for i := len(s.sessions) - 1; i >= 0; i-- {
		if id := s.sessions[i].UserID; id != nil && *id == userID {
			owned = append(owned, *s.sessions[i])
		}
	}
	total := int64(len(owned))
	if offset >= len(owned) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(owned) {
		end = len(owned)
	}
	return owned[offset:end], total, nil
}

type memMessages struct{ *memStore }

func (m memMessages) Create(_ context.Context, message *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failMessages != nil {
		return m.failMessages
	}
	message.ID = uint(len(m.messages) + 1)
	m.messages = append(m.messages, *message)
	return nil
}

func (m memMessages) GetByID(_ context.Context, id uint) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, message := range m.messages {
		if message.ID == id {
			cp := message
			return &cp, nil
		}
	}
	return nil, nil
}

func (m memMessages) ListBySessionID(_ context.Context, sessionID uint, limit int) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Message
	for _, message := range m.messages {
		if message.SessionID == sessionID && (limit <= 0 || len(out) < limit) {
			out = append(out, message)
		}
	}
	return out, nil
}

func (m memMessages) ListRecentBySessionID(ctx context.Context, sessionID uint, limit int) ([]model.Message, error) {
	all, _ := m.ListBySessionID(ctx, sessionID, 0)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

type memFeedback struct{ *memStore }

func (m memFeedback) Create(_ context.Context, feedback *model.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	feedback.ID = uint(len(m.feedback) + 1)
	m.feedback = append(m.feedback, *feedback)
	return nil
}

func (m memFeedback) ListByMessageID(_ context.Context, messageID uint) ([]model.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Feedback
	for _, feedback := range m.feedback {
		if feedback.MessageID == messageID {
			out = append(out, feedback)
		}
	}
	return out, nil
}

type memAnalytics struct{ *memStore }

func (m memAnalytics) IncrementDaily(_ context.Context, event model.TurnEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAnalytics != nil {
		return m.failAnalytics
	}
	row, ok := m.analytics[event.Date]
	if !ok {
		row = &model.DailyAnalytics{Date: event.Date}
		m.analytics[event.Date] = row
	}
	row.Apply(event)
	return nil
}

func (m memAnalytics) ListRange(_ context.Context, from, to string) ([]model.DailyAnalytics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.DailyAnalytics
	for date, row := range m.analytics {
		if date >= from && date <= to {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

type memUsers struct{ *memStore }

func (m memUsers) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.ID = uint(len(m.users) + 1)
	m.users = append(m.users, *user)
	return nil
}

func (m memUsers) find(match func(model.User) bool) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if match(user) {
			cp := user
			return &cp
		}
	}
	return nil
}

func (m memUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return m.find(func(u model.User) bool { return u.Username == username }), nil
}

func (m memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return m.find(func(u model.User) bool { return u.Email == email }), nil
}

func (m memUsers) GetByID(_ context.Context, id uint) (*model.User, error) {
	return m.find(func(u model.User) bool { return u.ID == id }), nil
}

func (m memUsers) UpdateLastLogin(_ context.Context, id uint, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].ID == id {
			m.users[i].LastLoginAt = &at
		}
	}
	return nil
}

// scriptedResponder records every turn it sees and answers with a fixed reply.
type scriptedResponder struct {
	mu    sync.Mutex
	reply chatbot.Reply
	turns []chatbot.Turn
}

func (r *scriptedResponder) Respond(_ context.Context, turn chatbot.Turn) chatbot.Reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, turn)
	return r.reply
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) PublishTurn(context.Context, model.TurnEvent) error {
	p.calls++
	return errors.New("broker unavailable")
}

type memHistoryCache struct {
	mu          sync.Mutex
	entries     map[uint][]model.Message
	versions    map[uint]int64
	invalidated int
	// onMiss runs after a miss is served, standing in for a concurrent turn.
	onMiss      func()
}

func newMemHistoryCache() *memHistoryCache {
	return &memHistoryCache{
		entries:  make(map[uint][]model.Message),
		versions: make(map[uint]int64),
	}
}

func (c *memHistoryCache) GetRecent(_ context.Context, sessionID uint) ([]model.Message, int64, bool, error) {
	c.mu.Lock()
	messages, ok := c.entries[sessionID]
	version := c.versions[sessionID]
	hook := c.onMiss
	c.mu.Unlock()
	if !ok && hook != nil {
		hook()
	}
	return messages, version, ok, nil
}

func (c *memHistoryCache) SetRecent(_ context.Context, sessionID uint, version int64, messages []model.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[sessionID] != version {
		return nil
	}
	c.entries[sessionID] = messages
	return nil
}

func (c *memHistoryCache) Invalidate(_ context.Context, sessionID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
	c.versions[sessionID]++
	c.invalidated++
	return nil
}
