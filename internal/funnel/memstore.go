package funnel

import (
	"context"
	"sync"
	"time"

	"github.com/xrick/laptop-funnel-dialogue/internal/models"
)

// MemStore is the default in-process SessionStore. It is the pluggable
// backend's reference implementation (§9) — the controller never reaches
// into its map directly.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

func NewMemStore() *MemStore {
	return &MemStore{sessions: make(map[string]models.Session)}
}

func (m *MemStore) Get(_ context.Context, sessionID string) (*models.Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, false, nil
	}
	cp := cloneSession(s)
	return &cp, true, nil
}

func (m *MemStore) Put(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = cloneSession(*s)
	return nil
}

func (m *MemStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemStore) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.UpdatedAt.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func cloneSession(s models.Session) models.Session {
	cp := s
	cp.QuestionOrder = append([]string(nil), s.QuestionOrder...)
	cp.Answers = make(map[string]string, len(s.Answers))
	for k, v := range s.Answers {
		cp.Answers[k] = v
	}
	return cp
}
