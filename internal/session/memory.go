package session

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]Session
	now      func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]Session), now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, chatID int64) (Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[chatID]
	if !ok {
		return Session{}, false, nil
	}
	return s.Clone(), true, nil
}

func (m *MemoryStore) Put(_ context.Context, s Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	s = s.Clone()
	s.UpdatedAt = m.now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ChatID] = s
	return nil
}

func (m *MemoryStore) Reset(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[chatID]
	if !ok {
		return nil
	}
	s.Clear()
	s.UpdatedAt = m.now().UTC()
	m.sessions[chatID] = s
	return nil
}

// List returns every session ordered by chat.
func (m *MemoryStore) List(context.Context) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	slices.SortFunc(out, func(a, b Session) int {
		switch {
		case a.ChatID < b.ChatID:
			return -1
		case a.ChatID > b.ChatID:
			return 1
		}
		return 0
	})
	return out, nil
}
