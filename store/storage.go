package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"docqa/types"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionStorer owns every session and its nested document and turns.
// Callers only ever receive snapshot copies. Methods take a context so a
// persisted backend can be dropped in without changing the contract.
type SessionStorer interface {
	Create(context.Context) (*types.Session, error)
	Get(context.Context, string) (*types.Session, error)
	AttachDocument(context.Context, string, types.Document) error
	AppendTurn(context.Context, string, types.Turn) error
	List(context.Context) ([]types.SessionSummary, error)
	DeleteExpired(context.Context, time.Duration) (int, error)
}

// session is the mutable record behind the registry. Its mutex serializes
// all mutation per session id; sessions never share a lock.
type session struct {
	mu           sync.Mutex
	id           string
	createdAt    time.Time
	lastActivity time.Time
	history      []types.Turn
	document     *types.Document
}

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
	logger   *slog.Logger
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*session),
		logger:   slog.Default(),
	}
}

func (m *MemoryStore) Create(ctx context.Context) (*types.Session, error) {
	now := time.Now()
	s := &session{
		id:           uuid.New().String(),
		createdAt:    now,
		lastActivity: now,
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.logger.Info("created session", "session_id", s.id)
	return s.snapshot(), nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*types.Session, error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), nil
}

func (m *MemoryStore) AttachDocument(ctx context.Context, id string, doc types.Document) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.document = &doc
	s.lastActivity = time.Now()
	s.mu.Unlock()

	m.logger.Info("attached document",
		"session_id", id,
		"filename", doc.SourceName,
		"pages", doc.PageCount,
	)
	return nil
}

func (m *MemoryStore) AppendTurn(ctx context.Context, id string, turn types.Turn) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.history = append(s.history, turn)
	s.lastActivity = time.Now()
	s.mu.Unlock()
	return nil
}

func (m *MemoryStore) List(ctx context.Context) ([]types.SessionSummary, error) {
	m.mu.RLock()
	all := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	summaries := make([]types.SessionSummary, 0, len(all))
	for _, s := range all {
		s.mu.Lock()
		summaries = append(summaries, s.summary())
		s.mu.Unlock()
	}
	return summaries, nil
}

// DeleteExpired drops sessions idle for longer than maxAge, together with
// their documents and history.
func (m *MemoryStore) DeleteExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		s.mu.Lock()
		expired := s.lastActivity.Before(cutoff)
		s.mu.Unlock()
		if expired {
			delete(m.sessions, id)
			removed++
		}
	}

	if removed > 0 {
		m.logger.Info("cleaned up expired sessions", "count", removed)
	}
	return removed, nil
}

func (m *MemoryStore) lookup(id string) (*session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// snapshot copies the record so callers cannot mutate store-owned state.
// Caller must hold s.mu except right after construction.
func (s *session) snapshot() *types.Session {
	history := make([]types.Turn, len(s.history))
	copy(history, s.history)

	var doc *types.Document
	if s.document != nil {
		d := *s.document
		doc = &d
	}

	return &types.Session{
		ID:        s.id,
		CreatedAt: s.createdAt,
		History:   history,
		Document:  doc,
	}
}

func (s *session) summary() types.SessionSummary {
	sum := types.SessionSummary{
		ID:          s.id,
		CreatedAt:   s.createdAt,
		HasDocument: s.document != nil,
		TurnCount:   len(s.history),
	}
	if s.document != nil {
		sum.DocumentName = s.document.SourceName
	}
	return sum
}
