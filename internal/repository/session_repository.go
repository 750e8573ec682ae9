package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ehealth-cst/ehealth-client/internal/domain"
)

// SessionRepository stores login sessions and the refresh tokens bound to them.
// A session has exactly one live refresh token; rotating it revokes the old
// one, and presenting a revoked token again ends the session.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session, refreshToken string) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Session, error)
	Delete(ctx context.Context, id string) error
	// DeleteByUser removes every session of userID except keepID and returns
	// how many were removed.
	DeleteByUser(ctx context.Context, userID, keepID string) (int, error)
	// Rotate swaps oldToken for newToken and extends the session to expiresAt.
	Rotate(ctx context.Context, oldToken, newToken string, expiresAt time.Time) (*domain.Session, error)
}

type refreshRecord struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Revoked   bool      `json:"revoked"`
	ExpiresAt time.Time `json:"expires_at"`
}

func sortSessions(list []domain.Session) {
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
}

type memorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	refresh  map[string]refreshRecord
	now      func() time.Time
}

// NewMemorySessionRepository returns a process-local implementation.
func NewMemorySessionRepository() SessionRepository {
	return &memorySessionRepository{
		sessions: make(map[string]domain.Session),
		refresh:  make(map[string]refreshRecord),
		now:      time.Now,
	}
}

func (r *memorySessionRepository) Create(_ context.Context, session *domain.Session, refreshToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.refresh[refreshToken]; taken {
		return ErrConflict
	}
	r.sessions[session.ID] = *session
	r.refresh[refreshToken] = refreshRecord{SessionID: session.ID, UserID: session.UserID, ExpiresAt: session.ExpiresAt}
	return nil
}

func (r *memorySessionRepository) live(id string) (domain.Session, bool) {
	s, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, false
	}
	if !s.ExpiresAt.After(r.now()) {
		delete(r.sessions, id)
		return domain.Session{}, false
	}
	return s, true
}

func (r *memorySessionRepository) Get(_ context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.live(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *memorySessionRepository) ListByUser(_ context.Context, userID string) ([]domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Session, 0)
	for id, s := range r.sessions {
		if s.UserID != userID {
			continue
		}
		if s, ok := r.live(id); ok {
			out = append(out, s)
		}
	}
	sortSessions(out)
	return out, nil
}

func (r *memorySessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *memorySessionRepository) DeleteByUser(_ context.Context, userID, keepID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if s.UserID == userID && id != keepID {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

func (r *memorySessionRepository) Rotate(_ context.Context, oldToken, newToken string, expiresAt time.Time) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.refresh[oldToken]
	if !ok || !rec.ExpiresAt.After(r.now()) {
		return nil, ErrNotFound
	}
	if rec.Revoked {
		delete(r.sessions, rec.SessionID)
		return nil, ErrTokenReplay
	}
	s, ok := r.live(rec.SessionID)
	if !ok {
		return nil, ErrNotFound
	}

	rec.Revoked = true
	r.refresh[oldToken] = rec
	s.ExpiresAt = expiresAt
	r.sessions[s.ID] = s
	r.refresh[newToken] = refreshRecord{SessionID: s.ID, UserID: s.UserID, ExpiresAt: expiresAt}
	return &s, nil
}
