// Package memory holds process-local repositories for tests and for running
// without a session file.
package memory

import (
	"context"
	"sync"

	"github.com/ErlanBelekov/backup-desk/internal/domain"
)

type SessionRepository struct {
	mu      sync.Mutex
	session *domain.Session
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{}
}

func (r *SessionRepository) Load(_ context.Context) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return nil, nil
	}
	s := *r.session
	return &s, nil
}

func (r *SessionRepository) Save(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.session = &cp
	return nil
}

func (r *SessionRepository) Delete(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session = nil
	return nil
}
