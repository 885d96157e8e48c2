// Package session owns the current session for the process and fans out
// changes to whoever needs to react to them, such as the route guard.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ErlanBelekov/backup-desk/internal/auth"
	"github.com/ErlanBelekov/backup-desk/internal/domain"
	"github.com/ErlanBelekov/backup-desk/internal/metrics"
)

// Source is satisfied by *auth.Client.
type Source interface {
	GetSession(ctx context.Context) (*domain.Session, error)
	OnAuthStateChange(fn auth.StateChangeFunc) (unsubscribe func())
}

type Listener struct {
	source Source
	logger *slog.Logger

	// startMu makes the running check and the subscribe one step.
	startMu sync.Mutex

	mu          sync.RWMutex
	current     *domain.Session
	loading     bool
	version     uint64
	subs        map[int]func(*domain.Session)
	nextSub     int
	unsubscribe func()
}

func NewListener(source Source, logger *slog.Logger) *Listener {
	return &Listener{
		source:  source,
		logger:  logger.With("component", "session_listener"),
		loading: true,
		subs:    make(map[int]func(*domain.Session)),
	}
}

// Start subscribes to change notifications and performs the initial fetch.
// A failed fetch counts as "no session" and is not retried. Calling Start
// on a running listener is a no-op.
func (l *Listener) Start(ctx context.Context) {
	l.startMu.Lock()
	l.mu.Lock()
	if l.unsubscribe != nil {
		l.mu.Unlock()
		l.startMu.Unlock()
		return
	}
	l.loading = true
	startVersion := l.version
	l.mu.Unlock()

	// subscribe before fetching so an event during the fetch is not lost
	unsubscribe := l.source.OnAuthStateChange(l.onChange)
	l.mu.Lock()
	l.unsubscribe = unsubscribe
	l.mu.Unlock()
	l.startMu.Unlock()

	s, err := l.source.GetSession(ctx)
	if err != nil {
		l.logger.WarnContext(ctx, "initial session fetch failed, treating as signed out", "error", err)
		s = nil
	}

	l.mu.Lock()
	if l.version != startVersion {
		// a change notification already published something newer
		l.mu.Unlock()
		return
	}
	subs := l.setLocked(s)
	l.mu.Unlock()
	notify(subs, s)

	l.logger.InfoContext(ctx, "session listener started", "signed_in", s != nil)
}

func (l *Listener) onChange(event domain.AuthEvent, s *domain.Session) {
	l.mu.Lock()
	subs := l.setLocked(s)
	l.mu.Unlock()
	l.logger.Debug("session changed", "event", event, "signed_in", s != nil)
	notify(subs, s)
}

func (l *Listener) setLocked(s *domain.Session) []func(*domain.Session) {
	l.current = s
	l.loading = false
	l.version++
	if s != nil {
		metrics.SessionPresent.Set(1)
	} else {
		metrics.SessionPresent.Set(0)
	}
	out := make([]func(*domain.Session), 0, len(l.subs))
	for _, fn := range l.subs {
		out = append(out, fn)
	}
	return out
}

func notify(subs []func(*domain.Session), s *domain.Session) {
	for _, fn := range subs {
		fn(s)
	}
}

// Current returns the current session or nil. Callers must not modify it.
func (l *Listener) Current() *domain.Session {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Loading is true until the initial fetch (or the first change) resolves.
func (l *Listener) Loading() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loading
}

// Subscribe registers fn for every republished session value.
func (l *Listener) Subscribe(fn func(*domain.Session)) (unsubscribe func()) {
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = fn
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
		})
	}
}

// Close releases the source subscription. The listener can be started
// again afterwards without duplicating notifications.
func (l *Listener) Close() {
	l.mu.Lock()
	unsubscribe := l.unsubscribe
	l.unsubscribe = nil
	l.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}
