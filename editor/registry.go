package editor

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/eringen/posterkit/poster"
)

// DefaultIdleTTL is how long an untouched session is kept.
const DefaultIdleTTL = 2 * time.Hour

// Registry holds the live sessions in memory, keyed by ULID.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
	log      logrus.FieldLogger
}

// NewRegistry creates a registry that drops sessions idle for longer
// than ttl when swept.
func NewRegistry(ttl time.Duration, log logrus.FieldLogger) *Registry {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
		log:      log,
	}
}

// Create starts a new session with tpl selected.
func (r *Registry) Create(tpl *poster.Template) *Session {
	s := NewSession(ulid.Make().String(), tpl)
	s.now = r.now
	s.lastUsed = r.now()

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	r.log.WithField("session", s.ID).Debug("editor session created")
	return s
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove closes and forgets a session.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep closes sessions idle for longer than the TTL and returns how many
// were dropped.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.LastUsed().Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		r.log.WithField("count", len(expired)).Info("expired editor sessions")
	}
	return len(expired)
}

// StartSweeper sweeps every interval until the returned stop function is
// called. stop is safe to call more than once.
func (r *Registry) StartSweeper(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				r.Sweep()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// CloseAll closes every session and empties the registry.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
