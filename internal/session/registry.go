package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Key identifies one conversation: a browser client plus one of its tabs.
type Key struct {
	ClientID  string
	SessionID string
}

func (k Key) String() string {
	return k.ClientID + "/" + k.SessionID
}

// Session is a ledger guarded by a lock held for a whole turn.
type Session struct {
	key     Key
	lock    chan struct{}
	ledger  *Ledger
	evicted bool // guarded by lock
}

// Key returns the session key.
func (s *Session) Key() Key {
	return s.key
}

// Ledger returns the session ledger. Only valid while the session is held.
func (s *Session) Ledger() *Ledger {
	return s.ledger
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

// Registry owns one ledger per session key. Sessions are independent; turns
// within one session run one at a time.
type Registry struct {
	mu       sync.Mutex
	sessions map[Key]*entry
	ttl      time.Duration
	now      func() time.Time
}

// NewRegistry creates a registry whose idle sessions expire after ttl.
// ttl <= 0 disables expiry.
func NewRegistry(ttl time.Duration, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{sessions: make(map[Key]*entry), ttl: ttl, now: now}
}

// Acquire returns the session for key, creating it if needed, and holds its
// lock until release is called. It waits for any in-flight turn of the same
// session and gives up when ctx is done.
func (r *Registry) Acquire(ctx context.Context, key Key) (*Session, func(), error) {
	for {
		s := r.lookup(key)
		select {
		case s.lock <- struct{}{}:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
		if s.evicted {
			// Swept while we were waiting; retry with a fresh session.
			<-s.lock
			continue
		}
		release := func() {
			r.touch(key)
			<-s.lock
		}
		return s, release, nil
	}
}

func (r *Registry) lookup(key Key) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[key]
	if !ok {
		e = &entry{session: &Session{
			key:    key,
			lock:   make(chan struct{}, 1),
			ledger: NewLedger(r.now),
		}}
		r.sessions[key] = e
	}
	e.lastSeen = r.now()
	return e.session
}

func (r *Registry) touch(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[key]; ok {
		e.lastSeen = r.now()
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle longer than the TTL. Sessions with a turn in
// flight are skipped. It returns the evicted keys.
func (r *Registry) Sweep() []Key {
	if r.ttl <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	var evicted []Key
	for key, e := range r.sessions {
		if e.lastSeen.After(cutoff) {
			continue
		}
		select {
		case e.session.lock <- struct{}{}:
			e.session.evicted = true
			<-e.session.lock
			delete(r.sessions, key)
			evicted = append(evicted, key)
		default:
		}
	}
	return evicted
}

// SweepHook runs on every sweeper tick after the registry sweep.
type SweepHook func(ctx context.Context)

// StartSweeper evicts idle sessions every interval until ctx is done.
func StartSweeper(ctx context.Context, r *Registry, interval time.Duration, hooks ...SweepHook) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval, "ttl", r.ttl)

		for {
			select {
			case <-ticker.C:
				if evicted := r.Sweep(); len(evicted) > 0 {
					slog.Info("Evicted idle sessions", "count", len(evicted), "remaining", r.Len())
				}
				for _, hook := range hooks {
					hook(ctx)
				}
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
