package mapscreen

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/appminic/kamera/internal/models"
	"github.com/appminic/kamera/internal/viewstate"
)

var ErrNoSession = errors.New("map session not found")

// Session is one open map screen plus the location its client last pushed.
type Session struct {
	ID       string
	Screen   *Screen
	Location *ReportedLocation

	lastSeen time.Time
}

// Sessions keeps open map screens in memory. Sessions idle longer than ttl
// are dropped by Run.
type Sessions struct {
	store         viewstate.Store
	defaultRegion models.Bounds
	ttl           time.Duration
	log           *zap.Logger
	now           func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	wg       sync.WaitGroup
}

func NewSessions(store viewstate.Store, defaultRegion models.Bounds, ttl time.Duration, log *zap.Logger) *Sessions {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sessions{
		store:         store,
		defaultRegion: defaultRegion,
		ttl:           ttl,
		log:           log.Named("sessions"),
		now:           time.Now,
		sessions:      make(map[string]*Session),
	}
}

func (s *Sessions) Create() *Session {
	loc := &ReportedLocation{}
	holder := viewstate.NewHolder(s.store, s.log)
	sess := &Session{
		ID:       uuid.NewString(),
		Screen:   NewScreen(holder, loc, s.defaultRegion, s.log),
		Location: loc,
		lastSeen: s.now(),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.log.Debug("session opened", zap.String("session_id", sess.ID))
	return sess
}

// Get returns the session and marks it as seen.
func (s *Sessions) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNoSession
	}
	sess.lastSeen = s.now()
	return sess, nil
}

func (s *Sessions) Delete(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return ErrNoSession
	}
	sess.Screen.Close()
	s.log.Debug("session closed", zap.String("session_id", id))
	return nil
}

func (s *Sessions) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops sessions idle longer than the ttl and returns how many it dropped.
func (s *Sessions) Sweep() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.Screen.Close()
	}
	if len(expired) > 0 {
		s.log.Info("expired idle sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps on every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Stop waits for Run to return and closes every open session.
func (s *Sessions) Stop() {
	s.wg.Wait()

	s.mu.Lock()
	open := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range open {
		sess.Screen.Close()
	}
	s.log.Info("map sessions stopped", zap.Int("closed", len(open)))
}
