package mapview

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/PlotAtlas/internal/domain/plotmap"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/PlotAtlas/pkg/errors"
)

// Session is one mounted Controller addressed by id.
type Session struct {
	ID         string
	Controller *Controller
	CreatedAt  time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

// LastSeen returns the time of the last access.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// ControllerFactory builds an unmounted Controller for a new session.
type ControllerFactory func() *Controller

// SessionManager owns the live sessions.
type SessionManager struct {
	newController ControllerFactory
	logger        logging.Logger
	metrics       Metrics
	now           func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager returns an empty manager.
func NewSessionManager(factory ControllerFactory, logger logging.Logger, metrics Metrics) *SessionManager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &SessionManager{
		newController: factory,
		logger:        logger.Named("sessions"),
		metrics:       metrics,
		now:           time.Now,
		sessions:      make(map[string]*Session),
	}
}

// Create mounts a new controller over data.  An engine failure still yields
// a session in placeholder mode; only icon failures abort creation.
func (m *SessionManager) Create(ctx context.Context, data plotmap.CityData) (*Session, error) {
	ctrl := m.newController()
	if err := ctrl.Mount(ctx, data); err != nil {
		if !apperrors.IsCode(err, apperrors.ErrCodeEngineUnavailable) {
			ctrl.Unmount()
			return nil, err
		}
		m.logger.Warn("session created without engine", logging.Err(err))
	}
	now := m.now()
	s := &Session{ID: uuid.NewString(), Controller: ctrl, CreatedAt: now, lastSeen: now}

	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SessionsActive(n)
	m.logger.Info("session created", logging.String("session_id", s.ID))
	return s, nil
}

// Get returns a session and marks it used.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrCodeSessionNotFound, "session %s not found", id)
	}
	s.touch(m.now())
	return s, nil
}

// Delete unmounts and forgets a session.
func (m *SessionManager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return apperrors.Newf(apperrors.ErrCodeSessionNotFound, "session %s not found", id)
	}
	s.Controller.Unmount()
	m.metrics.SessionsActive(n)
	return nil
}

// IDs returns the live session ids, sorted.
func (m *SessionManager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Broadcast pushes new data to every session.  Errors are logged.
func (m *SessionManager) Broadcast(ctx context.Context, data plotmap.CityData) {
	m.mu.RLock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.RUnlock()
	for _, s := range list {
		if err := s.Controller.SetData(ctx, data); err != nil {
			m.logger.Warn("session refresh failed", logging.String("session_id", s.ID), logging.Err(err))
		}
	}
}

// Sweep unmounts sessions idle for longer than maxIdle and returns how many
// were removed.
func (m *SessionManager) Sweep(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)
	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, s := range expired {
		s.Controller.Unmount()
	}
	if len(expired) > 0 {
		m.metrics.SessionsActive(n)
		m.logger.Info("expired idle sessions", logging.Int("count", len(expired)))
	}
	return len(expired)
}

// RunSweeper sweeps every interval until ctx is done.
func (m *SessionManager) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep(maxIdle)
		}
	}
}

// CloseAll unmounts every session.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	list := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range list {
		s.Controller.Unmount()
	}
	m.metrics.SessionsActive(0)
}

//Personal.AI order the ending
