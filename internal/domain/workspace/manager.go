package workspace

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/filedeck/internal/domain/editor"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/filedeck/internal/shared/id"
	"go.uber.org/zap"
)

var (
	// ErrSessionNotFound is returned for unknown or closed session IDs
	ErrSessionNotFound = errors.New("edit session not found")
	// ErrTooManySessions is returned when the open session limit is reached
	ErrTooManySessions = errors.New("too many open edit sessions")
	// ErrForbidden is returned when a session belongs to another user
	ErrForbidden = errors.New("edit session belongs to another user")
)

// Session is one open document
type Session struct {
	ID       id.EditSessionID
	URI      string
	Name     string
	Owner    string
	Encoding string
	BOM      bool
	OpenedAt time.Time

	mu       sync.Mutex
	engine   *editor.Engine
	lastUsed time.Time
	closed   bool
	now      func() time.Time
}

// Info is a point-in-time description of a session
type Info struct {
	ID       string      `json:"session_id"`
	URI      string      `json:"uri"`
	Name     string      `json:"name"`
	Encoding string      `json:"encoding,omitempty"`
	Mode     editor.Mode `json:"mode"`
	Dirty    bool        `json:"dirty"`
	OpenedAt time.Time   `json:"opened_at"`
	LastUsed time.Time   `json:"last_used"`
}

// Do runs fn with exclusive access to the session's engine
func (s *Session) Do(fn func(*editor.Engine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionNotFound
	}
	s.lastUsed = s.now()
	return fn(s.engine)
}

// Info describes the session
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.infoLocked()
}

func (s *Session) infoLocked() Info {
	return Info{
		ID:       s.ID.String(),
		URI:      s.URI,
		Name:     s.Name,
		Encoding: s.Encoding,
		Mode:     s.engine.Mode(),
		Dirty:    s.engine.Dirty(),
		OpenedAt: s.OpenedAt,
		LastUsed: s.lastUsed,
	}
}

// Options configures a Manager
type Options struct {
	HistoryDepth int
	MaxSessions  int           // 0 means unlimited
	IdleTimeout  time.Duration // 0 disables expiry
	Metrics      *monitoring.Metrics
	Logger       *zap.Logger
	Now          func() time.Time
}

// OpenRequest describes a document to open
type OpenRequest struct {
	URI      string
	Name     string
	Owner    string
	Text     string
	Encoding string
	BOM      bool
	Mode     editor.Mode

	// HistoryDepth overrides the manager's undo depth when positive
	HistoryDepth int
}

// Manager owns all open sessions
type Manager struct {
	mu       sync.RWMutex
	sessions map[id.EditSessionID]*Session

	opts Options
	log  *zap.Logger
}

// NewManager creates an empty workspace
func NewManager(opts Options) *Manager {
	if opts.HistoryDepth <= 0 {
		opts.HistoryDepth = editor.DefaultHistoryDepth
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[id.EditSessionID]*Session),
		opts:     opts,
		log:      log,
	}
}

// Open creates a session for a document. If the same owner already has the
// document open, that session is returned and reused reports true.
func (m *Manager) Open(req OpenRequest) (sess *Session, reused bool, err error) {
	if req.Mode == "" {
		req.Mode = editor.ModeView
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		if s.URI == req.URI && s.Owner == req.Owner {
			return s, true, nil
		}
	}
	if m.opts.MaxSessions > 0 && len(m.sessions) >= m.opts.MaxSessions {
		return nil, false, fmt.Errorf("%w (limit %d)", ErrTooManySessions, m.opts.MaxSessions)
	}

	depth := m.opts.HistoryDepth
	if req.HistoryDepth > 0 {
		depth = req.HistoryDepth
	}

	now := m.opts.Now()
	sess = &Session{
		ID:       id.NewEditSessionID(),
		URI:      req.URI,
		Name:     req.Name,
		Owner:    req.Owner,
		Encoding: req.Encoding,
		BOM:      req.BOM,
		OpenedAt: now,
		engine:   editor.New(req.Text, editor.WithHistoryDepth(depth), editor.WithMode(req.Mode)),
		lastUsed: now,
		now:      m.opts.Now,
	}
	m.sessions[sess.ID] = sess
	m.updateGauge()
	if m.opts.Metrics != nil {
		m.opts.Metrics.IncEditSessionsOpened()
	}

	m.log.Debug("edit session opened",
		zap.String("session_id", sess.ID.String()),
		zap.String("uri", req.URI),
		zap.Int("bytes", len(req.Text)),
	)
	return sess, false, nil
}

// Get returns an open session
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id.EditSessionID(sessionID)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return s, nil
}

// GetFor returns an open session if it belongs to owner
func (m *Manager) GetFor(sessionID, owner string) (*Session, error) {
	s, err := m.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if s.Owner != owner {
		return nil, ErrForbidden
	}
	return s, nil
}

// Close discards a session and any unsaved edits
func (m *Manager) Close(sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[id.EditSessionID(sessionID)]
	if ok {
		delete(m.sessions, s.ID)
		m.updateGauge()
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// List describes the sessions of owner, oldest first
func (m *Manager) List(owner string) []Info {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.Owner == owner {
			sessions = append(sessions, s)
		}
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Count returns the number of open sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions idle since before now minus the idle timeout and
// returns how many were closed. Unsaved edits in those sessions are dropped.
func (m *Manager) Sweep(now time.Time) int {
	if m.opts.IdleTimeout <= 0 {
		return 0
	}
	cutoff := now.Add(-m.opts.IdleTimeout)

	m.mu.Lock()
	var expired []*Session
	for sid, s := range m.sessions {
		s.mu.Lock()
		if s.lastUsed.Before(cutoff) {
			s.closed = true
			expired = append(expired, s)
			delete(m.sessions, sid)
		}
		s.mu.Unlock()
	}
	if len(expired) > 0 {
		m.updateGauge()
	}
	m.mu.Unlock()

	for _, s := range expired {
		fields := []zap.Field{zap.String("session_id", s.ID.String()), zap.String("uri", s.URI)}
		if s.engine.Dirty() {
			m.log.Warn("expired edit session had unsaved changes", fields...)
		} else {
			m.log.Debug("edit session expired", fields...)
		}
	}
	if m.opts.Metrics != nil && len(expired) > 0 {
		m.opts.Metrics.AddEditSessionsExpired(len(expired))
	}
	return len(expired)
}

// Run sweeps idle sessions every interval until ctx is done
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if m.opts.IdleTimeout <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(m.opts.Now()); n > 0 {
				m.log.Info("closed idle edit sessions", zap.Int("count", n))
			}
		}
	}
}

// updateGauge must be called with m.mu held
func (m *Manager) updateGauge() {
	if m.opts.Metrics != nil {
		m.opts.Metrics.SetEditSessionsActive(len(m.sessions))
	}
}
