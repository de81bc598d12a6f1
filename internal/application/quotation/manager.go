package quotation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quotation/backend/internal/domain/quotation"
	"github.com/quotation/backend/internal/domain/shared"
	"github.com/quotation/backend/internal/infrastructure/document"
	"go.uber.org/zap"
)

// ManagerConfig configures the session manager
type ManagerConfig struct {
	Session SessionConfig
	// IdleTTL closes sessions without requests for this long. Zero disables eviction.
	IdleTTL       time.Duration
	SweepInterval time.Duration
	// MaxSessions caps open sessions. Zero means no limit.
	MaxSessions int
}

// DefaultManagerConfig returns the default manager settings
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Session:       DefaultSessionConfig(),
		IdleTTL:       30 * time.Minute,
		SweepInterval: time.Minute,
		MaxSessions:   1000,
	}
}

// SessionManager owns the open sessions. Sessions live in memory only.
type SessionManager struct {
	pipeline  *Pipeline
	events    shared.EventPublisher
	templates TemplateCatalog
	metrics   Metrics
	config    ManagerConfig
	logger    *zap.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	stopOnce sync.Once
	stop     chan struct{}
	sweeper  sync.WaitGroup
}

// NewSessionManager creates a session manager. events, templates, metrics
// and logger may be nil.
func NewSessionManager(
	pipeline *Pipeline,
	events shared.EventPublisher,
	templates TemplateCatalog,
	metrics Metrics,
	config ManagerConfig,
	logger *zap.Logger,
) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &SessionManager{
		pipeline:  pipeline,
		events:    events,
		templates: templates,
		metrics:   metrics,
		config:    config,
		logger:    logger.Named("sessions"),
		sessions:  make(map[uuid.UUID]*Session),
		stop:      make(chan struct{}),
	}
}

// Start runs the idle-session sweeper until Shutdown
func (m *SessionManager) Start() {
	if m.config.IdleTTL <= 0 {
		return
	}
	interval := m.config.SweepInterval
	if interval <= 0 {
		interval = m.config.IdleTTL / 2
	}

	m.sweeper.Add(1)
	go func() {
		defer m.sweeper.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case now := <-ticker.C:
				m.Sweep(now)
			}
		}
	}()
}

// Sweep closes sessions idle since before now minus the TTL and returns
// how many were closed.
func (m *SessionManager) Sweep(now time.Time) int {
	if m.config.IdleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-m.config.IdleTTL)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.Close(ctx); err != nil {
			m.logger.Warn("failed to close idle session", zap.String("session_id", s.ID().String()), zap.Error(err))
		}
		cancel()
	}
	if len(idle) > 0 {
		m.logger.Info("evicted idle sessions", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// Templates returns the starter templates
func (m *SessionManager) Templates() []document.StarterTemplate {
	if m.templates == nil {
		return nil
	}
	return m.templates.GetAll()
}

// NewDocument builds the quotation described by req
func (m *SessionManager) NewDocument(req DocumentRequest) (quotation.Quotation, error) {
	var header *quotation.Header
	if req.Header != nil {
		h, err := req.Header.ToHeader()
		if err != nil {
			return quotation.Quotation{}, err
		}
		header = &h
	}

	if req.Template == "" {
		if header == nil {
			return quotation.New(quotation.Header{})
		}
		return quotation.New(*header)
	}

	if m.templates == nil {
		return quotation.Quotation{}, shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("template %q not found", req.Template))
	}
	q, err := m.templates.Instantiate(req.Template)
	if err != nil {
		return quotation.Quotation{}, err
	}
	if header != nil {
		return q.WithHeader(*header)
	}
	return q, nil
}

// Create opens a session editing the document described by req
func (m *SessionManager) Create(ctx context.Context, req DocumentRequest) (*Session, error) {
	q, err := m.NewDocument(req)
	if err != nil {
		return nil, err
	}
	return m.Open(ctx, q)
}

// Open starts a session editing q
func (m *SessionManager) Open(_ context.Context, q quotation.Quotation) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.stop:
		return nil, shared.NewDomainError(shared.CodeInvalidState, "session manager is shut down")
	default:
	}
	if m.config.MaxSessions > 0 && len(m.sessions) >= m.config.MaxSessions {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "too many open sessions")
	}

	id := uuid.New()
	s := NewSession(id, q, m.pipeline, m.events, m.metrics, m.config.Session, m.logger)
	m.sessions[id] = s
	m.logger.Debug("session opened", zap.String("session_id", id.String()))
	return s, nil
}

// Get returns an open session
func (m *SessionManager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, shared.NewNotFoundError("session", id)
	}
	return s, nil
}

// Discard closes and forgets a session
func (m *SessionManager) Discard(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return shared.NewNotFoundError("session", id)
	}
	return s.Close(ctx)
}

// Len returns the number of open sessions
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown stops the sweeper and closes every session
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stop) })
	m.sweeper.Wait()

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close session %s: %w", s.ID(), err))
		}
	}
	m.logger.Info("session manager stopped", zap.Int("closed", len(sessions)))
	return errors.Join(errs...)
}
