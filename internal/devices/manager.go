package devices

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/KevinKickass/OpenVNA/internal/config"
	"github.com/KevinKickass/OpenVNA/internal/monitor"
	"github.com/KevinKickass/OpenVNA/internal/profiles"
	"github.com/KevinKickass/OpenVNA/internal/vna"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already open")
)

// Manager owns every open instrument session.
type Manager struct {
	loader    *profiles.Loader
	dial      Dialer
	metrics   *monitor.Metrics
	publisher Publisher
	sessions  map[uuid.UUID]*Session
	mu        sync.RWMutex
	logger    *zap.Logger
}

type Option func(*Manager)

// WithDialer replaces DialTransport, mainly for tests.
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dial = d }
}

func WithMetrics(metrics *monitor.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

func WithPublisher(p Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

func NewManager(loader *profiles.Loader, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		loader:    loader,
		dial:      DialTransport,
		publisher: discard{},
		sessions:  make(map[uuid.UUID]*Session),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open connects the instrument described by cfg and identifies it.
func (m *Manager) Open(ctx context.Context, cfg config.InstrumentConfig) (*Session, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if _, exists := m.GetSessionByName(cfg.Name); exists {
		return nil, fmt.Errorf("instrument %s: %w", cfg.Name, ErrExists)
	}

	profile, err := m.loader.Load(cfg.Profile)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %s: %w", cfg.Profile, err)
	}

	t, err := m.dial(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect %s: %w", cfg.Address, err)
	}
	if m.metrics != nil {
		t = m.metrics.InstrumentTransport(t, cfg.Name)
	}

	inst, err := vna.New(ctx, t, profile, m.logger.With(zap.String("instrument", cfg.Name)), vna.Options{
		SweepTimeout: cfg.SweepTimeout,
		PollInterval: cfg.PollInterval,
	})
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Name, err)
	}

	s := &Session{
		ID:       uuid.New(),
		Name:     cfg.Name,
		Config:   cfg,
		OpenedAt: time.Now().UTC(),
		mu:       newLock(),
		inst:     inst,
		manager:  m,
	}

	m.mu.Lock()
	for _, other := range m.sessions {
		if other.Name == cfg.Name {
			m.mu.Unlock()
			inst.Close()
			return nil, fmt.Errorf("instrument %s: %w", cfg.Name, ErrExists)
		}
	}
	m.sessions[s.ID] = s
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ConnectedInstrument.Inc()
	}

	m.logger.Info("Instrument opened",
		zap.String("name", cfg.Name),
		zap.String("profile", cfg.Profile),
		zap.String("address", cfg.Address),
		zap.String("session_id", s.ID.String()))

	m.publisher.Publish(EventInstrumentConnected, s.Info())

	return s, nil
}

// OpenAll opens every configured instrument. Failures are logged and
// returned together; the instruments that did open stay open.
func (m *Manager) OpenAll(ctx context.Context, instruments []config.InstrumentConfig) error {
	var errs []error
	for _, cfg := range instruments {
		if _, err := m.Open(ctx, cfg); err != nil {
			m.logger.Error("Failed to open instrument",
				zap.String("name", cfg.Name),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetSession returns session by ID
func (m *Manager) GetSession(id uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, exists := m.sessions[id]
	return s, exists
}

// GetSessionByName returns session by instrument name
func (m *Manager) GetSessionByName(name string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.sessions {
		if s.Name == name {
			return s, true
		}
	}

	return nil, false
}

// Lookup resolves a REST path segment, which may be a session ID or a name.
func (m *Manager) Lookup(ref string) (*Session, error) {
	if id, err := uuid.Parse(ref); err == nil {
		if s, ok := m.GetSession(id); ok {
			return s, nil
		}
	}
	if s, ok := m.GetSessionByName(ref); ok {
		return s, nil
	}
	return nil, fmt.Errorf("instrument %s: %w", ref, ErrNotFound)
}

// ListSessions returns all sessions ordered by name
func (m *Manager) ListSessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Name < sessions[j].Name })

	return sessions
}

// Close waits for the session's running operation, then releases the
// transport.
func (m *Manager) Close(id uuid.UUID) error {
	m.mu.Lock()
	s, exists := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}

	s.mu.Lock()
	err := s.inst.Close()
	s.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ConnectedInstrument.Dec()
	}

	if err != nil {
		m.logger.Error("Failed to close instrument",
			zap.String("name", s.Name),
			zap.Error(err))
	} else {
		m.logger.Info("Instrument closed", zap.String("name", s.Name))
	}

	m.publisher.Publish(EventInstrumentDisconnected, s.Info())

	return err
}

// CloseAll closes every session
func (m *Manager) CloseAll(ctx context.Context) error {
	var errs []error
	for _, s := range m.ListSessions() {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		if err := m.Close(s.ID); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}
