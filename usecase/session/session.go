package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskboard/internal/services/lifecycle"
	"github.com/fastygo/taskboard/usecase"
)

// Session is the per-user context of a logged-in client: its listeners,
// in-flight guards and local task view. Closing it tears all of them down.
type Session struct {
	UserID   string
	OpenedAt time.Time
	View     *View
	Executor *usecase.Executor

	group string
	hooks *lifecycle.Manager
}

// Track registers stop to run when the session closes.
func (s *Session) Track(name string, stop func()) {
	if stop == nil {
		return
	}
	s.hooks.RegisterIn(s.group, name, func(context.Context) error {
		stop()
		return nil
	})
}

// Listeners reports how many tracked subsystems are still registered.
func (s *Session) Listeners() int {
	return s.hooks.Size(s.group)
}

// Manager owns the open sessions of this process.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	hooks    *lifecycle.Manager
	logger   *zap.Logger
}

func NewManager(hooks *lifecycle.Manager, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hooks == nil {
		hooks = lifecycle.New(0, logger)
	}
	return &Manager{
		sessions: make(map[string]*Session),
		hooks:    hooks,
		logger:   logger,
	}
}

// Open returns the session of userID, creating it when absent.
func (m *Manager) Open(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		return s, false
	}
	s := &Session{
		UserID:   userID,
		OpenedAt: time.Now().UTC(),
		View:     NewView(),
		Executor: usecase.NewExecutor(),
		group:    "session:" + userID,
		hooks:    m.hooks,
	}
	m.sessions[userID] = s
	m.logger.Debug("session opened", zap.String("user_id", userID))
	return s, true
}

func (m *Manager) Get(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Close tears down every subsystem of the session as a unit.
func (m *Manager) Close(ctx context.Context, userID string) error {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	err := m.hooks.Release(ctx, s.group)
	m.logger.Debug("session closed", zap.String("user_id", userID), zap.Error(err))
	return err
}

// CloseAll closes every open session.
func (m *Manager) CloseAll(ctx context.Context) error {
	var result error
	for _, userID := range m.Active() {
		if err := m.Close(ctx, userID); err != nil && result == nil {
			result = err
		}
	}
	return result
}

// Active lists the user ids with an open session.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
