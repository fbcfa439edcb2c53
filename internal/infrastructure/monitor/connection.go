package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Check pings one dependency. Ping must return promptly once ctx is done.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// BufferSizer reports how many operations wait for replay.
type BufferSizer interface {
	Size() (int, error)
}

// Monitor polls the store dependencies and reports whether writes can go
// straight through. Hooks registered with OnReconnect run on every
// offline to online transition.
type Monitor struct {
	checks []Check
	buffer BufferSizer

	status    Status
	checked   bool
	mu        sync.RWMutex
	hooks     []func()
	interval  time.Duration
	timeout   time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
	logger    *zap.Logger
}

func New(checks []Check, buf BufferSizer, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		checks:   checks,
		buffer:   buf,
		interval: interval,
		timeout:  3 * time.Second,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

// OnReconnect registers fn to run when the monitor sees the store return.
func (m *Monitor) OnReconnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Online
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status := m.status
	status.Services = make(map[string]bool, len(m.status.Services))
	for k, v := range m.status.Services {
		status.Services[k] = v
	}
	return status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Refresh()
	for {
		select {
		case <-ticker.C:
			m.Refresh()
		case <-m.stopCh:
			return
		}
	}
}

// Refresh runs every check once and fires reconnect hooks when the store
// came back since the previous check.
func (m *Monitor) Refresh() Status {
	status := Status{
		Online:    true,
		Services:  make(map[string]bool, len(m.checks)),
		LastCheck: time.Now(),
	}
	for _, check := range m.checks {
		ok := m.ping(check)
		status.Services[check.Name] = ok
		status.Online = status.Online && ok
	}
	status.Buffer, status.BufferSize = m.checkBuffer()

	m.mu.Lock()
	reconnected := m.checked && !m.status.Online && status.Online
	m.status = status
	m.checked = true
	hooks := append([]func(){}, m.hooks...)
	m.mu.Unlock()

	if reconnected {
		m.logger.Info("store reachable again", zap.Int("buffered", status.BufferSize))
		for _, fn := range hooks {
			fn()
		}
	}
	return status
}

func (m *Monitor) ping(check Check) bool {
	if check.Ping == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if err := check.Ping(ctx); err != nil {
		m.logger.Debug("dependency check failed", zap.String("service", check.Name), zap.Error(err))
		return false
	}
	return true
}

func (m *Monitor) checkBuffer() (bool, int) {
	if m.buffer == nil {
		return false, 0
	}
	size, err := m.buffer.Size()
	if err != nil {
		m.logger.Warn("buffer size check failed", zap.Error(err))
		return false, size
	}
	return true, size
}
