package usecase

import (
	"context"
	"sync"

	"github.com/fastygo/taskboard/domain"
)

// Command is a local optimistic change paired with the remote write that
// confirms it. Apply runs first, Remote second, Revert only when Remote fails.
type Command struct {
	// Key identifies the operation for the in-flight guard. Empty disables it.
	Key    string
	Apply  func()
	Revert func()
	Remote func(ctx context.Context) error
}

// Executor runs commands and rejects a second command with the same key
// while the first is still running.
type Executor struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewExecutor() *Executor {
	return &Executor{inFlight: make(map[string]struct{})}
}

// Execute applies cmd locally, runs the remote write and reverts on failure.
func (e *Executor) Execute(ctx context.Context, cmd Command) error {
	if cmd.Key != "" {
		if !e.acquire(cmd.Key) {
			return domain.ErrInFlight
		}
		defer e.release(cmd.Key)
	}

	if cmd.Apply != nil {
		cmd.Apply()
	}
	if cmd.Remote == nil {
		return nil
	}
	if err := cmd.Remote(ctx); err != nil {
		if cmd.Revert != nil {
			cmd.Revert()
		}
		return err
	}
	return nil
}

// InFlight reports whether key is currently held.
func (e *Executor) InFlight(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.inFlight[key]
	return ok
}

func (e *Executor) acquire(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inFlight[key]; busy {
		return false
	}
	e.inFlight[key] = struct{}{}
	return true
}

func (e *Executor) release(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, key)
}
