package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
)

// Handler receives committed task changes for a topic.
type Handler func(change domain.TaskChange)

// Publisher delivers a change to every subscriber of change.OwnerID.
type Publisher interface {
	Publish(ctx context.Context, change domain.TaskChange) error
}

// Hub fans task changes out to in-process subscribers keyed by owner id.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[uint64]Handler
	nextID uint64
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		topics: make(map[string]map[uint64]Handler),
		logger: logger,
	}
}

// Subscribe registers fn on topic. The returned func removes it and is safe
// to call more than once.
func (h *Hub) Subscribe(topic string, fn Handler) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	if _, ok := h.topics[topic]; !ok {
		h.topics[topic] = make(map[uint64]Handler)
	}
	h.topics[topic][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() { h.unsubscribe(topic, id) })
	}
}

func (h *Hub) unsubscribe(topic string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.topics[topic]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Publish calls every handler of the owner's topic. Handlers run outside the
// hub lock so they may subscribe or unsubscribe.
func (h *Hub) Publish(_ context.Context, change domain.TaskChange) error {
	h.mu.RLock()
	subs := h.topics[change.OwnerID]
	handlers := make([]Handler, 0, len(subs))
	for _, fn := range subs {
		handlers = append(handlers, fn)
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		h.dispatch(fn, change)
	}
	return nil
}

func (h *Hub) dispatch(fn Handler, change domain.TaskChange) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("task change handler panicked",
				zap.String("owner_id", change.OwnerID),
				zap.Any("panic", r))
		}
	}()
	fn(change)
}

// Subscribers reports how many handlers listen on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
