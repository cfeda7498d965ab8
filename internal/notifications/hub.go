package notifications

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	EventReceiptsChanged = "receipts_changed"
	EventBudgetChanged   = "budget_changed"
	EventThemeChanged    = "theme_changed"
)

type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// ReceiptsChanged описывает изменение набора чеков профиля.
type ReceiptsChanged struct {
	Upserted []string `json:"upserted,omitempty"`
	Deleted  []string `json:"deleted,omitempty"`
}

// Publisher is implemented by Hub; stores depend on it instead of the concrete hub.
type Publisher interface {
	Publish(profileID uuid.UUID, event Event)
}

// Hub fans out events to the live subscriptions of one profile. The guest
// profile uses uuid.Nil.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]map[chan Event]struct{}
	buffer      int
}

// NewHub создает хаб для SSE-подписок.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[uuid.UUID]map[chan Event]struct{}),
		buffer:      10,
	}
}

// Subscribe подписывает профиль на события и возвращает канал и функцию отписки.
func (h *Hub) Subscribe(profileID uuid.UUID) (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	profileSubs, ok := h.subscribers[profileID]
	if !ok {
		profileSubs = make(map[chan Event]struct{})
		h.subscribers[profileID] = profileSubs
	}
	profileSubs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()

			if subs, exists := h.subscribers[profileID]; exists {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(h.subscribers, profileID)
				}
			}
			close(ch)
		})
	}
}

// Publish отправляет событие всем подписчикам профиля; медленные подписчики пропускают событие.
func (h *Hub) Publish(profileID uuid.UUID, event Event) {
	event.Timestamp = time.Now().UTC()

	h.mu.RLock()
	defer h.mu.RUnlock()

	subs, ok := h.subscribers[profileID]
	if !ok {
		return
	}

	for ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribers возвращает число активных подписок профиля.
func (h *Hub) Subscribers(profileID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subscribers[profileID])
}
