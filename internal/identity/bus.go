package identity

import (
	"sync"

	"github.com/magabrotheeeer/trial-gate/internal/models"
)

// Bus раздаёт события смены сессии подписчикам одного пользователя.
// Обработчики вызываются синхронно в порядке публикации и не должны блокироваться.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]func(models.SessionEvent)
}

// NewBus создаёт пустую шину.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[uint64]func(models.SessionEvent))}
}

// Subscribe регистрирует обработчик событий пользователя userID.
// Возвращённая функция снимает подписку; повторный вызов безопасен.
func (b *Bus) Subscribe(userID string, fn func(models.SessionEvent)) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[uint64]func(models.SessionEvent))
	}
	b.subs[userID][id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[userID], id)
			if len(b.subs[userID]) == 0 {
				delete(b.subs, userID)
			}
		})
	}
}

// Publish доставляет событие подписчикам ev.UserID.
func (b *Bus) Publish(ev models.SessionEvent) {
	b.mu.RLock()
	handlers := make([]func(models.SessionEvent), 0, len(b.subs[ev.UserID]))
	for _, fn := range b.subs[ev.UserID] {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// Len число подписок пользователя.
func (b *Bus) Len(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[userID])
}
