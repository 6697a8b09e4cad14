package changefeed

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	"github.com/magabrotheeeer/trial-gate/internal/metrics"
)

// ErrHubClosed возвращается при подписке на закрытый Hub.
var ErrHubClosed = errors.New("changefeed: hub closed")

const defaultBuffer = 256

// Subscriber открывает подписку на изменения таблицы.
type Subscriber interface {
	Subscribe(ctx context.Context, table string, filter Filter) (*Subscription, error)
}

// Hub раздаёт события подписчикам внутри процесса.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
	buffer int
	log    *slog.Logger
}

// NewHub создаёт Hub. buffer задаёт размер очереди каждого подписчика, 0 означает значение по умолчанию.
func NewHub(log *slog.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
		log:    log,
	}
}

// Subscribe открывает подписку. Подписка закрывается вызовом Close или по отмене ctx.
func (h *Hub) Subscribe(ctx context.Context, table string, filter Filter) (*Subscription, error) {
	const op = "changefeed.Subscribe"

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	h.nextID++
	sub := &Subscription{
		id:     h.nextID,
		table:  table,
		filter: filter,
		events: make(chan Event, h.buffer),
		hub:    h,
	}
	h.subs[sub.id] = sub
	h.mu.Unlock()

	metrics.ActiveSubscriptions.Inc()
	sub.mu.Lock()
	sub.stop = context.AfterFunc(ctx, sub.Close)
	sub.mu.Unlock()

	h.log.Debug("subscription opened",
		sl.Op(op), slog.String("table", table), slog.String("filter", filter.String()))
	return sub, nil
}

// Publish доставляет событие всем подходящим подписчикам, не блокируясь.
// Если очередь подписчика заполнена, событие для него отбрасывается.
func (h *Hub) Publish(ev Event) {
	metrics.ChangeEvents.WithLabelValues(ev.Table, string(ev.Op)).Inc()

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if sub.table != ev.Table || !sub.filter.Match(ev.Row) {
			continue
		}
		select {
		case sub.events <- ev:
		default:
			metrics.ChangeEventsDropped.WithLabelValues(ev.Table).Inc()
			h.log.Warn("subscriber buffer full, event dropped",
				slog.String("table", ev.Table), slog.String("op", string(ev.Op)))
		}
	}
}

// Close закрывает все подписки. Последующие Subscribe возвращают ErrHubClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
}

// Len число открытых подписок.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

// Subscription открытая подписка на события одной таблицы.
type Subscription struct {
	id     uint64
	table  string
	filter Filter
	events chan Event
	hub    *Hub
	once   sync.Once
	mu     sync.Mutex
	stop   func() bool
}

// Events канал событий. Закрывается после Close.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close освобождает подписку. Повторный вызов безопасен.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		stop := s.stop
		s.mu.Unlock()
		if stop != nil {
			stop()
		}
		s.hub.remove(s.id)
		// после remove Publish больше не видит подписку
		close(s.events)
		metrics.ActiveSubscriptions.Dec()
	})
}
