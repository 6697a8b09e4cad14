// Package roles проверяет и выдаёт роли пользователей. В redis кэшируется только
// наличие роли; любое изменение user_roles сбрасывает ключ пользователя.
package roles

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/trial-gate/internal/cache"
	"github.com/magabrotheeeer/trial-gate/internal/changefeed"
	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	"github.com/magabrotheeeer/trial-gate/internal/models"
)

// Repository хранилище ролей.
type Repository interface {
	AssignRole(ctx context.Context, userID string, role models.Role) error
	HasRole(ctx context.Context, userID string, role models.Role) (bool, error)
}

// Cache кэш результатов проверки.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

const table = "user_roles"

// Service проверка и выдача ролей.
type Service struct {
	repo  Repository
	cache Cache
	ttl   time.Duration
	log   *slog.Logger

	mu        sync.Mutex
	nextID    uint64
	listeners map[string]map[uint64]func()
}

// New создаёт Service. cache может быть nil.
func New(repo Repository, c Cache, ttl time.Duration, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		cache:     c,
		ttl:       ttl,
		log:       log,
		listeners: make(map[string]map[uint64]func()),
	}
}

// OnRoleChange вызывает cb при каждом изменении ролей пользователя, замеченном Watch.
// cb не должен блокироваться. Возвращает функцию отписки.
func (s *Service) OnRoleChange(userID string, cb func()) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	if s.listeners[userID] == nil {
		s.listeners[userID] = make(map[uint64]func())
	}
	s.listeners[userID][id] = cb
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners[userID], id)
			if len(s.listeners[userID]) == 0 {
				delete(s.listeners, userID)
			}
		})
	}
}

func (s *Service) changed(userID string) {
	s.mu.Lock()
	cbs := make([]func(), 0, len(s.listeners[userID]))
	for _, cb := range s.listeners[userID] {
		cbs = append(cbs, cb)
	}
	s.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

// HasRole сообщает, есть ли у пользователя роль. Ошибки кэша не мешают проверке.
func (s *Service) HasRole(ctx context.Context, userID string, role models.Role) (bool, error) {
	const op = "roles.HasRole"
	key := cache.RoleKey(userID, role)

	if s.cache != nil {
		var cached bool
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.log.Warn("role cache read failed", sl.Op(op), sl.Err(err))
		} else if found {
			return cached, nil
		}
	}

	ok, err := s.repo.HasRole(ctx, userID, role)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	// отсутствие роли не кэшируется, выдача должна быть видна сразу
	if ok && s.cache != nil && s.ttl > 0 {
		if err := s.cache.Set(ctx, key, ok, s.ttl); err != nil {
			s.log.Warn("role cache write failed", sl.Op(op), sl.Err(err))
		}
	}
	return ok, nil
}

// IsAdmin сокращение для HasRole(userID, admin).
func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	return s.HasRole(ctx, userID, models.RoleAdmin)
}

// Assign выдаёт роль и сбрасывает кэш проверки.
func (s *Service) Assign(ctx context.Context, userID string, role models.Role) error {
	const op = "roles.Assign"
	if !role.Valid() {
		return fmt.Errorf("%s: unknown role %q", op, role)
	}
	if err := s.repo.AssignRole(ctx, userID, role); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, cache.RoleKey(userID, role)); err != nil {
			s.log.Warn("role cache invalidate failed", sl.Op(op), sl.Err(err))
		}
	}
	return nil
}

type roleRow struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
}

// Watch подписывается на изменения user_roles: сбрасывает кэш затронутой роли
// и оповещает подписчиков OnRoleChange. Подписка живёт до отмены ctx.
func (s *Service) Watch(ctx context.Context, sub changefeed.Subscriber) error {
	const op = "roles.Watch"

	feed, err := sub.Subscribe(ctx, table, changefeed.Filter{})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	go func() {
		defer feed.Close()
		for ev := range feed.Events() {
			var row roleRow
			if err := ev.DecodeRow(&row); err != nil || row.UserID == "" {
				s.log.Warn("bad role change event", sl.Op(op), sl.Err(err))
				continue
			}
			if s.cache != nil {
				if err := s.cache.Invalidate(ctx, cache.RoleKey(row.UserID, row.Role)); err != nil && ctx.Err() == nil {
					s.log.Warn("role cache invalidate failed", sl.Op(op),
						slog.String("user_id", row.UserID), sl.Err(err))
				}
			}
			s.changed(row.UserID)
		}
	}()
	return nil
}
