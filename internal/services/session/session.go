// Package session хранит состояние входа одного клиента: текущую личность,
// признак администратора и признак первичной загрузки. После Init состояние
// меняется событиями смены сессии от провайдера идентичности и, если проверка
// ролей умеет оповещать, изменением ролей текущего пользователя.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	"github.com/magabrotheeeer/trial-gate/internal/models"
)

// Provider источник сессии клиента.
type Provider interface {
	GetSession(ctx context.Context) (*models.Session, error)
	OnSessionChange(cb func(*models.Session)) func()
}

// RoleChecker проверяет роль администратора.
type RoleChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// RoleNotifier оповещает об изменении ролей пользователя.
type RoleNotifier interface {
	OnRoleChange(userID string, cb func()) func()
}

// State снимок контекста сессии.
type State struct {
	Identity  *models.Identity `json:"identity"`
	IsLoading bool             `json:"is_loading"`
	IsAdmin   bool             `json:"is_admin"`
}

// Context контекст сессии одного клиента.
type Context struct {
	provider Provider
	roles    RoleChecker
	log      *slog.Logger

	mu    sync.RWMutex
	state State

	updates chan struct{}

	// последняя необработанная смена сессии
	pendingMu  sync.Mutex
	pending    *models.Session
	hasPending bool
	rolesDirty bool
	wake       chan struct{}

	// пишутся только в resolve
	current   *models.Session
	roleUser  string
	roleUnsub func()

	initOnce  sync.Once
	closeOnce sync.Once
	cancel    context.CancelFunc
	unsub     func()
	done      chan struct{}
}

// New создаёт контекст в состоянии загрузки.
func New(provider Provider, roles RoleChecker, log *slog.Logger) *Context {
	return &Context{
		provider: provider,
		roles:    roles,
		log:      log,
		state:    State{IsLoading: true},
		updates:  make(chan struct{}, 1),
		wake:     make(chan struct{}, 1),
	}
}

// Snapshot возвращает текущее состояние.
func (c *Context) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Updates канал уведомлений об изменении состояния. Уведомления схлопываются.
func (c *Context) Updates() <-chan struct{} {
	return c.updates
}

// Init запрашивает текущую сессию, определяет роль и подписывается на смену сессии.
// Сбой провайдера логируется, а клиент считается анонимным.
func (c *Context) Init(ctx context.Context) {
	const op = "session.Init"
	c.initOnce.Do(func() {
		s, err := c.provider.GetSession(ctx)
		if err != nil {
			c.log.Error("failed to get session", sl.Op(op), sl.Err(err))
			s = nil
		}
		c.resolve(ctx, s)

		runCtx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		c.done = make(chan struct{})
		c.unsub = c.provider.OnSessionChange(c.enqueue)
		go c.run(runCtx)
	})
}

// Close снимает подписку на смену сессии. Повторный вызов безопасен.
func (c *Context) Close() {
	c.closeOnce.Do(func() {
		if c.cancel == nil {
			return
		}
		c.unsub()
		c.cancel()
		<-c.done
		if c.roleUnsub != nil {
			c.roleUnsub()
		}
	})
}

func (c *Context) rolesChanged() {
	c.pendingMu.Lock()
	c.rolesDirty = true
	c.pendingMu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Context) enqueue(s *models.Session) {
	c.pendingMu.Lock()
	c.pending = s
	c.hasPending = true
	c.pendingMu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// run единственный писатель состояния после Init.
func (c *Context) run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.wake:
			c.pendingMu.Lock()
			s, ok, dirty := c.pending, c.hasPending, c.rolesDirty
			c.pending, c.hasPending, c.rolesDirty = nil, false, false
			c.pendingMu.Unlock()
			switch {
			case ok:
				c.resolve(ctx, s)
			case dirty:
				c.resolve(ctx, c.current)
			}
		}
	}
}

// resolve публикует личность и роль одним изменением, чтобы наблюдатель не увидел
// вошедшего администратора без признака IsAdmin.
func (c *Context) resolve(ctx context.Context, s *models.Session) {
	const op = "session.resolve"
	next := State{}
	if s == nil {
		c.bindRoles("")
	} else {
		id := s.Identity
		next.Identity = &id
		// подписка до чтения роли, чтобы выдача во время чтения не потерялась
		c.bindRoles(id.ID)
		admin, err := c.roles.IsAdmin(ctx, id.ID)
		if err != nil {
			c.log.Error("failed to resolve admin role", sl.Op(op), slog.String("user_id", id.ID), sl.Err(err))
		}
		next.IsAdmin = err == nil && admin
	}

	c.current = s

	c.mu.Lock()
	c.state = next
	c.mu.Unlock()

	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// bindRoles переводит подписку на изменение ролей на текущего пользователя.
func (c *Context) bindRoles(userID string) {
	n, ok := c.roles.(RoleNotifier)
	if !ok || userID == c.roleUser {
		return
	}
	if c.roleUnsub != nil {
		c.roleUnsub()
		c.roleUnsub = nil
	}
	c.roleUser = userID
	if userID != "" {
		c.roleUnsub = n.OnRoleChange(userID, c.rolesChanged)
	}
}
