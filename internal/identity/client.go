package identity

import (
	"context"
	"errors"
	"sync"

	"github.com/magabrotheeeer/trial-gate/internal/models"
)

// ClientSession сессия одного клиента, определяемая его токеном.
// Отслеживает выход и обновление именно этого токена.
type ClientSession struct {
	provider *Provider

	mu      sync.Mutex
	token   string
	current *models.Session
}

// NewClientSession создаёт сессию клиента по токену. Пустой токен означает анонимного клиента.
func (p *Provider) NewClientSession(accessToken string) *ClientSession {
	return &ClientSession{provider: p, token: accessToken}
}

// GetSession возвращает текущую сессию клиента или nil, если её нет.
// Ошибка возвращается только при сбое хранилища отзывов.
func (c *ClientSession) GetSession(ctx context.Context) (*models.Session, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	if token == "" {
		return nil, nil
	}
	session, err := c.provider.Validate(ctx, token)
	if errors.Is(err, ErrInvalidSession) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.current = session
	c.mu.Unlock()
	return session, nil
}

// OnSessionChange подписывает cb на смену сессии клиента: cb(nil) при выходе,
// cb(session) при обновлении токена. Возвращает функцию отписки.
// Анонимный клиент событий не получает.
func (c *ClientSession) OnSessionChange(cb func(*models.Session)) func() {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()
	if current == nil {
		return func() {}
	}

	return c.provider.bus.Subscribe(current.Identity.ID, func(ev models.SessionEvent) {
		c.mu.Lock()
		if c.current == nil || ev.TokenID == "" || ev.TokenID != c.current.TokenID {
			c.mu.Unlock()
			return
		}
		switch ev.Kind {
		case models.SessionSignedOut:
			c.current = nil
			c.token = ""
		case models.SessionTokenRefreshed:
			c.current = ev.Session
		default:
			c.mu.Unlock()
			return
		}
		next := c.current
		c.mu.Unlock()
		cb(next)
	})
}
