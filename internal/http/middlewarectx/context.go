// Package middlewarectx содержит HTTP middleware: извлечение токена клиента,
// проверку доступа к защищённым разделам и ограничение частоты запросов.
//
// GateMiddleware принимает решение по разделу для клиента запроса и при доступе
// кладёт в контекст его личность и токен для дальнейшего использования в обработчиках.
package middlewarectx

import (
	"context"
	"net/http"
	"strings"

	"github.com/magabrotheeeer/trial-gate/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// IdentityKey — ключ личности клиента в контексте
	IdentityKey Key = "identity"
	// TokenKey — ключ токена клиента в контексте
	TokenKey Key = "access_token"
)

// AccessTokenParam параметр запроса с токеном для клиентов, которые не могут
// передать заголовок (EventSource).
const AccessTokenParam = "access_token"

// BearerToken возвращает токен из заголовка Authorization или из параметра
// access_token. Пустая строка означает анонимного клиента.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get(AccessTokenParam)
}

// WithIdentity кладёт личность и токен в контекст.
func WithIdentity(ctx context.Context, id models.Identity, token string) context.Context {
	ctx = context.WithValue(ctx, IdentityKey, id)
	return context.WithValue(ctx, TokenKey, token)
}

// IdentityFrom личность клиента, пропущенного GateMiddleware.
func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(models.Identity)
	return id, ok && id.ID != ""
}

// TokenFrom токен клиента, пропущенного GateMiddleware.
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(TokenKey).(string)
	return token
}
