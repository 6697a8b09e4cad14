// Package models содержит доменные структуры платформы курсов: учётную запись,
// роли, лиды, пробные периоды и комментарии к урокам. Все типы явные: строки
// из хранилища переводятся в них сразу после чтения, нетипизированные данные
// дальше слоя репозитория не уходят.
package models

import "time"

// User представляет учётную запись в провайдере идентичности.
type User struct {
	ID           string    // Уникальный идентификатор пользователя (uuid)
	Email        string    // Электронная почта, уникальна
	PasswordHash string    // bcrypt-хэш пароля
	CreatedAt    time.Time // Дата создания
}

// Identity стабильный ключ пользователя и его почта.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session — текущая сессия клиента, выданная провайдером идентичности.
type Session struct {
	Identity  Identity  `json:"identity"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionEventKind тип события смены сессии.
type SessionEventKind string

const (
	// SessionSignedIn пользователь вошёл
	SessionSignedIn SessionEventKind = "signed_in"
	// SessionSignedOut пользователь вышел, токен отозван
	SessionSignedOut SessionEventKind = "signed_out"
	// SessionTokenRefreshed токен обновлён, сессия продолжается
	SessionTokenRefreshed SessionEventKind = "token_refreshed"
)

// SessionEvent доставляется подписчикам провайдера при смене сессии.
// TokenID токен, к которому относится событие (для входа пустой).
// Session равна nil при выходе.
type SessionEvent struct {
	Kind    SessionEventKind
	UserID  string
	TokenID string
	Session *Session
}
