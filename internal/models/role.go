package models

// Role метка привилегий пользователя.
type Role string

const (
	// RoleStudent студент, доступ ограничен пробным периодом
	RoleStudent Role = "student"
	// RoleAdmin администратор, пробный период на него не распространяется
	RoleAdmin Role = "admin"
)

// Valid сообщает, известна ли роль.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleAdmin
}
