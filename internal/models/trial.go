package models

import "time"

// Trial пробный период, принадлежащий ровно одному пользователю.
// Признак истечения не хранится: он всегда вычисляется из EndsAt и текущего времени.
type Trial struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	StartedAt time.Time `json:"started_at"`
	EndsAt    time.Time `json:"ends_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TrialWithProfile пробный период вместе с профилем владельца для административной панели.
type TrialWithProfile struct {
	Trial
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

// TrialReminder сообщение для очереди уведомлений о пробном периоде.
type TrialReminder struct {
	UserID   string    `json:"user_id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	EndsAt   time.Time `json:"ends_at"`
}
