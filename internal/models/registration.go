package models

import "time"

// Registration лид, созданный при записи на курс. После создания не меняется.
type Registration struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}
