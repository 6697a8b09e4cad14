// Package trialclock переводит момент окончания пробного периода и текущее время
// в оставшееся время, признак истечения и строку для отображения.
// Пакет не имеет состояния: now всегда передаётся снаружи.
package trialclock

import (
	"fmt"
	"time"

	"github.com/magabrotheeeer/trial-gate/internal/models"
)

// ExpiredDisplay строка для истёкшего пробного периода.
const ExpiredDisplay = "Expired"

const day = 24 * time.Hour

// Status результат вычисления для одного пробного периода.
type Status struct {
	IsExpired bool           `json:"is_expired"`
	Remaining *time.Duration `json:"remaining,omitempty"`
	Display   string         `json:"display"`
}

// Derive вычисляет статус пробного периода на момент now.
// Разница ровно ноль считается истечением.
func Derive(now time.Time, trial models.Trial) Status {
	return DeriveEnd(now, trial.EndsAt)
}

// DeriveEnd то же, что Derive, но принимает только момент окончания.
func DeriveEnd(now, endsAt time.Time) Status {
	diff := endsAt.Sub(now)
	if diff <= 0 {
		return Status{IsExpired: true, Display: ExpiredDisplay}
	}

	remaining := diff
	return Status{
		Remaining: &remaining,
		Display:   Format(diff),
	}
}

// Format рендерит положительную длительность с убывающей детализацией:
// дни, часы и минуты пока остались дни; часы и минуты пока остались часы; иначе минуты.
func Format(d time.Duration) string {
	days := int(d / day)
	hours := int((d % day) / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
