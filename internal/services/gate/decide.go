// Package gate решает, может ли клиент открыть защищённый раздел: пропустить,
// подождать загрузки, отправить на страницу входа или показать экран окончания
// пробного периода.
package gate

import (
	"fmt"

	"github.com/magabrotheeeer/trial-gate/internal/models"
	"github.com/magabrotheeeer/trial-gate/internal/services/session"
	"github.com/magabrotheeeer/trial-gate/internal/services/trialstore"
)

// Route защищённый раздел.
type Route string

const (
	// RouteClassroom уроки, доступны студенту с действующим пробным периодом
	RouteClassroom Route = "classroom"
	// RouteAdmin административная панель
	RouteAdmin Route = "admin"
)

// ParseRoute разбирает имя раздела.
func ParseRoute(s string) (Route, error) {
	switch r := Route(s); r {
	case RouteClassroom, RouteAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("gate: unknown route %q", s)
	}
}

// RequiresAdmin раздел только для администраторов.
func (r Route) RequiresAdmin() bool {
	return r == RouteAdmin
}

// Kind вид решения.
type Kind string

const (
	KindLoading  Kind = "loading"
	KindAllow    Kind = "allow"
	KindRedirect Kind = "redirect"
	KindBlocked  Kind = "blocked"
)

// Reason причина перенаправления или блокировки.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonNoSession    Reason = "no_session"
	ReasonRoleDenied   Reason = "role_denied"
	ReasonTrialExpired Reason = "trial_expired"
)

// Decision решение для одного раздела.
type Decision struct {
	Kind   Kind   `json:"decision"`
	Reason Reason `json:"reason,omitempty"`
	// Redirect куда отправить клиента при KindRedirect
	Redirect string `json:"redirect,omitempty"`
	// ContactURL и HomePath действия экрана блокировки
	ContactURL string `json:"contact_url,omitempty"`
	HomePath   string `json:"home_path,omitempty"`
}

// Options адреса для решений.
type Options struct {
	SignInPath string
	HomePath   string
	ContactURL string
}

// Input всё, от чего зависит решение.
type Input struct {
	SessionLoading bool
	TrialLoading   bool
	Identity       *models.Identity
	IsAdmin        bool
	RequireAdmin   bool
	TrialExpired   bool
}

// InputFrom собирает Input из состояний сессии и пробного периода.
func InputFrom(s session.State, t trialstore.State, route Route) Input {
	return Input{
		SessionLoading: s.IsLoading,
		TrialLoading:   t.Loading,
		Identity:       s.Identity,
		IsAdmin:        s.IsAdmin,
		RequireAdmin:   route.RequiresAdmin(),
		TrialExpired:   t.Expired(),
	}
}

// Decide применяет правила строго по порядку: загрузка, нет сессии, нет роли,
// истёк пробный период, иначе доступ. Администратор никогда не блокируется по
// пробному периоду.
func Decide(in Input, opts Options) Decision {
	switch {
	case in.SessionLoading || in.TrialLoading:
		return Decision{Kind: KindLoading}
	case in.Identity == nil:
		return Decision{Kind: KindRedirect, Reason: ReasonNoSession, Redirect: opts.SignInPath}
	case in.RequireAdmin && !in.IsAdmin:
		return Decision{Kind: KindRedirect, Reason: ReasonRoleDenied, Redirect: opts.SignInPath}
	case !in.RequireAdmin && !in.IsAdmin && in.TrialExpired:
		return Decision{
			Kind:       KindBlocked,
			Reason:     ReasonTrialExpired,
			ContactURL: opts.ContactURL,
			HomePath:   opts.HomePath,
		}
	default:
		return Decision{Kind: KindAllow}
	}
}
