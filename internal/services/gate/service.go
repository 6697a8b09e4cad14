package gate

import (
	"context"
	"log/slog"

	"github.com/magabrotheeeer/trial-gate/internal/services/session"
)

// SessionOpener возвращает источник сессии клиента по его токену.
// Пустой токен означает анонимного клиента.
type SessionOpener func(accessToken string) session.Provider

// Service собирает контекст сессии и пробный период для одного клиента
// и принимает решения по разделам.
type Service struct {
	open     SessionOpener
	roles    session.RoleChecker
	newTrial TrialFactory
	opts     Options
	log      *slog.Logger
}

// NewService создаёт Service.
func NewService(open SessionOpener, roles session.RoleChecker, newTrial TrialFactory, opts Options, log *slog.Logger) *Service {
	return &Service{
		open:     open,
		roles:    roles,
		newTrial: newTrial,
		opts:     opts,
		log:      log,
	}
}

// Options адреса, с которыми принимаются решения.
func (s *Service) Options() Options {
	return s.opts
}

// Evaluate принимает разовое решение. Сессия и пробный период загружаются
// до решения, поэтому KindLoading здесь не возникает.
func (s *Service) Evaluate(ctx context.Context, accessToken string, route Route) (Decision, session.State) {
	sc := session.New(s.open(accessToken), s.roles, s.log)
	sc.Init(ctx)
	defer sc.Close()
	st := sc.Snapshot()

	userID := ""
	if st.Identity != nil {
		userID = st.Identity.ID
	}
	trial := s.newTrial(userID)
	defer trial.Close()
	trial.Load(ctx)

	d := Decide(InputFrom(st, trial.Snapshot(), route), s.opts)
	Record(route, d)
	return d, st
}

// Watch передаёт в emit каждое новое решение для клиента, пока не отменён ctx.
// Все подписки клиента освобождаются при выходе.
func (s *Service) Watch(ctx context.Context, accessToken string, route Route, emit func(Decision)) {
	sc := session.New(s.open(accessToken), s.roles, s.log)
	sc.Init(ctx)
	defer sc.Close()

	NewWatcher(sc, s.newTrial, route, s.opts, s.log).Run(ctx, emit)
}
