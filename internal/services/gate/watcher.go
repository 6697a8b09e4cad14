package gate

import (
	"context"
	"log/slog"

	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	"github.com/magabrotheeeer/trial-gate/internal/metrics"
	"github.com/magabrotheeeer/trial-gate/internal/services/session"
	"github.com/magabrotheeeer/trial-gate/internal/services/trialstore"
)

// SessionSource состояние сессии с уведомлениями.
type SessionSource interface {
	Snapshot() session.State
	Updates() <-chan struct{}
}

// TrialSource пробный период одного пользователя с уведомлениями.
type TrialSource interface {
	UserID() string
	Snapshot() trialstore.State
	Updates() <-chan struct{}
	Load(ctx context.Context)
	Start(ctx context.Context) error
	Close()
}

// TrialFactory создаёт источник пробного периода для пользователя.
type TrialFactory func(userID string) TrialSource

// Watcher пересчитывает решение при каждом изменении сессии или пробного периода.
// При смене пользователя источник пробного периода пересоздаётся.
type Watcher struct {
	session  SessionSource
	newTrial TrialFactory
	route    Route
	opts     Options
	log      *slog.Logger
}

// NewWatcher создаёт Watcher.
func NewWatcher(s SessionSource, newTrial TrialFactory, route Route, opts Options, log *slog.Logger) *Watcher {
	return &Watcher{
		session:  s,
		newTrial: newTrial,
		route:    route,
		opts:     opts,
		log:      log.With(slog.String("route", string(route))),
	}
}

// Run вызывает emit с первым решением и затем с каждым изменившимся решением,
// пока не отменён ctx. Созданные источники пробного периода закрываются при выходе.
func (w *Watcher) Run(ctx context.Context, emit func(Decision)) {
	const op = "gate.Watcher.Run"

	var (
		trial   TrialSource
		trialCh <-chan struct{}
		last    *Decision
	)
	defer func() {
		if trial != nil {
			trial.Close()
		}
	}()

	evaluate := func() {
		var ts trialstore.State
		if trial != nil {
			ts = trial.Snapshot()
		}
		d := Decide(InputFrom(w.session.Snapshot(), ts, w.route), w.opts)
		if last != nil && *last == d {
			return
		}
		last = &d
		Record(w.route, d)
		emit(d)
	}

	// rebind привязывает источник пробного периода к текущему пользователю.
	rebind := func() {
		st := w.session.Snapshot()
		userID := ""
		if st.Identity != nil {
			userID = st.Identity.ID
		}
		if st.IsLoading || (trial != nil && trial.UserID() == userID) {
			return
		}
		if trial != nil {
			trial.Close()
		}
		trial = w.newTrial(userID)
		trialCh = trial.Updates()
		evaluate()
		// подписка раньше загрузки: изменение между ними придёт событием
		if err := trial.Start(ctx); err != nil {
			w.log.Warn("trial changes unavailable, using loaded state", sl.Op(op), sl.Err(err))
		}
		trial.Load(ctx)
	}

	rebind()
	evaluate()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.session.Updates():
			rebind()
			evaluate()
		case <-trialCh:
			evaluate()
		}
	}
}

// Record учитывает решение в метриках.
func Record(route Route, d Decision) {
	metrics.GateDecisions.WithLabelValues(string(d.Kind), string(route)).Inc()
}
