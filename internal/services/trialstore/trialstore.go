// Package trialstore держит актуальный пробный период одного пользователя:
// загружает его, следит за изменениями строки через канал изменений и раз в
// интервал пересчитывает оставшееся время.
package trialstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/trial-gate/internal/changefeed"
	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	"github.com/magabrotheeeer/trial-gate/internal/models"
	"github.com/magabrotheeeer/trial-gate/internal/storage/repository"
	"github.com/magabrotheeeer/trial-gate/internal/trialclock"
)

const table = "trials"

// Repository источник пробных периодов.
type Repository interface {
	GetTrialByUser(ctx context.Context, userID string) (*models.Trial, error)
}

// State снимок состояния. Trial равен nil, если периода нет; это отличается от Loading.
type State struct {
	Trial   *models.Trial     `json:"trial"`
	Loading bool              `json:"loading"`
	Status  trialclock.Status `json:"status"`
}

// Expired сообщает, что период есть и истёк. Отсутствие периода истечением не считается.
func (s State) Expired() bool {
	return s.Trial != nil && s.Status.IsExpired
}

// Store пробный период одного пользователя.
type Store struct {
	userID string
	repo   Repository
	sub    changefeed.Subscriber
	now    func() time.Time
	tick   time.Duration
	log    *slog.Logger

	mu      sync.RWMutex
	trial   *models.Trial
	loading bool
	status  trialclock.Status

	updates chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// Factory создаёт Store для пользователя с общими зависимостями.
type Factory struct {
	Repo       Repository
	Subscriber changefeed.Subscriber
	Now        func() time.Time
	Tick       time.Duration
	Log        *slog.Logger
}

// New создаёт Store для userID. Пустой userID означает отсутствие пользователя:
// такой Store сразу не загружается и не содержит периода.
func (f Factory) New(userID string) *Store {
	now := f.Now
	if now == nil {
		now = time.Now
	}
	tick := f.Tick
	if tick <= 0 {
		tick = time.Minute
	}
	return &Store{
		userID:  userID,
		repo:    f.Repo,
		sub:     f.Subscriber,
		now:     now,
		tick:    tick,
		log:     f.Log.With(slog.String("user_id", userID)),
		loading: userID != "",
		updates: make(chan struct{}, 1),
	}
}

// UserID пользователь, к которому привязан Store.
func (s *Store) UserID() string {
	return s.userID
}

// Snapshot возвращает текущее состояние.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{Trial: s.trial, Loading: s.loading, Status: s.status}
}

// Updates канал уведомлений об изменении состояния. Уведомления схлопываются.
func (s *Store) Updates() <-chan struct{} {
	return s.updates
}

// Load загружает период из хранилища. Ошибка загрузки логируется, а состояние
// становится «загружено, периода нет».
func (s *Store) Load(ctx context.Context) {
	const op = "trialstore.Load"
	if s.userID == "" {
		s.set(nil, false)
		return
	}

	trial, err := s.repo.GetTrialByUser(ctx, s.userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		trial = nil
	case err != nil:
		s.log.Error("failed to load trial", sl.Op(op), sl.Err(err))
		trial = nil
	}
	s.set(trial, false)
}

// Start подписывается на изменения строки пользователя в trials и запускает
// пересчёт оставшегося времени. Ресурсы освобождаются в Close или по отмене ctx.
func (s *Store) Start(ctx context.Context) error {
	const op = "trialstore.Start"
	if s.userID == "" {
		return nil
	}

	var err error
	s.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		sub, subErr := s.sub.Subscribe(ctx, table, changefeed.Eq("user_id", s.userID))
		if subErr != nil {
			cancel()
			s.log.Error("trial subscription failed", sl.Op(op), sl.Err(subErr))
			err = fmt.Errorf("%s: %w", op, subErr)
			return
		}
		s.cancel = cancel
		s.done = make(chan struct{})
		go s.run(ctx, sub)
	})
	return err
}

// Close останавливает подписку и таймер. Повторный вызов безопасен.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		if s.cancel == nil {
			return
		}
		s.cancel()
		<-s.done
	})
}

func (s *Store) run(ctx context.Context, sub *changefeed.Subscription) {
	const op = "trialstore.run"
	defer close(s.done)
	defer sub.Close()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			s.apply(ev, op)
		case <-ticker.C:
			s.recompute()
		}
	}
}

func (s *Store) apply(ev changefeed.Event, op string) {
	if ev.Op == changefeed.OpDelete {
		s.set(nil, false)
		return
	}
	var trial models.Trial
	if err := ev.DecodeRow(&trial); err != nil {
		s.log.Error("bad trial change event", sl.Op(op), sl.Err(err))
		return
	}
	s.set(&trial, false)
}

func (s *Store) set(trial *models.Trial, loading bool) {
	s.mu.Lock()
	s.trial = trial
	s.loading = loading
	s.status = s.derive(trial)
	s.mu.Unlock()
	s.notify()
}

// recompute пересчитывает статус по часам и уведомляет, если изменилось отображение.
func (s *Store) recompute() {
	s.mu.Lock()
	next := s.derive(s.trial)
	changed := next.Display != s.status.Display || next.IsExpired != s.status.IsExpired
	s.status = next
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

func (s *Store) derive(trial *models.Trial) trialclock.Status {
	if trial == nil {
		return trialclock.Status{}
	}
	return trialclock.Derive(s.now(), *trial)
}

func (s *Store) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
