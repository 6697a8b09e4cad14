// Package adminagg собирает данные административной панели: лидов, пробные
// периоды с профилями и комментарии с именами авторов. Каждая коллекция
// загружается целиком при старте, перезагружается целиком по любому изменению
// своей таблицы и раз в интервал перезагружаются все три.
package adminagg

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/magabrotheeeer/trial-gate/internal/changefeed"
	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	"github.com/magabrotheeeer/trial-gate/internal/metrics"
	"github.com/magabrotheeeer/trial-gate/internal/models"
	"github.com/magabrotheeeer/trial-gate/internal/storage/repository"
	"github.com/magabrotheeeer/trial-gate/internal/trialclock"
)

// UnknownAuthor имя автора комментария, у которого нет профиля.
const UnknownAuthor = "User"

// Collection коллекция панели; совпадает с именем таблицы-источника.
type Collection string

const (
	CollectionRegistrations Collection = "registrations"
	CollectionTrials        Collection = "trials"
	CollectionComments      Collection = "lesson_comments"
)

const (
	triggerInitial  = "initial"
	triggerChange   = "change"
	triggerInterval = "interval"
)

// Repository источник коллекций.
type Repository interface {
	ListRegistrations(ctx context.Context) ([]models.Registration, error)
	ListTrialsWithProfiles(ctx context.Context) ([]models.TrialWithProfile, error)
	ListAllComments(ctx context.Context) ([]models.LessonComment, error)
}

// ProfileLookup ищет профиль автора комментария.
type ProfileLookup interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
}

// TrialRow пробный период с профилем и статусом на момент снимка.
type TrialRow struct {
	models.TrialWithProfile
	Status trialclock.Status `json:"status"`
}

// AdminComment комментарий с именем автора.
type AdminComment struct {
	models.LessonComment
	AuthorName string `json:"author_name"`
}

// Metrics производные показатели. Вычисляются при каждом снимке и не хранятся.
type Metrics struct {
	TotalRegistrations int `json:"total_registrations"`
	TodayRegistrations int `json:"today_registrations"`
	ActiveTrials       int `json:"active_trials"`
	ExpiredTrials      int `json:"expired_trials"`
}

// Snapshot состояние панели.
type Snapshot struct {
	Registrations []models.Registration `json:"registrations"`
	Trials        []TrialRow            `json:"trials"`
	Comments      []AdminComment        `json:"comments"`
	Metrics       Metrics               `json:"metrics"`
	Loading       bool                  `json:"loading"`
	GeneratedAt   time.Time             `json:"generated_at"`
}

// Options параметры агрегатора.
type Options struct {
	Repo       Repository
	Profiles   ProfileLookup
	Subscriber changefeed.Subscriber
	Now        func() time.Time
	// Location часовой пояс для подсчёта регистраций за сегодня
	Location *time.Location
	// Interval период полной перезагрузки; по умолчанию 60s
	Interval time.Duration
	Log      *slog.Logger
}

// Aggregator данные панели одного клиента.
type Aggregator struct {
	repo     Repository
	profiles ProfileLookup
	sub      changefeed.Subscriber
	now      func() time.Time
	loc      *time.Location
	interval time.Duration
	log      *slog.Logger

	mu            sync.RWMutex
	registrations []models.Registration
	trials        []models.TrialWithProfile
	comments      []AdminComment
	loading       bool

	updates chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// New создаёт Aggregator в состоянии загрузки.
func New(o Options) *Aggregator {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Interval <= 0 {
		o.Interval = 60 * time.Second
	}
	return &Aggregator{
		repo:     o.Repo,
		profiles: o.Profiles,
		sub:      o.Subscriber,
		now:      o.Now,
		loc:      o.Location,
		interval: o.Interval,
		log:      o.Log,
		loading:  true,
		updates:  make(chan struct{}, 1),
	}
}

// Updates канал уведомлений о перезагрузке коллекций. Уведомления схлопываются.
func (a *Aggregator) Updates() <-chan struct{} {
	return a.updates
}

// Load загружает все три коллекции.
func (a *Aggregator) Load(ctx context.Context) {
	a.reloadAll(ctx, triggerInitial)
	a.mu.Lock()
	a.loading = false
	a.mu.Unlock()
	a.notify()
}

// Start подписывается на изменения трёх таблиц и запускает периодическую
// перезагрузку. Ресурсы освобождаются в Close или по отмене ctx.
// Если подписка на таблицу не удалась, коллекция обновляется только по таймеру.
func (a *Aggregator) Start(ctx context.Context) {
	const op = "adminagg.Start"
	a.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		a.cancel = cancel
		a.done = make(chan struct{})

		subs := make(map[Collection]*changefeed.Subscription, 3)
		for _, c := range []Collection{CollectionRegistrations, CollectionTrials, CollectionComments} {
			sub, err := a.sub.Subscribe(ctx, string(c), changefeed.Filter{})
			if err != nil {
				a.log.Error("admin subscription failed", sl.Op(op), slog.String("collection", string(c)), sl.Err(err))
				continue
			}
			subs[c] = sub
		}
		go a.run(ctx, subs)
	})
}

// Close останавливает подписки и таймер. Повторный вызов безопасен.
func (a *Aggregator) Close() {
	a.closeOnce.Do(func() {
		if a.cancel == nil {
			return
		}
		a.cancel()
		<-a.done
	})
}

func (a *Aggregator) run(ctx context.Context, subs map[Collection]*changefeed.Subscription) {
	defer close(a.done)
	defer func() {
		for _, s := range subs {
			s.Close()
		}
	}()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	events := func(c Collection) <-chan changefeed.Event {
		if s, ok := subs[c]; ok {
			return s.Events()
		}
		return nil
	}
	regCh, trialCh, commentCh := events(CollectionRegistrations), events(CollectionTrials), events(CollectionComments)

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-regCh:
			if !ok {
				regCh = nil
				continue
			}
			a.reload(ctx, CollectionRegistrations, triggerChange)
		case _, ok := <-trialCh:
			if !ok {
				trialCh = nil
				continue
			}
			a.reload(ctx, CollectionTrials, triggerChange)
		case _, ok := <-commentCh:
			if !ok {
				commentCh = nil
				continue
			}
			a.reload(ctx, CollectionComments, triggerChange)
		case <-ticker.C:
			a.reloadAll(ctx, triggerInterval)
		}
	}
}

func (a *Aggregator) reloadAll(ctx context.Context, trigger string) {
	for _, c := range []Collection{CollectionRegistrations, CollectionTrials, CollectionComments} {
		a.reload(ctx, c, trigger)
	}
}

// reload полностью заменяет коллекцию. При ошибке прежние данные остаются.
func (a *Aggregator) reload(ctx context.Context, c Collection, trigger string) {
	const op = "adminagg.reload"
	var err error
	switch c {
	case CollectionRegistrations:
		var regs []models.Registration
		if regs, err = a.repo.ListRegistrations(ctx); err == nil {
			a.mu.Lock()
			a.registrations = regs
			a.mu.Unlock()
		}
	case CollectionTrials:
		var trials []models.TrialWithProfile
		if trials, err = a.repo.ListTrialsWithProfiles(ctx); err == nil {
			a.mu.Lock()
			a.trials = trials
			a.mu.Unlock()
		}
	case CollectionComments:
		var raw []models.LessonComment
		if raw, err = a.repo.ListAllComments(ctx); err == nil {
			comments := a.withAuthors(ctx, raw)
			a.mu.Lock()
			a.comments = comments
			a.mu.Unlock()
		}
	}

	result := "ok"
	if err != nil {
		result = "error"
		if ctx.Err() == nil {
			a.log.Error("admin collection reload failed", sl.Op(op),
				slog.String("collection", string(c)), slog.String("trigger", trigger), sl.Err(err))
		}
	}
	metrics.AdminReloads.WithLabelValues(string(c), trigger, result).Inc()
	if err == nil && trigger != triggerInitial {
		a.notify()
	}
}

// withAuthors находит имя автора для каждого комментария. Ошибка поиска одного
// профиля не срывает весь список.
func (a *Aggregator) withAuthors(ctx context.Context, raw []models.LessonComment) []AdminComment {
	const op = "adminagg.withAuthors"
	names := make(map[string]string)
	out := make([]AdminComment, 0, len(raw))
	for _, c := range raw {
		name, ok := names[c.UserID]
		if !ok {
			name = UnknownAuthor
			p, err := a.profiles.GetProfile(ctx, c.UserID)
			switch {
			case err == nil && p.FullName != "":
				name = p.FullName
			case err != nil && !errors.Is(err, repository.ErrNotFound):
				a.log.Warn("author lookup failed", sl.Op(op), slog.String("user_id", c.UserID), sl.Err(err))
			}
			names[c.UserID] = name
		}
		out = append(out, AdminComment{LessonComment: c, AuthorName: name})
	}
	return out
}

// Snapshot собирает состояние панели и вычисляет показатели на текущий момент.
func (a *Aggregator) Snapshot() Snapshot {
	now := a.now()

	a.mu.RLock()
	regs := slices.Clone(a.registrations)
	trials := slices.Clone(a.trials)
	comments := slices.Clone(a.comments)
	loading := a.loading
	a.mu.RUnlock()

	slices.SortStableFunc(regs, func(x, y models.Registration) int {
		return newestFirst(x.CreatedAt, y.CreatedAt, x.ID, y.ID)
	})
	slices.SortStableFunc(trials, func(x, y models.TrialWithProfile) int {
		return newestFirst(x.CreatedAt, y.CreatedAt, x.ID, y.ID)
	})
	slices.SortStableFunc(comments, func(x, y AdminComment) int {
		return newestFirst(x.CreatedAt, y.CreatedAt, x.ID, y.ID)
	})

	snap := Snapshot{
		Registrations: regs,
		Comments:      comments,
		Trials:        make([]TrialRow, 0, len(trials)),
		Loading:       loading,
		GeneratedAt:   now,
	}
	snap.Metrics.TotalRegistrations = len(regs)
	for _, r := range regs {
		if sameDay(r.CreatedAt, now, a.loc) {
			snap.Metrics.TodayRegistrations++
		}
	}
	for _, t := range trials {
		st := trialclock.Derive(now, t.Trial)
		if st.IsExpired {
			snap.Metrics.ExpiredTrials++
		} else {
			snap.Metrics.ActiveTrials++
		}
		snap.Trials = append(snap.Trials, TrialRow{TrialWithProfile: t, Status: st})
	}
	return snap
}

func (a *Aggregator) notify() {
	select {
	case a.updates <- struct{}{}:
	default:
	}
}

func newestFirst(xt, yt time.Time, xid, yid string) int {
	if c := yt.Compare(xt); c != 0 {
		return c
	}
	return cmp.Compare(yid, xid)
}

func sameDay(t, now time.Time, loc *time.Location) bool {
	ty, tm, td := t.In(loc).Date()
	ny, nm, nd := now.In(loc).Date()
	return ty == ny && tm == nm && td == nd
}
