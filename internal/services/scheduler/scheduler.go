// Package scheduler находит пробные периоды, о которых пора напомнить, и
// публикует напоминания в очередь уведомлений.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/trial-gate/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	"github.com/magabrotheeeer/trial-gate/internal/metrics"
	"github.com/magabrotheeeer/trial-gate/internal/models"
)

// UpcomingLead за сколько до окончания отправляется предупреждение.
const UpcomingLead = 24 * time.Hour

// TrialRepository источник получателей напоминаний.
type TrialRepository interface {
	FindTrialsEndingBetween(ctx context.Context, from, to time.Time) ([]models.TrialReminder, error)
}

// Service планировщик напоминаний. Каждый запуск покрывает окно длиной interval,
// поэтому при регулярных тиках каждый период попадает в окно один раз.
type Service struct {
	repo      TrialRepository
	publisher rabbitmq.Publisher
	interval  time.Duration
	now       func() time.Time
	log       *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(repo TrialRepository, publisher rabbitmq.Publisher, interval time.Duration, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		interval:  interval,
		now:       time.Now,
		log:       log,
	}
}

// Run выполняет проверку сразу и затем на каждом тике, пока не отменён ctx.
func (s *Service) Run(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce публикует напоминания для периодов, заканчивающихся через сутки,
// и для периодов, закончившихся за последний интервал.
func (s *Service) RunOnce(ctx context.Context) {
	now := s.now()
	s.publish(ctx, rabbitmq.RoutingTrialUpcoming, now.Add(UpcomingLead), now.Add(UpcomingLead+s.interval))
	s.publish(ctx, rabbitmq.RoutingTrialExpired, now.Add(-s.interval), now)
}

func (s *Service) publish(ctx context.Context, routingKey string, from, to time.Time) {
	const op = "scheduler.publish"
	log := s.log.With(sl.Op(op), slog.String("routing_key", routingKey))

	reminders, err := s.repo.FindTrialsEndingBetween(ctx, from, to)
	if err != nil {
		log.Error("failed to find trials", sl.Err(err))
		return
	}
	if len(reminders) == 0 {
		log.Debug("no trials found")
		return
	}
	log.Info("found trials", slog.Int("count", len(reminders)))

	for _, r := range reminders {
		if err := s.publisher.Publish(routingKey, r); err != nil {
			log.Error("failed to publish message", slog.String("user_id", r.UserID), sl.Err(err))
			continue
		}
		metrics.TrialReminders.WithLabelValues(routingKey).Inc()
	}
}
