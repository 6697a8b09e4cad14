// Package sender собирает приложение, которое отправляет письма-напоминания
// из очередей пробного периода.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"
	"gopkg.in/gomail.v2"

	"github.com/magabrotheeeer/trial-gate/internal/config"
	"github.com/magabrotheeeer/trial-gate/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	senderservice "github.com/magabrotheeeer/trial-gate/internal/services/sender"
)

// App приложение отправки писем.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.Service
	logger        *slog.Logger
}

// New создает новый экземпляр приложения.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.TrialQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	senderService := senderservice.NewService(dialer, cfg.SMTPUser, cfg.ContactURL, logger)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

// Run запускает потребителей очередей и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	handlers := map[string]func([]byte) error{
		rabbitmq.RoutingTrialUpcoming: a.senderService.SendTrialUpcoming,
		rabbitmq.RoutingTrialExpired:  a.senderService.SendTrialExpired,
	}

	var stopped []<-chan struct{}
	for _, q := range rabbitmq.TrialQueues() {
		done, err := rabbitmq.ConsumerMessage(ctx, a.ch, q.QueueName, a.logger, handlers[q.RoutingKey])
		if err != nil {
			a.logger.Error("failed to start consumer", slog.String("queue", q.QueueName), sl.Err(err))
			return err
		}
		stopped = append(stopped, done)
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")
	for _, done := range stopped {
		<-done
	}

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	return nil
}
