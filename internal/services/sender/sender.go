// Package sender отправляет студентам письма-напоминания о пробном периоде.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	"github.com/magabrotheeeer/trial-gate/internal/models"
)

const dateLayout = "02.01.2006 15:04"

// Mailer отправляет готовые письма. *gomail.Dialer реализует его.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Service обработчик сообщений очереди напоминаний.
type Service struct {
	mailer     Mailer
	from       string
	contactURL string
	log        *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(mailer Mailer, from, contactURL string, log *slog.Logger) *Service {
	return &Service{
		mailer:     mailer,
		from:       from,
		contactURL: contactURL,
		log:        log,
	}
}

// SendTrialUpcoming обрабатывает сообщение trial.upcoming.
func (s *Service) SendTrialUpcoming(body []byte) error {
	const op = "sender.SendTrialUpcoming"
	r, err := decode(body)
	if err != nil {
		s.log.Error("failed to unmarshal message body", sl.Op(op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	subject := "Пробный период заканчивается завтра"
	text := fmt.Sprintf("Здравствуйте, %s!\n\nВаш пробный доступ к урокам заканчивается %s.\n\nУспейте досмотреть начатые уроки.",
		greeting(r), r.EndsAt.Format(dateLayout))
	return s.send(op, r.Email, subject, text)
}

// SendTrialExpired обрабатывает сообщение trial.expired.
func (s *Service) SendTrialExpired(body []byte) error {
	const op = "sender.SendTrialExpired"
	r, err := decode(body)
	if err != nil {
		s.log.Error("failed to unmarshal message body", sl.Op(op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	subject := "Пробный период закончился"
	text := fmt.Sprintf("Здравствуйте, %s!\n\nВаш пробный доступ к урокам закончился %s.",
		greeting(r), r.EndsAt.Format(dateLayout))
	if s.contactURL != "" {
		text += fmt.Sprintf("\n\nЧтобы продолжить обучение, свяжитесь с нами: %s", s.contactURL)
	}
	return s.send(op, r.Email, subject, text)
}

func (s *Service) send(op, to, subject, text string) error {
	if strings.TrimSpace(to) == "" {
		s.log.Warn("email recipient empty, skip notification", sl.Op(op))
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", text)

	if err := s.mailer.DialAndSend(m); err != nil {
		s.log.Error("failed to send email", sl.Op(op), slog.String("to", to), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("email sent successfully", sl.Op(op), slog.String("to", to))
	return nil
}

func decode(body []byte) (models.TrialReminder, error) {
	var r models.TrialReminder
	if err := json.Unmarshal(body, &r); err != nil {
		return r, err
	}
	return r, nil
}

func greeting(r models.TrialReminder) string {
	if r.FullName != "" {
		return r.FullName
	}
	return r.Email
}
