// Package leads записывает заявки на курс.
package leads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	"github.com/magabrotheeeer/trial-gate/internal/models"
	"github.com/magabrotheeeer/trial-gate/internal/storage/repository"
)

// Repository хранилище лидов.
type Repository interface {
	CreateRegistration(ctx context.Context, reg models.Registration) (models.Registration, error)
}

// Service запись лидов.
type Service struct {
	repo Repository
	log  *slog.Logger
}

// NewService создаёт Service.
func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Register сохраняет лида. Если почта уже есть, возвращает created=false без ошибки:
// человек уже в списке, и для него это успешная запись.
func (s *Service) Register(ctx context.Context, fullName, email, phone string) (models.Registration, bool, error) {
	const op = "leads.Register"
	reg := models.Registration{
		FullName: strings.TrimSpace(fullName),
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Phone:    strings.TrimSpace(phone),
	}

	saved, err := s.repo.CreateRegistration(ctx, reg)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		s.log.Info("lead already registered", sl.Op(op))
		return reg, false, nil
	}
	if err != nil {
		return models.Registration{}, false, fmt.Errorf("%s: %w", op, err)
	}
	return saved, true, nil
}
