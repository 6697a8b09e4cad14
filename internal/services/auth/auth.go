// Package auth реализует сценарии входа платформы поверх провайдера
// идентичности: регистрацию студента с выдачей пробного периода и вход
// в административную панель.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/trial-gate/internal/identity"
	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	"github.com/magabrotheeeer/trial-gate/internal/models"
)

// IdentityProvider провайдер учётных записей и сессий.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password, fullName, phone string) (models.Identity, error)
	SignIn(ctx context.Context, email, password string) (identity.Token, error)
	Refresh(ctx context.Context, accessToken string) (identity.Token, error)
	SignOut(ctx context.Context, accessToken string) error
}

// LeadRegistrar записывает лида.
type LeadRegistrar interface {
	Register(ctx context.Context, fullName, email, phone string) (models.Registration, bool, error)
}

// RoleService проверяет и выдаёт роли.
type RoleService interface {
	Assign(ctx context.Context, userID string, role models.Role) error
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// TrialProvisioner создаёт пробный период.
type TrialProvisioner interface {
	ProvisionTrial(ctx context.Context, userID string, startedAt time.Time, length time.Duration) (*models.Trial, bool, error)
}

// SignUpResult итог регистрации.
type SignUpResult struct {
	Identity          models.Identity `json:"identity"`
	Token             identity.Token  `json:"token"`
	Trial             *models.Trial   `json:"trial"`
	AlreadyRegistered bool            `json:"already_registered"`
}

// Service сценарии входа.
type Service struct {
	provider    IdentityProvider
	leads       LeadRegistrar
	roles       RoleService
	trials      TrialProvisioner
	trialLength time.Duration
	now         func() time.Time
	log         *slog.Logger
}

// NewService создаёт Service.
func NewService(provider IdentityProvider, leads LeadRegistrar, roles RoleService, trials TrialProvisioner,
	trialLength time.Duration, log *slog.Logger) *Service {
	return &Service{
		provider:    provider,
		leads:       leads,
		roles:       roles,
		trials:      trials,
		trialLength: trialLength,
		now:         time.Now,
		log:         log,
	}
}

// SignUp создаёт учётную запись, записывает лида, выдаёт роль студента,
// создаёт пробный период и сразу открывает сессию.
// Повторная запись лида с той же почтой ошибкой не считается.
func (s *Service) SignUp(ctx context.Context, email, password, fullName, phone string) (SignUpResult, error) {
	const op = "auth.SignUp"
	log := s.log.With(sl.Op(op))

	id, err := s.provider.SignUp(ctx, email, password, fullName, phone)
	if err != nil {
		return SignUpResult{}, fmt.Errorf("%s: %w", op, err)
	}

	_, created, err := s.leads.Register(ctx, fullName, id.Email, phone)
	if err != nil {
		return SignUpResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.roles.Assign(ctx, id.ID, models.RoleStudent); err != nil {
		return SignUpResult{}, fmt.Errorf("%s: %w", op, err)
	}
	trial, _, err := s.trials.ProvisionTrial(ctx, id.ID, s.now().UTC(), s.trialLength)
	if err != nil {
		return SignUpResult{}, fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return SignUpResult{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("student signed up", slog.String("user_id", id.ID), slog.Bool("lead_existed", !created))
	return SignUpResult{Identity: id, Token: token, Trial: trial, AlreadyRegistered: !created}, nil
}

// SignIn вход студента.
func (s *Service) SignIn(ctx context.Context, email, password string) (identity.Token, error) {
	return s.provider.SignIn(ctx, email, password)
}

// AdminSignIn вход администратора. Пользователь без роли администратора сразу
// выходит и получает тот же ответ, что и при неверном пароле.
func (s *Service) AdminSignIn(ctx context.Context, email, password string) (identity.Token, error) {
	const op = "auth.AdminSignIn"

	token, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return identity.Token{}, fmt.Errorf("%s: %w", op, err)
	}
	admin, err := s.roles.IsAdmin(ctx, token.Identity.ID)
	if err == nil && admin {
		return token, nil
	}
	if err != nil {
		s.log.Error("admin role check failed", sl.Op(op), sl.Err(err))
	}
	if outErr := s.provider.SignOut(ctx, token.AccessToken); outErr != nil {
		s.log.Error("failed to close non-admin session", sl.Op(op), sl.Err(outErr))
	}
	if err != nil {
		return identity.Token{}, fmt.Errorf("%s: %w", op, err)
	}
	return identity.Token{}, fmt.Errorf("%s: %w", op, identity.ErrInvalidCredentials)
}

// Refresh продлевает сессию.
func (s *Service) Refresh(ctx context.Context, accessToken string) (identity.Token, error) {
	return s.provider.Refresh(ctx, accessToken)
}

// SignOut закрывает сессию.
func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	return s.provider.SignOut(ctx, accessToken)
}

// IsCredentialsError сообщает, что ошибку нужно показать как неверные данные входа.
func IsCredentialsError(err error) bool {
	return errors.Is(err, identity.ErrInvalidCredentials)
}
