// Package identity реализует провайдер идентичности сервиса: учётные записи
// с паролем, токены сессии JWT с отзывом через redis и шину событий смены
// сессии, на которую подписываются клиентские контексты.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/trial-gate/internal/lib/jwt"
	"github.com/magabrotheeeer/trial-gate/internal/lib/password"
	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	"github.com/magabrotheeeer/trial-gate/internal/models"
	"github.com/magabrotheeeer/trial-gate/internal/storage/repository"
)

var (
	// ErrInvalidCredentials неверная почта или пароль
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken учётная запись с такой почтой уже есть
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidSession токен недействителен, просрочен или отозван
	ErrInvalidSession = errors.New("invalid session")
)

// UserRepository хранилище учётных записей.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User, profile models.Profile) (string, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

// TokenStore хранит отозванные токены.
type TokenStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Token выданный токен сессии.
type Token struct {
	AccessToken string          `json:"access_token"`
	ExpiresAt   time.Time       `json:"expires_at"`
	Identity    models.Identity `json:"identity"`
}

// Provider провайдер идентичности.
type Provider struct {
	users  UserRepository
	tokens TokenStore
	maker  jwt.Maker
	bus    *Bus
	log    *slog.Logger
}

// NewProvider создаёт Provider.
func NewProvider(users UserRepository, tokens TokenStore, maker jwt.Maker, bus *Bus, log *slog.Logger) *Provider {
	return &Provider{
		users:  users,
		tokens: tokens,
		maker:  maker,
		bus:    bus,
		log:    log,
	}
}

// Bus шина событий сессии провайдера.
func (p *Provider) Bus() *Bus {
	return p.bus
}

// SignUp создаёт учётную запись и профиль.
func (p *Provider) SignUp(ctx context.Context, email, rawPassword, fullName, phone string) (models.Identity, error) {
	const op = "identity.SignUp"
	email = normalizeEmail(email)

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%s: %w", op, err)
	}
	id, err := p.users.CreateUser(ctx,
		models.User{Email: email, PasswordHash: hashed},
		models.Profile{FullName: strings.TrimSpace(fullName), Phone: strings.TrimSpace(phone)})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return models.Identity{}, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		return models.Identity{}, fmt.Errorf("%s: %w", op, err)
	}

	p.log.Info("identity created", sl.Op(op), slog.String("user_id", id))
	return models.Identity{ID: id, Email: email}, nil
}

// SignIn проверяет пароль и выдаёт токен.
func (p *Provider) SignIn(ctx context.Context, email, rawPassword string) (Token, error) {
	const op = "identity.SignIn"

	user, err := p.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Token{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return Token{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return Token{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return Token{}, fmt.Errorf("%s: %w", op, err)
	}

	token, session, err := p.issue(models.Identity{ID: user.ID, Email: user.Email})
	if err != nil {
		return Token{}, fmt.Errorf("%s: %w", op, err)
	}
	p.bus.Publish(models.SessionEvent{Kind: models.SessionSignedIn, UserID: user.ID, Session: session})
	return token, nil
}

// Refresh выдаёт новый токен взамен действующего и отзывает старый.
func (p *Provider) Refresh(ctx context.Context, accessToken string) (Token, error) {
	const op = "identity.Refresh"

	old, err := p.Validate(ctx, accessToken)
	if err != nil {
		return Token{}, fmt.Errorf("%s: %w", op, err)
	}
	// удалённая учётная запись не продлевает сессию
	user, err := p.users.GetUser(ctx, old.Identity.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return Token{}, fmt.Errorf("%s: %w", op, ErrInvalidSession)
	}
	if err != nil {
		return Token{}, fmt.Errorf("%s: %w", op, err)
	}
	token, session, err := p.issue(models.Identity{ID: user.ID, Email: user.Email})
	if err != nil {
		return Token{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := p.tokens.Revoke(ctx, old.TokenID, old.ExpiresAt); err != nil {
		return Token{}, fmt.Errorf("%s: %w", op, err)
	}
	p.bus.Publish(models.SessionEvent{
		Kind:    models.SessionTokenRefreshed,
		UserID:  old.Identity.ID,
		TokenID: old.TokenID,
		Session: session,
	})
	return token, nil
}

// SignOut отзывает токен. Недействительный токен считается уже закрытой сессией.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	const op = "identity.SignOut"

	session, err := p.Validate(ctx, accessToken)
	if errors.Is(err, ErrInvalidSession) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := p.tokens.Revoke(ctx, session.TokenID, session.ExpiresAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	p.bus.Publish(models.SessionEvent{
		Kind:    models.SessionSignedOut,
		UserID:  session.Identity.ID,
		TokenID: session.TokenID,
	})
	p.log.Info("session closed", sl.Op(op), slog.String("user_id", session.Identity.ID))
	return nil
}

// Validate разбирает токен и проверяет, что он не отозван.
func (p *Provider) Validate(ctx context.Context, accessToken string) (*models.Session, error) {
	const op = "identity.Validate"
	if accessToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidSession)
	}
	claims, err := p.maker.ParseToken(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidSession, err)
	}
	revoked, err := p.tokens.IsRevoked(ctx, claims.TokenID())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if revoked {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidSession)
	}
	return sessionFromClaims(claims), nil
}

func (p *Provider) issue(id models.Identity) (Token, *models.Session, error) {
	signed, claims, err := p.maker.GenerateToken(id.ID, id.Email)
	if err != nil {
		return Token{}, nil, err
	}
	session := sessionFromClaims(claims)
	return Token{AccessToken: signed, ExpiresAt: session.ExpiresAt, Identity: id}, session, nil
}

func sessionFromClaims(c *jwt.Claims) *models.Session {
	s := &models.Session{
		Identity: models.Identity{ID: c.UserID, Email: c.Email},
		TokenID:  c.TokenID(),
	}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
