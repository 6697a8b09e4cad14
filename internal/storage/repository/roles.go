package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/trial-gate/internal/models"
)

// AssignRole выдаёт роль пользователю. Повторная выдача ничего не меняет.
func (s *Storage) AssignRole(ctx context.Context, userID string, role models.Role) error {
	const op = "storage.AssignRole"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, string(role))
	if err != nil {
		return wrap(op, err)
	}
	return nil
}

// HasRole проверяет наличие строки {user_id, role}. Если строки нет, возвращается false без ошибки.
func (s *Storage) HasRole(ctx context.Context, userID string, role models.Role) (bool, error) {
	const op = "storage.HasRole"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var exists bool
	err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_roles WHERE user_id = $1 AND role = $2)`,
		userID, string(role)).Scan(&exists)
	if err != nil {
		if errors.Is(mapError(err), ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}
