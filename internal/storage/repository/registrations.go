package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/trial-gate/internal/models"
)

// CreateRegistration сохраняет лида. Повтор почты возвращает ErrDuplicateEmail.
func (s *Storage) CreateRegistration(ctx context.Context, reg models.Registration) (models.Registration, error) {
	const op = "storage.CreateRegistration"
	select {
	case <-ctx.Done():
		return models.Registration{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	out := reg
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO registrations (full_name, email, phone)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		reg.FullName, reg.Email, reg.Phone).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return models.Registration{}, wrap(op, err)
	}
	return out, nil
}

// ListRegistrations возвращает всех лидов, новые первыми.
func (s *Storage) ListRegistrations(ctx context.Context) ([]models.Registration, error) {
	const op = "storage.ListRegistrations"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, full_name, email, phone, created_at
		 FROM registrations
		 ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.Registration
	for rows.Next() {
		var r models.Registration
		if err := rows.Scan(&r.ID, &r.FullName, &r.Email, &r.Phone, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
