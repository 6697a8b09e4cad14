package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/trial-gate/internal/models"
)

const trialColumns = `t.id, t.user_id, t.started_at, t.ends_at, t.created_at, t.updated_at`

// ProvisionTrial создаёт пробный период, если у пользователя его ещё нет.
// created=false означает, что период уже существовал и возвращён без изменений.
func (s *Storage) ProvisionTrial(ctx context.Context, userID string, startedAt time.Time, length time.Duration) (*models.Trial, bool, error) {
	const op = "storage.ProvisionTrial"
	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO trials (user_id, started_at, ends_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, startedAt, startedAt.Add(length))
	if err != nil {
		return nil, false, wrap(op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	trial, err := s.GetTrialByUser(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return trial, affected > 0, nil
}

// GetTrialByUser возвращает пробный период пользователя или ErrNotFound.
func (s *Storage) GetTrialByUser(ctx context.Context, userID string) (*models.Trial, error) {
	const op = "storage.GetTrialByUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	t := &models.Trial{}
	err := s.DB.QueryRowContext(ctx,
		`SELECT `+trialColumns+` FROM trials t WHERE t.user_id = $1`, userID).
		Scan(&t.ID, &t.UserID, &t.StartedAt, &t.EndsAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, wrap(op, err)
	}
	return t, nil
}

// ListTrialsWithProfiles возвращает все пробные периоды с данными профиля, новые первыми.
func (s *Storage) ListTrialsWithProfiles(ctx context.Context) ([]models.TrialWithProfile, error) {
	const op = "storage.ListTrialsWithProfiles"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+trialColumns+`, COALESCE(p.full_name, ''), COALESCE(p.phone, '')
		 FROM trials t
		 LEFT JOIN profiles p ON p.user_id = t.user_id
		 ORDER BY t.created_at DESC, t.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.TrialWithProfile
	for rows.Next() {
		var t models.TrialWithProfile
		if err := rows.Scan(&t.ID, &t.UserID, &t.StartedAt, &t.EndsAt, &t.CreatedAt, &t.UpdatedAt,
			&t.FullName, &t.Phone); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// FindTrialsEndingBetween возвращает получателей напоминаний для периодов,
// заканчивающихся в полуинтервале [from, to).
func (s *Storage) FindTrialsEndingBetween(ctx context.Context, from, to time.Time) ([]models.TrialReminder, error) {
	const op = "storage.FindTrialsEndingBetween"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT t.user_id, u.email, COALESCE(p.full_name, ''), t.ends_at
		 FROM trials t
		 JOIN users u ON u.id = t.user_id
		 LEFT JOIN profiles p ON p.user_id = t.user_id
		 WHERE t.ends_at >= $1 AND t.ends_at < $2
		 ORDER BY t.ends_at`, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.TrialReminder
	for rows.Next() {
		var r models.TrialReminder
		if err := rows.Scan(&r.UserID, &r.Email, &r.FullName, &r.EndsAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
