package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/trial-gate/internal/models"
)

const commentColumns = `id, user_id, lesson_id, comment, created_at`

// CreateComment сохраняет комментарий к уроку.
func (s *Storage) CreateComment(ctx context.Context, c models.LessonComment) (models.LessonComment, error) {
	const op = "storage.CreateComment"
	select {
	case <-ctx.Done():
		return models.LessonComment{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	out := c
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO lesson_comments (user_id, lesson_id, comment)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		c.UserID, c.LessonID, c.Comment).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return models.LessonComment{}, wrap(op, err)
	}
	return out, nil
}

// ListCommentsByLesson возвращает комментарии урока, новые первыми.
func (s *Storage) ListCommentsByLesson(ctx context.Context, lessonID int) ([]models.LessonComment, error) {
	const op = "storage.ListCommentsByLesson"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	return s.queryComments(ctx, op,
		`SELECT `+commentColumns+` FROM lesson_comments
		 WHERE lesson_id = $1
		 ORDER BY created_at DESC, id DESC`, lessonID)
}

// ListAllComments возвращает все комментарии платформы, новые первыми.
func (s *Storage) ListAllComments(ctx context.Context) ([]models.LessonComment, error) {
	const op = "storage.ListAllComments"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	return s.queryComments(ctx, op,
		`SELECT `+commentColumns+` FROM lesson_comments
		 ORDER BY created_at DESC, id DESC`)
}

// UpdateComment меняет текст комментария. Строка меняется, только если userID его автор;
// иначе возвращается ErrNotFound.
func (s *Storage) UpdateComment(ctx context.Context, id, userID, text string) (*models.LessonComment, error) {
	const op = "storage.UpdateComment"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	c := &models.LessonComment{}
	err := s.DB.QueryRowContext(ctx,
		`UPDATE lesson_comments SET comment = $3
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+commentColumns, id, userID, text).
		Scan(&c.ID, &c.UserID, &c.LessonID, &c.Comment, &c.CreatedAt)
	if err != nil {
		return nil, wrap(op, err)
	}
	return c, nil
}

// DeleteComment удаляет комментарий автора. Для чужого или несуществующего возвращает ErrNotFound.
func (s *Storage) DeleteComment(ctx context.Context, id, userID string) error {
	const op = "storage.DeleteComment"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM lesson_comments WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func (s *Storage) queryComments(ctx context.Context, op, query string, args ...any) ([]models.LessonComment, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.LessonComment
	for rows.Next() {
		var c models.LessonComment
		if err := rows.Scan(&c.ID, &c.UserID, &c.LessonID, &c.Comment, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
