// Package comments реализует комментарии к урокам. Менять и удалять комментарий
// может только его автор; хранилище проверяет это само, а в выдаче чужие
// комментарии помечаются can_edit=false.
package comments

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

// UnknownAuthor имя автора без профиля.
const UnknownAuthor = "User"

var (
	// ErrNotOwner комментарий не найден среди комментариев пользователя
	ErrNotOwner = errors.New("comment not found or not owned by user")
	// ErrInvalidLesson номер урока должен быть положительным
	ErrInvalidLesson = errors.New("invalid lesson id")
	// ErrEmptyComment пустой текст
	ErrEmptyComment = errors.New("comment is empty")
)

// Repository хранилище комментариев.
type Repository interface {
	CreateComment(ctx context.Context, c models.LessonComment) (models.LessonComment, error)
	ListCommentsByLesson(ctx context.Context, lessonID int) ([]models.LessonComment, error)
	UpdateComment(ctx context.Context, id, userID, text string) (*models.LessonComment, error)
	DeleteComment(ctx context.Context, id, userID string) error
}

// ProfileLookup ищет профиль автора.
type ProfileLookup interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
}

// Service комментарии к урокам.
type Service struct {
	repo     Repository
	profiles ProfileLookup
	log      *slog.Logger
}

// NewService создаёт Service.
func NewService(repo Repository, profiles ProfileLookup, log *slog.Logger) *Service {
	return &Service{repo: repo, profiles: profiles, log: log}
}

// List возвращает комментарии урока, новые первыми, с именем автора и can_edit для viewerID.
func (s *Service) List(ctx context.Context, lessonID int, viewerID string) ([]models.CommentView, error) {
	const op = "comments.List"
	if lessonID <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidLesson)
	}

	raw, err := s.repo.ListCommentsByLesson(ctx, lessonID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	names := make(map[string]string)
	out := make([]models.CommentView, 0, len(raw))
	for _, c := range raw {
		name, ok := names[c.UserID]
		if !ok {
			name = s.authorName(ctx, c.UserID)
			names[c.UserID] = name
		}
		out = append(out, models.CommentView{
			LessonComment: c,
			AuthorName:    name,
			CanEdit:       viewerID != "" && c.UserID == viewerID,
		})
	}
	return out, nil
}

// Create добавляет комментарий от имени userID.
func (s *Service) Create(ctx context.Context, userID string, lessonID int, text string) (models.CommentView, error) {
	const op = "comments.Create"
	text, err := validate(lessonID, text)
	if err != nil {
		return models.CommentView{}, fmt.Errorf("%s: %w", op, err)
	}

	c, err := s.repo.CreateComment(ctx, models.LessonComment{UserID: userID, LessonID: lessonID, Comment: text})
	if err != nil {
		return models.CommentView{}, fmt.Errorf("%s: %w", op, err)
	}
	return models.CommentView{LessonComment: c, AuthorName: s.authorName(ctx, userID), CanEdit: true}, nil
}

// Update меняет текст комментария автора.
func (s *Service) Update(ctx context.Context, userID, id, text string) (models.CommentView, error) {
	const op = "comments.Update"
	text = strings.TrimSpace(text)
	if text == "" {
		return models.CommentView{}, fmt.Errorf("%s: %w", op, ErrEmptyComment)
	}

	c, err := s.repo.UpdateComment(ctx, id, userID, text)
	if errors.Is(err, repository.ErrNotFound) {
		return models.CommentView{}, fmt.Errorf("%s: %w", op, ErrNotOwner)
	}
	if err != nil {
		return models.CommentView{}, fmt.Errorf("%s: %w", op, err)
	}
	return models.CommentView{LessonComment: *c, AuthorName: s.authorName(ctx, userID), CanEdit: true}, nil
}

// Delete удаляет комментарий автора.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	const op = "comments.Delete"
	err := s.repo.DeleteComment(ctx, id, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotOwner)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) authorName(ctx context.Context, userID string) string {
	const op = "comments.authorName"
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("author lookup failed", sl.Op(op), slog.String("user_id", userID), sl.Err(err))
		}
		return UnknownAuthor
	}
	if p.FullName == "" {
		return UnknownAuthor
	}
	return p.FullName
}

func validate(lessonID int, text string) (string, error) {
	if lessonID <= 0 {
		return "", ErrInvalidLesson
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyComment
	}
	return text, nil
}
