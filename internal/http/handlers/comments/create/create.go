// Package create реализует HTTP-обработчик нового комментария к уроку.
package create

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/trial-gate/internal/http/middlewarectx"
	"github.com/magabrotheeeer/trial-gate/internal/http/response"
	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	"github.com/magabrotheeeer/trial-gate/internal/models"
	"github.com/magabrotheeeer/trial-gate/internal/services/comments"
)

// Request — текст комментария.
type Request struct {
	Comment string `json:"comment" validate:"required,max=4000"`
}

// Service создаёт комментарии.
type Service interface {
	Create(ctx context.Context, userID string, lessonID int, text string) (models.CommentView, error)
}

// Handler обрабатывает POST /lessons/{lessonID}/comments.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

// ServeHTTP godoc
// @Summary Новый комментарий
// @Tags Comments
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param lessonID path int true "Номер урока"
// @Param request body Request true "Текст"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /lessons/{lessonID}/comments [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.comments.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	author, ok := middlewarectx.IdentityFrom(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("user identification missing"))
		return
	}
	lessonID, err := strconv.Atoi(chi.URLParam(r, "lessonID"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid lesson id"))
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	view, err := h.service.Create(r.Context(), author.ID, lessonID, req.Comment)
	switch {
	case errors.Is(err, comments.ErrInvalidLesson):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid lesson id"))
		return
	case errors.Is(err, comments.ErrEmptyComment):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("comment is empty"))
		return
	case err != nil:
		log.Error("failed to create comment", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("comment created", slog.String("comment_id", view.ID), slog.Int("lesson_id", lessonID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(view))
}
