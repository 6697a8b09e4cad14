// Package list реализует HTTP-обработчик списка комментариев урока.
package list

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/trial-gate/internal/http/middlewarectx"
	"github.com/magabrotheeeer/trial-gate/internal/http/response"
	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	"github.com/magabrotheeeer/trial-gate/internal/models"
	"github.com/magabrotheeeer/trial-gate/internal/services/comments"
)

// Service читает комментарии.
type Service interface {
	List(ctx context.Context, lessonID int, viewerID string) ([]models.CommentView, error)
}

// Handler обрабатывает GET /lessons/{lessonID}/comments.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Комментарии урока
// @Description Новые первыми; can_edit истинно только для комментариев клиента.
// @Tags Comments
// @Produce  json
// @Security BearerAuth
// @Param lessonID path int true "Номер урока"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректный номер урока"
// @Router /lessons/{lessonID}/comments [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.comments.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	lessonID, err := strconv.Atoi(chi.URLParam(r, "lessonID"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid lesson id"))
		return
	}
	viewer, _ := middlewarectx.IdentityFrom(r.Context())

	items, err := h.service.List(r.Context(), lessonID, viewer.ID)
	if errors.Is(err, comments.ErrInvalidLesson) {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid lesson id"))
		return
	}
	if err != nil {
		log.Error("failed to list comments", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	render.JSON(w, r, response.OKWithData(items))
}
