// Package remove реализует HTTP-обработчик удаления комментария автором.
package remove

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/trial-gate/internal/http/middlewarectx"
	"github.com/magabrotheeeer/trial-gate/internal/http/response"
	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	"github.com/magabrotheeeer/trial-gate/internal/services/comments"
)

// Service удаляет комментарии.
type Service interface {
	Delete(ctx context.Context, userID, id string) error
}

// Handler обрабатывает DELETE /comments/{id}.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Удаление комментария
// @Tags Comments
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID комментария"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /comments/{id} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.comments.remove"
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
	id := chi.URLParam(r, "id")

	err := h.service.Delete(r.Context(), author.ID, id)
	if errors.Is(err, comments.ErrNotOwner) {
		log.Info("comment not found or not owned", slog.String("comment_id", id))
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("comment not found"))
		return
	}
	if err != nil {
		log.Error("failed to delete comment", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("comment deleted", slog.String("comment_id", id))
	render.JSON(w, r, response.OK())
}
