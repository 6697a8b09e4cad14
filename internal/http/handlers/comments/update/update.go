// Package update реализует HTTP-обработчик изменения комментария автором.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

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

// Request — новый текст комментария.
type Request struct {
	Comment string `json:"comment" validate:"required,max=4000"`
}

// Service меняет комментарии.
type Service interface {
	Update(ctx context.Context, userID, id, text string) (models.CommentView, error)
}

// Handler обрабатывает PUT /comments/{id}.
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
// @Summary Изменение комментария
// @Description Доступно только автору; чужой комментарий отвечает 404.
// @Tags Comments
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID комментария"
// @Param request body Request true "Текст"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /comments/{id} [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.comments.update"
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

	view, err := h.service.Update(r.Context(), author.ID, id, req.Comment)
	switch {
	case errors.Is(err, comments.ErrNotOwner):
		log.Info("comment not found or not owned", slog.String("comment_id", id))
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("comment not found"))
		return
	case errors.Is(err, comments.ErrEmptyComment):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("comment is empty"))
		return
	case err != nil:
		log.Error("failed to update comment", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	render.JSON(w, r, response.OKWithData(view))
}
