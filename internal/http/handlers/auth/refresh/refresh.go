// Package refresh реализует HTTP-обработчик обновления токена сессии.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/trial-gate/internal/http/middlewarectx"
	"github.com/magabrotheeeer/trial-gate/internal/http/response"
	"github.com/magabrotheeeer/trial-gate/internal/identity"
	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
)

// Service обновляет токен.
type Service interface {
	Refresh(ctx context.Context, accessToken string) (identity.Token, error)
}

// Handler обрабатывает HTTP-запросы обновления токена.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Обновление токена
// @Description Выдаёт новый токен взамен действующего, старый отзывается.
// @Tags Auth
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Сессия недействительна"
// @Router /auth/refresh [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.refresh"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	token := middlewarectx.BearerToken(r)
	if token == "" {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("missing or invalid authorization header"))
		return
	}

	next, err := h.service.Refresh(r.Context(), token)
	if errors.Is(err, identity.ErrInvalidSession) {
		log.Info("refresh rejected", sl.Err(err))
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid or expired token"))
		return
	}
	if err != nil {
		log.Error("refresh failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	render.JSON(w, r, response.OKWithData(next))
}
