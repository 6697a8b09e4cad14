// Package overview реализует разовый снимок административной панели.
package overview

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/trial-gate/internal/http/response"
	"github.com/magabrotheeeer/trial-gate/internal/services/adminagg"
)

// Loader собирает данные панели.
type Loader interface {
	Load(ctx context.Context)
	Snapshot() adminagg.Snapshot
}

// Handler обрабатывает GET /admin/overview.
type Handler struct {
	log       *slog.Logger
	newLoader func() Loader
}

// New создает новый экземпляр Handler. newLoader вызывается на каждый запрос.
func New(log *slog.Logger, newLoader func() Loader) *Handler {
	return &Handler{log: log, newLoader: newLoader}
}

// ServeHTTP godoc
// @Summary Снимок административной панели
// @Description Лиды, пробные периоды и комментарии, новые первыми, и показатели.
// @Tags Admin
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} gate.Decision "Нет роли администратора"
// @Router /admin/overview [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.overview"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	l := h.newLoader()
	l.Load(r.Context())
	snap := l.Snapshot()
	log.Debug("overview built",
		slog.Int("registrations", len(snap.Registrations)),
		slog.Int("trials", len(snap.Trials)),
		slog.Int("comments", len(snap.Comments)))
	render.JSON(w, r, response.OKWithData(snap))
}
