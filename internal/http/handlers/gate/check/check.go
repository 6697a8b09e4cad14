// Package check реализует разовую проверку доступа к разделу.
package check

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/trial-gate/internal/http/middlewarectx"
	"github.com/magabrotheeeer/trial-gate/internal/http/response"
	"github.com/magabrotheeeer/trial-gate/internal/services/gate"
	"github.com/magabrotheeeer/trial-gate/internal/services/session"
)

// Result решение вместе с состоянием сессии.
type Result struct {
	Decision gate.Decision `json:"decision"`
	Session  session.State `json:"session"`
}

// Evaluator принимает разовое решение.
type Evaluator interface {
	Evaluate(ctx context.Context, accessToken string, route gate.Route) (gate.Decision, session.State)
}

// Handler обрабатывает GET /gate.
type Handler struct {
	log *slog.Logger
	ev  Evaluator
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, ev Evaluator) *Handler {
	return &Handler{log: log, ev: ev}
}

// ServeHTTP godoc
// @Summary Решение по разделу
// @Description Возвращает решение для клиента запроса, не выполняя перенаправления.
// @Tags Gate
// @Produce  json
// @Param route query string true "classroom или admin"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Неизвестный раздел"
// @Router /gate [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.gate.check"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	route, err := gate.ParseRoute(r.URL.Query().Get("route"))
	if err != nil {
		log.Info("unknown route", slog.String("route", r.URL.Query().Get("route")))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("unknown route"))
		return
	}

	d, st := h.ev.Evaluate(r.Context(), middlewarectx.BearerToken(r), route)
	render.JSON(w, r, response.OKWithData(Result{Decision: d, Session: st}))
}
