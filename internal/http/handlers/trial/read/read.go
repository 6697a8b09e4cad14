// Package read реализует HTTP-обработчик таймера пробного периода.
package read

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/trial-gate/internal/http/middlewarectx"
	"github.com/magabrotheeeer/trial-gate/internal/http/response"
	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	"github.com/magabrotheeeer/trial-gate/internal/models"
	"github.com/magabrotheeeer/trial-gate/internal/storage/repository"
	"github.com/magabrotheeeer/trial-gate/internal/trialclock"
)

// Result пробный период клиента и оставшееся время. Trial равен nil, если периода нет.
type Result struct {
	Trial  *models.Trial      `json:"trial"`
	Status *trialclock.Status `json:"status,omitempty"`
}

// Repository источник пробных периодов.
type Repository interface {
	GetTrialByUser(ctx context.Context, userID string) (*models.Trial, error)
}

// Handler обрабатывает GET /trial.
type Handler struct {
	log  *slog.Logger
	repo Repository
	now  func() time.Time
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, repo Repository) *Handler {
	return &Handler{log: log, repo: repo, now: time.Now}
}

// ServeHTTP godoc
// @Summary Пробный период клиента
// @Tags Trial
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} gate.Decision "Нет сессии"
// @Failure 403 {object} gate.Decision "Пробный период закончился"
// @Router /trial [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.trial.read"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, ok := middlewarectx.IdentityFrom(r.Context())
	if !ok {
		log.Error("user identification missing")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("user identification missing"))
		return
	}

	trial, err := h.repo.GetTrialByUser(r.Context(), id.ID)
	if errors.Is(err, repository.ErrNotFound) {
		render.JSON(w, r, response.OKWithData(Result{}))
		return
	}
	if err != nil {
		log.Error("failed to load trial", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	status := trialclock.Derive(h.now(), *trial)
	render.JSON(w, r, response.OKWithData(Result{Trial: trial, Status: &status}))
}
