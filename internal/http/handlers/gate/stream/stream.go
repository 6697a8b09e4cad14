// Package stream реализует поток решений доступа для открытого раздела.
//
// Клиент получает событие decision сразу и затем при каждом изменении решения:
// истечение пробного периода, выдача роли, выход. Все подписки клиента
// освобождаются, когда он отключается.
package stream

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/trial-gate/internal/http/middlewarectx"
	"github.com/magabrotheeeer/trial-gate/internal/http/response"
	"github.com/magabrotheeeer/trial-gate/internal/http/sse"
	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	"github.com/magabrotheeeer/trial-gate/internal/services/gate"
)

const pingInterval = 25 * time.Second

// Watcher отслеживает решения для клиента.
type Watcher interface {
	Watch(ctx context.Context, accessToken string, route gate.Route, emit func(gate.Decision))
}

// Handler обрабатывает GET /gate/stream.
type Handler struct {
	log     *slog.Logger
	watcher Watcher
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, watcher Watcher) *Handler {
	return &Handler{log: log, watcher: watcher}
}

// ServeHTTP godoc
// @Summary Поток решений по разделу
// @Tags Gate
// @Produce  text/event-stream
// @Param route query string true "classroom или admin"
// @Param access_token query string false "Токен, если нельзя передать заголовок"
// @Router /gate/stream [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.gate.stream"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	route, err := gate.ParseRoute(r.URL.Query().Get("route"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("unknown route"))
		return
	}

	out, err := sse.New(w)
	if err != nil {
		log.Error("failed to open stream", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("streaming unsupported"))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())

	decisions := make(chan gate.Decision, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.watcher.Watch(ctx, middlewarectx.BearerToken(r), route, func(d gate.Decision) {
			// клиенту важно только последнее решение
			select {
			case <-decisions:
			default:
			}
			decisions <- d
		})
	}()
	defer func() {
		cancel()
		<-done
	}()

	log.Debug("stream opened", slog.String("route", string(route)))
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("stream closed")
			return
		case d := <-decisions:
			if err := out.Send("decision", d); err != nil {
				log.Info("client gone", sl.Err(err))
				return
			}
		case <-ping.C:
			if err := out.Ping(); err != nil {
				return
			}
		}
	}
}
