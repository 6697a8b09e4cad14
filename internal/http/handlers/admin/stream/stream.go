// Package stream реализует поток снимков административной панели: первый снимок
// после загрузки и новый после каждой перезагрузки коллекции. Доступ проверяется
// на всём протяжении потока: выход или потеря роли администратора закрывают его.
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
	"github.com/magabrotheeeer/trial-gate/internal/services/adminagg"
	"github.com/magabrotheeeer/trial-gate/internal/services/gate"
)

const pingInterval = 25 * time.Second

// Aggregator данные панели одного клиента.
type Aggregator interface {
	Load(ctx context.Context)
	Start(ctx context.Context)
	Updates() <-chan struct{}
	Snapshot() adminagg.Snapshot
	Close()
}

// Access отслеживает решения по разделу для клиента.
type Access interface {
	Watch(ctx context.Context, accessToken string, route gate.Route, emit func(gate.Decision))
}

// Handler обрабатывает GET /admin/stream.
type Handler struct {
	log    *slog.Logger
	access Access
	newAgg func() Aggregator
}

// New создает новый экземпляр Handler. newAgg вызывается на каждое подключение.
func New(log *slog.Logger, access Access, newAgg func() Aggregator) *Handler {
	return &Handler{log: log, access: access, newAgg: newAgg}
}

// ServeHTTP godoc
// @Summary Поток снимков административной панели
// @Tags Admin
// @Produce  text/event-stream
// @Security BearerAuth
// @Router /admin/stream [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.stream"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	out, err := sse.New(w)
	if err != nil {
		log.Error("failed to open stream", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("streaming unsupported"))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	token := middlewarectx.TokenFrom(ctx)
	if token == "" {
		token = middlewarectx.BearerToken(r)
	}

	denied := make(chan gate.Decision, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.access.Watch(ctx, token, gate.RouteAdmin, func(d gate.Decision) {
			if d.Kind == gate.KindAllow || d.Kind == gate.KindLoading {
				return
			}
			select {
			case denied <- d:
			default:
			}
		})
	}()
	defer func() {
		cancel()
		<-done
	}()

	agg := h.newAgg()
	defer agg.Close()
	agg.Load(ctx)
	agg.Start(ctx)

	// уведомление о первой загрузке уже покрыто первым снимком
	select {
	case <-agg.Updates():
	default:
	}
	if err := out.Send("snapshot", agg.Snapshot()); err != nil {
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug("stream closed")
			return
		case d := <-denied:
			log.Info("admin access lost, closing stream", slog.String("decision", string(d.Kind)))
			_ = out.Send("decision", d)
			return
		case <-agg.Updates():
			if err := out.Send("snapshot", agg.Snapshot()); err != nil {
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
