package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/trial-gate/internal/http/response"
	"github.com/magabrotheeeer/trial-gate/internal/services/gate"
	"github.com/magabrotheeeer/trial-gate/internal/services/session"
)

// Evaluator принимает разовое решение по разделу для токена клиента.
type Evaluator interface {
	Evaluate(ctx context.Context, accessToken string, route gate.Route) (gate.Decision, session.State)
}

// GateMiddleware пропускает запрос только при решении Allow.
//
// Redirect отвечает 401 с адресом входа в теле и заголовке Location,
// Blocked отвечает 403 с действиями экрана блокировки.
func GateMiddleware(ev Evaluator, route gate.Route, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.GateMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("route", string(route)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			token := BearerToken(r)
			d, st := ev.Evaluate(r.Context(), token, route)

			switch d.Kind {
			case gate.KindAllow:
				ctx := WithIdentity(r.Context(), *st.Identity, token)
				next.ServeHTTP(w, r.WithContext(ctx))
			case gate.KindRedirect:
				log.Info("access redirected", slog.String("reason", string(d.Reason)))
				w.Header().Set("Location", d.Redirect)
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, d)
			case gate.KindBlocked:
				log.Info("access blocked", slog.String("reason", string(d.Reason)))
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, d)
			default:
				log.Warn("gate decision not ready", slog.String("decision", string(d.Kind)))
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, response.Error("access decision not ready"))
			}
		})
	}
}
