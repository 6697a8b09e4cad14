package gate

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/trial-gate/internal/config"
	"github.com/magabrotheeeer/trial-gate/internal/http/handlers/admin/overview"
	adminstream "github.com/magabrotheeeer/trial-gate/internal/http/handlers/admin/stream"
	"github.com/magabrotheeeer/trial-gate/internal/http/handlers/auth/refresh"
	"github.com/magabrotheeeer/trial-gate/internal/http/handlers/auth/signin"
	"github.com/magabrotheeeer/trial-gate/internal/http/handlers/auth/signout"
	"github.com/magabrotheeeer/trial-gate/internal/http/handlers/auth/signup"
	commentcreate "github.com/magabrotheeeer/trial-gate/internal/http/handlers/comments/create"
	"github.com/magabrotheeeer/trial-gate/internal/http/handlers/comments/list"
	"github.com/magabrotheeeer/trial-gate/internal/http/handlers/comments/remove"
	"github.com/magabrotheeeer/trial-gate/internal/http/handlers/comments/update"
	"github.com/magabrotheeeer/trial-gate/internal/http/handlers/gate/check"
	gatestream "github.com/magabrotheeeer/trial-gate/internal/http/handlers/gate/stream"
	"github.com/magabrotheeeer/trial-gate/internal/http/handlers/health"
	registrationcreate "github.com/magabrotheeeer/trial-gate/internal/http/handlers/registrations/create"
	"github.com/magabrotheeeer/trial-gate/internal/http/handlers/trial/read"
	"github.com/magabrotheeeer/trial-gate/internal/http/middlewarectx"
	"github.com/magabrotheeeer/trial-gate/internal/services/adminagg"
	authservice "github.com/magabrotheeeer/trial-gate/internal/services/auth"
	"github.com/magabrotheeeer/trial-gate/internal/services/comments"
	gateservice "github.com/magabrotheeeer/trial-gate/internal/services/gate"
	"github.com/magabrotheeeer/trial-gate/internal/services/leads"
)

// Services зависимости маршрутов.
type Services struct {
	Auth          *authservice.Service
	Leads         *leads.Service
	Gate          *gateservice.Service
	Comments      *comments.Service
	Trials        read.Repository
	Health        health.Checker
	NewAggregator func() *adminagg.Aggregator
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, svc Services, httpCfg config.HTTPServer) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки с ограничением частоты
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger, rate.Limit(httpCfg.RateLimit), httpCfg.RateBurst))
			r.Post("/auth/signup", signup.New(logger, svc.Auth).ServeHTTP)
			r.Post("/auth/signin", signin.New(logger, svc.Auth.SignIn).ServeHTTP)
			r.Post("/auth/admin", signin.NewAdmin(logger, svc.Auth.AdminSignIn).ServeHTTP)
			r.Post("/auth/refresh", refresh.New(logger, svc.Auth).ServeHTTP)
			r.Post("/auth/signout", signout.New(logger, svc.Auth).ServeHTTP)
			r.Post("/registrations", registrationcreate.New(logger, svc.Leads).ServeHTTP)
		})

		// Решения без перенаправления
		r.Get("/gate", check.New(logger, svc.Gate).ServeHTTP)
		r.Get("/gate/stream", gatestream.New(logger, svc.Gate).ServeHTTP)

		// Уроки
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.GateMiddleware(svc.Gate, gateservice.RouteClassroom, logger))
			r.Get("/trial", read.New(logger, svc.Trials).ServeHTTP)
			r.Get("/lessons/{lessonID}/comments", list.New(logger, svc.Comments).ServeHTTP)
			r.Post("/lessons/{lessonID}/comments", commentcreate.New(logger, svc.Comments).ServeHTTP)
			r.Put("/comments/{id}", update.New(logger, svc.Comments).ServeHTTP)
			r.Delete("/comments/{id}", remove.New(logger, svc.Comments).ServeHTTP)
		})

		// Административная панель
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.GateMiddleware(svc.Gate, gateservice.RouteAdmin, logger))
			r.Get("/admin/overview", overview.New(logger, func() overview.Loader {
				return svc.NewAggregator()
			}).ServeHTTP)
			r.Get("/admin/stream", adminstream.New(logger, svc.Gate, func() adminstream.Aggregator {
				return svc.NewAggregator()
			}).ServeHTTP)
		})
	})

	r.Get("/health", health.New(logger, svc.Health).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
