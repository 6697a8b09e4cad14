// Package gate собирает HTTP-приложение: хранилище, канал изменений, провайдер
// идентичности, сервисы доступа и маршруты.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/trial-gate/internal/cache"
	"github.com/magabrotheeeer/trial-gate/internal/changefeed"
	"github.com/magabrotheeeer/trial-gate/internal/config"
	"github.com/magabrotheeeer/trial-gate/internal/identity"
	"github.com/magabrotheeeer/trial-gate/internal/lib/jwt"
	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	"github.com/magabrotheeeer/trial-gate/internal/migrations"
	"github.com/magabrotheeeer/trial-gate/internal/services/adminagg"
	authservice "github.com/magabrotheeeer/trial-gate/internal/services/auth"
	"github.com/magabrotheeeer/trial-gate/internal/services/comments"
	gateservice "github.com/magabrotheeeer/trial-gate/internal/services/gate"
	"github.com/magabrotheeeer/trial-gate/internal/services/leads"
	"github.com/magabrotheeeer/trial-gate/internal/services/roles"
	"github.com/magabrotheeeer/trial-gate/internal/services/session"
	"github.com/magabrotheeeer/trial-gate/internal/services/trialstore"
	"github.com/magabrotheeeer/trial-gate/internal/storage/repository"
)

// App HTTP-приложение.
type App struct {
	server      *http.Server
	logger      *slog.Logger
	db          *repository.Storage
	cache       *cache.Cache
	hub         *changefeed.Hub
	listener    *changefeed.PgListener
	roles       *roles.Service
	stopStreams context.CancelFunc
}

func waitForDB(ctx context.Context, db *repository.Storage) error {
	for range 10 {
		if err := db.Ready(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	if err = waitForDB(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	hub := changefeed.NewHub(logger, 0)
	listener := changefeed.NewPgListener(cfg.StorageConnectionString, hub, 3*time.Second, logger)

	provider := identity.NewProvider(db, cacheRedis,
		jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL), identity.NewBus(), logger)
	roleService := roles.New(db, cacheRedis, cfg.RoleCacheTTL, logger)
	leadService := leads.NewService(db, logger)
	authService := authservice.NewService(provider, leadService, roleService, db, cfg.Trial.Length, logger)
	commentService := comments.NewService(db, db, logger)

	trials := trialstore.Factory{Repo: db, Subscriber: hub, Tick: cfg.TickInterval, Log: logger}
	gateService := gateservice.NewService(
		func(token string) session.Provider { return provider.NewClientSession(token) },
		roleService,
		func(userID string) gateservice.TrialSource { return trials.New(userID) },
		gateservice.Options{SignInPath: cfg.SignInPath, HomePath: cfg.HomePath, ContactURL: cfg.ContactURL},
		logger,
	)

	loc := cfg.Location()
	newAggregator := func() *adminagg.Aggregator {
		return adminagg.New(adminagg.Options{
			Repo:       db,
			Profiles:   db,
			Subscriber: hub,
			Location:   loc,
			Interval:   cfg.ReloadInterval,
			Log:        logger,
		})
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Services{
		Auth:          authService,
		Leads:         leadService,
		Gate:          gateService,
		Comments:      commentService,
		Trials:        db,
		Health:        db,
		NewAggregator: newAggregator,
	}, cfg.HTTPServer)

	baseCtx, stopStreams := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:        cfg.AddressHTTP,
		Handler:     router,
		ReadTimeout: cfg.TimeoutHTTP,
		IdleTimeout: cfg.IdleTimeout,
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}

	return &App{
		server:      srv,
		logger:      logger,
		db:          db,
		cache:       cacheRedis,
		hub:         hub,
		listener:    listener,
		roles:       roleService,
		stopStreams: stopStreams,
	}, nil
}

// Run запускает слушателя изменений и HTTP-сервер до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	listenCtx, stopListener := context.WithCancel(ctx)
	if err := a.roles.Watch(listenCtx, a.hub); err != nil {
		a.logger.Warn("role changes unavailable, cache expires by ttl", sl.Err(err))
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = a.listener.Run(listenCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		a.stopStreams()
		runErr = a.server.Shutdown(timeoutCtx)
	}

	a.stopStreams()
	stopListener()
	wg.Wait()
	a.hub.Close()
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close cache", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
	return runErr
}
