// Package app wires configuration, storage, dispatch and HTTP routing into
// a runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/txxdx/devcamper-api/internal/config"
	"github.com/txxdx/devcamper-api/internal/database"
	"github.com/txxdx/devcamper-api/internal/handler"
	"github.com/txxdx/devcamper-api/internal/logging"
	"github.com/txxdx/devcamper-api/internal/mail"
	"github.com/txxdx/devcamper-api/internal/middleware"
	"github.com/txxdx/devcamper-api/internal/queue"
	"github.com/txxdx/devcamper-api/internal/repository"
	"github.com/txxdx/devcamper-api/internal/router"
	"github.com/txxdx/devcamper-api/internal/service"
	"github.com/txxdx/devcamper-api/internal/utils"
)

// App is the assembled API server.
type App struct {
	Echo    *echo.Echo
	cfg     config.Config
	log     logging.Logger
	closers []func(context.Context) error
}

// New connects to the configured backends and registers every route.  On
// error everything opened so far is closed again.
func New(ctx context.Context, cfg config.Config, rl config.RateLimitConfig, log logging.Logger) (_ *App, err error) {
	a := &App{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	users, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	var notifier service.ResetNotifier
	switch cfg.ResetDispatch {
	case "queue":
		pub := queue.NewPublisher(cfg.RabbitURL, cfg.ResetQueue)
		a.closers = append(a.closers, func(context.Context) error { return pub.Close() })
		notifier = pub
	default:
		notifier = mail.ResetNotifier{Mailer: mail.FromConfig(cfg.SMTP, log)}
	}

	var rdb *redis.Client
	if rl.Enabled {
		if rdb = config.NewRedisClient(ctx); rdb != nil {
			a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
		} else {
			log.Warn(ctx, "redis unavailable, using in-process rate limiter")
		}
	}

	issuer := utils.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpire)
	auth := service.NewAuthService(users, issuer, notifier, log, service.Options{
		BcryptCost:      cfg.BcryptCost,
		ResetTokenTTL:   cfg.ResetTokenTTL,
		DispatchTimeout: cfg.DispatchTimeout,
	})

	a.Echo = NewEcho(cfg, rl, rdb, log, auth, issuer)
	return a, nil
}

// NewEcho builds the router around an already constructed service.  Tests
// use it directly with an in-memory store.
func NewEcho(cfg config.Config, rl config.RateLimitConfig, rdb *redis.Client, log logging.Logger, auth *service.AuthService, issuer *utils.TokenIssuer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	router.RegisterSecurity(e, cfg, rl, rdb, log)
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, auth, log), middleware.Protect(issuer, auth, cfg.CookieName, log))
	return e
}

func (a *App) openStore(ctx context.Context) (repository.UserStore, error) {
	switch a.cfg.DBDriver {
	case "mongo":
		client, db, err := database.OpenMongo(ctx, a.cfg.MongoURI, a.cfg.DBName)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		a.closers = append(a.closers, client.Disconnect)
		repo := repository.NewMongoUserRepo(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		a.log.Info(ctx, "connected to mongo", "db", a.cfg.DBName)
		return repo, nil
	case "memory":
		a.log.Warn(ctx, "using in-memory user store; data is lost on restart")
		return repository.NewMemoryUserRepo(), nil
	default:
		db, err := database.Open(ctx, a.cfg.DBUser, a.cfg.DBPass, a.cfg.DBHost, a.cfg.DBPort, a.cfg.DBName)
		if err != nil {
			return nil, fmt.Errorf("connect mysql: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		a.log.Info(ctx, "connected to mysql", "host", a.cfg.DBHost, "db", a.cfg.DBName)
		return repository.NewUserRepo(db), nil
	}
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	addr := ":" + a.cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Echo,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info(ctx, "server running", "addr", addr, "env", a.cfg.Env)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close releases backends in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
