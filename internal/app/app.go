package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/GlebRadaev/tourmart/internal/analytics"
	"github.com/GlebRadaev/tourmart/internal/config"
	"github.com/GlebRadaev/tourmart/internal/expiry"
	"github.com/GlebRadaev/tourmart/internal/gateway"
	"github.com/GlebRadaev/tourmart/internal/handlers"
	"github.com/GlebRadaev/tourmart/internal/pg"
	"github.com/GlebRadaev/tourmart/internal/repo"
	"github.com/GlebRadaev/tourmart/internal/service"
	"github.com/GlebRadaev/tourmart/internal/worker"
	pkgauth "github.com/GlebRadaev/tourmart/pkg/auth"
	"github.com/GlebRadaev/tourmart/pkg/clients"
	"github.com/GlebRadaev/tourmart/pkg/logger"
)

const (
	expiryWorkers   = 4
	shutdownTimeout = 5 * time.Second
)

type ApplicationI interface {
	Start(ctx context.Context) error
	Wait(ctx context.Context, cancel context.CancelFunc) error
}

type Application struct {
	cfg     *config.Config
	api     *handlers.Handlers
	srv     *service.Services
	repo    *repo.Repositories
	sweeper *expiry.Sweeper

	closers []func()
	errCh   chan error
	wg      sync.WaitGroup
	ready   bool
}

func New() *Application {
	return &Application{
		errCh: make(chan error),
	}
}

func (a *Application) Start(ctx context.Context) error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("can't load config: %w", err)
	}
	if err = logger.InitLogger(cfg); err != nil {
		return fmt.Errorf("can't init logger: %w", err)
	}
	a.cfg = cfg

	pool, err := getPgxpool(ctx, cfg)
	if err != nil {
		zap.L().Error("build pgx pool failed: ", zap.Error(err))
		return fmt.Errorf("can't build pgx pool: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	if err := pg.RunMigrations(pool); err != nil {
		zap.L().Error("migrations failed: ", zap.Error(err))
		return fmt.Errorf("can't run migrations: %w", err)
	}

	rdb, err := getRedis(ctx, cfg)
	if err != nil {
		zap.L().Error("connect redis failed: ", zap.Error(err))
		return fmt.Errorf("can't connect redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = rdb.Close() })

	eventPool := worker.NewPool(cfg.AnalyticsWorkers)
	sweepPool := worker.NewPool(expiryWorkers)
	a.closers = append(a.closers, eventPool.Close, sweepPool.Close)

	txManager := pg.NewTXManager(pool)
	jwtService := pkgauth.NewJWTService(cfg.JWTSecret)

	a.repo = repo.New(pg.New(pool), txManager)
	a.srv = service.New(cfg, service.Deps{
		Repos:     a.repo,
		TxManager: txManager,
		Gateway:   gateway.New(cfg, clients.NewHTTPClient()),
		Cache:     rdb,
		Events:    analytics.NewDispatcher(rdb, cfg.AnalyticsStream, eventPool),
		Hash:      &pkgauth.HashService{},
		JWT:       jwtService,
	})
	a.api = handlers.New(a.srv, jwtService)
	a.sweeper = expiry.New(cfg, a.srv.TicketExpiry, sweepPool)

	if err = a.startHTTPServer(ctx); err != nil {
		return fmt.Errorf("can't start http server: %w", err)
	}
	if err = a.startSweeper(ctx); err != nil {
		return fmt.Errorf("can't start expiry sweeper: %w", err)
	}

	a.ready = true
	zap.L().Info("all systems started successfully")
	return nil
}

func getPgxpool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	cfgpool, err := pgxpool.ParseConfig(cfg.Database)
	if err != nil {
		return nil, err
	}
	dbpool, err := pgxpool.NewWithConfig(ctx, cfgpool)
	if err != nil {
		return nil, err
	}
	if err = dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, err
	}
	return dbpool, nil
}

func getRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func (a *Application) startHTTPServer(ctx context.Context) error {
	router := chi.NewRouter()
	a.api.InitRoutes(router)
	server := http.Server{
		Addr:              a.cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		<-ctx.Done()

		sCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(sCtx); err != nil {
			zap.L().Warn("http server shutdown", zap.Error(err))
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		zap.L().Info("starting http server on port", zap.String("port", a.cfg.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.errCh <- fmt.Errorf("http server exited with error: %w", err)
		}
	}()

	return nil
}

func (a *Application) startSweeper(ctx context.Context) error {
	if err := a.sweeper.Start(ctx); err != nil {
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		<-ctx.Done()
		if err := a.sweeper.Stop(); err != nil {
			zap.L().Warn("expiry sweeper shutdown", zap.Error(err))
		}
	}()
	return nil
}

func (a *Application) Wait(ctx context.Context, cancel context.CancelFunc) error {
	var appErr error

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		for err := range a.errCh {
			cancel()
			zap.L().Error(err.Error())
			appErr = err
		}
	}()

	<-ctx.Done()
	a.wg.Wait()
	close(a.errCh)
	wg.Wait()

	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}

	return appErr
}
