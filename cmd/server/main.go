package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vedran77/dreamnest/internal/config"
	"github.com/vedran77/dreamnest/internal/database"
	"github.com/vedran77/dreamnest/internal/logging"
	"github.com/vedran77/dreamnest/internal/metrics"
	postgresrepo "github.com/vedran77/dreamnest/internal/repository/postgres"
	"github.com/vedran77/dreamnest/internal/server"
	"github.com/vedran77/dreamnest/internal/service"
	"github.com/vedran77/dreamnest/internal/session"
	"github.com/vedran77/dreamnest/internal/transport/http/middleware"
	"github.com/vedran77/dreamnest/internal/transport/ws"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := database.Connect(cfg)
	if err != nil {
		log.WithError(err).Fatal("connecting to database")
	}
	defer pool.Close()
	log.Info("Connected to database")

	db, err := database.OpenGORM(pool, log)
	if err != nil {
		log.WithError(err).Fatal("opening gorm")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("migrating")
	}

	g, ctx := errgroup.WithContext(ctx)

	// Token revocation
	var store session.Store
	if cfg.RedisURL != "" {
		rdb, err := session.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("connecting to redis")
		}
		defer rdb.Close()
		store = session.NewRedisStore(rdb)
		log.Info("Using redis for token revocation")
	} else {
		mem := session.NewMemoryStore()
		g.Go(func() error { return mem.Run(ctx, sweepInterval) })
		store = mem
	}

	m := metrics.New()

	// Repositories
	userRepo := postgresrepo.NewUserRepo(db)
	dreamRepo := postgresrepo.NewDreamRepo(db)

	// Services
	tokens := service.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL, store)
	authService := service.NewAuthService(userRepo, tokens)
	dreamService := service.NewDreamService(dreamRepo, userRepo)

	// WebSocket hub
	hub := ws.NewHub(m, log)
	dreamService.SetNotifier(ws.NewHubNotifier(hub))
	g.Go(func() error { return hub.Run(ctx) })

	limiter := middleware.NewRateLimiter(cfg.LoginRatePerMinute, cfg.LoginRateBurst, log)
	g.Go(func() error { return limiter.Run(ctx, 10*time.Minute) })

	handler, err := server.NewRouter(server.Deps{
		Config:       cfg,
		AuthService:  authService,
		DreamService: dreamService,
		Hub:          hub,
		LoginLimiter: limiter,
		DB:           pool,
		Metrics:      m,
		Log:          log,
	})
	if err != nil {
		log.WithError(err).Fatal("building router")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("server stopped with error")
		os.Exit(1)
	}
	log.Info("Server stopped")
}
