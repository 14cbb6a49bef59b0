package main

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tiagofur/ordo-todo-sub018/internal/broadcast"
	"github.com/tiagofur/ordo-todo-sub018/internal/checkpoint"
	"github.com/tiagofur/ordo-todo-sub018/internal/clock"
	"github.com/tiagofur/ordo-todo-sub018/internal/config"
	"github.com/tiagofur/ordo-todo-sub018/internal/db"
	"github.com/tiagofur/ordo-todo-sub018/internal/handler"
	"github.com/tiagofur/ordo-todo-sub018/internal/logger"
	"github.com/tiagofur/ordo-todo-sub018/internal/remote"
	"github.com/tiagofur/ordo-todo-sub018/internal/repository"
	"github.com/tiagofur/ordo-todo-sub018/internal/router"
	"github.com/tiagofur/ordo-todo-sub018/internal/service"
	"github.com/tiagofur/ordo-todo-sub018/internal/surface"
	"github.com/tiagofur/ordo-todo-sub018/internal/syncqueue"
	"github.com/tiagofur/ordo-todo-sub018/migrations"
)

func main() {
	cfg, err := config.Load()
	log := logger.New(cfg.LogPrefix)
	if err != nil {
		log.Fatal("load config", "error", err)
	}

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal("open database", "error", err)
	}
	defer database.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := db.RunMigrations(ctx, database, migrationSource(cfg)); err != nil {
		log.Fatal("run migrations", "error", err)
	}

	userRepo := repository.NewUserRepository(database)
	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	sessionService := service.NewSessionService(repository.NewSessionRepository(database))

	recorder, err := sessionRecorder(ctx, cfg, userRepo, sessionService)
	if err != nil {
		log.Fatal("session recorder", "error", err)
	}

	clk := clock.System{}
	queue := syncqueue.New(
		repository.NewSyncActionRepository(database),
		syncqueue.NewSessionDeliverer(recorder),
		clk,
		log,
		syncqueue.Options{
			MaxRetries:  cfg.Sync.MaxRetries,
			BackoffBase: cfg.Sync.BackoffBase,
			BackoffMax:  cfg.Sync.BackoffMax,
			Interval:    cfg.Sync.Interval,
			StartOnline: cfg.Sync.StartOnline,
		},
	)

	hub := broadcast.New(cfg.Surface.Buffer, log)
	timerService := service.NewTimerService(clk, checkpointStore(cfg, database), hub, queue, log, service.TimerOptions{
		Config:       cfg.Timer,
		TickInterval: cfg.TickInterval,
	})
	restored := timerService.Restore(ctx)
	log.Info("timer ready", "phase", restored.Phase, "remaining", restored.RemainingSeconds)

	var workers sync.WaitGroup
	tray := surface.NewTray(hub, "tray")
	notifier := surface.NewNotifier(hub, "notifications", nil, log)
	for _, run := range []func(context.Context){queue.Run, tray.Run, notifier.Run} {
		workers.Add(1)
		go func(run func(context.Context)) {
			defer workers.Done()
			run(ctx)
		}(run)
	}

	engine := router.New(authService, router.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		Timer:   handler.NewTimerHandler(timerService, hub),
		Surface: handler.NewSurfaceHandler(hub),
		Sync:    handler.NewSyncHandler(queue),
		Session: handler.NewSessionHandler(sessionService),
	}, router.Options{
		CORSOrigins:       cfg.CORSOrigins,
		SurfaceRatePerSec: cfg.Surface.RatePerSec,
		SurfaceRateBurst:  cfg.Surface.RateBurst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("focus server listening", "addr", srv.Addr, "sync", cfg.Sync.Target, "checkpoint", cfg.Checkpoint.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	// Stop ticking first so the final checkpoint matches what surfaces saw;
	// closing the hub then ends open surface streams.
	timerService.Close()
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}

	cancel()
	workers.Wait()
	log.Info("server stopped", "tray", tray.Title())
}

func migrationSource(cfg config.Config) fs.FS {
	if cfg.MigrationsDir != "" {
		return os.DirFS(cfg.MigrationsDir)
	}
	return migrations.FS
}

func checkpointStore(cfg config.Config, database *sql.DB) checkpoint.Store {
	if cfg.Checkpoint.Backend == config.CheckpointFile {
		return checkpoint.NewFileStore(cfg.Checkpoint.File)
	}
	return checkpoint.NewSQLiteStore(database)
}

func sessionRecorder(
	ctx context.Context,
	cfg config.Config,
	users *repository.UserRepository,
	sessions *service.SessionService,
) (remote.SessionRecorder, error) {
	if cfg.Sync.Target == config.SyncTargetRemote {
		return remote.NewClient(cfg.Sync.RemoteURL, cfg.Sync.RemoteToken, 10*time.Second), nil
	}
	return service.NewLocalRecorder(ctx, users, sessions)
}
