package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"joker-briscola/internal/cache"
	"joker-briscola/internal/config"
	"joker-briscola/internal/database"
	"joker-briscola/internal/events"
	"joker-briscola/internal/logging"
	"joker-briscola/internal/server"
)

func main() {
	path := os.Getenv("BRISCOLA_CONFIG")
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("starting Joker Briscola server", zap.String("addr", cfg.Server.Addr))

	db, err := database.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("results store ready", zap.String("driver", cfg.Database.Driver))

	var snapshots cache.SnapshotCache = cache.NewMemory()
	if cfg.Redis.Addr != "" {
		r, err := cache.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer r.Close()
		snapshots = r
		logger.Info("room snapshots in redis", zap.String("addr", cfg.Redis.Addr))
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.NATS.URL != "" {
		n, err := events.NewNATS(cfg.NATS, logger)
		if err != nil {
			return err
		}
		publisher = n
		logger.Info("publishing match events", zap.String("url", cfg.NATS.URL), zap.String("subject", cfg.NATS.Subject))
	}
	defer publisher.Close()

	hub := server.NewHub(server.HubOptions{
		Rooms:          server.NewRoomRegistry(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))),
		Snapshots:      snapshots,
		Results:        db,
		Events:         publisher,
		ReconnectGrace: cfg.Server.ReconnectGrace,
		Logger:         logger,
	})
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		server.ServeWs(hub, w, r)
	})
	mux.Handle("/", http.FileServer(http.Dir(cfg.Server.StaticDir)))
	server.HandleRoutes(mux, hub, db, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		return err
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	cancel()
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	return srv.Shutdown(shutdownCtx)
}
