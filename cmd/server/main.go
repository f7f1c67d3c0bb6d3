package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"chatroom/internal/config"
	"chatroom/internal/db"
	"chatroom/internal/httpjson"
	"chatroom/internal/message"
	mw "chatroom/internal/middleware"
	"chatroom/internal/participant"
	"chatroom/internal/presence"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// Platform layer: one pooled connection per store, held for the life of
	// the process.
	database, err := db.NewDatabase(cfg.DBDSN)
	if err != nil {
		log.Error("failed to connect to Postgres", "err", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.AutoMigrate(); err != nil {
		log.Error("migration failed", "err", err)
		os.Exit(1)
	}
	log.Info("connected to Postgres")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Error("failed to connect to Redis", "err", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info("connected to Redis")

	// Stores and services.
	participantStore := participant.NewRedisStore(redisClient, cfg.KeyPrefix)
	messageStore := message.NewPostgresStore(database.Conn, cfg.BroadcastName)

	messageService := message.NewService(messageStore, participantStore, cfg.BroadcastName)
	participantService := participant.NewService(participantStore, messageService, log)

	participantHandler := participant.NewHandler(participantService)
	messageHandler := message.NewHandler(messageService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The sweeper runs for the life of the process, independent of requests.
	sweeper := presence.NewSweeper(participantStore, messageService, cfg.StaleThreshold, cfg.SweepInterval, log)
	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("presence sweeper stopped", "err", err)
		}
	}()

	// Routes.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}))

	r.Post("/participants", participantHandler.Register)
	r.Get("/participants", participantHandler.List)

	r.Group(func(r chi.Router) {
		r.Use(mw.Identity)
		r.Post("/status", participantHandler.Heartbeat)
		r.Post("/messages", messageHandler.Post)
		r.Get("/messages", messageHandler.List)
		r.Delete("/messages/{id}", messageHandler.Delete)
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := database.Conn.PingContext(req.Context()); err != nil {
			httpjson.RespondError(w, http.StatusServiceUnavailable, "postgres unreachable")
			return
		}
		if err := redisClient.Ping(req.Context()).Err(); err != nil {
			httpjson.RespondError(w, http.StatusServiceUnavailable, "redis unreachable")
			return
		}
		httpjson.Respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: r}
	go func() {
		log.Info("server starting", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "err", err)
	}
}
