package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quiz-battle-service/internal/battle"
	"quiz-battle-service/internal/config"
	"quiz-battle-service/internal/domain"
	"quiz-battle-service/internal/infra/memory"
	pginfra "quiz-battle-service/internal/infra/postgres"
	redisinfra "quiz-battle-service/internal/infra/redis"
	transport "quiz-battle-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/lmittmann/tint"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the battle server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.ChapterLoader = memory.NewStaticChapterLoader(sampleChapters())
	if pool != nil {
		loader = pginfra.NewChapterLoader(pool)
	}

	chapterTTL := config.Duration(cfg.Battle.ChapterTTL, 10*time.Minute)
	var chapters transport.ChapterSource
	if redisClient != nil {
		chapters = redisinfra.NewChapterSource(redisClient, loader, chapterTTL)
	} else {
		chapters = memory.NewChapterSource(loader, chapterTTL)
	}

	var sinks []battle.ResultsSink
	if redisClient != nil {
		sinks = append(sinks, redisinfra.NewResultsSink(redisClient))
	}
	if pool != nil {
		sinks = append(sinks, pginfra.NewResultsSink(pool))
	}
	if len(sinks) == 0 {
		sinks = append(sinks, memory.NewResultsSink())
	}

	registry := battle.NewRegistry(battle.Options{
		Retention: config.Duration(cfg.Battle.Retention, 5*time.Minute),
		Sink:      multiSink(sinks),
		Logger:    logger,
	})
	wsHandler := transport.NewWSHandler(registry, chapters, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws/battle", wsHandler.ServeBattle)
	mux.HandleFunc("/ws/spectate", wsHandler.ServeSpectate)
	mux.HandleFunc("/admin/rooms/end", wsHandler.ServeForceEnd)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting quiz battle service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// multiSink fans results out to every configured sink, keeping the first error.
type multiSink []battle.ResultsSink

func (m multiSink) RecordBattleResult(ctx context.Context, roomID string, results []domain.Result) error {
	var firstErr error
	for _, sink := range m {
		if err := sink.RecordBattleResult(ctx, roomID, results); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// sampleChapters provides a minimal question set; swap the loader with a
// DB-backed one in production.
func sampleChapters() map[string][]domain.Question {
	return map[string][]domain.Question{
		"chapter-1": {
			{
				Prompt:       "What is 2 + 2?",
				Options:      []string{"3", "4", "5"},
				CorrectIndex: 1,
			},
			{
				Prompt:       "Which planet is closest to the sun?",
				Options:      []string{"Venus", "Earth", "Mercury"},
				CorrectIndex: 2,
			},
		},
	}
}
