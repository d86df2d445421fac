package cli

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"edu-duel-service/internal/app"
	"edu-duel-service/internal/config"
	"edu-duel-service/internal/domain"
	"edu-duel-service/internal/infra/memory"
	"edu-duel-service/internal/infra/postgres"
	redisinfra "edu-duel-service/internal/infra/redis"
	"edu-duel-service/internal/logger"
	transport "edu-duel-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the duel engine server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Level)
	defer logger.Sync()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var duelRepo app.DuelRepository
	var pool app.QuestionPool
	var content app.ContentDirectory
	var classes app.ClassDirectory
	var progress app.ProgressReader

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}

		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		bunDB := bun.NewDB(sqldb, pgdialect.New())
		defer bunDB.Close()
		duelRepo = postgres.NewDuelRepository(bunDB)

		pgPool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pgPool.Close()

		directory := postgres.NewDirectory(pgPool)
		content, classes, progress = directory, directory, directory
		pool = postgres.NewQuestionPool(pgPool)
	} else {
		logger.Warn("postgres not configured, using in-memory demo fixture")
		duelRepo = memory.NewDuelRepository()
		directory := memory.NewDirectory(demoFixture())
		content, classes, progress = directory, directory, directory
		pool = directory
	}

	if cfg.Redis.Addr != "" {
		redisClient := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		poolTTL := config.TTLDuration(cfg.Redis.PoolTTL, 10*time.Minute)
		pool = redisinfra.NewQuestionPool(redisClient, pool, poolTTL)
	}

	hub := app.NewWatchHub()
	eligibility := app.NewEligibilityChecker(classes, content, progress)
	duelService := app.NewDuelService(duelRepo, pool, content, eligibility, hub, app.Defaults{
		BestOf:       cfg.Duel.BestOf,
		TimeLimitSec: cfg.Duel.TimeLimitSec,
	})
	statsService := app.NewStatsService(duelRepo)

	router := transport.NewRouter(duelService, statsService, hub)
	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting duel service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
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

// demoFixture provides a minimal classroom so the engine can be exercised
// without a database.
func demoFixture() memory.Fixture {
	return memory.Fixture{
		Subjects: map[string][]string{"math": nil},
		Classes: map[string][]string{
			"class-1": {"alice", "bob"},
		},
		ClassSubjects: map[string][]string{
			"class-1": {"math"},
		},
		Questions: map[string][]domain.PoolQuestion{
			"math": {
				{
					ID:     "q1",
					Prompt: "What is 2 + 2?",
					Options: []domain.PoolOption{
						{ID: "o1", Text: "3", SortOrder: 1},
						{ID: "o2", Text: "4", Correct: true, SortOrder: 2},
						{ID: "o3", Text: "5", SortOrder: 3},
					},
				},
				{
					ID:     "q2",
					Prompt: "What is 3 * 3?",
					Options: []domain.PoolOption{
						{ID: "o4", Text: "6", SortOrder: 1},
						{ID: "o5", Text: "9", Correct: true, SortOrder: 2},
						{ID: "o6", Text: "12", SortOrder: 3},
					},
				},
				{
					ID:     "q3",
					Prompt: "What is 10 / 2?",
					Options: []domain.PoolOption{
						{ID: "o7", Text: "5", Correct: true, SortOrder: 1},
						{ID: "o8", Text: "4", SortOrder: 2},
						{ID: "o9", Text: "2", SortOrder: 3},
					},
				},
			},
		},
	}
}
