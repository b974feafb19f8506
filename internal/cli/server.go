package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"trivia-duel/internal/app"
	"trivia-duel/internal/config"
	"trivia-duel/internal/infra/memory"
	"trivia-duel/internal/infra/postgres"
	redisinfra "trivia-duel/internal/infra/redis"
	transport "trivia-duel/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the duel server",
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
		defer redisClient.Close()
	}

	var (
		db   *bun.DB
		pool *pgxpool.Pool
	)
	if cfg.Postgres.URL != "" {
		db = openBun(cfg.Postgres.URL)
		defer db.Close()
		if err := migrateDB(ctx, db); err != nil {
			return err
		}
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	service := newGameService(cfg, db, pool, redisClient)

	if n, err := service.Recover(ctx); err != nil {
		log.Printf("recover in-flight games: %v", err)
	} else if n > 0 {
		log.Printf("recovered %d in-flight games", n)
	}

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go service.RunSweeper(sweepCtx, config.TTLDuration(cfg.Game.SweepInterval, 10*time.Second))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	transport.NewAPIHandler(service).Register(mux)
	mux.HandleFunc("/ws", transport.NewWSHandler(service).ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting trivia duel on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newGameService picks Postgres and Redis backends when configured and the
// in-memory ones otherwise.
func newGameService(cfg config.Config, db *bun.DB, pool *pgxpool.Pool, redisClient *redis.Client) *app.GameService {
	var store app.Store = memory.NewStore()
	if db != nil {
		store = postgres.NewStore(db)
	}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestions())
	if pool != nil {
		loader = postgres.NewQuestionLoader(pool)
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var questions app.QuestionSupplier
	var locker app.Locker
	var presence app.PresenceRepository
	if redisClient != nil {
		questions = redisinfra.NewQuestionPool(redisClient, loader, questionTTL)
		locker = redisinfra.NewLocker(redisClient, config.TTLDuration(cfg.Redis.LockTTL, 10*time.Second))
		presence = redisinfra.NewPresenceStore(redisClient)
	} else {
		questions = memory.NewQuestionPool(loader, questionTTL)
		locker = memory.NewLocker()
		presence = memory.NewPresenceStore()
	}

	return app.NewGameService(store, questions, locker, presence, gameOptions(cfg))
}

func gameOptions(cfg config.Config) app.Options {
	defaults := app.DefaultOptions()
	t := defaults.Timings
	r := defaults.Retry
	opts := defaults
	opts.Timings = app.Timings{
		AnswerWindow:  config.TTLDuration(cfg.Game.AnswerWindow, t.AnswerWindow),
		ResultsDelay:  config.TTLDuration(cfg.Game.ResultsDelay, t.ResultsDelay),
		FinalDelay:    config.TTLDuration(cfg.Game.FinalDelay, t.FinalDelay),
		WinThreshold:  config.IntOr(cfg.Game.WinThreshold, t.WinThreshold),
		RecoveryGrace: config.TTLDuration(cfg.Game.RecoveryGrace, t.RecoveryGrace),
	}
	opts.Retry = app.RetryPolicy{
		Attempts: config.IntOr(cfg.Retry.Attempts, r.Attempts),
		Initial:  config.TTLDuration(cfg.Retry.Initial, r.Initial),
		Max:      config.TTLDuration(cfg.Retry.Max, r.Max),
	}
	opts.HeartbeatTTL = config.TTLDuration(cfg.Game.HeartbeatTimeout, defaults.HeartbeatTTL)
	opts.StaleProcessing = config.TTLDuration(cfg.Game.StaleProcessing, defaults.StaleProcessing)
	return opts
}
