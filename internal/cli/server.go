package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/mrkazawa/quiz-quest-app-sub000/internal/config"
	"github.com/mrkazawa/quiz-quest-app-sub000/internal/domain"
	"github.com/mrkazawa/quiz-quest-app-sub000/internal/game"
	"github.com/mrkazawa/quiz-quest-app-sub000/internal/infra/memory"
	pgstore "github.com/mrkazawa/quiz-quest-app-sub000/internal/infra/postgres"
	redisstore "github.com/mrkazawa/quiz-quest-app-sub000/internal/infra/redis"
	transport "github.com/mrkazawa/quiz-quest-app-sub000/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz room server",
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
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 6*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pgstore.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo game.QuizRepository
	if redisClient != nil {
		quizRepo = redisstore.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var rooms game.RoomStore
	if redisClient != nil {
		rooms = redisstore.NewRoomStore(redisClient, redisTTL)
	} else {
		rooms = memory.NewRoomStore()
	}

	var history game.HistoryRecorder = memory.NewHistoryRecorder()
	if pool != nil {
		history = pgstore.NewHistoryRecorder(pool)
	}

	service := game.NewService(rooms, quizRepo)
	wsHandler := transport.NewWSHandler(service, history)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	router.Get("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz-quest on :%s", finalPort)
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

// sampleQuizzes provides demo quiz content; production swaps this for the
// Postgres-backed loader.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"general-1": {
			ID:   "general-1",
			Name: "General Knowledge Warmup",
			Questions: []domain.Question{
				{
					ID:               1,
					Text:             "What is 7 x 8?",
					Options:          []string{"54", "56", "58", "64"},
					CorrectIndex:     1,
					TimeLimitSeconds: 20,
					Points:           1000,
				},
				{
					ID:               2,
					Text:             "Which planet is closest to the sun?",
					Options:          []string{"Venus", "Earth", "Mercury", "Mars"},
					CorrectIndex:     2,
					TimeLimitSeconds: 20,
					Points:           1000,
				},
			},
		},
	}
}
