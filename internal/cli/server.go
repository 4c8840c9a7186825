package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"tournament-quiz-service/internal/app"
	"tournament-quiz-service/internal/config"
	"tournament-quiz-service/internal/domain"
	"tournament-quiz-service/internal/infra/memory"
	pgstore "tournament-quiz-service/internal/infra/postgres"
	redisstore "tournament-quiz-service/internal/infra/redis"
	transport "tournament-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the tournament quiz server",
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
	sessionTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var questionLoader app.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestions())
	var tournaments app.TournamentRepository = memory.NewStaticTournamentRepository(sampleTournaments())
	if pool != nil {
		questionLoader = pgstore.NewQuestionLoader(pool)
		tournaments = pgstore.NewTournamentRepository(pool)
	}

	catalogTTL := config.TTLDuration(cfg.Quiz.CatalogTTL, 10*time.Minute)
	bank := app.NewQuestionBank(questionLoader, catalogTTL)

	var sessionStore app.SessionStore = memory.NewSessionStore()
	var resultStore app.ResultStore = memory.NewResultStore()
	var violationStore app.ViolationStore = memory.NewViolationStore()
	var wallet app.Wallet = memory.NewWallet(nil)
	if redisClient != nil {
		sessionStore = redisstore.NewSessionStore(redisClient, sessionTTL)
		resultStore = redisstore.NewResultStore(redisClient)
		violationStore = redisstore.NewViolationStore(redisClient)
		wallet = redisstore.NewWallet(redisClient)
	}

	engineCfg := app.Config{
		PerQuestionLimit: config.TTLDuration(cfg.Quiz.PerQuestionLimit, 5*time.Second),
		TotalLimit:       config.TTLDuration(cfg.Quiz.TotalLimit, 5*time.Minute),
	}

	bus := app.NewBus()
	tracker := app.NewViolationTracker(violationStore)
	compiler := app.NewResultsCompiler(resultStore, tracker, wallet, bus)
	engine := app.NewEngine(engineCfg, tournaments, bank, wallet, sessionStore, compiler, tracker, bus)
	defer engine.Shutdown()

	apiHandler := transport.NewAPIHandler(engine)
	wsHandler := transport.NewWSHandler(bus)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	apiHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting tournament quiz service on :%s", finalPort)
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

// sampleTournaments provides demo data; swap for the Postgres repository in
// production.
func sampleTournaments() map[string]domain.Tournament {
	return map[string]domain.Tournament{
		"tournament-1": {
			ID:              "tournament-1",
			Name:            "General Knowledge Sprint",
			Category:        "general",
			EntryFee:        39,
			PrizePool:       1000,
			MaxParticipants: 100,
			QuestionCount:   5,
			Status:          domain.TournamentActive,
			PrizeSplit:      []float64{0.5, 0.3, 0.2},
		},
	}
}

func sampleQuestions() []domain.Question {
	questions := make([]domain.Question, 0, 8)
	for i := 0; i < 8; i++ {
		questions = append(questions, domain.Question{
			ID:           fmt.Sprintf("general-q%d", i+1),
			Category:     "general",
			Text:         fmt.Sprintf("Sample question #%d: which option is marked correct?", i+1),
			Options:      []string{"Option A", "Option B", "Option C", "Option D"},
			CorrectIndex: i % 4,
			Explanation:  "Demo catalog entry.",
		})
	}
	return questions
}
