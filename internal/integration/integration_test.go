package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"tournament-quiz-service/internal/app"
	"tournament-quiz-service/internal/domain"
	pgstore "tournament-quiz-service/internal/infra/postgres"
	pgmigrations "tournament-quiz-service/internal/infra/postgres/migrations"
	infraredis "tournament-quiz-service/internal/infra/redis"
)

func TestQuizLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedCatalog(t, ctx, pgURL, sampleTournament(), sampleQuestions())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	bank := app.NewQuestionBank(pgstore.NewQuestionLoader(pool), 5*time.Minute)
	tournaments := pgstore.NewTournamentRepository(pool)
	sessionStore := infraredis.NewSessionStore(redisClient, time.Hour)
	resultStore := infraredis.NewResultStore(redisClient)
	wallet := infraredis.NewWallet(redisClient)
	tracker := app.NewViolationTracker(infraredis.NewViolationStore(redisClient))
	bus := app.NewBus()
	compiler := app.NewResultsCompiler(resultStore, tracker, wallet, bus)
	engine := app.NewEngine(
		app.Config{PerQuestionLimit: time.Hour, TotalLimit: time.Hour},
		tournaments, bank, wallet, sessionStore, compiler, tracker, bus,
	)
	defer engine.Shutdown()

	if err := wallet.Credit(ctx, "u1", 100); err != nil {
		t.Fatalf("fund wallet: %v", err)
	}

	start, err := engine.Start(ctx, "t1", "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if start.QuestionCount != 3 {
		t.Fatalf("expected 3 questions, got %d", start.QuestionCount)
	}

	if err := engine.ReportViolation(ctx, start.SessionID, domain.ViolationTabSwitch, time.Now()); err != nil {
		t.Fatalf("report violation: %v", err)
	}

	// every seeded question marks option 1 correct
	answer := 1
	for i := 0; i < 3; i++ {
		res, err := engine.SubmitAnswer(ctx, start.SessionID, i, &answer, 2)
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if !res.Correct {
			t.Fatalf("expected correct answer at %d: %+v", i, res)
		}
	}

	result, err := engine.Results(ctx, start.SessionID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if result.Score != 3 || result.Rank != 1 || result.PrizeAmount != 500 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Violations) != 1 || result.Violations[0].Type != domain.ViolationTabSwitch {
		t.Fatalf("violation not carried into result: %+v", result.Violations)
	}

	// result and session snapshot survive in redis
	stored, err := resultStore.GetResult(ctx, start.SessionID)
	if err != nil || stored.Score != 3 {
		t.Fatalf("stored result: %+v %v", stored, err)
	}
	snap, err := sessionStore.GetSession(ctx, start.SessionID)
	if err != nil || snap.Status != domain.SessionCompleted {
		t.Fatalf("stored session: %+v %v", snap, err)
	}

	// 100 - 39 entry fee + 500 prize
	balance, err := wallet.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance < 560.99 || balance > 561.01 {
		t.Fatalf("expected balance ~561, got %v", balance)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedCatalog(t *testing.T, ctx context.Context, dsn string, tournament domain.Tournament, questions []domain.Question) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(tournament)
	if err != nil {
		t.Fatalf("marshal tournament: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO tournaments (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, tournament.ID, string(data)); err != nil {
		t.Fatalf("insert tournament: %v", err)
	}

	for _, q := range questions {
		data, err := json.Marshal(q)
		if err != nil {
			t.Fatalf("marshal question: %v", err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO questions (id, category, data) VALUES (?, ?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, q.ID, q.Category, string(data)); err != nil {
			t.Fatalf("insert question %s: %v", q.ID, err)
		}
	}
}

func sampleTournament() domain.Tournament {
	return domain.Tournament{
		ID:              "t1",
		Name:            "Integration Sprint",
		Category:        "general",
		EntryFee:        39,
		PrizePool:       1000,
		MaxParticipants: 100,
		QuestionCount:   3,
		Status:          domain.TournamentActive,
		PrizeSplit:      []float64{0.5, 0.3, 0.2},
	}
}

func sampleQuestions() []domain.Question {
	questions := make([]domain.Question, 0, 5)
	for i := 0; i < 5; i++ {
		questions = append(questions, domain.Question{
			ID:           fmt.Sprintf("q%d", i+1),
			Category:     "general",
			Text:         fmt.Sprintf("Integration question %d", i+1),
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: 1,
			Explanation:  "seeded",
		})
	}
	return questions
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
