package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"caseboard-service/internal/app"
	"caseboard-service/internal/caseconfig"
	"caseboard-service/internal/domain"
	"caseboard-service/internal/infra/postgres"
	pgmigrations "caseboard-service/internal/infra/postgres/migrations"
	infraredis "caseboard-service/internal/infra/redis"
	"caseboard-service/internal/realtime"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

type backend struct {
	pool   *pgxpool.Pool
	db     *bun.DB
	redis  *goredis.Client
	store  *postgres.Store
	setup  *app.Setup
	ledger *app.Ledger
	ctrl   *app.Controller
	reader *app.Reader
}

func newBackend(t *testing.T, ctx context.Context) *backend {
	t.Helper()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	t.Cleanup(pgCleanup)
	redisURL, redisCleanup := startRedis(t, ctx)
	t.Cleanup(redisCleanup)

	db := postgres.Open(pgURL)
	t.Cleanup(func() { _ = db.Close() })
	migrateUp(t, ctx, db)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	t.Cleanup(pool.Close)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = redisClient.Close() })

	return &backend{pool: pool, db: db, redis: redisClient}
}

// wire builds the app layer over postgres with the given feed.
func (b *backend) wire(feed app.Publisher) {
	store := postgres.NewStore(b.db)
	loader := caseconfig.WithDefaults{Loader: postgres.NewConfigLoader(b.pool)}
	configs := infraredis.NewConfigRepository(b.redis, loader, 5*time.Minute)
	b.store = store
	b.ctrl = app.NewController(store, store, configs, feed)
	b.ledger = app.NewLedger(store, configs, feed)
	b.setup = app.NewSetup(store, configs, b.ctrl, feed)
	b.reader = app.NewReader(b.ctrl, b.ledger, configs)
}

func TestSubmitAndResetEndToEnd(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, ctx)
	feed := infraredis.NewFeed(b.redis, 64)
	b.wire(feed)

	if _, err := b.setup.Save(ctx, caseconfig.Default("case-1")); err != nil {
		t.Fatalf("save config: %v", err)
	}
	cfg, err := b.store.LoadCaseConfig(ctx, "case-1")
	if err != nil || len(cfg.Steps) != 5 || cfg.Steps[4].Type != domain.StepPoll {
		t.Fatalf("unexpected stored config %+v err=%v", cfg, err)
	}

	scope := domain.NewScope("case-1", "A")
	replicas := realtime.NewService(b.reader, feed, realtime.Options{ReconnectDelay: 50 * time.Millisecond})
	defer replicas.Close()
	snapshots, cancel, err := replicas.Subscribe(ctx, scope)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()
	waitFor(t, snapshots, func(s realtime.Snapshot) bool { return s.Connected })

	for i := 0; i < 3; i++ {
		if _, err := b.ctrl.Advance(ctx, scope); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}

	step := 3
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 5; i++ {
		for attempt := 0; attempt < 3; attempt++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				answer := fmt.Sprintf("idea %d", i)
				_, err := b.ledger.Submit(ctx, domain.Submission{
					CaseID: "case-1", SessionID: "a", Step: &step, StudentName: fmt.Sprintf("student-%d", i), Answer: &answer,
				})
				switch {
				case err == nil:
					mu.Lock()
					accepted++
					mu.Unlock()
				case !errors.Is(err, domain.ErrDuplicateSubmission):
					t.Errorf("unexpected submit error: %v", err)
				}
			}(i)
		}
	}
	wg.Wait()
	if accepted != 5 {
		t.Fatalf("expected one accepted submission per student, got %d", accepted)
	}

	rows, err := b.ledger.List(ctx, domain.ResponseFilter{CaseID: "case-1", SessionID: "A"})
	if err != nil || len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d err=%v", len(rows), err)
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].Before(rows[i-1]) {
			t.Fatalf("rows out of order: %+v", rows)
		}
	}
	waitFor(t, snapshots, func(s realtime.Snapshot) bool {
		return len(s.Responses) == 5 && s.State != nil && s.State.CurrentStep == 3
	})

	state, err := b.ctrl.Reset(ctx, scope)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if state.CurrentStep != 0 || state.RevealedStep != -1 || state.DisplayMode != domain.ModeControlled {
		t.Fatalf("unexpected reset state %+v", state)
	}
	waitFor(t, snapshots, func(s realtime.Snapshot) bool {
		return len(s.Responses) == 0 && s.State != nil && s.State.CurrentStep == 0
	})
}

func TestNotifyFeedDeliversToReplica(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, ctx)
	feed := postgres.NewNotifyFeed(b.pool, 64)
	b.wire(feed)

	events, cancelEvents, err := feed.Subscribe(ctx, domain.DefaultCaseID)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer cancelEvents()

	scope := domain.NewScope(domain.DefaultCaseID, "B")
	if _, err := b.ctrl.Reveal(ctx, scope); err != nil {
		t.Fatalf("reveal: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("feed closed")
			}
			if ev.Table == domain.TableSessionState && ev.Type == domain.EventUpdate {
				if ev.State == nil || ev.State.RevealedStep != 0 || ev.State.Version != 2 {
					t.Fatalf("unexpected state event %+v", ev.State)
				}
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for notification")
		}
	}
}

func waitFor(t *testing.T, ch <-chan realtime.Snapshot, cond func(realtime.Snapshot) bool) {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				t.Fatalf("snapshot channel closed")
			}
			if cond(snap) {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for snapshot")
		}
	}
}

func migrateUp(t *testing.T, ctx context.Context, db *bun.DB) {
	t.Helper()
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "board", "POSTGRES_PASSWORD": "boardpass", "POSTGRES_DB": "boarddb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(60 * time.Second),
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
	dsn := fmt.Sprintf("postgres://board:boardpass@%s:%s/boarddb?sslmode=disable", host, port.Port())
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
