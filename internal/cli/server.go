package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"caseboard-service/internal/app"
	"caseboard-service/internal/caseconfig"
	"caseboard-service/internal/config"
	"caseboard-service/internal/infra/memory"
	"caseboard-service/internal/infra/postgres"
	infraredis "caseboard-service/internal/infra/redis"
	"caseboard-service/internal/realtime"
	transport "caseboard-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the discussion board server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// deps holds the wired backends. Absent Redis or Postgres settings select the
// in-memory implementations.
type deps struct {
	setup      *app.Setup
	controller *app.Controller
	ledger     *app.Ledger
	reader     *app.Reader
	feed       realtime.Feed
	presence   transport.Presence

	closers []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func buildDeps(ctx context.Context, cfg config.Config) (*deps, error) {
	d := &deps{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.closers = append(d.closers, func() { _ = redisClient.Close() })
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var (
		pool *pgxpool.Pool
		db   *bun.DB
	)
	if cfg.Postgres.URL != "" {
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.closers = append(d.closers, pool.Close)
		db = postgres.Open(cfg.Postgres.URL)
		d.closers = append(d.closers, func() { _ = db.Close() })
	}

	var (
		store  app.Store
		loader caseconfig.Loader
	)
	if db != nil {
		store = postgres.NewStore(db)
		loader = caseconfig.WithDefaults{Loader: postgres.NewConfigLoader(pool)}
	} else {
		mem := memory.NewStore()
		store = mem
		loader = caseconfig.WithDefaults{Loader: mem}
	}

	cacheTTL := config.TTLDuration(cfg.Cache.TTL, 10*time.Minute)
	var configs app.ConfigRepository
	if redisClient != nil {
		configs = infraredis.NewConfigRepository(redisClient, loader, cacheTTL)
	} else {
		configs = memory.NewConfigRepository(loader, cacheTTL)
	}

	type feed interface {
		app.Publisher
		realtime.Feed
	}
	var events feed
	switch cfg.FeedDriver() {
	case config.FeedRedis:
		if redisClient == nil {
			d.Close()
			return nil, errors.New("redis feed requires redis.addr")
		}
		events = infraredis.NewFeed(redisClient, cfg.Realtime.Buffer)
	case config.FeedPostgres:
		if pool == nil {
			d.Close()
			return nil, errors.New("postgres feed requires postgres.url")
		}
		events = postgres.NewNotifyFeed(pool, cfg.Realtime.Buffer)
	default:
		events = memory.NewHub(cfg.Realtime.Buffer)
	}
	d.feed = events

	if redisClient != nil {
		d.presence = infraredis.NewPresence(redisClient, redisTTL)
	}

	d.controller = app.NewController(store, store, configs, events)
	d.ledger = app.NewLedger(store, configs, events)
	d.setup = app.NewSetup(store, configs, d.controller, events)
	d.reader = app.NewReader(d.controller, d.ledger, configs)
	log.Info().Str("feed", cfg.FeedDriver()).Bool("postgres", db != nil).Bool("redis", redisClient != nil).Msg("backends wired")
	return d, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg)

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

	d, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	sync := realtime.NewService(d.reader, d.feed, realtime.Options{
		ReconnectDelay: config.TTLDuration(cfg.Realtime.ReconnectDelay, 2*time.Second),
		Buffer:         cfg.Realtime.Buffer,
	})
	defer sync.Close()

	router := transport.NewRouter(transport.Services{
		Setup:      d.setup,
		Controller: d.controller,
		Ledger:     d.ledger,
		Reader:     d.reader,
		Sync:       sync,
		Presence:   d.presence,
	})

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting caseboard service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server...")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
