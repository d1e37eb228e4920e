package cli

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"corrode-course/internal/app"
	"corrode-course/internal/config"
	"corrode-course/internal/domain"
	"corrode-course/internal/infra/exercises"
	"corrode-course/internal/infra/kafka"
	"corrode-course/internal/infra/memory"
	"corrode-course/internal/infra/postgres"
	infraredis "corrode-course/internal/infra/redis"
	"corrode-course/internal/infra/sqlite"
	"corrode-course/internal/logging"
	"corrode-course/internal/metrics"
	transport "corrode-course/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the course progress server",
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
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	loader := catalogLoader(cfg)
	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	var catalog app.CatalogRepository
	if redisClient != nil {
		catalog = infraredis.NewCatalogRepository(redisClient, loader, catalogTTL)
	} else {
		catalog = memory.NewCatalogRepository(loader, catalogTTL)
	}

	feed := app.NewFeed()
	opts := []app.Option{app.WithLogger(logger)}
	if redisClient != nil {
		notifier := infraredis.NewNotifier(redisClient, logger)
		opts = append(opts, app.WithNotifier(notifier))
		go func() {
			if err := notifier.Run(ctx, feed); err != nil {
				logger.Error().Err(err).Msg("progress subscription stopped")
			}
		}()
	} else {
		opts = append(opts, app.WithNotifier(feed))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		topic := cfg.Kafka.Topic
		if topic == "" {
			topic = kafka.DefaultTopic
		}
		publisher := kafka.NewPublisher(cfg.Kafka.Brokers, topic)
		defer publisher.Close()
		opts = append(opts, app.WithEventPublisher(publisher))
	}

	m := metrics.New()
	opts = append(opts, app.WithPublishFailureHook(func(error) { m.IncEventPublishFailures() }))
	service := app.NewCourseService(store, catalog, opts...)
	web, err := transport.NewWebHandler(service, cfg.Admin.Token, m)
	if err != nil {
		return err
	}
	handler := transport.NewRouter(
		transport.NewAPIHandler(service, cfg.Admin.Token, m),
		web,
		transport.NewWSHandler(service, feed, m),
		m,
		logger,
	)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("port", finalPort).Msg("starting course server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openStore picks the store from the database URL and applies migrations.
func openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (app.SubmissionStore, func(), error) {
	switch {
	case cfg.IsMemory():
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		return memory.NewStore(), func() {}, nil
	case cfg.IsPostgres():
		if err := migratePostgres(ctx, cfg.Database.URL); err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("database", redactURL(cfg.Database.URL)).Msg("connected to postgres")
		return postgres.NewStore(pool), pool.Close, nil
	default:
		db, err := sqlite.Open(cfg.Database.URL)
		if err != nil {
			return nil, nil, err
		}
		if err := sqlite.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		store, err := sqlite.NewStore(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		logger.Info().Str("database", cfg.Database.URL).Msg("opened sqlite database")
		return store, func() { _ = db.Close() }, nil
	}
}

func catalogLoader(cfg config.Config) memory.CatalogLoader {
	if len(cfg.Catalog.Exercises) == 0 {
		return exercises.NewDirLoader(cfg.Catalog.Dir)
	}
	list := make([]domain.Exercise, 0, len(cfg.Catalog.Exercises))
	for _, e := range cfg.Catalog.Exercises {
		title := e.Title
		if title == "" {
			title = e.Name
		}
		list = append(list, domain.Exercise{Name: e.Name, Title: title, Description: e.Description})
	}
	return memory.NewStaticCatalogLoader(list)
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}
