package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/leshachaplin/mouselog/app/waiter"
	"github.com/leshachaplin/mouselog/internal/config"
	appServer "github.com/leshachaplin/mouselog/internal/server/http"
	"github.com/leshachaplin/mouselog/internal/service"
	"github.com/leshachaplin/mouselog/internal/storage/event/clickhouse"
	"github.com/leshachaplin/mouselog/internal/storage/event/jsonl"
	"github.com/leshachaplin/mouselog/internal/worker"
	"github.com/leshachaplin/mouselog/internal/worker/redpanda/consumer"
	"github.com/leshachaplin/mouselog/internal/worker/redpanda/producer"
)

const shutdownTimeout = 30 * time.Second

type LoadConfigFn func() (config.Config, error)

type App struct {
	cfg      config.Config
	logger   zerolog.Logger
	server   *appServer.Server
	waiter   waiter.Waiter
	ctx      context.Context
	cancelFn context.CancelFunc
}

func New(loadConfigFn LoadConfigFn) *App {
	ctx, cancelFn := context.WithCancel(context.Background())
	cfg, err := loadConfigFn()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger := NewZeroLogger(Level(cfg.LogLevel))

	w := waiter.NewWaiter(ctx, cancelFn)

	return &App{
		cfg:      cfg,
		logger:   logger,
		waiter:   w,
		ctx:      ctx,
		cancelFn: cancelFn,
	}
}

func (a *App) Start() {
	defer a.cancelFn()

	eventLog, err := jsonl.New(a.cfg.EventLog)
	if err != nil {
		a.logger.Fatal().Err(err).Msg("Could not setup event log.")
	}
	a.logger.Info().Str("path", eventLog.Path()).Msg("appending events")

	var opts []service.Option
	if a.cfg.Mirror.Enabled {
		pool, storage, closeFn := a.setupMirror()
		defer closeFn()

		opts = append(opts, service.WithMirror(pool, storage))
		a.waitForWorker(pool)
	}

	eventService := service.New(eventLog, a.logger.With().Str("service", "events").Logger(), opts...)
	handler := appServer.NewHandler(eventService, a.logger.With().Str("handler", "events").Logger())

	a.server = appServer.New(a.cfg.Server, handler)

	a.waitForServer()

	if err = a.waiter.Wait(); err != nil {
		a.logger.Fatal().Err(err).Msg("App crash.")
	}
}

func (a *App) Stop() {
	a.waiter.CancelFunc()()
}

// setupMirror connects the Redpanda queue and the ClickHouse sink. The
// returned func closes them once the pool has stopped.
func (a *App) setupMirror() (*worker.Pool, *clickhouse.Clickhouse, func()) {
	cfg := a.cfg.Mirror
	l := a.logger.With().Str("component", "mirror").Logger()

	eventConsumer, err := consumer.NewConsumer(a.ctx, cfg.Consumer, l.With().Str("event consumer", "Consume").Logger())
	if err != nil {
		a.logger.Fatal().Err(err).Msg("Could not setup event consumer.")
	}

	eventProducer, err := producer.NewProducer(a.ctx, cfg.Producer, l.With().Str("event producer", "Publish").Logger())
	if err != nil {
		a.logger.Fatal().Err(err).Msg("Could not setup event producer.")
	}

	errorProducerCfg := cfg.Producer
	errorProducerCfg.Topic = cfg.ErrorTopic
	errorProducer, err := producer.NewProducer(a.ctx, errorProducerCfg, l.With().Str("error producer", "Publish").Logger())
	if err != nil {
		a.logger.Fatal().Err(err).Msg("Could not setup error producer.")
	}

	eventStorage, err := clickhouse.New(a.ctx, cfg.Clickhouse, l.With().Str("storage", "clickhouse").Logger())
	if err != nil {
		a.logger.Fatal().Err(err).Msg("Could not setup event storage.")
	}
	if err = eventStorage.Migrate(a.ctx); err != nil {
		a.logger.Fatal().Err(err).Msg("Could not migrate event storage.")
	}

	eventQueue := worker.NewRedpandaQueue(eventProducer, eventConsumer)
	pool := worker.New(
		a.ctx,
		cfg.Worker,
		eventQueue,
		l.With().Str("WORKER", "EVENT").Logger(),
		worker.WithErrorQueue(errorProducer),
	)

	return pool, eventStorage, func() {
		pool.GracefulStop()
		_ = eventConsumer.Close()
		_ = eventProducer.Close()
		_ = errorProducer.Close()
		if err := eventStorage.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("error while closing event storage")
		}
	}
}

func (a *App) waitForServer() {
	a.waiter.Add(func(ctx context.Context) error {
		defer a.logger.Debug().Msg("server has been shutdown")

		group, gCtx := errgroup.WithContext(ctx)
		group.Go(func() error {
			defer a.logger.Debug().Msg("public server exited")
			a.logger.Info().Str("addr", a.server.Addr()).Msg("starting server")
			err := a.server.ServePublic()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		group.Go(func() error {
			<-gCtx.Done()
			a.logger.Debug().Msg("shutting down the server")
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := a.server.ShutdownPublic(ctx); err != nil {
				a.logger.Warn().Err(err).Msg("error while shutting down the server")
			}
			return nil
		})

		return group.Wait()
	})
}

func (a *App) waitForWorker(eventWorker worker.WorkerPool) {
	a.waiter.Add(func(ctx context.Context) error {
		<-ctx.Done()
		eventWorker.GracefulStop()
		return nil
	})
}
