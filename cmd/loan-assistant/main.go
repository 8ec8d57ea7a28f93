// cmd/loan-assistant/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"loan-assistant/internal/api"
	"loan-assistant/internal/common/aws"
	"loan-assistant/internal/common/camunda"
	"loan-assistant/internal/common/config"
	"loan-assistant/internal/common/crm"
	"loan-assistant/internal/common/database"
	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/common/observability"
	"loan-assistant/internal/conversation"
	"loan-assistant/internal/directory"
	"loan-assistant/internal/events"
	"loan-assistant/internal/notify"
	"loan-assistant/internal/sales"
	"loan-assistant/internal/sanction"
	"loan-assistant/internal/session"
	pt "loan-assistant/internal/workers/loan/process-turn"
	rss "loan-assistant/internal/workers/loan/resolve-salary-slip"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// retryWithBackoff attempts an operation with exponential backoff until it
// succeeds, the attempts run out or ctx is done.
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		if err = operation(); err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	if err := run(cfg, zapLog); err != nil {
		zapLog.Fatal("loan assistant stopped", zap.Error(err))
	}
	zapLog.Info("loan assistant stopped")
}

// app collects what run has to release on shutdown.
type app struct {
	closers []func()
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func run(cfg *config.Config, zapLog *zap.Logger) error {
	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting loan assistant...",
		zap.String("environment", cfg.App.Environment),
		zap.String("sessionBackend", cfg.Session.Backend),
		zap.String("directoryBackend", cfg.Directory.Backend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{}
	defer a.close()

	obs := observability.New(cfg.App.Name, observability.WithJaegerEndpoint(cfg.Observability.JaegerEndpoint))
	a.onClose(obs.Shutdown)

	var rdb *redis.Client
	if cfg.Database.Redis.Address != "" {
		rc, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		if err := retryWithBackoff(ctx, func() error { return rc.Ping(ctx) }, 10, 2*time.Second, zapLog, "Redis connection"); err != nil {
			return err
		}
		a.onClose(func() { _ = rc.Close() })
		rdb = rc.Client
		zapLog.Info("Redis connected successfully")
	}

	store, locker, err := buildSessions(ctx, cfg, rdb, a)
	if err != nil {
		return err
	}

	dir, err := buildDirectory(ctx, cfg, rdb, log, a, zapLog)
	if err != nil {
		return err
	}

	var agent sales.Agent = sales.NewClient(cfg.Sales, log)
	if cfg.Sales.FallbackOnError {
		agent = sales.WithFallback(agent, cfg.Sales.FallbackMessage, log)
	}

	renderer, err := sanction.NewRenderer(cfg.Sanction, log)
	if err != nil {
		return err
	}

	publisher, err := buildEvents(ctx, cfg, a, zapLog)
	if err != nil {
		return err
	}

	opts := []conversation.Option{
		conversation.WithEvents(publisher),
		conversation.WithObservability(obs),
	}
	if cfg.Notifications.Enabled() {
		notifier, err := buildNotifier(ctx, cfg.Notifications, log)
		if err != nil {
			return err
		}
		opts = append(opts, conversation.WithNotifier(notifier))
	}

	machine := conversation.NewMachine(agent, dir, renderer, decimal.NewFromFloat(cfg.Underwriting.DefaultSalary))
	service := conversation.NewService(machine, store, locker, log, opts...)

	if cfg.Camunda.Enabled {
		if err := startWorkers(ctx, cfg, service, log, a, zapLog); err != nil {
			return err
		}
	}

	srv := api.NewServer(cfg.Server, service, renderer.Dir(), log).HTTPServer()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zapLog.Info("HTTP server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLog.Info("Shutdown signal received, draining...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func buildSessions(ctx context.Context, cfg *config.Config, rdb *redis.Client, a *app) (session.Store, session.Locker, error) {
	var store session.Store
	switch cfg.Session.Backend {
	case config.BackendRedis:
		store = session.NewRedisStore(rdb, cfg.Session.KeyPrefix)
	case config.BackendSQLite:
		db, err := database.NewSQLite(cfg.Database.SQLite)
		if err != nil {
			return nil, nil, err
		}
		a.onClose(func() { _ = db.Close() })
		sqlStore, err := session.NewSQLStore(ctx, db)
		if err != nil {
			return nil, nil, err
		}
		store = sqlStore
	default:
		store = session.NewMemoryStore()
	}

	if rdb != nil && cfg.Session.Backend == config.BackendRedis {
		return store, session.NewRedisLocker(rdb, cfg.Session.KeyPrefix+"lock:", config.GetDuration(cfg.Session.LockTTL)), nil
	}
	return store, session.NewLocalLocker(), nil
}

func buildDirectory(ctx context.Context, cfg *config.Config, rdb *redis.Client, log logger.Logger, a *app, zapLog *zap.Logger) (directory.Directory, error) {
	var dir directory.Directory

	switch cfg.Directory.Backend {
	case config.BackendPostgres:
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		if err := retryWithBackoff(ctx, func() error { return pg.Ping(ctx) }, 15, 2*time.Second, zapLog, "PostgreSQL connection"); err != nil {
			return nil, err
		}
		a.onClose(func() { _ = pg.Close() })
		zapLog.Info("PostgreSQL connected successfully")

		pgDir := directory.NewPostgresDirectory(pg.DB)
		if err := pgDir.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		dir = pgDir

	case config.BackendCRM:
		client := crm.NewClient(cfg.Directory.CRM.BaseURL, cfg.Directory.CRM.APIKey, config.GetDuration(cfg.Directory.CRM.Timeout))
		dir = directory.NewCRMDirectory(client)

	default:
		fileDir, err := directory.NewFileDirectory(cfg.Directory.FilePath, log)
		if err != nil {
			return nil, err
		}
		if cfg.Directory.Watch {
			go func() {
				if err := fileDir.Watch(ctx); err != nil {
					zapLog.Error("customer file watch stopped", zap.Error(err))
				}
			}()
		}
		zapLog.Info("Customer file loaded", zap.Int("customers", fileDir.Len()))
		dir = fileDir
	}

	if cfg.Directory.CacheTTL > 0 && rdb != nil {
		dir = directory.NewCachedDirectory(dir, rdb, config.GetDuration(cfg.Directory.CacheTTL), log)
	}
	return dir, nil
}

func buildEvents(ctx context.Context, cfg *config.Config, a *app, zapLog *zap.Logger) (events.Publisher, error) {
	var sinks events.Multi

	if cfg.Events.Elasticsearch.Enabled {
		var es *database.ElasticsearchClient
		err := retryWithBackoff(ctx, func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			return nil, err
		}
		if err := es.EnsureIndex(ctx, cfg.Events.Elasticsearch.Index, events.IndexMapping); err != nil {
			return nil, err
		}
		sinks = append(sinks, events.NewElasticsearchSink(es.Client, cfg.Events.Elasticsearch.Index))
		zapLog.Info("Elasticsearch connected successfully")
	}

	if cfg.Events.Kafka.Enabled {
		sink := events.NewKafkaSink(events.NewKafkaWriter(cfg.Events.Kafka.Brokers, cfg.Events.Kafka.Topic))
		a.onClose(func() { _ = sink.Close() })
		sinks = append(sinks, sink)
		zapLog.Info("Kafka decision topic configured", zap.String("topic", cfg.Events.Kafka.Topic))
	}

	if len(sinks) == 0 {
		return events.Nop{}, nil
	}
	return sinks, nil
}

func buildNotifier(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*notify.Notifier, error) {
	var (
		sesClient notify.SESService
		snsClient notify.SNSService
	)
	if cfg.Email.Enabled {
		c, err := aws.NewSESClient(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, err
		}
		sesClient = c
	}
	if cfg.SMS.Enabled {
		c, err := aws.NewSNSClient(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, err
		}
		snsClient = c
	}
	return notify.NewNotifier(cfg, sesClient, snsClient, log), nil
}

func startWorkers(ctx context.Context, cfg *config.Config, service *conversation.Service, log logger.Logger, a *app, zapLog *zap.Logger) error {
	client, err := camunda.NewClient(ctx, cfg.Camunda.BrokerAddress)
	if err != nil {
		return err
	}
	a.onClose(func() { _ = client.Close() })
	zapLog.Info("Zeebe client connected successfully")

	turnCfg := config.GetWorkerConfig(cfg, pt.TaskType)
	turnWorker := camunda.StartWorker(client.GetClient(), pt.TaskType, turnCfg,
		pt.NewHandler(pt.LoadConfig(turnCfg), service, log), log)
	a.onClose(turnWorker.Stop)

	slipCfg := config.GetWorkerConfig(cfg, rss.TaskType)
	slipWorker := camunda.StartWorker(client.GetClient(), rss.TaskType, slipCfg,
		rss.NewHandler(rss.LoadConfig(slipCfg, cfg.Server.MaxUploadMB), service, log), log)
	a.onClose(slipWorker.Stop)

	return nil
}

