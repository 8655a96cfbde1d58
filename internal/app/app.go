// Package app assembles the monitor, its record store and its sinks from
// configuration. The binaries under cmd/ share it.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/chronic-risk-monitor/internal/alerting"
	"github.com/chronic-risk-monitor/internal/database"
	"github.com/chronic-risk-monitor/internal/domain"
	"github.com/chronic-risk-monitor/internal/livestate"
	"github.com/chronic-risk-monitor/internal/notify"
	"github.com/chronic-risk-monitor/internal/pipeline"
	"github.com/chronic-risk-monitor/internal/records"
	"github.com/chronic-risk-monitor/internal/service"
	"github.com/chronic-risk-monitor/internal/simulator"
)

// App is a wired tick authority together with the read side built on it.
type App struct {
	Config   *domain.Config
	Logger   *logrus.Logger
	Records  []domain.PatientRecord
	Pipeline *pipeline.RiskPipeline
	State    *livestate.State
	History  *alerting.History
	Monitor  *service.Monitor
	Views    *service.Views

	closers []func()
}

// New loads the model artifacts and patient records and wires the monitor.
// The returned App owns the only live-state producer of this process.
func New(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	p, err := pipeline.LoadFromDir(cfg.Models.Dir, logger)
	if err != nil {
		return nil, err
	}
	a.Pipeline = p

	store, err := OpenRecords(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	preloaded, err := records.Preload(ctx, store)
	store.Close()
	if err != nil {
		return nil, err
	}
	a.Records, _ = preloaded.Records(ctx)

	gen, err := simulator.NewGenerator()
	if err != nil {
		return nil, err
	}

	history, err := alerting.NewHistory(cfg.Monitor.HistorySize)
	if err != nil {
		return nil, err
	}
	a.History = history

	state, producer := livestate.New()
	a.State = state

	var mirror service.SnapshotMirror
	if cfg.Redis.Enabled {
		client, err := NewRedisClient(cfg.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { client.Close() })
		mirror = livestate.NewRedisMirror(client, redisOptions(cfg.Redis), logger)
	}

	notifier, closeNotifier, err := notify.FromConfig(cfg.Notify, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("configuring notifiers: %w", err)
	}
	a.closers = append(a.closers, closeNotifier)

	monitor, err := service.NewMonitor(service.MonitorDeps{
		Records:   a.Records,
		Generator: gen,
		Pipeline:  p,
		Producer:  producer,
		History:   history,
		Mirror:    mirror,
		Notifier:  notifier,
		Interval:  cfg.Monitor.RefreshInterval,
		Logger:    logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Monitor = monitor
	a.Views = service.NewViews(state, p, logger)

	logger.WithFields(logrus.Fields{
		"patients":         len(a.Records),
		"records_backend":  cfg.Records.Backend,
		"refresh_interval": cfg.Monitor.RefreshInterval,
		"redis_mirror":     cfg.Redis.Enabled,
	}).Info("Monitor initialized")
	return a, nil
}

// NewRedisViews builds read-only views over the Redis mirror of another
// process's monitor. It never generates readings. The returned reader
// announces the mirror's ticks.
func NewRedisViews(cfg *domain.Config, logger *logrus.Logger) (*service.Views, *livestate.RedisReader, func(), error) {
	p, err := pipeline.LoadFromDir(cfg.Models.Dir, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	client, err := NewRedisClient(cfg.Redis)
	if err != nil {
		return nil, nil, nil, err
	}
	reader := livestate.NewRedisReader(client, redisOptions(cfg.Redis), logger)
	return service.NewViews(reader, p, logger), reader, func() { client.Close() }, nil
}

// Close releases the sinks opened by New.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// OpenRecords opens the configured patient record store. The Postgres
// backend migrates its schema and seed data first.
func OpenRecords(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (domain.PatientRecordStore, error) {
	switch cfg.Records.Backend {
	case records.BackendMemory, "":
		return records.NewSeededMemoryStore(), nil
	case records.BackendSQLite:
		return records.NewSQLiteStore(ctx, cfg.Records.SQLitePath, logger)
	case records.BackendPostgres:
		dbCfg := database.FromDomain(cfg.Database)
		if err := Migrate(ctx, cfg, logger, true); err != nil {
			return nil, err
		}
		db, err := database.NewConnection(ctx, dbCfg, logger)
		if err != nil {
			return nil, err
		}
		return &postgresRecords{PostgresStore: records.NewPostgresStore(db.Pool, logger), db: db}, nil
	default:
		return nil, fmt.Errorf("unknown records backend: %s", cfg.Records.Backend)
	}
}

// Migrate applies (up) or rolls back one step of (down) the Postgres
// migrations.
func Migrate(ctx context.Context, cfg *domain.Config, logger *logrus.Logger, up bool) error {
	runner, err := database.NewMigrationRunner(database.FromDomain(cfg.Database).URL(), cfg.Database.MigrationsPath, logger)
	if err != nil {
		return err
	}
	defer runner.Close()

	if up {
		return runner.Up(ctx)
	}
	return runner.Down(ctx)
}

// NewRedisClient parses the configured URL into a client.
func NewRedisClient(cfg domain.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func redisOptions(cfg domain.RedisConfig) livestate.RedisOptions {
	return livestate.RedisOptions{Key: cfg.Key, Channel: cfg.Channel}
}

// postgresRecords closes the pool along with the store.
type postgresRecords struct {
	*records.PostgresStore
	db *database.DB
}

func (p *postgresRecords) Close() error {
	p.db.Close()
	return nil
}
