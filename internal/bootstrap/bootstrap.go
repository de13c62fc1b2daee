// Package bootstrap turns configuration into wired settlement components.
// Every binary (API, worker, CLI, batch tools) goes through App so the same
// config file always resolves to the same directory, ledger sink, FX engine,
// and event publisher.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dvloznov/exchange-settler/internal/config"
	"github.com/dvloznov/exchange-settler/internal/directory"
	"github.com/dvloznov/exchange-settler/internal/events"
	"github.com/dvloznov/exchange-settler/internal/fx"
	"github.com/dvloznov/exchange-settler/internal/ledger"
	"github.com/dvloznov/exchange-settler/internal/ledger/filestore"
	"github.com/dvloznov/exchange-settler/internal/ledger/gcs"
	"github.com/dvloznov/exchange-settler/internal/ledger/memstore"
	"github.com/dvloznov/exchange-settler/internal/ledger/postgres"
	"github.com/dvloznov/exchange-settler/internal/ledger/warehouse"
	"github.com/dvloznov/exchange-settler/internal/metrics"
	"github.com/dvloznov/exchange-settler/internal/settlement"
)

// App bundles the wired components one process needs to settle
// transactions. Build it once per process: the metric set registers with
// the default Prometheus registry.
type App struct {
	Config    *config.Config
	Engine    *fx.Engine
	Directory directory.Directory
	Store     ledger.Store
	Publisher events.Publisher
	Metrics   *metrics.SettlementMetrics
	Service   *settlement.Service

	closers []func() error
}

// New wires an App from configuration. On error nothing is left open.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Engine: fx.NewEngine(cfg.Rates, cfg.FeeUSD),
	}

	if err := app.buildDirectory(); err != nil {
		return nil, err
	}
	if err := app.buildStore(ctx); err != nil {
		app.Close()
		return nil, err
	}
	app.buildPublisher()

	app.Metrics = metrics.NewSettlementMetrics()
	app.Service = settlement.NewService(
		settlement.NewSettlementPipeline(app.Directory, app.Engine, app.Store),
		app.Publisher,
		app.Metrics,
	)
	return app, nil
}

// Close releases every component that holds a connection, in reverse
// construction order. Safe to call more than once.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

func (a *App) buildDirectory() error {
	switch a.Config.Directory.Backend {
	case config.DirectoryStatic:
		users := a.Config.Directory.Users
		if len(users) == 0 {
			users = directory.DefaultUsers()
		}
		a.Directory = directory.NewStatic(users)
		return nil

	case config.DirectoryRedis:
		dir := directory.NewRedis(a.Config.Directory.Redis)
		a.Directory = dir
		a.closers = append(a.closers, dir.Close)
		return nil

	default:
		return fmt.Errorf("bootstrap: unknown directory backend %q", a.Config.Directory.Backend)
	}
}

func (a *App) buildStore(ctx context.Context) error {
	cfg := a.Config.Ledger

	switch cfg.Backend {
	case config.LedgerFile:
		if cfg.Strict {
			a.Store = filestore.NewStrict(cfg.File.Path)
		} else {
			a.Store = filestore.New(cfg.File.Path)
		}
		return nil

	case config.LedgerMemory:
		a.Store = memstore.New()
		return nil

	case config.LedgerPostgres:
		store, err := postgres.New(cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("bootstrap: postgres ledger: %w", err)
		}
		a.Store = store
		return nil

	case config.LedgerGCS:
		var (
			store *gcs.Store
			err   error
		)
		if cfg.Strict {
			store, err = gcs.NewStrict(ctx, cfg.GCS.Bucket, cfg.GCS.Object)
		} else {
			store, err = gcs.New(ctx, cfg.GCS.Bucket, cfg.GCS.Object)
		}
		if err != nil {
			return fmt.Errorf("bootstrap: gcs ledger: %w", err)
		}
		a.Store = store
		a.closers = append(a.closers, store.Close)
		return nil

	case config.LedgerBigQuery:
		store, err := warehouse.New(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.DatasetID, cfg.BigQuery.TableID)
		if err != nil {
			return fmt.Errorf("bootstrap: bigquery ledger: %w", err)
		}
		a.Store = store
		a.closers = append(a.closers, store.Close)
		return nil

	default:
		return fmt.Errorf("bootstrap: unknown ledger backend %q", cfg.Backend)
	}
}

func (a *App) buildPublisher() {
	if !a.Config.Kafka.Enabled {
		a.Publisher = events.NewNoopPublisher()
		return
	}

	pub := events.NewKafkaPublisher(a.Config.Kafka.Brokers, a.Config.Kafka.Topic)
	a.Publisher = pub
	a.closers = append(a.closers, pub.Close)
}
