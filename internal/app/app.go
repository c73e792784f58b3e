package app

import (
	"context"
	"fmt"
	"time"

	"klinecollector/config"
	"klinecollector/internal/collector"
	"klinecollector/internal/export"
	"klinecollector/internal/memorystore"
	"klinecollector/internal/ratebudget"
	"klinecollector/internal/session"
	"klinecollector/internal/snapshot"
	"klinecollector/internal/stream"
	"klinecollector/internal/transport/http/api"
	"klinecollector/pkg/binance"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// App wires the exchange client, the collection session and the HTTP surface.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	client   *binance.RESTClient
	budget   *ratebudget.Budget
	symbols  *memorystore.MemorySymbolStore
	hub      *stream.Hub
	session  *session.Session
	exporter export.Exporter
	server   *api.Server
}

func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	exporter, err := export.NewExporter(cfg.Export.Format)
	if err != nil {
		return nil, err
	}
	if _, err := cfg.Collection.Resolve(time.Now()); err != nil {
		return nil, fmt.Errorf("collection defaults: %w", err)
	}

	client := binance.NewRESTClient(cfg.Binance.REST.BaseURL, cfg.Binance.REST.Timeout, logger.Named("binance"))
	client.SetMaxBackoff(cfg.Binance.REST.MaxBackoff)

	budget := ratebudget.New(cfg.RateLimit.MaxRequestsPerMinute)
	symbols := memorystore.NewSymbolStore(cfg.Binance.Symbols...)
	hub := stream.NewHub(logger)
	sess := session.New(client, budget, logger, session.Options{Listeners: []session.Listener{hub}})
	hub.SetSource(sess)

	server, err := api.NewServer(api.ServerConfig{
		Addr:       cfg.Server.Addr,
		Collection: sess,
		Symbols:    symbols,
		Defaults:   func() collector.Config { return defaults(cfg.Collection) },
		Feed:       hub,
		Logger:     logger,
	})
	if err != nil {
		sess.Close()
		return nil, err
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		budget:   budget,
		symbols:  symbols,
		hub:      hub,
		session:  sess,
		exporter: exporter,
		server:   server,
	}, nil
}

// defaults resolves the form defaults as of now. New has checked that they
// resolve.
func defaults(c config.CollectionConfig) collector.Config {
	cfg, _ := c.Resolve(time.Now())
	return cfg
}

// Run serves until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		<-a.budget.Start(ctx, a.cfg.RateLimit.Window)
		return nil
	})

	if a.cfg.Binance.LoadSymbols {
		refresher := &snapshot.MidnightRefresher{
			Loader: &snapshot.SymbolLoader{
				Client:     a.client,
				QuoteAsset: a.cfg.Binance.QuoteAsset,
				Timeout:    a.cfg.Binance.REST.Timeout,
				Logger:     a.logger,
			},
			Store:  a.symbols,
			Logger: a.logger,
		}
		group.Go(func() error { return refresher.Run(ctx) })
	}

	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		a.session.Close()
		a.hub.Close()
		return nil
	})

	if a.cfg.Collection.Autostart {
		group.Go(func() error { return a.autostart() })
	}

	return group.Wait()
}

// autostart runs the configured collection and exports whatever it collected,
// including a partial series after a failure or shutdown.
func (a *App) autostart() error {
	cfg := defaults(a.cfg.Collection)
	if err := a.session.Start(cfg); err != nil {
		return fmt.Errorf("autostart: %w", err)
	}

	res, err := a.session.Wait(context.Background())
	if err != nil {
		return fmt.Errorf("autostart: %w", err)
	}
	a.logger.Info("autostart run finished",
		zap.String("state", string(res.State)),
		zap.Int("candles", len(res.Series)))

	if len(res.Series) == 0 {
		a.logger.Warn("nothing to export")
		return nil
	}
	path, err := export.SaveFile(a.cfg.Export.Dir, a.exporter, cfg.Symbol, cfg.Timeframe, res.Series)
	if err != nil {
		return fmt.Errorf("export dataset: %w", err)
	}
	a.logger.Info("dataset exported", zap.String("path", path))
	return nil
}
