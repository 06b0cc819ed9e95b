package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/quantbot/internal/book"
	"github.com/alanyoungcy/quantbot/internal/broker"
	"github.com/alanyoungcy/quantbot/internal/domain"
	"github.com/alanyoungcy/quantbot/internal/executor"
	"github.com/alanyoungcy/quantbot/internal/feed"
	"github.com/alanyoungcy/quantbot/internal/indicator"
	"github.com/alanyoungcy/quantbot/internal/order"
	"github.com/alanyoungcy/quantbot/internal/pipeline"
	"github.com/alanyoungcy/quantbot/internal/risk"
	"github.com/alanyoungcy/quantbot/internal/server"
	"github.com/alanyoungcy/quantbot/internal/server/handler"
	"github.com/alanyoungcy/quantbot/internal/signal"
)

const paperFillLatency = 50 * time.Millisecond

// TradeMode runs the full pipeline with live order placement through the
// configured broker endpoint.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")
	brk := broker.NewRESTBroker(a.cfg.Orders.BrokerURL, a.cfg.Orders.BrokerAPIKey, a.cfg.Orders.BrokerRPS)
	return a.runTrading(ctx, deps, brk)
}

// PaperMode runs the full pipeline against a simulated broker that fills
// every order at the requested price. Risk accounting is identical to
// trade mode.
func (a *App) PaperMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting paper mode")
	brk := broker.NewPaperBroker(paperFillLatency, a.logger)
	return a.runTrading(ctx, deps, brk)
}

// runTrading wires the trading pipeline around the given broker: feed in,
// per-symbol pipelines, executor behind the risk gate, order lifecycle
// manager, and the optional HTTP server and archiver.
func (a *App) runTrading(ctx context.Context, deps *Dependencies, brk order.Broker) error {
	chain, err := a.buildChain()
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	gate := risk.NewGate(a.cfg.Risk.Account, a.riskLimits(), deps.Risk, deps.PriceCache, a.logger)
	if err := gate.Restore(ctx); err != nil {
		return fmt.Errorf("app: restore risk counters: %w", err)
	}

	manager := order.NewManager(
		brk,
		deps.Orders,
		deps.Fills,
		deps.Settlements,
		gate,
		deps.Notifier,
		a.cfg.Orders.AckTimeout.Duration,
		a.logger,
	)

	signalCh := make(chan domain.Signal, 64)
	pipelines, err := a.buildPipelines(deps, manager, chain, signalCh)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	router := pipeline.NewRouter(pipelines, deps.TickBus, a.logger)
	g.Go(func() error { return router.Run(ctx) })

	exec := executor.New(signalCh, gate, manager, deps.Notifier, a.logger)
	exec.SetDedupTTL(chain.TTL)
	g.Go(func() error { return exec.Run(ctx) })

	feedClient := feed.NewClient(a.cfg.Feed.WsURL, a.cfg.Feed.Symbols, router, a.logger)
	g.Go(func() error { return feedClient.Run(ctx) })

	if deps.Archiver != nil {
		g.Go(func() error { return deps.Archiver.Run(ctx) })
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, pipelines, manager, gate)
	}

	return g.Wait()
}

// MonitorMode runs the read-only pipeline: feed, orderbooks, indicators,
// and the HTTP API. Signals are logged but never become orders.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	chain, err := a.buildChain()
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	signalCh := make(chan domain.Signal, 64)
	pipelines, err := a.buildPipelines(deps, nil, chain, signalCh)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	router := pipeline.NewRouter(pipelines, deps.TickBus, a.logger)
	g.Go(func() error { return router.Run(ctx) })

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case sig := <-signalCh:
				a.logger.InfoContext(ctx, "signal observed",
					slog.String("signal_id", sig.ID),
					slog.String("symbol", sig.Symbol),
					slog.String("direction", string(sig.Direction)),
				)
			}
		}
	})

	feedClient := feed.NewClient(a.cfg.Feed.WsURL, a.cfg.Feed.Symbols, router, a.logger)
	g.Go(func() error { return feedClient.Run(ctx) })

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, pipelines, nil, nil)
	}

	return g.Wait()
}

// buildPipelines constructs one Pipeline per configured symbol. manager may
// be nil in monitor mode.
func (a *App) buildPipelines(
	deps *Dependencies,
	manager *order.Manager,
	chain signal.ChainConfig,
	signalCh chan<- domain.Signal,
) (map[string]*pipeline.Pipeline, error) {
	periods := indicator.Periods{
		RSI:        a.cfg.Indicators.RSIPeriod,
		MACDFast:   a.cfg.Indicators.MACDFast,
		MACDSlow:   a.cfg.Indicators.MACDSlow,
		MACDSignal: a.cfg.Indicators.MACDSignal,
		SMA:        a.cfg.Indicators.SMAPeriod,
		ATR:        a.cfg.Indicators.ATRPeriod,
	}

	pipelines := make(map[string]*pipeline.Pipeline, len(a.cfg.Feed.Symbols))
	for _, symbol := range a.cfg.Feed.Symbols {
		if _, dup := pipelines[symbol]; dup {
			return nil, fmt.Errorf("app: duplicate symbol %q in feed config", symbol)
		}
		pipelines[symbol] = pipeline.New(
			symbol,
			book.NewEngine(symbol, a.logger),
			feed.NewBarBuilder(symbol, a.cfg.Feed.BarInterval.Duration),
			indicator.NewEngine(symbol, periods),
			signal.NewEvaluator(symbol, chain, a.logger),
			manager,
			deps.PriceCache,
			deps.BookCache,
			signalCh,
			a.logger,
		)
	}
	return pipelines, nil
}

// buildChain assembles the signal chain from configuration. An explicit
// predicate list wins; otherwise a default chain is derived from the
// scalar thresholds for the configured direction.
func (a *App) buildChain() (signal.ChainConfig, error) {
	direction := domain.Direction(a.cfg.Chain.Direction)

	var predicates []signal.Predicate
	if len(a.cfg.Chain.Predicates) > 0 {
		for _, p := range a.cfg.Chain.Predicates {
			predicates = append(predicates, signal.Predicate{
				Kind:      signal.PredicateKind(p.Kind),
				Threshold: p.Threshold,
			})
		}
	} else if direction == domain.DirectionLong {
		predicates = []signal.Predicate{
			{Kind: signal.KindRSICrossAbove, Threshold: a.cfg.Chain.RSIThreshold},
			{Kind: signal.KindMACDBullish},
			{Kind: signal.KindHistogramAbove, Threshold: a.cfg.Chain.MACDHistogramThreshold},
			{Kind: signal.KindPriceAboveSMA},
		}
	} else {
		predicates = []signal.Predicate{
			{Kind: signal.KindRSICrossBelow, Threshold: a.cfg.Chain.RSIThreshold},
			{Kind: signal.KindMACDBearish},
			{Kind: signal.KindHistogramBelow, Threshold: -a.cfg.Chain.MACDHistogramThreshold},
			{Kind: signal.KindPriceBelowSMA},
		}
	}

	chain := signal.ChainConfig{
		Direction:  direction,
		Predicates: predicates,
		SizeUnits:  domain.PriceToTicks(a.cfg.Orders.Size),
		TTL:        a.cfg.Chain.SignalTTL.Duration,
	}
	if err := chain.Validate(); err != nil {
		return signal.ChainConfig{}, err
	}
	return chain, nil
}

func (a *App) riskLimits() risk.Limits {
	return risk.Limits{
		MaxPositions:         a.cfg.Risk.MaxPositions,
		MaxExposureFraction:  a.cfg.Risk.MaxExposureFraction,
		Capital:              decimal.NewFromFloat(a.cfg.Risk.Capital),
		DailyLossLimit:       decimal.NewFromFloat(a.cfg.Risk.DailyLossLimit),
		ConsecutiveLossLimit: a.cfg.Risk.ConsecutiveLossLimit,
		MaxTradesPerDay:      a.cfg.Risk.MaxTradesPerDay,
		StopLossPct:          a.cfg.Orders.StopLossPct,
		TakeProfitPct:        a.cfg.Orders.TakeProfitPct,
	}
}

// startHTTPServer adds the API server to the errgroup with graceful
// shutdown on context cancellation. manager and gate are nil in monitor
// mode; the order and risk endpoints are left unregistered then.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	pipelines map[string]*pipeline.Pipeline,
	manager *order.Manager,
	gate *risk.Gate,
) {
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"postgres": deps.PG,
			"redis":    deps.Redis,
		}),
		Status: handler.NewStatusHandler(a.cfg.Mode, pipelines),
		Book:   handler.NewBookHandler(pipelines),
	}
	if manager != nil {
		handlers.Orders = handler.NewOrderHandler(manager, deps.Orders, a.logger)
	}
	if gate != nil {
		handlers.Risk = handler.NewRiskHandler(gate)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateRPS:     a.cfg.Server.RateRPS,
		RateBurst:   a.cfg.Server.RateBurst,
	}, handlers, a.logger)

	g.Go(func() error { return srv.Start() })
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
