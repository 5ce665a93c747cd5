package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rxtech-lab/argo-smartorder/internal/config"
	"github.com/rxtech-lab/argo-smartorder/internal/logger"
	"github.com/rxtech-lab/argo-smartorder/internal/trading/engine"
	enginev1 "github.com/rxtech-lab/argo-smartorder/internal/trading/engine/engine_v1"
	tradingprovider "github.com/rxtech-lab/argo-smartorder/internal/trading/provider"
	"github.com/rxtech-lab/argo-smartorder/internal/types"
	"github.com/rxtech-lab/argo-smartorder/internal/version"
	"github.com/rxtech-lab/argo-smartorder/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "config",
			Aliases:  []string{"c"},
			Usage:    "Path to the trading configuration `FILE`",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "Load credentials from this env `FILE` instead of ./.env",
		},
	}
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	if envFile := cmd.String("env-file"); envFile != "" {
		return config.Load(cmd.String("config"), envFile)
	}

	return config.Load(cmd.String("config"))
}

// runAction trades the configured trades until they complete or the process is interrupted.
func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := logger.NewLoggerWithConfig(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	exchange, err := tradingprovider.NewExchange(cfg.Exchange.Provider, cfg.Exchange.BinanceProviderConfig)
	if err != nil {
		return fmt.Errorf("failed to create exchange: %w", err)
	}

	handler := enginev1.NewOrderHandlerV1(enginev1.WithLogger(log))
	if err := handler.Initialize(cfg.Engine); err != nil {
		return err
	}

	if err := handler.SetExchange(exchange); err != nil {
		return err
	}

	for _, trade := range cfg.ToTrades() {
		if err := handler.AddTrade(trade); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting order handler",
		zap.String("provider", string(cfg.Exchange.Provider)),
		zap.Int("trades", len(cfg.Trades)),
	)

	err = handler.Run(ctx, newCallbacks(log))

	summary := handler.Stats()
	log.Info("Order handler finished",
		zap.Int("dispatches", summary.Dispatches),
		zap.Int("orders_placed", summary.OrdersPlaced),
		zap.Int("targets_filled", summary.TargetsFilled),
		zap.Int("escalations", summary.Escalations),
		zap.Strings("active", handler.ActiveStrategies()),
	)

	if errors.Is(err, context.Canceled) {
		log.Info("Trading stopped by user")

		return nil
	}

	return err
}

func newCallbacks(log *logger.Logger) engine.Callbacks {
	onStart := engine.OnStartCallback(func(symbols []string, runPath string) error {
		log.Info("Listening", zap.Strings("symbols", symbols), zap.String("run_path", runPath))

		return nil
	})
	onStop := engine.OnStopCallback(func(err error) {
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Stopped with error", zap.Error(err))
		}
	})
	onDispatch := engine.OnDispatchCallback(func(symbol string, price decimal.Decimal) error {
		log.Debug("Price", zap.String("symbol", symbol), zap.String("price", price.String()))

		return nil
	})
	onTargetUpdated := engine.OnTargetUpdatedCallback(func(trade *types.Trade, leg types.Leg, index int, target *types.Target) {
		fields := []zap.Field{
			zap.String("trade_id", trade.ID),
			zap.String("leg", string(leg)),
			zap.Int("target", index),
			zap.String("status", string(target.Status())),
		}
		if target.HasOrder() {
			fields = append(fields, zap.String("order_id", target.OrderID().Unwrap()))
		}

		log.Info("Target updated", fields...)
	})
	onCompleted := engine.OnStrategyCompletedCallback(func(trade *types.Trade, leg types.Leg) {
		log.Info("Strategy completed", zap.String("trade_id", trade.ID), zap.String("leg", string(leg)))
	})
	onError := engine.OnErrorCallback(func(err error) {
		log.Warn("Handler error", zap.Error(err))
	})
	onEscalation := engine.OnEscalationCallback(func(trade *types.Trade, leg types.Leg, err error) {
		log.Error("Order needs attention",
			zap.String("trade_id", trade.ID),
			zap.String("symbol", trade.Symbol),
			zap.String("leg", string(leg)),
			zap.Error(err),
		)
	})

	return engine.Callbacks{
		OnStart:             &onStart,
		OnStop:              &onStop,
		OnDispatch:          &onDispatch,
		OnTargetUpdated:     &onTargetUpdated,
		OnStrategyCompleted: &onCompleted,
		OnError:             &onError,
		OnEscalation:        &onEscalation,
	}
}

func validateAction(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	strategies := 0
	for _, trade := range cfg.Trades {
		if trade.Entry != nil {
			strategies++
		}
		if trade.Exit != nil {
			strategies++
		}
	}

	_, err = fmt.Fprintf(cmd.Root().Writer, "config is valid: %d trades, %d strategies\n", len(cfg.Trades), strategies)

	return err
}

func schemaAction(_ context.Context, cmd *cli.Command) error {
	out, err := config.Schema()
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.Root().Writer, out)

	return err
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "trading",
		Usage:   "Place trailing smart orders for configured trades",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run the order handler until every trade completed",
				Flags:  configFlags(),
				Action: runAction,
			},
			{
				Name:   "validate",
				Usage:  "Load and validate a configuration file",
				Flags:  configFlags(),
				Action: validateAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the configuration file",
				Action: schemaAction,
			},
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
