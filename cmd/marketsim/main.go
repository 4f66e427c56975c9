package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/erain9/marketsim/config"
	"github.com/erain9/marketsim/pkg/backend/redis"
	"github.com/erain9/marketsim/pkg/core"
	"github.com/erain9/marketsim/pkg/db/queue"
	"github.com/erain9/marketsim/pkg/exchange"
	"github.com/erain9/marketsim/pkg/logging"
	"github.com/erain9/marketsim/pkg/marketdata"
	"github.com/erain9/marketsim/pkg/messaging"
	"github.com/erain9/marketsim/pkg/messaging/kafka"
	"github.com/erain9/marketsim/pkg/otel"
	"github.com/erain9/marketsim/pkg/simulator"
	"github.com/erain9/marketsim/pkg/user"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/zap"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "marketsim: %v\n", err)
		os.Exit(1)
	}
}

// edges holds the optional broker and cache connections of a run
type edges struct {
	subscribers []marketdata.Subscriber
	listeners   []core.ExecutionListener
	closers     []func() error
}

func (e *edges) close(logger zerolog.Logger) {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			logger.Warn().Err(err).Msg("Failed to close connection")
		}
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	// Load configuration
	cfg, err := config.LoadConfig(args)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	simCfg, err := simulator.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load simulation configuration: %w", err)
	}

	// Setup logging
	logging.Setup(logging.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})
	logger := log.Logger
	ctx = logger.WithContext(ctx)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry
	cleanup, err := otel.Init(otel.Config{
		ServiceName:      cfg.Telemetry.ServiceName,
		Endpoint:         cfg.Telemetry.Endpoint,
		MetricInterval:   cfg.Telemetry.MetricInterval,
		CollectorEnabled: cfg.Telemetry.Enabled,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	defer cleanup()
	if cfg.Telemetry.Enabled {
		if err := otel.StartRuntimeMetrics(cfg.Telemetry.MetricInterval); err != nil {
			logger.Warn().Err(err).Msg("Failed to start runtime metrics")
		}
	}

	e, err := setupEdges(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer e.close(logger)

	publisher := marketdata.NewPublisher()
	users := user.NewManager()
	opts := []core.Option{core.WithExecutionListener(users)}
	for _, l := range e.listeners {
		opts = append(opts, core.WithExecutionListener(l))
	}
	products := exchange.NewProductManager(marketdata.NewTracker(publisher), opts...)

	sim := simulator.New(simCfg, products, users, publisher)
	if err := sim.Setup(ctx); err != nil {
		return fmt.Errorf("failed to set up simulation: %w", err)
	}
	defer sim.Teardown()

	for _, sub := range e.subscribers {
		for _, symbol := range products.Products() {
			publisher.Subscribe(symbol, sub)
		}
	}

	stats, err := sim.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Simulation interrupted, reporting partial results")
	}

	printReport(out, cfg.Report.Color, products, users, stats)
	return nil
}

// setupEdges connects the publishers enabled in cfg
func setupEdges(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*edges, error) {
	e := &edges{}

	if cfg.Kafka.Enabled {
		brokers := cfg.Brokers()

		mdSender, err := kafka.NewSender(brokers, cfg.Kafka.MarketDataTopic)
		if err != nil {
			e.close(logger)
			return nil, fmt.Errorf("failed to create market data sender: %w", err)
		}
		e.subscribers = append(e.subscribers, kafka.NewMarketDataSubscriber(mdSender))
		e.closers = append(e.closers, mdSender.Close)

		reports, err := queue.NewReportSender(brokers, cfg.Kafka.ExecutionTopic)
		if err != nil {
			e.close(logger)
			return nil, fmt.Errorf("failed to create execution report sender: %w", err)
		}
		e.listeners = append(e.listeners, reports)
		e.closers = append(e.closers, reports.Close)

		if cfg.Kafka.Consume {
			// developer aid: echo what lands on the topics
			consumer := kafka.SetupConsumer(ctx, brokers, cfg.Kafka.MarketDataTopic, cfg.Kafka.GroupID, logger)
			e.closers = append(e.closers, consumer.Close)

			reportConsumer, err := queue.NewReportConsumer(brokers, cfg.Kafka.ExecutionTopic)
			if err != nil {
				logger.Warn().Err(err).Msg("Failed to create execution report consumer")
			} else {
				e.closers = append(e.closers, reportConsumer.Close)
				go logReports(reportConsumer, logger)
			}
		}
	}

	if cfg.Redis.Enabled {
		zlog, err := newZapLogger(cfg.Log.Pretty)
		if err != nil {
			e.close(logger)
			return nil, fmt.Errorf("failed to create cache logger: %w", err)
		}
		client := redis.NewClient(redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		e.subscribers = append(e.subscribers, redis.NewMarketCache(client, cfg.Redis.Prefix, zlog))
		e.closers = append(e.closers, client.Close, func() error {
			_ = zlog.Sync()
			return nil
		})
	}

	return e, nil
}

func newZapLogger(pretty bool) (*zap.Logger, error) {
	if pretty {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func logReports(c *queue.ReportConsumer, logger zerolog.Logger) {
	err := c.Consume(func(msg *messaging.ExecutionMessage) error {
		logger.Info().
			Str("kind", msg.Kind).
			Str("symbol", msg.Symbol).
			Str("order_id", msg.OrderID).
			Int("volume", msg.Volume).
			Msg("Received execution report")
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("Execution report consumer error")
	}
}

func printReport(w io.Writer, useColor bool, products *exchange.ProductManager, users *user.Manager, stats *simulator.Stats) {
	if !useColor {
		color.NoColor = true
	}
	header := color.New(color.FgCyan, color.Bold)
	body := color.New(color.FgGreen)

	header.Fprintln(w, "Books")
	fmt.Fprintln(w, products.String())

	header.Fprintln(w, "Users")
	fmt.Fprintln(w, users.String())

	header.Fprintln(w, "Current Markets")
	for _, u := range users.Users() {
		fmt.Fprintln(w, u.CurrentMarkets())
	}

	header.Fprintln(w, "Stats")
	body.Fprint(w, stats.Summary())
}
