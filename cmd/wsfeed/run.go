package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sonirico/wsfeed"
	"github.com/sonirico/wsfeed/internal/config"
	"github.com/sonirico/wsfeed/internal/metrics"
	"github.com/sonirico/wsfeed/internal/sink"
)

type runFlags struct {
	configPath string
	products   []string
	logLevel   string
}

func newRunCmd() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect, subscribe and stream the feed until interrupted",
		Example: `  wsfeed run --products ETH-USD,BTC-USD
  WSFEED_SINK_NATS_ENABLED=true wsfeed run --config wsfeed.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			zl, err := newLogger(cfg.Logging)
			if err != nil {
				return errors.Wrap(err, "cannot build logger")
			}
			defer func() { _ = zl.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, zl)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "path to a yaml config file")
	cmd.Flags().StringSliceVarP(&flags.products, "products", "p", nil, "product ids to subscribe to, overrides feed.product_ids")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error, overrides logging.level")

	return cmd
}

func loadConfig(flags *runFlags) (*config.Config, error) {
	// flags are applied through the environment so that validation covers them too
	if len(flags.products) > 0 {
		if err := os.Setenv(config.EnvPrefix+"FEED_PRODUCT__IDS", strings.Join(flags.products, ",")); err != nil {
			return nil, err
		}
	}
	if flags.logLevel != "" {
		if err := os.Setenv(config.EnvPrefix+"LOGGING_LEVEL", flags.logLevel); err != nil {
			return nil, err
		}
	}

	return config.Load(flags.configPath)
}

func newClient(cfg config.FeedConfig, logger wsfeed.Logger) *wsfeed.Client {
	dialer := wsfeed.NewWebsocketDialer(logger, wsfeed.WebsocketDialerOptions{
		Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		PingInterval: cfg.PingInterval,
	})

	return wsfeed.NewClient(wsfeed.Options{
		URL:                   cfg.URL,
		ReconnectDelay:        cfg.ReconnectDelay,
		MaxReconnectAttempts:  cfg.MaxReconnectAttempts,
		LivenessTimeout:       cfg.LivenessTimeout,
		LivenessCheckInterval: cfg.LivenessCheckInterval,
		Dialer:                dialer,
		Logger:                logger,
	})
}

func newSinks(cfg config.SinkConfig, logger wsfeed.Logger) (sink.Fanout, error) {
	var sinks sink.Fanout

	if cfg.Influx.Enabled {
		sinks = append(sinks, sink.NewInfluxSink(sink.InfluxOptions{
			URL:           cfg.Influx.URL,
			Token:         cfg.Influx.Token,
			Org:           cfg.Influx.Org,
			Bucket:        cfg.Influx.Bucket,
			FlushInterval: cfg.Influx.FlushInterval,
		}, logger))
	}

	if cfg.NATS.Enabled {
		s, err := sink.NewNATSSink(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			_ = sinks.Close()
			return nil, err
		}
		sinks = append(sinks, s)
	}

	return sinks, nil
}

// run streams the feed until ctx is cancelled. It fails when the client cannot connect, the
// subscription is rejected or the client gives up reconnecting.
func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	logger := wsfeed.NewZapLogger(zl)

	sinks, err := newSinks(cfg.Sink, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.Errorf("cannot close sinks: %s", err)
		}
	}()

	client := newClient(cfg.Feed, logger)
	defer func() { _ = client.Close() }()

	detach := sink.Attach(client, sinks)
	defer detach()

	if cfg.Metrics.Enabled {
		m := metrics.New()
		defer m.Observe(client)()

		srv := metrics.NewServer(cfg.Metrics.Address, m, logger)
		if _, err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(shutdownCtx)
		}()
	}

	failed := make(chan error, 1)
	client.OnFailure(func(err error) {
		select {
		case failed <- err:
		default:
		}
	})

	if err := client.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return errors.Wrapf(err, "cannot connect to %s", cfg.Feed.URL)
	}

	req := cfg.Feed.SubscribeRequest()
	if err := client.Subscribe(ctx, req); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return errors.Wrap(err, "cannot subscribe")
	}
	logger.Infof("subscribed to %v on %s", cfg.Feed.ProductIDs, cfg.Feed.Channels)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-failed:
		return err
	}
}
