// Command tx-example walks a ledger through the reference client flow:
// it creates a domain and an asset, funds a fresh account, moves coins
// back and forth, grants a permission, writes an account detail and
// finally reads everything back with queries.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/actor"
	"github.com/blockberries/ledger/config"
	"github.com/blockberries/ledger/example/memledger"
	ledgergrpc "github.com/blockberries/ledger/grpc"
	"github.com/blockberries/ledger/local"
	"github.com/blockberries/ledger/metrics"
	"github.com/blockberries/ledger/status"
)

type options struct {
	configPath  string
	host        string
	port        int
	local       bool
	stageDelay  time.Duration
	metricsAddr string
	trace       bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "tx-example",
		Short: "Run the reference transaction flow against a ledger node",
		Long: `tx-example creates domain "domain" and asset coin#domain, funds a new
account, transfers coins in both directions, grants can_set_my_account_detail,
sets an account detail and reads the results back through queries.

Connection settings come from --config, then the environment
(IROHA_HOST_ADDR, IROHA_PORT, ADMIN_ACCOUNT_ID, ADMIN_PRIVATE_KEY), then flags.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return run(ctx, cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "yaml config file (default "+config.DefaultConfigPath+" if present)")
	f.StringVar(&opts.host, "host", "", "node host, overrides config")
	f.IntVar(&opts.port, "port", 0, "node port, overrides config")
	f.BoolVar(&opts.local, "local", false, "run against an in-process reference node")
	f.DurationVar(&opts.stageDelay, "stage-delay", 20*time.Millisecond, "pause between pipeline stages of the --local node")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.BoolVar(&opts.trace, "trace", false, "log entering/leaving records of every client operation")
	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.host != "" {
		cfg.Host = opts.host
	}
	if opts.port != 0 {
		cfg.Port = opts.port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	adminKey, err := cfg.AdminKeyPair()
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if opts.trace {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if opts.metricsAddr != "" {
		srv := &http.Server{
			Addr:              opts.metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "addr", opts.metricsAddr, "err", err)
			}
		}()
		defer srv.Close()
	}

	var conn ledger.Connection
	if opts.local {
		node, err := memledger.New(cfg.AdminAccount, adminKey.PublicKey(),
			memledger.WithStageDelay(opts.stageDelay),
			memledger.WithLogger(logger.With("component", "memledger")),
		)
		if err != nil {
			return err
		}
		defer node.Close()
		conn = local.NewConnection(node)
		logger.Info("using in-process reference node", "admin", cfg.AdminAccount)
	} else {
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := ledgergrpc.Dial(dialCtx, cfg.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return err
		}
		conn = client
		logger.Info("connected", "addr", cfg.Addr())
	}
	defer conn.Close()

	tracker := status.NewTracker()
	actorOpts := []actor.Option{
		actor.WithLogger(logger),
		actor.WithMetrics(m),
		actor.WithTracker(tracker),
		actor.WithAwaitTimeout(cfg.StatusTimeout),
		actor.WithRateLimit(cfg.SubmitRPS, cfg.SubmitBurst),
	}
	admin, err := actor.New(cfg.AdminAccount, adminKey, conn, actorOpts...)
	if err != nil {
		return err
	}

	f := &flow{
		admin:     admin,
		conn:      conn,
		actorOpts: actorOpts,
		out:       cmd.OutOrStdout(),
	}
	if err := f.run(ctx); err != nil {
		return fmt.Errorf("tx-example: %w", err)
	}
	return nil
}
