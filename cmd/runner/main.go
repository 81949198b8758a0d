package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/awnumar/memguard"
	"github.com/eagraf/holochain-runner/internal/node/conductor"
	"github.com/eagraf/holochain-runner/internal/node/config"
	"github.com/eagraf/holochain-runner/internal/node/constants"
	"github.com/eagraf/holochain-runner/internal/node/logging"
	"github.com/eagraf/holochain-runner/internal/node/signals"
	"github.com/eagraf/holochain-runner/internal/runner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const version = "v0.1.0"

var rootCmd = &cobra.Command{
	Use:   "holochain-runner <happ path> [datastore path]",
	Short: "holochain-runner - run a single hApp in an embedded conductor",
	Long: `holochain-runner installs the given hApp bundle into an embedded conductor on
first run, reuses the existing installation on later runs, and keeps it running
until interrupted. The keystore passphrase is read from stdin.`,
	Args:          cobra.RangeArgs(1, 2),
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

// flag name -> viper key
var flagKeys = map[string]string{
	"app-id":              config.KeyAppID,
	"app-ws-port":         config.KeyAppPort,
	"admin-ws-port":       config.KeyAdminPort,
	"keystore-path":       config.KeyKeystorePath,
	"bootstrap-url":       config.KeyBootstrapURL,
	"webrtc-signal-url":   config.KeySignalURL,
	"network-seed":        config.KeyNetworkSeed,
	"gossip-arc-clamping": config.KeyGossipArcClamping,
	"log-level":           config.KeyLogLevel,
	"metrics-addr":        config.KeyMetricsAddr,
}

var v = viper.New()

func init() {
	flags := rootCmd.Flags()
	flags.String("app-id", constants.DefaultAppID, "installed app id to use on first run")
	flags.Uint16("app-ws-port", constants.DefaultAppPort, "port for the app websocket interface on first run, 0 picks a free port")
	flags.Uint16("admin-ws-port", constants.DefaultAdminPort, "port for the admin websocket interface, 0 picks a free port")
	flags.String("keystore-path", constants.DefaultKeystorePath, "directory of a file keystore; empty keeps the keystore inside the datastore")
	flags.String("bootstrap-url", constants.DefaultBootstrapURL, "url of the bootstrap service")
	flags.String("webrtc-signal-url", constants.DefaultSignalURL, "url of the webrtc signal server")
	flags.String("network-seed", "", "network seed applied to every dna in the bundle")
	flags.String("gossip-arc-clamping", constants.ArcClampingNone, `gossip arc clamping, "full" or "empty"`)
	flags.String("log-level", "info", "log level")
	flags.String("metrics-addr", "", "serve prometheus metrics on this address, e.g. 127.0.0.1:9090")

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func loadConfig(args []string) (*config.NodeConfig, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, err
	}
	config.SetDefaults(v)
	if err := config.ReadConfigFile(v); err != nil {
		return nil, err
	}
	v.Set(config.KeyBundlePath, args[0])
	if len(args) > 1 {
		v.Set(config.KeyDatastorePath, args[1])
	}
	return config.NewNodeConfig(v)
}

func run(cmd *cobra.Command, args []string) error {
	logger := logging.NewLogger()
	nodeConfig, err := loadConfig(args)
	if err != nil {
		logger.Error().Err(err).Msg("error loading config")
		return err
	}
	logger = logging.NewLoggerWithLevel(os.Stderr, logging.ParseLevel(nodeConfig.LogLevel()))

	passphrase, err := readPassphrase(os.Stdin, os.Stderr)
	if err != nil {
		logger.Error().Err(err).Msg("error reading passphrase")
		return err
	}
	defer memguard.Purge()

	// ctx.Done() returns on SIGINT or SIGTERM. Calling cancel() unregisters the
	// signal trapping.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	factory := conductor.Factory(passphrase, conductor.WithLogger(logger))
	return runNode(ctx, nodeConfig, factory, os.Stdout, logger)
}

// runNode starts the node and speaks the host protocol on stdout: one numeric
// code per progress signal, then the readiness lines. It returns once the
// runtime has stopped, after ctx is cancelled or orchestration fails.
func runNode(ctx context.Context, nodeConfig *config.NodeConfig, factory runner.RuntimeFactory, stdout io.Writer, logger *zerolog.Logger) error {
	// egCtx is cancelled if any function called with eg.Go() returns an error.
	eg, egCtx := errgroup.WithContext(ctx)

	bus := signals.NewBus()
	listenCtx, stopListening := context.WithCancel(context.Background())
	defer stopListening()
	listening := make(chan error, 1)
	go func() {
		listening <- bus.Listen(listenCtx, &signals.StdoutSubscriber{Out: stdout})
	}()

	opts := []runner.Option{
		runner.WithSignals(bus),
		runner.WithLogger(logger),
	}
	var metricsServer *http.Server
	if addr := nodeConfig.MetricsAddr(); addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, runner.WithMetrics(runner.NewMetrics(reg)))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		eg.Go(serveFn(metricsServer, "metrics", logger))
	}
	stopMetrics := func() {
		if metricsServer == nil {
			return
		}
		if err := metricsServer.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("error on metrics server shutdown")
		}
		if err := eg.Wait(); err != nil {
			logger.Error().Err(err).Msg("received error on eg.Wait()")
		}
	}

	node, err := runner.NewSupervisor(nodeConfig, factory, opts...).Start(ctx)
	if err != nil {
		bus.Close()
		<-listening
		stopMetrics()
		logger.Error().Err(err).Msg("error starting node")
		return err
	}

	// A signal during orchestration is honoured once the pass ends.
	go func() {
		<-ctx.Done()
		node.Shutdown()
	}()

	readiness, orchErr := node.AwaitReady(context.Background())

	// Orchestration emits no more signals once it has ended, so the codes are
	// flushed before the readiness lines.
	bus.Close()
	if err := <-listening; err != nil {
		logger.Warn().Err(err).Msg("error writing progress signals")
	}

	switch {
	case orchErr != nil:
		logger.Error().Err(orchErr).Msg("error getting app ready")
	case ctx.Err() != nil:
		logger.Info().Msg("shutdown signal received before the app was ready")
	default:
		fmt.Fprintf(stdout, "APP_WS_PORT: %d\n", readiness.AppPort)
		fmt.Fprintf(stdout, "INSTALLED_APP_ID: %s\n", readiness.AppID)
		fmt.Fprintln(stdout, "HOLOCHAIN_RUNNER_IS_READY")

		// Wait for either a signal which triggers ctx.Done()
		// or the metrics server to error, which triggers egCtx.Done()
		select {
		case <-egCtx.Done():
			if ctx.Err() == nil {
				logger.Error().Err(context.Cause(egCtx)).Msg("sub-service errored: shutting down")
			} else {
				logger.Info().Msg("shutdown signal received, gracefully stopping")
			}
		case <-ctx.Done():
			logger.Info().Msg("shutdown signal received, gracefully stopping")
		}
	}

	node.Shutdown()
	<-node.Done()
	stopMetrics()

	if err := node.Err(); err != nil {
		return err
	}
	logger.Info().Msg("stopped")
	return nil
}

// serveFn returns a callback that serves srv until it is shut down.
func serveFn(srv *http.Server, name string, logger *zerolog.Logger) func() error {
	return func() error {
		logger.Info().Msgf("starting %s server at %s", name, srv.Addr)
		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msgf("%s server closed with abnormal error", name)
			return err
		}
		return nil
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
