// Command torus-server runs one node of a Torus ring: a distributed
// in-memory key/value store built on a Chord-style consistent-hashing ring.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zde37/torus/internal/config"
	"github.com/zde37/torus/internal/dispatch"
	"github.com/zde37/torus/internal/monitor"
	"github.com/zde37/torus/internal/peer"
	"github.com/zde37/torus/internal/ring"
	"github.com/zde37/torus/pkg/logging"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: torus-server -p PORT [-j HOST:PORT] [-t THREADS] [-h]")
	flag.PrintDefaults()
}

func main() {
	os.Exit(run())
}

func run() int {
	flag.Usage = usage
	port := flag.Int("p", 0, "port to bind (required)")
	bootstrap := flag.String("j", "", "bootstrap node address (host:port) to join an existing ring")
	threads := flag.Int("t", 0, "worker pool size (0 = config default)")
	help := flag.Bool("h", false, "show usage")
	monitorPort := flag.Int("monitor-port", 0, "observability HTTP port (0 = config default)")
	logLevel := flag.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	logFormat := flag.String("log-format", "console", "log format (json, console)")
	flag.Parse()

	if *help {
		usage()
		return 0
	}
	if *port == 0 {
		fmt.Fprintln(os.Stderr, "torus-server: -p PORT is required")
		usage()
		return 1
	}

	cfg := config.DefaultConfig()
	cfg.Port = *port
	if *threads > 0 {
		cfg.WorkerPoolSize = *threads
	}
	if *monitorPort > 0 {
		cfg.MonitorPort = *monitorPort
	}
	cfg.LogLevel = *logLevel
	cfg.LogFormat = *logFormat

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "torus-server: invalid configuration: %v\n", err)
		return 1
	}

	loggerCfg := logging.DefaultConfig()
	loggerCfg.Level = cfg.LogLevel
	loggerCfg.Format = cfg.LogFormat
	logger, err := logging.New(loggerCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "torus-server: failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Close()

	node, err := ring.NewNode(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create ring node")
		return 1
	}

	remote := peer.NewClient(logger, cfg.RPCConnectTimeout, cfg.RPCTimeout)
	defer remote.Close()
	node.SetRemote(remote)

	mon := monitor.NewServer(node, logger)
	node.SetEventBroadcaster(mon.Broadcaster())

	d := dispatch.New(node, logger, cfg.WorkerPoolSize, cfg.RPCTimeout)
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	if err := d.Start(addr); err != nil {
		logger.Error().Err(err).Msg("failed to start dispatcher")
		return 1
	}

	if err := mon.Start(cfg.MonitorPort); err != nil {
		logger.Error().Err(err).Msg("failed to start monitor server")
		cleanup(node, d, mon, logger)
		return 1
	}

	if *bootstrap == "" {
		if err := node.Create(); err != nil {
			logger.Error().Err(err).Msg("failed to create ring")
			cleanup(node, d, mon, logger)
			return 1
		}
		logger.Info().Str("id", node.ID().Text(16)).Msg("created new ring")
	} else {
		if err := joinRing(node, *bootstrap); err != nil {
			logger.Error().Err(err).Str("bootstrap", *bootstrap).Msg("failed to join ring")
			cleanup(node, d, mon, logger)
			return 1
		}
		logger.Info().Str("id", node.ID().Text(16)).Str("bootstrap", *bootstrap).Msg("joined ring")
	}

	logger.Info().Str("address", addr).Msg("torus-server ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-d.Done():
		logger.Info().Msg("dispatcher stopped via admin shutdown")
	}

	cleanup(node, d, mon, logger)
	logger.Info().Msg("torus-server shutdown complete")
	return 0
}

func joinRing(node *ring.Node, bootstrap string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return node.Join(ctx, bootstrap)
}

func cleanup(node *ring.Node, d *dispatch.Dispatcher, mon *monitor.Server, logger *logging.Logger) {
	logger.Info().Msg("shutting down")

	if err := mon.Stop(); err != nil {
		logger.Warn().Err(err).Msg("error stopping monitor server")
	}
	if err := d.Stop(); err != nil {
		logger.Warn().Err(err).Msg("error stopping dispatcher")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := node.Leave(ctx); err != nil {
		logger.Warn().Err(err).Msg("error leaving ring")
	}
}
